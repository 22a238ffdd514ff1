// Package plugins provides the named note plugins selected by configuration.
//
// A plugin may rewrite search requests (date recognition) and may mark notes
// as exempt from the "today: " prefix applied on quick capture.
package plugins

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/search"
)

// TodayPrefix is prepended to captured notes no plugin claims.
const TodayPrefix = "today: "

// Plugin is a named note plugin.
type Plugin interface {
	search.Processor
	Name() string
	// BypassToday reports whether note should be stored without TodayPrefix.
	BypassToday(note string) bool
}

// Factory constructs a plugin. now supplies the current time.
type Factory func(now func() time.Time) Plugin

var registry = map[string]Factory{
	DateHandlerName: func(now func() time.Time) Plugin { return NewDateHandler(now) },
	TodoName:        func(func() time.Time) Plugin { return Todo{} },
	LunchName:       func(func() time.Time) Plugin { return Lunch{} },
	CalendarName:    func(func() time.Time) Plugin { return Calendar{} },
}

// Names returns every registered plugin name, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Known reports whether name is a registered plugin.
func Known(name string) bool {
	_, ok := registry[strings.TrimSpace(name)]
	return ok
}

// Manager holds the enabled plugins in configuration order.
type Manager struct {
	plugins []Plugin
}

// Load builds the named plugins in order. An unknown name is a configuration error.
func Load(names []string, now func() time.Time) (*Manager, error) {
	if now == nil {
		now = time.Now
	}
	m := &Manager{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("plugins: unknown plugin %q: %w", name, apperr.ErrConfig)
		}
		m.plugins = append(m.plugins, factory(now))
	}
	return m, nil
}

// Plugins returns the loaded plugins.
func (m *Manager) Plugins() []Plugin {
	return m.plugins
}

// Processors returns the plugins as search processors, in order.
func (m *Manager) Processors() []search.Processor {
	out := make([]search.Processor, len(m.plugins))
	for i, p := range m.plugins {
		out[i] = p
	}
	return out
}

// Builder returns a search.Builder running every plugin in order.
func (m *Manager) Builder() *search.Builder {
	return search.NewBuilder(m.Processors()...)
}

// BypassToday reports whether any plugin exempts note from the today prefix.
func (m *Manager) BypassToday(note string) bool {
	for _, p := range m.plugins {
		if p.BypassToday(note) {
			return true
		}
	}
	return false
}

// PrepareNote applies the quick-capture prefix rule to note.
func (m *Manager) PrepareNote(note string) string {
	if m.BypassToday(note) {
		return note
	}
	return TodayPrefix + note
}
