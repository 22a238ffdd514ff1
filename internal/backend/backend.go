// Package backend defines the note backend contract, the registry of
// backend constructors and the coordinator that fans writes out to every
// enabled backend.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/filestore"
	"github.com/starford/notelog/internal/kv"
	"github.com/starford/notelog/internal/kvstore"
	"github.com/starford/notelog/internal/metrics"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/search"
)

// Backend is the contract shared by every note store.
type Backend interface {
	Name() string
	Enabled() bool
	// SaveNote returns the timestamp the note was stored at. It is later
	// than ts when the backend shifted past a collision.
	SaveNote(ctx context.Context, ts int64, text string) (int64, error)
	DeleteNote(ctx context.Context, ts int64) error
	// UpdateNote returns the timestamp the replacement was stored at.
	UpdateNote(ctx context.Context, oldTS, newTS int64, text string) (int64, error)
	// FindNotes returns matches ordered by timestamp. Backends may return a
	// single models.Absent element instead of an empty slice.
	FindNotes(ctx context.Context, terms []string) ([]models.Note, error)
	CommonWords(ctx context.Context) ([]string, error)
}

var (
	_ Backend = (*filestore.Store)(nil)
	_ Backend = (*kvstore.Store)(nil)
)

// FileOptions configures the file backend.
type FileOptions struct {
	Location string
	Backup   bool
}

// KVOptions configures the indexed backend.
type KVOptions struct {
	Engine      kv.Config
	Source      string
	MaxAttempts int
}

// Options carries everything a Factory may need.
type Options struct {
	File    FileOptions
	KV      KVOptions
	Builder *search.Builder
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Factory constructs a backend. enabled is false when the backend is opened
// outside the configured list, e.g. as a migration target.
type Factory func(ctx context.Context, opts Options, enabled bool) (Backend, error)

var registry = map[string]Factory{
	filestore.Name: openFile,
	kvstore.Name:   openKV,
}

// Names lists the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Known reports whether name is a registered backend.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// OpenOne constructs a single backend by name.
func OpenOne(ctx context.Context, name string, opts Options, enabled bool) (Backend, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("backend: unknown backend %q: %w", name, apperr.ErrConfig)
	}
	return factory(ctx, opts, enabled)
}

// Open constructs the configured backends in order and returns a
// coordinator over them. Backends opened before a failure are closed.
func Open(ctx context.Context, names []string, opts Options) (*Coordinator, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("backend: no backends configured: %w", apperr.ErrConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backends := make([]Backend, 0, len(names))
	for _, name := range names {
		b, err := OpenOne(ctx, name, opts, true)
		if err != nil {
			_ = NewCoordinator(logger, backends...).Close()
			return nil, err
		}
		backends = append(backends, b)
	}
	return NewCoordinator(logger, backends...), nil
}

func openFile(_ context.Context, opts Options, enabled bool) (Backend, error) {
	store, err := filestore.New(filestore.Options{
		Path:    opts.File.Location,
		Backup:  opts.File.Backup,
		Enabled: enabled,
		Builder: opts.Builder,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openKV(ctx context.Context, opts Options, enabled bool) (Backend, error) {
	engine, err := kv.Open(ctx, opts.KV.Engine)
	if err != nil {
		return nil, err
	}
	store, err := kvstore.New(kvstore.Options{
		Engine:      engine,
		Source:      opts.KV.Source,
		MaxAttempts: opts.KV.MaxAttempts,
		Enabled:     enabled,
		Builder:     opts.Builder,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return store, nil
}
