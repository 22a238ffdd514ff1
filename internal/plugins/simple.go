package plugins

import (
	"regexp"

	"github.com/starford/notelog/internal/search"
)

// Plugin names.
const (
	TodoName     = "todo"
	LunchName    = "lunch"
	CalendarName = "cal"
)

var (
	todoRe  = regexp.MustCompile(`^todo(ne\[[0-9]*\])?:`)
	lunchRe = regexp.MustCompile(`^s?lunch$`)
	calRe   = regexp.MustCompile(`^cal:`)
)

// Todo keeps todo:/todone[N]: notes unprefixed.
type Todo struct{}

func (Todo) Name() string { return TodoName }

func (Todo) BypassToday(note string) bool { return todoRe.MatchString(note) }

func (Todo) ProcessSearchRequest(req search.Request) search.Request { return req }

// Lunch keeps lunch/slunch break markers unprefixed.
type Lunch struct{}

func (Lunch) Name() string { return LunchName }

func (Lunch) BypassToday(note string) bool { return lunchRe.MatchString(note) }

func (Lunch) ProcessSearchRequest(req search.Request) search.Request { return req }

// Calendar keeps cal: entries unprefixed.
type Calendar struct{}

func (Calendar) Name() string { return CalendarName }

func (Calendar) BypassToday(note string) bool { return calRe.MatchString(note) }

func (Calendar) ProcessSearchRequest(req search.Request) search.Request { return req }
