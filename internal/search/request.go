// Package search builds structured search requests from raw user terms.
package search

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// ExcludePrefix marks a raw term as an exclusion.
const ExcludePrefix = "!"

// Request is a parsed search. Include and Exclude are ordered and
// de-duplicated. Date, when set, is a UTC calendar day.
type Request struct {
	Include []string
	Exclude []string
	Date    *time.Time

	// Pagination is carried but not applied by any backend.
	PageLimit int
	PageIndex int
}

// NewRequest partitions raw terms into inclusion and exclusion terms. Every
// term is lower-cased; blank terms are dropped. It never fails: unrecognised
// terms pass through as literal inclusions.
func NewRequest(terms []string) Request {
	var req Request
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.HasPrefix(term, ExcludePrefix) {
			if t := strings.ToLower(term[len(ExcludePrefix):]); t != "" {
				req.Exclude = append(req.Exclude, t)
			}
			continue
		}
		req.Include = append(req.Include, strings.ToLower(term))
	}
	req.Include = lo.Uniq(req.Include)
	req.Exclude = lo.Uniq(req.Exclude)
	return req
}

// Empty reports whether the request places no constraint on results.
func (r Request) Empty() bool {
	return len(r.Include) == 0 && len(r.Exclude) == 0 && r.Date == nil
}

// WithoutInclude returns a copy of r with the inclusion term at index i removed.
func (r Request) WithoutInclude(i int) Request {
	out := r
	out.Include = append(append([]string{}, r.Include[:i]...), r.Include[i+1:]...)
	return out
}

// WithDate returns a copy of r filtered to the UTC calendar day of d.
func (r Request) WithDate(d time.Time) Request {
	day := Day(d)
	out := r
	out.Date = &day
	return out
}

// Day truncates t to midnight of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether t falls on the UTC calendar day of day.
func SameDay(t, day time.Time) bool {
	return Day(t).Equal(Day(day))
}
