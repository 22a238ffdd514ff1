// Package models defines the domain types for notelog.
package models

import "time"

// AbsentTimestamp marks the placeholder note returned by lookups that found nothing.
const AbsentTimestamp int64 = -1

// Note is a single timestamped entry. Timestamp is the primary key within a backend.
type Note struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// Absent is the sentinel result the indexed backend returns in place of an
// empty result set. Callers check it with IsAbsent.
var Absent = Note{Timestamp: AbsentTimestamp}

// IsAbsent reports whether n is the empty-result sentinel.
func (n Note) IsAbsent() bool {
	return n.Timestamp == AbsentTimestamp
}

// Time returns the note timestamp as a UTC time.
func (n Note) Time() time.Time {
	return time.Unix(n.Timestamp, 0).UTC()
}

// Present drops the empty-result sentinel, so callers can treat both backends alike.
func Present(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if n.IsAbsent() {
			continue
		}
		out = append(out, n)
	}
	return out
}
