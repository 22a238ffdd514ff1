// Package parser reads and renders the notes file format.
//
// A notes file is a sequence of day sections. Each section starts with a
// header block
//
//	==========
//	2013-07-11T00:00:00
//
// followed by note lines of the form
//
//	[Thu Jul 11 00:00:00 2013] note text
//
// Timestamps are rendered in UTC with a fixed asctime-style layout so that
// they parse back to the same epoch second.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// HeaderRule is the first line of every day header block.
	HeaderRule = "=========="

	// TimestampLayout renders note timestamps (day of month is space padded).
	TimestampLayout = time.ANSIC
	// HeaderLayout renders the date line of a day header block.
	HeaderLayout = "2006-01-02T00:00:00"
)

var lineRe = regexp.MustCompile(`^\[([^\]]+)\] (.*)$`)

// FormatTimestamp renders an epoch timestamp for the notes file.
func FormatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a rendered timestamp back to its epoch value.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("parser: timestamp %q: %w", s, err)
	}
	return t.Unix(), nil
}

// DateHeader returns the date line of the day header for ts.
func DateHeader(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(HeaderLayout)
}

// LinePrefix returns the "[timestamp] " prefix shared by every note line
// written at ts.
func LinePrefix(ts int64) string {
	return "[" + FormatTimestamp(ts) + "] "
}

// FormatLine renders a note line without its trailing newline.
func FormatLine(ts int64, text string) string {
	return LinePrefix(ts) + text
}

// SplitLine separates the raw timestamp text from the note text. ok is false
// for headers and any line not in note-line form.
func SplitLine(line string) (stamp, text string, ok bool) {
	m := lineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseLine parses a note line into its epoch timestamp and text. Malformed
// lines report ok=false.
func ParseLine(line string) (ts int64, text string, ok bool) {
	stamp, text, ok := SplitLine(line)
	if !ok {
		return 0, "", false
	}
	ts, err := ParseTimestamp(stamp)
	if err != nil {
		return 0, "", false
	}
	return ts, text, true
}
