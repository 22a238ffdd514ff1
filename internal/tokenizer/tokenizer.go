// Package tokenizer maps a note to the facet keys it is indexed under.
//
// Facet keys live in one flat namespace shared with the primary note keys of
// the indexed backend, so every category carries its own prefix:
//
//	word:<token>      one per unique word, lower-cased
//	word:#<tag>       one per unique hashtag, in addition to its word parts
//	year:<Y> month:<M> day:<D> hour:<H> weekday:<W>
//
// Weekday numbering is 0=Monday through 6=Sunday.
package tokenizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Facet key prefixes.
const (
	WordPrefix    = "word:"
	YearPrefix    = "year:"
	MonthPrefix   = "month:"
	DayPrefix     = "day:"
	HourPrefix    = "hour:"
	WeekdayPrefix = "weekday:"
)

var (
	wordRe    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	hashtagRe = regexp.MustCompile(`#[\p{L}\p{N}_-]+`)
)

// Tokenize returns the ordered facet keys for a note: word facets, then
// hashtag facets, then the five date facets. Empty text still yields the
// date facets.
func Tokenize(timestamp int64, text string) []string {
	words := Words(text)
	keys := make([]string, 0, len(words)+5)
	for _, w := range words {
		keys = append(keys, WordKey(w))
	}
	return append(keys, DateKeys(timestamp)...)
}

// Words returns the de-duplicated, lower-cased words of text followed by its
// hashtags (with the leading '#').
func Words(text string) []string {
	lowered := strings.ToLower(text)
	words := lo.Uniq(wordRe.FindAllString(lowered, -1))
	tags := lo.Uniq(hashtagRe.FindAllString(lowered, -1))
	return append(words, tags...)
}

// WordKey returns the facet key for a search term or token.
func WordKey(term string) string {
	return WordPrefix + strings.ToLower(term)
}

// DateKeys returns year, month, day, hour and weekday facets of a UTC timestamp.
func DateKeys(timestamp int64) []string {
	t := time.Unix(timestamp, 0).UTC()
	return append(DayKeys(t),
		HourPrefix+strconv.Itoa(t.Hour()),
		WeekdayPrefix+strconv.Itoa(Weekday(t)),
	)
}

// DayKeys returns only the year, month and day facets of t in UTC. Date
// filters match on these three.
func DayKeys(t time.Time) []string {
	t = t.UTC()
	return []string{
		YearPrefix + strconv.Itoa(t.Year()),
		MonthPrefix + strconv.Itoa(int(t.Month())),
		DayPrefix + strconv.Itoa(t.Day()),
	}
}

// Weekday numbers days from 0=Monday to 6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
