package plugins

import (
	"reflect"
	"testing"
	"time"

	"github.com/starford/notelog/internal/search"
)

func TestDateHandlerRecognize(t *testing.T) {
	h := NewDateHandler(fixedNow)
	cases := []struct {
		term   string
		want   time.Time
		wantOK bool
	}{
		{"date:today", time.Date(2017, time.May, 24, 0, 0, 0, 0, time.UTC), true},
		{"date:yesterday", time.Date(2017, time.May, 23, 0, 0, 0, 0, time.UTC), true},
		{"date:tomorrow", time.Date(2017, time.May, 25, 0, 0, 0, 0, time.UTC), true},
		{"date:1450794188", time.Date(2015, time.December, 22, 0, 0, 0, 0, time.UTC), true},
		{"date:2013-07-11", time.Date(2013, time.July, 11, 0, 0, 0, 0, time.UTC), true},
		{"2013-07-11", time.Date(2013, time.July, 11, 0, 0, 0, 0, time.UTC), true},
		{"05/24/2017", time.Date(2017, time.May, 24, 0, 0, 0, 0, time.UTC), true},
		{"06/33/2017", time.Time{}, false},
		{"date:", time.Time{}, false},
		{"1234567890", time.Time{}, false},
		{"adam", time.Time{}, false},
		{"#2013-07-11", time.Time{}, false},
		{"tons-of-hashtags", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := h.Recognize(tc.term)
		if ok != tc.wantOK {
			t.Errorf("Recognize(%q) ok = %v, want %v", tc.term, ok, tc.wantOK)
			continue
		}
		if ok && !search.SameDay(got, tc.want) {
			t.Errorf("Recognize(%q) = %v, want day %v", tc.term, got, tc.want)
		}
	}
}

func TestDateHandlerRewritesRequest(t *testing.T) {
	h := NewDateHandler(fixedNow)
	req := h.ProcessSearchRequest(search.NewRequest([]string{"standup", "date:1450794188", "!skip"}))

	if want := []string{"standup"}; !reflect.DeepEqual(req.Include, want) {
		t.Errorf("Include = %v, want %v", req.Include, want)
	}
	if want := []string{"skip"}; !reflect.DeepEqual(req.Exclude, want) {
		t.Errorf("Exclude = %v, want %v", req.Exclude, want)
	}
	want := time.Date(2015, time.December, 22, 0, 0, 0, 0, time.UTC)
	if req.Date == nil || !req.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", req.Date, want)
	}
}

func TestDateHandlerLastDateWins(t *testing.T) {
	h := NewDateHandler(fixedNow)
	req := h.ProcessSearchRequest(search.NewRequest([]string{"date:2013-07-11", "date:today"}))
	if len(req.Include) != 0 {
		t.Errorf("Include = %v, want empty", req.Include)
	}
	if req.Date == nil || !req.Date.Equal(time.Date(2017, time.May, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", req.Date)
	}
}

func TestDateHandlerLeavesPlainTerms(t *testing.T) {
	h := NewDateHandler(fixedNow)
	in := search.NewRequest([]string{"plain", "words"})
	out := h.ProcessSearchRequest(in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("request changed: %+v -> %+v", in, out)
	}
}
