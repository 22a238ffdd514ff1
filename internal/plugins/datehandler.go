package plugins

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/notelog/internal/search"
)

// DateHandlerName is the registry name of the date recognising plugin.
const DateHandlerName = "datehandler"

// DatePrefix introduces an explicit date term such as date:today.
const DatePrefix = "date:"

// DateHandler turns a date-like inclusion term into the request date.
//
// Recognised terms:
//
//	date:today, date:yesterday, date:tomorrow
//	date:<epoch seconds>
//	date:<anything dateparse understands>
//	bare dates containing '-' or '/' and a digit, e.g. 2013-07-11, 05/24/2017
//
// Each recognised term is removed from the inclusions; the last one wins.
type DateHandler struct {
	now func() time.Time
}

// NewDateHandler returns a DateHandler using now for relative dates.
func NewDateHandler(now func() time.Time) *DateHandler {
	if now == nil {
		now = time.Now
	}
	return &DateHandler{now: now}
}

func (h *DateHandler) Name() string { return DateHandlerName }

func (h *DateHandler) BypassToday(string) bool { return false }

// ProcessSearchRequest implements search.Processor.
func (h *DateHandler) ProcessSearchRequest(req search.Request) search.Request {
	for i := 0; i < len(req.Include); {
		d, ok := h.Recognize(req.Include[i])
		if !ok {
			i++
			continue
		}
		req = req.WithoutInclude(i).WithDate(d)
	}
	return req
}

// Recognize parses term as a date expression.
func (h *DateHandler) Recognize(term string) (time.Time, bool) {
	if rest, ok := strings.CutPrefix(term, DatePrefix); ok {
		return h.parseExplicit(rest)
	}
	if !looksLikeDate(term) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(term, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *DateHandler) parseExplicit(value string) (time.Time, bool) {
	now := h.now().UTC()
	switch value {
	case "":
		return time.Time{}, false
	case "today":
		return now, true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), true
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func looksLikeDate(term string) bool {
	if strings.HasPrefix(term, "#") || !strings.ContainsAny(term, "-/") {
		return false
	}
	return strings.ContainsAny(term, "0123456789")
}
