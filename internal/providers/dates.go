package providers

import (
	"strings"
	"time"
)

var (
	// OpenStart and OpenEnd bound memberships without explicit dates.
	OpenStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	OpenEnd   = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)
)

// ParseDate parses the date formats Tempo uses for membership bounds:
// ISO dates (optionally with a time part), yyyy/mm/dd and dd.mm.yyyy.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s, _, _ = strings.Cut(s, "t")
	if s == "" {
		return time.Time{}, false
	}

	var layout string
	switch {
	case strings.Contains(s, "-"):
		layout = "2006-01-02"
	case strings.Contains(s, "/"):
		layout = "2006/01/02"
	case strings.Contains(s, "."):
		layout = "02.01.2006"
	default:
		return time.Time{}, false
	}

	d, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseDateOr(s string, fallback time.Time) time.Time {
	if d, ok := ParseDate(s); ok {
		return d
	}
	return fallback
}
