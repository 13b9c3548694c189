package history

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the calendar
// date as written, normalized to UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, Invalidf("date is required")
	}
	if parsed, err := time.Parse(dateLayout, trimmed); err == nil {
		return CalendarDate(parsed), nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, Invalidf("unparseable date %q", trimmed)
	}
	return CalendarDate(parsed), nil
}

// CalendarDate drops the time of day, keeping the Y/M/D of t in its own location.
func CalendarDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
