package entities

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// StartOfWeek returns the most recent Sunday 00:00 on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// DateKey formats t as YYYY-MM-DD in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDueDate accepts a bare date (interpreted as local midnight in loc)
// or a full RFC 3339 timestamp.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q: %w", s, ErrValidation)
}
