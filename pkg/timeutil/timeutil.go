// Package timeutil provides calendar-date helpers.
//
// Activity dates are civil dates: a year, month and day with no time of day.
// They are carried as time.Time values at 00:00 UTC so that day arithmetic
// never crosses a DST boundary. "Today" is resolved in a configurable
// location and then converted to that representation.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for an optional time of day.
const TimeLayout = "15:04"

// Clock abstracts the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar date in loc.
func Today(c Clock, loc *time.Location) time.Time {
	return DateOf(c.Now(), loc)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return d, nil
}

// ParseTimeOfDay validates an HH:MM string.
func ParseTimeOfDay(s string) error {
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return fmt.Errorf("malformed time %q: %w", s, err)
	}
	return nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// Normalize strips any time-of-day component from a calendar date.
func Normalize(d time.Time) time.Time {
	return Date(d.Year(), d.Month(), d.Day())
}

// AddDays shifts a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return Normalize(d).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}

// IsConsecutiveDay reports whether b is the day right after a.
func IsConsecutiveDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 1
}

// RollingWindow returns the inclusive range of the last n calendar days
// ending at today.
func RollingWindow(today time.Time, days int) (from, to time.Time) {
	to = Normalize(today)
	return AddDays(to, -(days - 1)), to
}

// InRange reports whether d lies in [from, to].
func InRange(d, from, to time.Time) bool {
	d = Normalize(d)
	return !d.Before(from) && !d.After(to)
}

// StartOfDay returns the instant the calendar date d begins in loc.
func StartOfDay(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
