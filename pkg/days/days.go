// Package days computes local calendar-day identifiers and the rolling
// window of days shown by the habit grid.
//
// A Day is the string YYYY-MM-DD built from the year, month and day
// components of a time in its own location. Lexicographic order of Day
// values equals chronological order, so stores can answer range queries
// with plain string comparison.
package days

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the Go reference layout matching the Day encoding.
const Layout = "2006-01-02"

// ErrInvalidDay is returned when a string is not a YYYY-MM-DD calendar day.
var ErrInvalidDay = errors.New("invalid calendar day")

// Day is a local calendar-day identifier in YYYY-MM-DD form.
type Day string

// Format returns the calendar day of t in t's location. It reads the
// year, month and day components directly and never converts to UTC,
// so a local time shortly after midnight stays on its own date.
func Format(t time.Time) Day {
	y, m, d := t.Date()
	return Day(fmt.Sprintf("%04d-%02d-%02d", y, int(m), d))
}

// Today returns the calendar day of now on the device's local clock.
func Today(now time.Time) Day {
	return Format(now.In(time.Local))
}

// Midnight returns the start of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Window returns count consecutive calendar days ending with the day of
// anchor, oldest first. The anchor is normalized to midnight before any
// arithmetic, so the result does not depend on the time of day. A count of
// zero or less yields an empty slice.
func Window(count int, anchor time.Time) []Day {
	if count <= 0 {
		return []Day{}
	}
	start := Midnight(anchor)
	y, m, d := start.Date()
	out := make([]Day, 0, count)
	for i := count - 1; i >= 0; i-- {
		// time.Date normalizes day underflow across month and year
		// boundaries and is immune to DST-length days.
		out = append(out, Format(time.Date(y, m, d-i, 0, 0, 0, 0, start.Location())))
	}
	return out
}

// Parse validates s and returns it as a Day. Only the canonical
// zero-padded YYYY-MM-DD form is accepted.
func Parse(s string) (Day, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	if string(Format(t)) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return Day(s), nil
}

// Valid reports whether d is a well-formed calendar day.
func (d Day) Valid() bool {
	_, err := Parse(string(d))
	return err == nil
}

// Time returns local midnight of d in loc.
func (d Day) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, string(d))
	}
	return t, nil
}

// AddDays returns the day n calendar days after d (n may be negative).
func (d Day) AddDays(n int) (Day, error) {
	t, err := d.Time(time.UTC)
	if err != nil {
		return "", err
	}
	y, m, dd := t.Date()
	return Format(time.Date(y, m, dd+n, 0, 0, 0, 0, time.UTC)), nil
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d < other
}

// String implements fmt.Stringer.
func (d Day) String() string {
	return string(d)
}
