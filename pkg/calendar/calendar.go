// Package calendar normalizes the calendar days and wall-clock times used by slots and
// bookings.
package calendar

import (
	"errors"
	"strings"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDay   = errors.New("date must be YYYY-MM-DD or RFC 3339")
	ErrInvalidClock = errors.New("time must be HH:MM")
)

// ParseDay returns the calendar day of s as YYYY-MM-DD. A full timestamp contributes the
// day in its own offset, so "2025-06-01T23:30:00+02:00" is 2025-06-01.
func ParseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t.Format(DayLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DayLayout), nil
	}
	return "", ErrInvalidDay
}

// ParseClock validates a zero-padded 24h HH:MM time and returns it unchanged.
func ParseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(ClockLayout) {
		return "", ErrInvalidClock
	}
	if _, err := time.Parse(ClockLayout, s); err != nil {
		return "", ErrInvalidClock
	}
	return s, nil
}

// Before reports whether clock a is earlier than clock b. Both must be valid HH:MM.
func Before(a, b string) bool {
	return a < b
}

// Today is the current calendar day in UTC.
func Today() string {
	return time.Now().UTC().Format(DayLayout)
}

// Ended reports whether the slot on day ending at endTime lies entirely before now.
func Ended(day, endTime string, now time.Time) bool {
	end, err := time.ParseInLocation(DayLayout+" "+ClockLayout, day+" "+endTime, now.Location())
	if err != nil {
		return false
	}
	return !end.After(now)
}
