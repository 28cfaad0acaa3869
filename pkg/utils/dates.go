package utils

import (
	"fmt"
	"time"
)

// SameCalendarDay reports whether two instants fall on the same UTC calendar
// day. Quota rollover compares days in UTC so every process agrees on the
// boundary.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// CombineDateTime builds the scheduled instant from a booking's scheduled
// date and its "HH:MM" (or "HH:MM:SS") time string.
func CombineDateTime(date time.Time, hhmm string) (time.Time, error) {
	layouts := []string{"15:04", "15:04:05"}

	var clock time.Time
	var err error
	for _, layout := range layouts {
		clock, err = time.Parse(layout, hhmm)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time string %q: %w", hhmm, err)
	}

	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0,
		date.Location(),
	), nil
}

// MinutesUntil returns the whole minutes from now until t, negative when t
// is already in the past.
func MinutesUntil(now, t time.Time) int {
	return int(t.Sub(now) / time.Minute)
}
