// Package common contains small utilities used across the project.
package common

import "time"

// DateUTC truncates t to its UTC calendar date (midnight UTC).
// All day arithmetic in the engine, last_active_date and streak
// comparisons included, happens on UTC dates.
func DateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	return DateUTC(a).Equal(DateUTC(b))
}

// Yesterday returns the UTC date one day before t's date.
func Yesterday(t time.Time) time.Time {
	return DateUTC(t).AddDate(0, 0, -1)
}
