/*
date.go - Civil date helpers

PURPOSE:
  Work-log dates and fiscal boundaries are day-precision civil dates.
  Everything in this package (and the packages above it) normalizes to
  UTC midnight so date comparison is exact and timezone-free.

SEE ALSO:
  - period.go: Inclusive date ranges built from these helpers
  - pattern.go: Fiscal boundary arithmetic
*/
package fiscal

import "time"

// DateLayout is the wire/storage format for civil dates.
const DateLayout = "2006-01-02"

// Date builds a civil date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates a timestamp to its civil date at UTC midnight.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same civil date.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DayOf(t).Format(DateLayout)
}
