package fiscal

import "time"

// =============================================================================
// PERIOD - Inclusive civil date range
// =============================================================================

// Period is an inclusive [Start, End] range of civil dates.
//
// Examples:
//   - Calendar month: Mar 1 - Mar 31
//   - Offset fiscal month (start day 21): Feb 21 - Mar 20
//   - Fiscal year starting April: Apr 1 - Mar 31
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(date time.Time) bool {
	d := DayOf(date)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Equal reports whether two periods cover the same range.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// String returns "[YYYY-MM-DD, YYYY-MM-DD]".
func (p Period) String() string {
	return "[" + FormatDate(p.Start) + ", " + FormatDate(p.End) + "]"
}
