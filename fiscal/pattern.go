/*
pattern.go - Fiscal year and monthly period patterns

PURPOSE:
  A pattern describes where an organization's fiscal boundaries sit.
  FiscalYearPattern anchors the fiscal year (e.g. April 1st); a
  MonthlyPeriodPattern anchors the accounting month (e.g. the 21st, so a
  "fiscal March" runs Feb 21 - Mar 20). Patterns carry no behavior beyond
  pure date arithmetic; which pattern applies to a date is the resolver's
  job.

BOUNDARY RULES:
  Fiscal year: the anchor is StartMonth/StartDay of the date's calendar
  year; dates before the anchor belong to the previous fiscal year. The
  fiscal year NUMBER is the calendar year the period starts in.

  Monthly period: if the date's day-of-month >= StartDay the period
  starts this month, otherwise the previous month; the period always ends
  the day before the next anchor.

VALIDATION:
  StartDay is capped at 28 so every anchor exists in every month.
  Out-of-range fields make a pattern INVALID - a configured-but-invalid
  pattern is an error, never silently replaced by a default.

SEE ALSO:
  - resolver.go: Chooses which pattern applies to an organization
*/
package fiscal

import "time"

// MaxStartDay caps pattern start days so anchors exist in February too.
const MaxStartDay = 28

// PatternID identifies a configured pattern.
type PatternID string

// =============================================================================
// FISCAL YEAR PATTERN
// =============================================================================

// FiscalYearPattern anchors the fiscal year at StartMonth/StartDay.
type FiscalYearPattern struct {
	ID         PatternID
	Name       string
	StartMonth time.Month
	StartDay   int
}

// Validate rejects out-of-range anchor fields.
func (p FiscalYearPattern) Validate() error {
	if p.StartMonth < time.January || p.StartMonth > time.December {
		return &InvalidPatternError{PatternID: p.ID, Field: "startMonth", Value: int(p.StartMonth)}
	}
	if p.StartDay < 1 || p.StartDay > MaxStartDay {
		return &InvalidPatternError{PatternID: p.ID, Field: "startDay", Value: p.StartDay}
	}
	return nil
}

// PeriodFor returns the fiscal year containing the date.
func (p FiscalYearPattern) PeriodFor(date time.Time) Period {
	d := DayOf(date)
	anchor := Date(d.Year(), p.StartMonth, p.StartDay)

	// Before the anchor means the previous fiscal year.
	if d.Before(anchor) {
		anchor = Date(d.Year()-1, p.StartMonth, p.StartDay)
	}

	end := anchor.AddDate(1, 0, 0).AddDate(0, 0, -1)
	return Period{Start: anchor, End: end}
}

// YearFor returns the fiscal year number: the calendar year the fiscal
// year starts in.
func (p FiscalYearPattern) YearFor(date time.Time) int {
	return p.PeriodFor(date).Start.Year()
}

// =============================================================================
// MONTHLY PERIOD PATTERN
// =============================================================================

// MonthlyPeriodPattern anchors the accounting month at StartDay.
type MonthlyPeriodPattern struct {
	ID       PatternID
	Name     string
	StartDay int
}

// Validate rejects out-of-range anchor fields.
func (p MonthlyPeriodPattern) Validate() error {
	if p.StartDay < 1 || p.StartDay > MaxStartDay {
		return &InvalidPatternError{PatternID: p.ID, Field: "startDay", Value: p.StartDay}
	}
	return nil
}

// PeriodFor returns the accounting month containing the date.
func (p MonthlyPeriodPattern) PeriodFor(date time.Time) Period {
	d := DayOf(date)
	start := Date(d.Year(), d.Month(), p.StartDay)

	// Before this month's anchor means the period started last month.
	if d.Day() < p.StartDay {
		start = start.AddDate(0, -1, 0)
	}

	end := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return Period{Start: start, End: end}
}

// =============================================================================
// SYSTEM DEFAULT - Lowest resolution tier
// =============================================================================

// SystemDefault is the raw fallback used when neither the organization
// chain nor the tenant configures a pattern: plain calendar boundaries.
type SystemDefault struct {
	FiscalYearStartMonth  time.Month
	FiscalYearStartDay    int
	MonthlyPeriodStartDay int
}

// StandardDefault is the calendar-aligned system default (Jan 1, day 1).
func StandardDefault() SystemDefault {
	return SystemDefault{
		FiscalYearStartMonth:  time.January,
		FiscalYearStartDay:    1,
		MonthlyPeriodStartDay: 1,
	}
}

func (d SystemDefault) fiscalYearPattern() FiscalYearPattern {
	return FiscalYearPattern{Name: "system default", StartMonth: d.FiscalYearStartMonth, StartDay: d.FiscalYearStartDay}
}

func (d SystemDefault) monthlyPeriodPattern() MonthlyPeriodPattern {
	return MonthlyPeriodPattern{Name: "system default", StartDay: d.MonthlyPeriodStartDay}
}
