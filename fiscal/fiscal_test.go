/*
fiscal_test.go - Specification tests for fiscal boundary arithmetic

PURPOSE:
  Executable specification of the pattern date math: monthly windows
  around the anchor day, fiscal year anchoring, validation bounds, and
  the tiling property (every date belongs to exactly one period).
*/
package fiscal_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/worklog-engine/fiscal"
)

func day(y int, m time.Month, d int) time.Time {
	return fiscal.Date(y, m, d)
}

// =============================================================================
// 1. MONTHLY PERIOD WINDOWS
// =============================================================================

func TestMonthlyPeriodOnOrAfterAnchorStartsThisMonth(t *testing.T) {
	// GIVEN a pattern anchored on the 21st
	p := fiscal.MonthlyPeriodPattern{ID: "mp-21", StartDay: 21}

	// WHEN classifying a date on/after the anchor
	period := p.PeriodFor(day(2025, time.March, 21))

	// THEN the window runs anchor..day-before-next-anchor
	want := fiscal.Period{Start: day(2025, time.March, 21), End: day(2025, time.April, 20)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
}

func TestMonthlyPeriodBeforeAnchorStartsPreviousMonth(t *testing.T) {
	p := fiscal.MonthlyPeriodPattern{ID: "mp-21", StartDay: 21}

	period := p.PeriodFor(day(2025, time.March, 20))

	want := fiscal.Period{Start: day(2025, time.February, 21), End: day(2025, time.March, 20)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
}

func TestMonthlyPeriodCrossesYearBoundary(t *testing.T) {
	// GIVEN a date in early January, before the anchor
	p := fiscal.MonthlyPeriodPattern{ID: "mp-21", StartDay: 21}

	period := p.PeriodFor(day(2025, time.January, 5))

	// THEN the window reaches back into December
	want := fiscal.Period{Start: day(2024, time.December, 21), End: day(2025, time.January, 20)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
}

func TestMonthlyPeriodCalendarDefaultIsWholeMonth(t *testing.T) {
	p := fiscal.MonthlyPeriodPattern{ID: "mp-1", StartDay: 1}

	period := p.PeriodFor(day(2025, time.February, 14))

	want := fiscal.Period{Start: day(2025, time.February, 1), End: day(2025, time.February, 28)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
}

func TestMonthlyPeriodsTileWithoutGapsOrOverlap(t *testing.T) {
	// GIVEN an offset pattern
	p := fiscal.MonthlyPeriodPattern{ID: "mp-15", StartDay: 15}

	// WHEN walking a year of days
	// THEN every day belongs to its period, and period starts change
	// exactly at the anchor
	current := day(2025, time.January, 1)
	end := day(2025, time.December, 31)
	for current.Before(end) || current.Equal(end) {
		period := p.PeriodFor(current)
		if !period.Contains(current) {
			t.Fatalf("%s not contained in its own period %s", fiscal.FormatDate(current), period)
		}
		if current.Day() == 15 && !period.Start.Equal(current) {
			t.Fatalf("anchor day %s should start its period, got %s", fiscal.FormatDate(current), period)
		}
		if current.Day() == 14 && !period.End.Equal(current) {
			t.Fatalf("day before anchor %s should end its period, got %s", fiscal.FormatDate(current), period)
		}
		current = current.AddDate(0, 0, 1)
	}
}

// =============================================================================
// 2. FISCAL YEAR ANCHORING
// =============================================================================

func TestFiscalYearBeforeAnchorBelongsToPreviousYear(t *testing.T) {
	// GIVEN an April-anchored fiscal year
	p := fiscal.FiscalYearPattern{ID: "fy-apr", StartMonth: time.April, StartDay: 1}

	// WHEN classifying the day before the anchor
	period := p.PeriodFor(day(2025, time.March, 31))

	// THEN it belongs to the fiscal year that started last April
	want := fiscal.Period{Start: day(2024, time.April, 1), End: day(2025, time.March, 31)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
	if got := p.YearFor(day(2025, time.March, 31)); got != 2024 {
		t.Errorf("expected fiscal year 2024, got %d", got)
	}
}

func TestFiscalYearOnAnchorStartsNewYear(t *testing.T) {
	p := fiscal.FiscalYearPattern{ID: "fy-apr", StartMonth: time.April, StartDay: 1}

	period := p.PeriodFor(day(2025, time.April, 1))

	want := fiscal.Period{Start: day(2025, time.April, 1), End: day(2026, time.March, 31)}
	if !period.Equal(want) {
		t.Errorf("expected %s, got %s", want, period)
	}
	if got := p.YearFor(day(2025, time.April, 1)); got != 2025 {
		t.Errorf("expected fiscal year 2025, got %d", got)
	}
}

// =============================================================================
// 3. VALIDATION
// =============================================================================

func TestPatternValidationRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"month 13", fiscal.FiscalYearPattern{ID: "bad", StartMonth: 13, StartDay: 1}.Validate()},
		{"day 0", fiscal.FiscalYearPattern{ID: "bad", StartMonth: time.April, StartDay: 0}.Validate()},
		{"day 31", fiscal.FiscalYearPattern{ID: "bad", StartMonth: time.April, StartDay: 31}.Validate()},
		{"monthly day 29", fiscal.MonthlyPeriodPattern{ID: "bad", StartDay: 29}.Validate()},
	}
	for _, c := range cases {
		if !errors.Is(c.err, fiscal.ErrInvalidPattern) {
			t.Errorf("%s: expected ErrInvalidPattern, got %v", c.name, c.err)
		}
		var detail *fiscal.InvalidPatternError
		if !errors.As(c.err, &detail) {
			t.Errorf("%s: expected InvalidPatternError detail", c.name)
		}
	}
}

func TestPatternValidationAcceptsBounds(t *testing.T) {
	if err := (fiscal.FiscalYearPattern{ID: "ok", StartMonth: time.December, StartDay: 28}).Validate(); err != nil {
		t.Errorf("expected valid pattern, got %v", err)
	}
	if err := (fiscal.MonthlyPeriodPattern{ID: "ok", StartDay: 1}).Validate(); err != nil {
		t.Errorf("expected valid pattern, got %v", err)
	}
}

// =============================================================================
// 4. DATE HELPERS
// =============================================================================

func TestDayOfNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	stamp := time.Date(2025, time.June, 2, 3, 30, 0, 0, loc) // June 1 18:30 UTC

	got := fiscal.DayOf(stamp)

	if !got.Equal(day(2025, time.June, 1)) {
		t.Errorf("expected 2025-06-01, got %s", fiscal.FormatDate(got))
	}
}

func TestPeriodContainsIsInclusive(t *testing.T) {
	p := fiscal.Period{Start: day(2025, time.March, 1), End: day(2025, time.March, 31)}

	if !p.Contains(day(2025, time.March, 1)) || !p.Contains(day(2025, time.March, 31)) {
		t.Error("period should contain both endpoints")
	}
	if p.Contains(day(2025, time.February, 28)) || p.Contains(day(2025, time.April, 1)) {
		t.Error("period should not contain neighbors")
	}
}
