/*
resolver_test.go - Specification tests for 3-tier pattern resolution

PURPOSE:
  Executable specification of the resolution order: organization chain
  beats tenant default beats system default; configured-but-broken
  references are errors, never fallbacks; resolution is deterministic
  and tagged with its source.
*/
package fiscal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/worklog-engine/fiscal"
)

func pid(s string) *fiscal.PatternID {
	p := fiscal.PatternID(s)
	return &p
}

func oid(s string) *fiscal.OrganizationID {
	o := fiscal.OrganizationID(s)
	return &o
}

// newTestConfig builds a small tenant: root org with a child and a
// grandchild, an April fiscal year, and a 21st-anchored month.
//
//	root (fy-april, mp-21)
//	└── div  (no overrides)
//	    └── team (mp-1 override)
func newTestConfig() *fiscal.MemoryConfig {
	cfg := fiscal.NewMemoryConfig()
	cfg.PutFiscalYearPattern(fiscal.FiscalYearPattern{ID: "fy-april", Name: "April fiscal year", StartMonth: time.April, StartDay: 1})
	cfg.PutMonthlyPeriodPattern(fiscal.MonthlyPeriodPattern{ID: "mp-21", Name: "21st close", StartDay: 21})
	cfg.PutMonthlyPeriodPattern(fiscal.MonthlyPeriodPattern{ID: "mp-1", Name: "calendar month", StartDay: 1})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "root", TenantID: "acme", FiscalYearPatternID: pid("fy-april"), MonthlyPeriodPatternID: pid("mp-21")})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "div", TenantID: "acme", ParentID: oid("root")})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "team", TenantID: "acme", ParentID: oid("div"), MonthlyPeriodPatternID: pid("mp-1")})
	return cfg
}

// =============================================================================
// 1. RESOLUTION ORDER
// =============================================================================

func TestChildInheritsFromNearestAncestor(t *testing.T) {
	// GIVEN a division with no overrides under a configured root
	cfg := newTestConfig()
	r := fiscal.NewResolver(cfg, cfg)

	// WHEN resolving a date for the division
	info, err := r.DateInfo(context.Background(), "div", day(2025, time.March, 25))
	if err != nil {
		t.Fatalf("dateInfo failed: %v", err)
	}

	// THEN both patterns come from the root node
	if info.FiscalYearSource != "organization:root" {
		t.Errorf("expected fiscal year from organization:root, got %s", info.FiscalYearSource)
	}
	if info.MonthlyPeriodSource != "organization:root" {
		t.Errorf("expected monthly period from organization:root, got %s", info.MonthlyPeriodSource)
	}
	// AND the 21st-anchored window is applied
	wantMonth := fiscal.Period{Start: day(2025, time.March, 21), End: day(2025, time.April, 20)}
	if !info.MonthlyPeriod.Equal(wantMonth) {
		t.Errorf("expected month %s, got %s", wantMonth, info.MonthlyPeriod)
	}
	// AND March 25 sits before the April anchor, so fiscal year 2024
	if info.FiscalYear != 2024 {
		t.Errorf("expected fiscal year 2024, got %d", info.FiscalYear)
	}
}

func TestNearestOverrideWinsPerPatternKind(t *testing.T) {
	// GIVEN a team that overrides only the monthly pattern
	cfg := newTestConfig()
	r := fiscal.NewResolver(cfg, cfg)

	info, err := r.DateInfo(context.Background(), "team", day(2025, time.March, 25))
	if err != nil {
		t.Fatalf("dateInfo failed: %v", err)
	}

	// THEN the monthly period comes from the team, the fiscal year still
	// from the root
	if info.MonthlyPeriodSource != "organization:team" {
		t.Errorf("expected monthly period from organization:team, got %s", info.MonthlyPeriodSource)
	}
	if info.FiscalYearSource != "organization:root" {
		t.Errorf("expected fiscal year from organization:root, got %s", info.FiscalYearSource)
	}
	wantMonth := fiscal.Period{Start: day(2025, time.March, 1), End: day(2025, time.March, 31)}
	if !info.MonthlyPeriod.Equal(wantMonth) {
		t.Errorf("expected calendar month, got %s", info.MonthlyPeriod)
	}
}

func TestTenantDefaultsApplyWhenChainHasNoPattern(t *testing.T) {
	// GIVEN an org tree with no pattern references but tenant defaults
	cfg := fiscal.NewMemoryConfig()
	cfg.PutFiscalYearPattern(fiscal.FiscalYearPattern{ID: "fy-july", StartMonth: time.July, StartDay: 1})
	cfg.PutMonthlyPeriodPattern(fiscal.MonthlyPeriodPattern{ID: "mp-16", StartDay: 16})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "solo", TenantID: "beta"})
	cfg.PutTenantDefaults(fiscal.TenantDefaults{TenantID: "beta", FiscalYearPatternID: pid("fy-july"), MonthlyPeriodPatternID: pid("mp-16")})
	r := fiscal.NewResolver(cfg, cfg)

	info, err := r.DateInfo(context.Background(), "solo", day(2025, time.June, 30))
	if err != nil {
		t.Fatalf("dateInfo failed: %v", err)
	}

	if info.FiscalYearSource != fiscal.SourceTenant || info.MonthlyPeriodSource != fiscal.SourceTenant {
		t.Errorf("expected tenant sources, got %s / %s", info.FiscalYearSource, info.MonthlyPeriodSource)
	}
	if info.FiscalYear != 2024 {
		t.Errorf("June 30 before a July anchor should be fiscal 2024, got %d", info.FiscalYear)
	}
}

func TestSystemDefaultIsCalendarAligned(t *testing.T) {
	// GIVEN an organization with no configuration anywhere
	cfg := fiscal.NewMemoryConfig()
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "bare", TenantID: "gamma"})
	r := fiscal.NewResolver(cfg, cfg)

	info, err := r.DateInfo(context.Background(), "bare", day(2025, time.February, 10))
	if err != nil {
		t.Fatalf("dateInfo failed: %v", err)
	}

	if info.FiscalYearSource != fiscal.SourceSystem || info.MonthlyPeriodSource != fiscal.SourceSystem {
		t.Errorf("expected system sources, got %s / %s", info.FiscalYearSource, info.MonthlyPeriodSource)
	}
	if info.FiscalYear != 2025 {
		t.Errorf("expected calendar fiscal year 2025, got %d", info.FiscalYear)
	}
	wantMonth := fiscal.Period{Start: day(2025, time.February, 1), End: day(2025, time.February, 28)}
	if !info.MonthlyPeriod.Equal(wantMonth) {
		t.Errorf("expected calendar February, got %s", info.MonthlyPeriod)
	}
}

// =============================================================================
// 2. CONFIGURATION ERRORS - Never silent fallbacks
// =============================================================================

func TestUnknownOrganizationErrors(t *testing.T) {
	cfg := fiscal.NewMemoryConfig()
	r := fiscal.NewResolver(cfg, cfg)

	_, err := r.DateInfo(context.Background(), "ghost", day(2025, time.March, 1))
	if !errors.Is(err, fiscal.ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
}

func TestDanglingPatternReferenceIsAnErrorNotAFallback(t *testing.T) {
	// GIVEN a node referencing a pattern that does not exist
	cfg := fiscal.NewMemoryConfig()
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "broken", TenantID: "acme", FiscalYearPatternID: pid("fy-missing")})
	r := fiscal.NewResolver(cfg, cfg)

	_, err := r.DateInfo(context.Background(), "broken", day(2025, time.March, 1))

	// THEN resolution fails instead of falling through to a default
	if !errors.Is(err, fiscal.ErrPatternNotFound) {
		t.Fatalf("expected ErrPatternNotFound, got %v", err)
	}
	var ref *fiscal.PatternRefError
	if !errors.As(err, &ref) {
		t.Fatal("expected PatternRefError detail")
	}
	if ref.Source != "organization:broken" {
		t.Errorf("expected source organization:broken, got %s", ref.Source)
	}
}

func TestInvalidConfiguredPatternIsAnError(t *testing.T) {
	cfg := fiscal.NewMemoryConfig()
	cfg.PutFiscalYearPattern(fiscal.FiscalYearPattern{ID: "fy-bad", StartMonth: time.April, StartDay: 30})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "node", TenantID: "acme", FiscalYearPatternID: pid("fy-bad")})
	r := fiscal.NewResolver(cfg, cfg)

	_, err := r.DateInfo(context.Background(), "node", day(2025, time.March, 1))
	if !errors.Is(err, fiscal.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestCyclicHierarchyHitsDepthGuard(t *testing.T) {
	// GIVEN two organizations that parent each other
	cfg := fiscal.NewMemoryConfig()
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "a", TenantID: "acme", ParentID: oid("b")})
	cfg.PutOrganization(fiscal.OrganizationNode{ID: "b", TenantID: "acme", ParentID: oid("a")})
	r := fiscal.NewResolver(cfg, cfg)

	_, err := r.DateInfo(context.Background(), "a", day(2025, time.March, 1))
	if !errors.Is(err, fiscal.ErrHierarchyTooDeep) {
		t.Fatalf("expected ErrHierarchyTooDeep, got %v", err)
	}
}

// =============================================================================
// 3. DETERMINISM
// =============================================================================

func TestResolutionIsDeterministic(t *testing.T) {
	cfg := newTestConfig()
	r := fiscal.NewResolver(cfg, cfg)
	ctx := context.Background()

	first, err := r.DateInfo(ctx, "team", day(2025, time.March, 25))
	if err != nil {
		t.Fatalf("dateInfo failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.DateInfo(ctx, "team", day(2025, time.March, 25))
		if err != nil {
			t.Fatalf("repeat dateInfo failed: %v", err)
		}
		if *again != *first {
			t.Fatalf("resolution diverged on run %d: %+v vs %+v", i, again, first)
		}
	}
}
