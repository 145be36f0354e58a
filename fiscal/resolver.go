/*
resolver.go - Hierarchical fiscal pattern resolution

PURPOSE:
  Answers "which fiscal year and which accounting month does this date
  belong to, for this organization?". Organizations inherit patterns:
  a node without its own pattern reference defers to its parent chain,
  then to its tenant's defaults, then to the raw system default.

RESOLUTION ORDER (per pattern kind, independently):
  1. Organization chain - Starting node upward; the first node with a
     non-nil reference wins. A reference that does not resolve, or
     resolves to an invalid pattern, is a configuration ERROR - never a
     fallback trigger.
  2. Tenant defaults - The starting organization's tenant.
  3. System default - Calendar boundaries unless reconfigured.

  Each resolution is tagged with its source: "organization:<id>",
  "tenant", or "system", so callers can explain results.

GUARANTEES:
  Pure and deterministic: same configuration + same date = same result.
  Read-only: resolution never mutates anything. The parent walk is depth
  guarded so a corrupted (cyclic) hierarchy errors instead of spinning.

USAGE:
  r := fiscal.NewResolver(orgs, patterns)
  info, err := r.DateInfo(ctx, "org-division-7", date)
  // info.FiscalYear, info.MonthlyPeriod, info.MonthlyPeriodSource ...

SEE ALSO:
  - pattern.go: The date arithmetic once a pattern is chosen
  - memory.go: In-memory configuration source for tests
*/
package fiscal

import (
	"context"
	"fmt"
	"time"
)

// maxChainDepth bounds the parent walk; real org trees are far shallower.
const maxChainDepth = 32

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrganizationID string

type TenantID string

// =============================================================================
// CONFIGURATION SOURCES - Provided by the caller
// =============================================================================

// OrganizationNode is one node of the organization tree. Pattern
// references are optional; nil means "inherit".
type OrganizationNode struct {
	ID                     OrganizationID
	TenantID               TenantID
	Name                   string
	ParentID               *OrganizationID
	FiscalYearPatternID    *PatternID
	MonthlyPeriodPatternID *PatternID
}

// OrganizationLookup resolves organization nodes. A missing organization
// is (nil, nil); errors are reserved for lookup failures.
type OrganizationLookup interface {
	FindOrganization(ctx context.Context, id OrganizationID) (*OrganizationNode, error)
}

// TenantDefaults carries a tenant's optional pattern references.
type TenantDefaults struct {
	TenantID               TenantID
	FiscalYearPatternID    *PatternID
	MonthlyPeriodPatternID *PatternID
}

// PatternSource resolves pattern entities and tenant defaults. Missing
// records are (nil, nil); errors are reserved for lookup failures.
type PatternSource interface {
	FiscalYearPattern(ctx context.Context, id PatternID) (*FiscalYearPattern, error)
	MonthlyPeriodPattern(ctx context.Context, id PatternID) (*MonthlyPeriodPattern, error)
	TenantDefaults(ctx context.Context, tenant TenantID) (*TenantDefaults, error)
}

// =============================================================================
// RESULT
// =============================================================================

// Resolution source tags.
const (
	SourceTenant = "tenant"
	SourceSystem = "system"
)

// SourceOrganization tags a resolution won by a specific org node.
func SourceOrganization(id OrganizationID) string {
	return fmt.Sprintf("organization:%s", id)
}

// DateInfo is the full fiscal classification of one date for one
// organization.
type DateInfo struct {
	Date                time.Time
	FiscalYear          int
	FiscalYearPeriod    Period
	FiscalYearSource    string
	MonthlyPeriod       Period
	MonthlyPeriodSource string
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver performs 3-tier pattern resolution.
type Resolver struct {
	orgs     OrganizationLookup
	patterns PatternSource
	def      SystemDefault
}

// NewResolver builds a resolver with the standard calendar system default.
func NewResolver(orgs OrganizationLookup, patterns PatternSource) *Resolver {
	return &Resolver{orgs: orgs, patterns: patterns, def: StandardDefault()}
}

// WithSystemDefault overrides the lowest resolution tier.
func (r *Resolver) WithSystemDefault(def SystemDefault) *Resolver {
	r.def = def
	return r
}

// DateInfo resolves both patterns for the organization and classifies the
// date. Read-only and deterministic.
func (r *Resolver) DateInfo(ctx context.Context, orgID OrganizationID, date time.Time) (*DateInfo, error) {
	day := DayOf(date)

	chain, err := r.loadChain(ctx, orgID)
	if err != nil {
		return nil, err
	}

	fyPattern, fySource, err := r.resolveFiscalYear(ctx, chain)
	if err != nil {
		return nil, err
	}
	mpPattern, mpSource, err := r.resolveMonthlyPeriod(ctx, chain)
	if err != nil {
		return nil, err
	}

	return &DateInfo{
		Date:                day,
		FiscalYear:          fyPattern.YearFor(day),
		FiscalYearPeriod:    fyPattern.PeriodFor(day),
		FiscalYearSource:    fySource,
		MonthlyPeriod:       mpPattern.PeriodFor(day),
		MonthlyPeriodSource: mpSource,
	}, nil
}

// MonthlyPeriodFor resolves just the accounting month for a date. The
// approval workflows use this to place a submission.
func (r *Resolver) MonthlyPeriodFor(ctx context.Context, orgID OrganizationID, date time.Time) (Period, error) {
	info, err := r.DateInfo(ctx, orgID, date)
	if err != nil {
		return Period{}, err
	}
	return info.MonthlyPeriod, nil
}

// loadChain walks from the starting node to the root, depth guarded.
func (r *Resolver) loadChain(ctx context.Context, orgID OrganizationID) ([]*OrganizationNode, error) {
	var chain []*OrganizationNode
	next := &orgID
	for depth := 0; next != nil; depth++ {
		if depth >= maxChainDepth {
			return nil, ErrHierarchyTooDeep
		}
		node, err := r.orgs.FindOrganization(ctx, *next)
		if err != nil {
			return nil, err
		}
		if node == nil {
			if depth == 0 {
				return nil, ErrOrganizationNotFound
			}
			// A dangling parent reference ends the chain; inheritance
			// continues at the tenant tier.
			break
		}
		chain = append(chain, node)
		next = node.ParentID
	}
	return chain, nil
}

func (r *Resolver) resolveFiscalYear(ctx context.Context, chain []*OrganizationNode) (FiscalYearPattern, string, error) {
	// Tier 1: organization chain.
	for _, node := range chain {
		if node.FiscalYearPatternID == nil {
			continue
		}
		source := SourceOrganization(node.ID)
		p, err := r.patterns.FiscalYearPattern(ctx, *node.FiscalYearPatternID)
		if err != nil {
			return FiscalYearPattern{}, "", err
		}
		if p == nil {
			return FiscalYearPattern{}, "", &PatternRefError{PatternID: *node.FiscalYearPatternID, Source: source}
		}
		if err := p.Validate(); err != nil {
			return FiscalYearPattern{}, "", err
		}
		return *p, source, nil
	}

	// Tier 2: tenant defaults of the starting organization.
	if len(chain) > 0 {
		defaults, err := r.patterns.TenantDefaults(ctx, chain[0].TenantID)
		if err != nil {
			return FiscalYearPattern{}, "", err
		}
		if defaults != nil && defaults.FiscalYearPatternID != nil {
			p, err := r.patterns.FiscalYearPattern(ctx, *defaults.FiscalYearPatternID)
			if err != nil {
				return FiscalYearPattern{}, "", err
			}
			if p == nil {
				return FiscalYearPattern{}, "", &PatternRefError{PatternID: *defaults.FiscalYearPatternID, Source: SourceTenant}
			}
			if err := p.Validate(); err != nil {
				return FiscalYearPattern{}, "", err
			}
			return *p, SourceTenant, nil
		}
	}

	// Tier 3: system default.
	p := r.def.fiscalYearPattern()
	if err := p.Validate(); err != nil {
		return FiscalYearPattern{}, "", ErrPatternUnresolved
	}
	return p, SourceSystem, nil
}

func (r *Resolver) resolveMonthlyPeriod(ctx context.Context, chain []*OrganizationNode) (MonthlyPeriodPattern, string, error) {
	for _, node := range chain {
		if node.MonthlyPeriodPatternID == nil {
			continue
		}
		source := SourceOrganization(node.ID)
		p, err := r.patterns.MonthlyPeriodPattern(ctx, *node.MonthlyPeriodPatternID)
		if err != nil {
			return MonthlyPeriodPattern{}, "", err
		}
		if p == nil {
			return MonthlyPeriodPattern{}, "", &PatternRefError{PatternID: *node.MonthlyPeriodPatternID, Source: source}
		}
		if err := p.Validate(); err != nil {
			return MonthlyPeriodPattern{}, "", err
		}
		return *p, source, nil
	}

	if len(chain) > 0 {
		defaults, err := r.patterns.TenantDefaults(ctx, chain[0].TenantID)
		if err != nil {
			return MonthlyPeriodPattern{}, "", err
		}
		if defaults != nil && defaults.MonthlyPeriodPatternID != nil {
			p, err := r.patterns.MonthlyPeriodPattern(ctx, *defaults.MonthlyPeriodPatternID)
			if err != nil {
				return MonthlyPeriodPattern{}, "", err
			}
			if p == nil {
				return MonthlyPeriodPattern{}, "", &PatternRefError{PatternID: *defaults.MonthlyPeriodPatternID, Source: SourceTenant}
			}
			if err := p.Validate(); err != nil {
				return MonthlyPeriodPattern{}, "", err
			}
			return *p, SourceTenant, nil
		}
	}

	p := r.def.monthlyPeriodPattern()
	if err := p.Validate(); err != nil {
		return MonthlyPeriodPattern{}, "", ErrPatternUnresolved
	}
	return p, SourceSystem, nil
}
