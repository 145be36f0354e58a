/*
errors.go - Error types for fiscal period resolution

PURPOSE:
  Distinguishes the three failure families the resolver can hit:
  1. Missing organization - The lookup chain has no starting point
  2. Invalid configuration - A pattern reference that does not resolve,
     or a pattern with out-of-range fields. Never silently defaulted.
  3. Unresolved - No tier (organization, tenant, system) configured a
     pattern. Only possible when the system default is disabled.

SEE ALSO:
  - resolver.go: Produces these errors
*/
package fiscal

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOrganizationNotFound is returned when the starting organization
	// does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrPatternNotFound is returned when a configured pattern reference
	// points at a pattern that does not exist. This is a configuration
	// error, not a fallback trigger.
	ErrPatternNotFound = errors.New("referenced pattern not found")

	// ErrInvalidPattern is returned when a pattern exists but carries
	// out-of-range fields.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrPatternUnresolved is returned when no resolution tier produced a
	// pattern. Distinct from invalid configuration.
	ErrPatternUnresolved = errors.New("no fiscal pattern configured at any tier")

	// ErrHierarchyTooDeep is returned when the organization parent walk
	// exceeds the depth guard (broken or cyclic hierarchy).
	ErrHierarchyTooDeep = errors.New("organization hierarchy too deep or cyclic")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPatternError reports which field of which pattern is out of range.
type InvalidPatternError struct {
	PatternID PatternID
	Field     string
	Value     int
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s=%d out of range", e.PatternID, e.Field, e.Value)
}

func (e *InvalidPatternError) Unwrap() error {
	return ErrInvalidPattern
}

// PatternRefError reports a dangling pattern reference and where it came from.
type PatternRefError struct {
	PatternID PatternID
	Source    string // resolution tier that configured the reference
}

func (e *PatternRefError) Error() string {
	return fmt.Sprintf("pattern %q referenced by %s does not exist", e.PatternID, e.Source)
}

func (e *PatternRefError) Unwrap() error {
	return ErrPatternNotFound
}
