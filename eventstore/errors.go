/*
errors.go - Error types for the event store

PURPOSE:
  All store-level error types in one place. Domain packages wrap these
  with their own context where useful; the API layer classifies them
  through the helpers at the bottom.

USAGE:
  Appends that lose a version race:

    var lockErr *eventstore.OptimisticLockError
    if errors.As(err, &lockErr) {
        // reload aggregate at lockErr.Actual and retry
    }

SEE ALSO:
  - store.go: Where these errors are produced
*/
package eventstore

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOptimisticLock is returned when expectedVersion does not match the
	// stream's current version. Expected under concurrent writers.
	ErrOptimisticLock = errors.New("optimistic lock failure")

	// ErrEmptyAppend is returned when Append is called with no events.
	ErrEmptyAppend = errors.New("append requires at least one event")

	// ErrAggregateNotFound is returned by loads that require the stream to
	// exist (plain Load returns an empty slice instead).
	ErrAggregateNotFound = errors.New("aggregate not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OptimisticLockError reports a version conflict on append.
type OptimisticLockError struct {
	AggregateType AggregateType
	AggregateID   AggregateID
	Expected      int
	Actual        int
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failure on %s %s: expected version %d, actual %d",
		e.AggregateType, e.AggregateID, e.Expected, e.Actual)
}

func (e *OptimisticLockError) Unwrap() error {
	return ErrOptimisticLock
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error is a version race that might
// succeed after a reload.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}
