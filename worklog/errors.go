/*
errors.go - Error types for work-log entries

PURPOSE:
  All entry-level error types in one place. The API layer maps these to
  wire codes through the classification helpers; approval workflows wrap
  them where they add context.

ERROR CATEGORIES:
  1. Invariant violations - Daily cap, quantization, duplicates
  2. Authorization - Proxy entry without authority
  3. State errors - Illegal transitions, non-editable statuses
  4. Concurrency - Version conflicts (from eventstore)

SEE ALSO:
  - eventstore/errors.go: OptimisticLockError reused at this layer
  - service.go: Where these are produced
*/
package worklog

import (
	"errors"
	"fmt"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDailyLimitExceeded is returned when a write would push a
	// member-date total over the 24-hour cap.
	ErrDailyLimitExceeded = errors.New("daily hour limit exceeded")

	// ErrDuplicateEntry is returned when a non-deleted entry already
	// occupies the (member, project, date) slot.
	ErrDuplicateEntry = errors.New("duplicate entry for member, project and date")

	// ErrProxyNotAllowed is returned when someone enters time for a member
	// they do not manage.
	ErrProxyNotAllowed = errors.New("proxy entry not allowed")

	// ErrEntryNotFound is returned when an entry id resolves to nothing.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidTransition is returned for status moves outside the table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotEditable is returned when update/delete hits a non-editable status.
	ErrNotEditable = errors.New("entry not editable in current status")

	// ErrInvalidHours is returned for non-quantized or out-of-range amounts.
	ErrInvalidHours = errors.New("invalid hour amount")

	// ErrRecallBlocked is returned when a recall is gated by a covering
	// monthly approval with no active daily-rejection override.
	ErrRecallBlocked = errors.New("recall blocked by monthly approval")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DailyLimitError reports the totals behind a cap violation.
type DailyLimitError struct {
	MemberID  MemberID
	Date      string
	Existing  Hours
	Requested Hours
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit exceeded for %s on %s: %s existing + %s requested > %v",
		e.MemberID, e.Date, e.Existing, e.Requested, DailyCapHours)
}

func (e *DailyLimitError) Unwrap() error {
	return ErrDailyLimitExceeded
}

// DuplicateEntryError reports the entry already holding the slot.
type DuplicateEntryError struct {
	MemberID   MemberID
	ProjectID  ProjectID
	Date       string
	ExistingID EntryID
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("entry already exists for %s/%s on %s (entry: %s)",
		e.MemberID, e.ProjectID, e.Date, e.ExistingID)
}

func (e *DuplicateEntryError) Unwrap() error {
	return ErrDuplicateEntry
}

// InvalidHoursError reports why an amount was rejected.
type InvalidHoursError struct {
	Value  string
	Reason string
}

func (e *InvalidHoursError) Error() string {
	return fmt.Sprintf("invalid hours %s: %s", e.Value, e.Reason)
}

func (e *InvalidHoursError) Unwrap() error {
	return ErrInvalidHours
}

// InvalidTransitionError reports an illegal status move.
type InvalidTransitionError struct {
	EntryID EntryID
	From    EntryStatus
	To      EntryStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("entry %s: cannot transition %s -> %s", e.EntryID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NotEditableError reports an update/delete against a frozen entry.
type NotEditableError struct {
	EntryID   EntryID
	Status    EntryStatus
	Operation string
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("entry %s: cannot %s in status %s", e.EntryID, e.Operation, e.Status)
}

func (e *NotEditableError) Unwrap() error {
	return ErrNotEditable
}

// RecallBlockedError reports the monthly status that gated a recall.
type RecallBlockedError struct {
	EntryID       EntryID
	MemberID      MemberID
	Date          string
	MonthlyStatus string
}

func (e *RecallBlockedError) Error() string {
	return fmt.Sprintf("entry %s: recall blocked, month for %s covering %s is %s",
		e.EntryID, e.MemberID, e.Date, e.MonthlyStatus)
}

func (e *RecallBlockedError) Unwrap() error {
	return ErrRecallBlocked
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for version races that may succeed on retry.
func IsConflict(err error) bool {
	return eventstore.IsConflict(err)
}

// IsClientError returns true when the request itself was invalid.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotEditable) ||
		errors.Is(err, ErrRecallBlocked) ||
		errors.Is(err, fiscal.ErrInvalidPattern)
}

// IsAuthorization returns true when the actor lacked authority.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrProxyNotAllowed)
}

// IsNotFound returns true for missing-resource errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, fiscal.ErrOrganizationNotFound) ||
		errors.Is(err, eventstore.ErrAggregateNotFound)
}
