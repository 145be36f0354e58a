/*
errors.go - Error types for approval workflows

PURPOSE:
  All approval-level error types in one place: monthly review
  authorization, daily decision rules, and the gating errors the
  override mechanism can waive.

SEE ALSO:
  - worklog/errors.go: Entry-level errors these compose with
  - service.go, daily_service.go: Where these are produced
*/
package approval

import (
	"errors"
	"fmt"

	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrApprovalNotFound is returned when an approval id resolves to nothing.
	ErrApprovalNotFound = errors.New("monthly approval not found")

	// ErrDecisionNotFound is returned when a decision id resolves to nothing.
	ErrDecisionNotFound = errors.New("daily decision not found")

	// ErrUnauthorized is returned when the actor may not review this
	// member: not in the reporting line, or reviewing themselves.
	ErrUnauthorized = errors.New("actor not authorized to review this member")

	// ErrNotDirectReport is returned when a daily decision comes from
	// someone other than the member's direct manager.
	ErrNotDirectReport = errors.New("member is not a direct report of supervisor")

	// ErrSelfRejection is returned when a supervisor rejects their own entry.
	ErrSelfRejection = errors.New("self rejection not allowed")

	// ErrAlreadyApproved is returned for a second approval of the same
	// target (month or entry).
	ErrAlreadyApproved = errors.New("already approved")

	// ErrAlreadyRejected is returned when rejecting an entry whose active
	// decision is already a rejection.
	ErrAlreadyRejected = errors.New("already rejected")

	// ErrCommentRequired is returned when a daily rejection has no comment.
	ErrCommentRequired = errors.New("rejection comment required")

	// ErrReasonRequired is returned when a monthly rejection has no reason.
	ErrReasonRequired = errors.New("rejection reason required")

	// ErrRejectBlocked is returned when a daily rejection hits an
	// APPROVED month with no active override.
	ErrRejectBlocked = errors.New("rejection blocked by monthly approval")

	// ErrInvalidApprovalState is returned for operations against the
	// wrong approval or decision status.
	ErrInvalidApprovalState = errors.New("invalid state for this operation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidApprovalStateError reports which status rejected which operation.
type InvalidApprovalStateError struct {
	ApprovalID ApprovalID
	Status     ApprovalStatus
	Operation  string
}

func (e *InvalidApprovalStateError) Error() string {
	return fmt.Sprintf("approval %s: cannot %s in status %s", e.ApprovalID, e.Operation, e.Status)
}

func (e *InvalidApprovalStateError) Unwrap() error {
	return ErrInvalidApprovalState
}

// InvalidDecisionStateError reports a decision operation against the
// wrong status (e.g. recalling a rejection).
type InvalidDecisionStateError struct {
	DecisionID DecisionID
	Status     DecisionStatus
	Operation  string
}

func (e *InvalidDecisionStateError) Error() string {
	return fmt.Sprintf("decision %s: cannot %s in status %s", e.DecisionID, e.Operation, e.Status)
}

func (e *InvalidDecisionStateError) Unwrap() error {
	return ErrInvalidApprovalState
}

// RejectBlockedError reports the approval that gated a daily rejection.
type RejectBlockedError struct {
	EntryID       worklog.EntryID
	MemberID      worklog.MemberID
	Date          string
	MonthlyStatus ApprovalStatus
}

func (e *RejectBlockedError) Error() string {
	return fmt.Sprintf("entry %s: rejection blocked, month for %s covering %s is %s",
		e.EntryID, e.MemberID, e.Date, e.MonthlyStatus)
}

func (e *RejectBlockedError) Unwrap() error {
	return ErrRejectBlocked
}

// NotDirectReportError names both sides of a failed direct-manager check.
type NotDirectReportError struct {
	SupervisorID worklog.MemberID
	MemberID     worklog.MemberID
}

func (e *NotDirectReportError) Error() string {
	return fmt.Sprintf("%s is not the direct manager of %s", e.SupervisorID, e.MemberID)
}

func (e *NotDirectReportError) Unwrap() error {
	return ErrNotDirectReport
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true when the request itself was invalid.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyApproved) ||
		errors.Is(err, ErrAlreadyRejected) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrRejectBlocked) ||
		errors.Is(err, ErrInvalidApprovalState) ||
		worklog.IsClientError(err)
}

// IsAuthorization returns true when the actor lacked authority.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotDirectReport) ||
		errors.Is(err, ErrSelfRejection) ||
		worklog.IsAuthorization(err)
}

// IsNotFound returns true for missing-resource errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound) ||
		errors.Is(err, ErrDecisionNotFound) ||
		worklog.IsNotFound(err)
}
