/*
daily.go - Per-entry supervisor decisions and the rejection log

PURPOSE:
  The daily approval mechanism: a supervisor's approve/reject/recall on
  individual submitted entries. Decisions are plain records, not
  event-sourced - they annotate entries, whose own streams remain the
  source of status truth.

ACTIVE DECISION:
  At most one decision per entry is active: the latest one that is
  neither RECALLED nor superseded. Inserting a decision supersedes the
  previous one, so a reject -> fix -> resubmit -> approve cycle leaves a
  clean trail.

REJECTION LOG:
  Every rejection also writes a (member, date) log row. An active
  rejection - one whose entry's active decision is still REJECTED - is
  the override signal that releases the date from monthly gating, which
  is what makes targeted resubmission under a locked month possible.

SEE ALSO:
  - daily_service.go: The workflows writing these records
  - gate.go: How the override releases monthly locks
*/
package approval

import (
	"context"
	"time"

	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// DECISIONS
// =============================================================================

type DecisionID string

type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
	DecisionRecalled DecisionStatus = "RECALLED"
)

// Decision is one supervisor ruling on one entry.
type Decision struct {
	ID           DecisionID
	EntryID      worklog.EntryID
	MemberID     worklog.MemberID
	SupervisorID worklog.MemberID
	Status       DecisionStatus
	Comment      string
	Superseded   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active decisions are the ones that currently bind their entry.
func (d *Decision) Active() bool {
	return !d.Superseded && d.Status != DecisionRecalled
}

// DecisionStore persists supervisor decisions.
type DecisionStore interface {
	// InsertDecision stores a new decision and supersedes the entry's
	// previous active one, preserving the at-most-one-active invariant.
	InsertDecision(ctx context.Context, d Decision) error

	// DecisionByID returns a decision, or nil when unknown.
	DecisionByID(ctx context.Context, id DecisionID) (*Decision, error)

	// ActiveDecisionForEntry returns the entry's active decision, or nil.
	ActiveDecisionForEntry(ctx context.Context, entry worklog.EntryID) (*Decision, error)

	// UpdateDecisionStatus moves a decision (used for recall).
	UpdateDecisionStatus(ctx context.Context, id DecisionID, status DecisionStatus, at time.Time) error
}

// =============================================================================
// REJECTION LOG
// =============================================================================

// RejectionRecord is the audit row behind a daily rejection and the
// payload of its override signal.
type RejectionRecord struct {
	ID         string
	MemberID   worklog.MemberID
	Date       time.Time
	Reason     string
	EntryIDs   []worklog.EntryID
	DecisionID DecisionID
	CreatedAt  time.Time
}

// RejectionLog persists rejection records and answers the override
// question for monthly gating.
type RejectionLog interface {
	AppendRejection(ctx context.Context, rec RejectionRecord) error

	// HasActiveRejection reports whether any of the member's entries on
	// the date currently has an active REJECTED decision. This is the
	// signal that releases the date from monthly scope.
	HasActiveRejection(ctx context.Context, member worklog.MemberID, date time.Time) (bool, error)

	// RejectionsForDate returns the log rows for a member-date, newest
	// first.
	RejectionsForDate(ctx context.Context, member worklog.MemberID, date time.Time) ([]RejectionRecord, error)
}
