/*
types.go - Work-log entry model and lifecycle

PURPOSE:
  Defines the WorkLogEntry aggregate: one member's hours on one project
  on one civil date, plus the status machine the approval workflows move
  it through.

KEY CONCEPTS:
  Entry identity: (member, project, date) is unique among non-deleted
  entries. Entries are never physically deleted; DELETED is a terminal
  status that frees the slot and leaves the daily total.

  Status machine:
    DRAFT      - editable, not yet in review
    SUBMITTED  - in review (self-submitted or swept up by a month submit)
    APPROVED   - accepted (daily decision or month approval)
    REJECTED   - sent back, editable, resubmittable
    DELETED    - terminal

DESIGN PRINCIPLES:
  1. State is derived - An entry is the replay of its event stream
  2. Transitions are closed - Anything outside the table is an error
  3. Editability is status - Monthly locking works by moving entries out
     of the editable statuses, so update/delete need no extra gate

SEE ALSO:
  - events.go: The event stream behind this model
  - service.go: Validation and command handling
*/
package worklog

import (
	"time"
)

// =============================================================================
// IDENTIFIERS - Typed strings to prevent mixing
// =============================================================================

type EntryID string

type MemberID string

type ProjectID string

// =============================================================================
// STATUS MACHINE
// =============================================================================

type EntryStatus string

const (
	StatusDraft     EntryStatus = "DRAFT"
	StatusSubmitted EntryStatus = "SUBMITTED"
	StatusApproved  EntryStatus = "APPROVED"
	StatusRejected  EntryStatus = "REJECTED"
	StatusDeleted   EntryStatus = "DELETED"
)

// legalTransitions is the closed set of status moves. APPROVED entries
// move only through daily-decision recall or an override rejection;
// DELETED is terminal.
var legalTransitions = map[EntryStatus]map[EntryStatus]bool{
	StatusDraft: {
		StatusSubmitted: true,
		StatusDeleted:   true,
	},
	StatusSubmitted: {
		StatusDraft:    true, // recall
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {
		StatusSubmitted: true, // approval recalled
		StatusRejected:  true, // rejected under an active override
	},
	StatusRejected: {
		StatusSubmitted: true, // resubmit
		StatusDraft:     true, // recall / month rejection sweep
		StatusDeleted:   true,
	},
	StatusDeleted: {},
}

// CanTransitionTo reports whether the move is in the table.
func (s EntryStatus) CanTransitionTo(to EntryStatus) bool {
	return legalTransitions[s][to]
}

// Editable statuses accept Update and Delete.
func (s EntryStatus) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// Terminal statuses accept nothing.
func (s EntryStatus) Terminal() bool {
	return s == StatusDeleted
}

// Valid reports whether the string is a known status.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

// =============================================================================
// WORK LOG ENTRY
// =============================================================================

// WorkLogEntry is the aggregate state derived from its event stream.
// Version is the stream version the state was replayed to.
type WorkLogEntry struct {
	ID        EntryID
	MemberID  MemberID
	ProjectID ProjectID
	Date      time.Time
	Hours     Hours
	Comment   string
	Status    EntryStatus
	EnteredBy MemberID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// Deleted reports terminal entries, which are excluded from totals and
// from the (member, project, date) uniqueness slot.
func (e *WorkLogEntry) Deleted() bool {
	return e.Status == StatusDeleted
}
