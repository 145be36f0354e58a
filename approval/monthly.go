/*
monthly.go - MonthlyApproval aggregate

PURPOSE:
  The event-sourced approval of one member's fiscal month. Submission
  fixes the covered set (entries + absences) and flips the member's
  entries into review; the reviewer's decision then locks or releases
  the whole period.

LIFECYCLE:
  PENDING    - exists only in memory, before the first submission
  SUBMITTED  - covered set fixed, entries locked behind the gate
  APPROVED   - terminal; covered entries permanently read-only (unless a
               daily rejection releases a date)
  REJECTED   - sent back with a reason; resubmission restarts the cycle

IDENTITY:
  Exactly one live aggregate per (member, period start). The repository
  enforces the natural key; the aggregate id stays opaque.

SEE ALSO:
  - service.go: Submit/approve/reject workflows
  - gate.go: How SUBMITTED/APPROVED months lock entries
*/
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

// AggregateTypeMonthly tags monthly approval streams in the event store.
const AggregateTypeMonthly = eventstore.AggregateType("monthly_approval")

const (
	EventMonthSubmitted = eventstore.EventType("approval.month_submitted")
	EventMonthApproved  = eventstore.EventType("approval.month_approved")
	EventMonthRejected  = eventstore.EventType("approval.month_rejected")
)

func init() {
	eventstore.RegisterEventType(EventMonthSubmitted, func() any { return &MonthSubmitted{} })
	eventstore.RegisterEventType(EventMonthApproved, func() any { return &MonthApproved{} })
	eventstore.RegisterEventType(EventMonthRejected, func() any { return &MonthRejected{} })
}

// =============================================================================
// STATUS
// =============================================================================

type ApprovalID string

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "PENDING"
	ApprovalSubmitted ApprovalStatus = "SUBMITTED"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
)

// Locks reports whether this status gates the covered entries.
func (s ApprovalStatus) Locks() bool {
	return s == ApprovalSubmitted || s == ApprovalApproved
}

// =============================================================================
// PAYLOADS
// =============================================================================

type MonthSubmitted struct {
	ApprovalID  string   `json:"approval_id"`
	MemberID    string   `json:"member_id"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	EntryIDs    []string `json:"entry_ids"`
	AbsenceIDs  []string `json:"absence_ids,omitempty"`
	SubmittedBy string   `json:"submitted_by"`
}

type MonthApproved struct {
	ReviewedBy string `json:"reviewed_by"`
}

type MonthRejected struct {
	ReviewedBy string `json:"reviewed_by"`
	Reason     string `json:"reason"`
}

// =============================================================================
// AGGREGATE
// =============================================================================

// MonthlyApproval is the replayed state of one member-month.
type MonthlyApproval struct {
	ID              ApprovalID
	MemberID        worklog.MemberID
	Period          fiscal.Period
	Status          ApprovalStatus
	EntryIDs        []worklog.EntryID
	AbsenceIDs      []string
	SubmittedBy     worklog.MemberID
	SubmittedAt     time.Time
	ReviewedBy      worklog.MemberID
	ReviewedAt      time.Time
	RejectionReason string
	Version         int
}

// NewMonthlyApproval starts a PENDING aggregate for a member-month.
// Nothing is persisted until the first submission event.
func NewMonthlyApproval(id ApprovalID, member worklog.MemberID, period fiscal.Period) *MonthlyApproval {
	return &MonthlyApproval{
		ID:       id,
		MemberID: member,
		Period:   period,
		Status:   ApprovalPending,
	}
}

// Covers reports whether the date falls inside the approval's period.
func (a *MonthlyApproval) Covers(date time.Time) bool {
	return a.Period.Contains(date)
}

// CoversEntry reports whether the entry id is in the covered set.
func (a *MonthlyApproval) CoversEntry(id worklog.EntryID) bool {
	for _, covered := range a.EntryIDs {
		if covered == id {
			return true
		}
	}
	return false
}

// =============================================================================
// BEHAVIOR - Validate, produce event, apply
// =============================================================================

// Submit fixes the covered set and moves to SUBMITTED. Legal from
// everything but APPROVED; the service short-circuits no-op
// resubmissions before calling this.
func (a *MonthlyApproval) Submit(entryIDs []worklog.EntryID, absenceIDs []string, submittedBy worklog.MemberID, now time.Time) (eventstore.DomainEvent, error) {
	if a.Status == ApprovalApproved {
		return eventstore.DomainEvent{}, &InvalidApprovalStateError{ApprovalID: a.ID, Status: a.Status, Operation: "submit"}
	}

	ids := make([]string, len(entryIDs))
	for i, id := range entryIDs {
		ids[i] = string(id)
	}
	ev, err := eventstore.NewEvent(EventMonthSubmitted, now, MonthSubmitted{
		ApprovalID:  string(a.ID),
		MemberID:    string(a.MemberID),
		PeriodStart: fiscal.FormatDate(a.Period.Start),
		PeriodEnd:   fiscal.FormatDate(a.Period.End),
		EntryIDs:    ids,
		AbsenceIDs:  absenceIDs,
		SubmittedBy: string(submittedBy),
	})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}

	a.Status = ApprovalSubmitted
	a.EntryIDs = append([]worklog.EntryID(nil), entryIDs...)
	a.AbsenceIDs = append([]string(nil), absenceIDs...)
	a.SubmittedBy = submittedBy
	a.SubmittedAt = ev.OccurredAt
	a.RejectionReason = ""
	return ev, nil
}

// Approve finalizes the month. Legal from SUBMITTED only; approving an
// approved month is reported distinctly.
func (a *MonthlyApproval) Approve(reviewedBy worklog.MemberID, now time.Time) (eventstore.DomainEvent, error) {
	if a.Status == ApprovalApproved {
		return eventstore.DomainEvent{}, fmt.Errorf("approval %s: %w", a.ID, ErrAlreadyApproved)
	}
	if a.Status != ApprovalSubmitted {
		return eventstore.DomainEvent{}, &InvalidApprovalStateError{ApprovalID: a.ID, Status: a.Status, Operation: "approve"}
	}
	ev, err := eventstore.NewEvent(EventMonthApproved, now, MonthApproved{ReviewedBy: string(reviewedBy)})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}
	a.Status = ApprovalApproved
	a.ReviewedBy = reviewedBy
	a.ReviewedAt = ev.OccurredAt
	return ev, nil
}

// Reject sends the month back. Legal from SUBMITTED only; the reason is
// retained for the member.
func (a *MonthlyApproval) Reject(reviewedBy worklog.MemberID, reason string, now time.Time) (eventstore.DomainEvent, error) {
	if a.Status != ApprovalSubmitted {
		return eventstore.DomainEvent{}, &InvalidApprovalStateError{ApprovalID: a.ID, Status: a.Status, Operation: "reject"}
	}
	ev, err := eventstore.NewEvent(EventMonthRejected, now, MonthRejected{ReviewedBy: string(reviewedBy), Reason: reason})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}
	a.Status = ApprovalRejected
	a.ReviewedBy = reviewedBy
	a.ReviewedAt = ev.OccurredAt
	a.RejectionReason = reason
	return ev, nil
}

// =============================================================================
// REPLAY
// =============================================================================

var _ eventstore.SnapshotAggregate = (*MonthlyApproval)(nil)

// Apply folds one stored event. Replay path only.
func (a *MonthlyApproval) Apply(ev eventstore.StoredEvent) error {
	switch ev.Type {
	case EventMonthSubmitted:
		var p MonthSubmitted
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		start, err := fiscal.ParseDate(p.PeriodStart)
		if err != nil {
			return err
		}
		end, err := fiscal.ParseDate(p.PeriodEnd)
		if err != nil {
			return err
		}
		a.ID = ApprovalID(p.ApprovalID)
		a.MemberID = worklog.MemberID(p.MemberID)
		a.Period = fiscal.Period{Start: start, End: end}
		a.Status = ApprovalSubmitted
		a.EntryIDs = make([]worklog.EntryID, len(p.EntryIDs))
		for i, id := range p.EntryIDs {
			a.EntryIDs[i] = worklog.EntryID(id)
		}
		a.AbsenceIDs = p.AbsenceIDs
		a.SubmittedBy = worklog.MemberID(p.SubmittedBy)
		a.SubmittedAt = ev.OccurredAt
		a.RejectionReason = ""

	case EventMonthApproved:
		var p MonthApproved
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		a.Status = ApprovalApproved
		a.ReviewedBy = worklog.MemberID(p.ReviewedBy)
		a.ReviewedAt = ev.OccurredAt

	case EventMonthRejected:
		var p MonthRejected
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		a.Status = ApprovalRejected
		a.ReviewedBy = worklog.MemberID(p.ReviewedBy)
		a.ReviewedAt = ev.OccurredAt
		a.RejectionReason = p.Reason

	default:
		return fmt.Errorf("monthly approval %s: unknown event type %q", a.ID, ev.Type)
	}

	a.Version = ev.Version
	return nil
}

type monthlySnapshot struct {
	ID              string   `json:"id"`
	MemberID        string   `json:"member_id"`
	PeriodStart     string   `json:"period_start"`
	PeriodEnd       string   `json:"period_end"`
	Status          string   `json:"status"`
	EntryIDs        []string `json:"entry_ids"`
	AbsenceIDs      []string `json:"absence_ids,omitempty"`
	SubmittedBy     string   `json:"submitted_by"`
	SubmittedAt     string   `json:"submitted_at"`
	ReviewedBy      string   `json:"reviewed_by,omitempty"`
	ReviewedAt      string   `json:"reviewed_at,omitempty"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
}

func (a *MonthlyApproval) SnapshotState() (json.RawMessage, error) {
	ids := make([]string, len(a.EntryIDs))
	for i, id := range a.EntryIDs {
		ids[i] = string(id)
	}
	snap := monthlySnapshot{
		ID:              string(a.ID),
		MemberID:        string(a.MemberID),
		PeriodStart:     fiscal.FormatDate(a.Period.Start),
		PeriodEnd:       fiscal.FormatDate(a.Period.End),
		Status:          string(a.Status),
		EntryIDs:        ids,
		AbsenceIDs:      a.AbsenceIDs,
		SubmittedBy:     string(a.SubmittedBy),
		SubmittedAt:     a.SubmittedAt.UTC().Format(time.RFC3339Nano),
		RejectionReason: a.RejectionReason,
	}
	if a.ReviewedBy != "" {
		snap.ReviewedBy = string(a.ReviewedBy)
		snap.ReviewedAt = a.ReviewedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(snap)
}

func (a *MonthlyApproval) RestoreSnapshot(state json.RawMessage) error {
	var s monthlySnapshot
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	start, err := fiscal.ParseDate(s.PeriodStart)
	if err != nil {
		return err
	}
	end, err := fiscal.ParseDate(s.PeriodEnd)
	if err != nil {
		return err
	}
	submittedAt, err := time.Parse(time.RFC3339Nano, s.SubmittedAt)
	if err != nil {
		return err
	}
	a.ID = ApprovalID(s.ID)
	a.MemberID = worklog.MemberID(s.MemberID)
	a.Period = fiscal.Period{Start: start, End: end}
	a.Status = ApprovalStatus(s.Status)
	a.EntryIDs = make([]worklog.EntryID, len(s.EntryIDs))
	for i, id := range s.EntryIDs {
		a.EntryIDs[i] = worklog.EntryID(id)
	}
	a.AbsenceIDs = s.AbsenceIDs
	a.SubmittedBy = worklog.MemberID(s.SubmittedBy)
	a.SubmittedAt = submittedAt
	a.RejectionReason = s.RejectionReason
	if s.ReviewedBy != "" {
		reviewedAt, err := time.Parse(time.RFC3339Nano, s.ReviewedAt)
		if err != nil {
			return err
		}
		a.ReviewedBy = worklog.MemberID(s.ReviewedBy)
		a.ReviewedAt = reviewedAt
	}
	return nil
}

// =============================================================================
// REPOSITORY
// =============================================================================

// MonthlyRepository persists monthly approvals through the event store.
type MonthlyRepository interface {
	// SaveApproval appends events at expectedVersion and updates the
	// read model atomically. Creating a second live approval for the
	// same (member, period start) fails with a conflict.
	SaveApproval(ctx context.Context, a *MonthlyApproval, events []eventstore.DomainEvent, expectedVersion int) error

	// ApprovalByID replays one approval. ErrApprovalNotFound when the
	// stream does not exist.
	ApprovalByID(ctx context.Context, id ApprovalID) (*MonthlyApproval, error)

	// ApprovalForPeriod returns the approval whose period starts at
	// periodStart, or nil when the member-month was never submitted.
	ApprovalForPeriod(ctx context.Context, member worklog.MemberID, periodStart time.Time) (*MonthlyApproval, error)

	// ApprovalCovering returns the approval whose period contains the
	// date, or nil. At most one approval covers any date because periods
	// per member never overlap.
	ApprovalCovering(ctx context.Context, member worklog.MemberID, date time.Time) (*MonthlyApproval, error)
}
