/*
service.go - Monthly approval workflows

PURPOSE:
  The submit/approve/reject cycle for one member's fiscal month. Each
  workflow runs in one atomic unit so the approval stream and the
  covered entry streams move together or not at all.

SUBMISSION:
  Collects every live entry in the period plus the member's absences,
  fixes them as the covered set, and flips DRAFT/REJECTED entries to
  SUBMITTED. Resubmitting an unchanged month with nothing left to flip
  is a no-op, so retries are safe.

REVIEW:
  Approval walks the covered set and finalizes entries still in
  SUBMITTED; entries released by a daily rejection in the meantime are
  left alone. Rejection sends SUBMITTED entries back to DRAFT with the
  reviewer's reason. Either outcome notifies the member after commit.

SEE ALSO:
  - daily_service.go: Per-entry decisions and the override they create
  - gate.go: How the approval status locks entries
*/
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/worklog"
)

// MonthlyService executes the monthly approval workflows.
type MonthlyService struct {
	approvals MonthlyRepository
	entries   worklog.Repository
	atomic    worklog.Atomic
	hierarchy worklog.Hierarchy
	absences  AbsenceSource
	notifier  notify.Notifier
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewMonthlyService(approvals MonthlyRepository, entries worklog.Repository, atomic worklog.Atomic, hierarchy worklog.Hierarchy) *MonthlyService {
	return &MonthlyService{
		approvals: approvals,
		entries:   entries,
		atomic:    atomic,
		hierarchy: hierarchy,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
}

// WithAbsences wires the absence source merged into covered sets.
func (s *MonthlyService) WithAbsences(src AbsenceSource) *MonthlyService {
	s.absences = src
	return s
}

// WithNotifier wires post-commit member notifications.
func (s *MonthlyService) WithNotifier(n notify.Notifier) *MonthlyService {
	s.notifier = n
	return s
}

func (s *MonthlyService) WithLogger(log logrus.FieldLogger) *MonthlyService {
	s.log = log
	return s
}

// WithClock overrides time for tests.
func (s *MonthlyService) WithClock(now func() time.Time) *MonthlyService {
	s.now = now
	return s
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitMonth submits the member's period for review. The covered set
// is every live entry in the period plus the member's absences, fixed
// at this moment; later entries need a resubmission to join it.
func (s *MonthlyService) SubmitMonth(ctx context.Context, member worklog.MemberID, period fiscal.Period, submittedBy worklog.MemberID) (*MonthlyApproval, error) {
	if err := s.checkActor(ctx, submittedBy, member); err != nil {
		return nil, err
	}

	var result *MonthlyApproval
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.approvals.ApprovalForPeriod(ctx, member, period.Start)
		if err != nil {
			return err
		}
		if a == nil {
			a = NewMonthlyApproval(ApprovalID(uuid.NewString()), member, period)
		}

		covered, err := s.entries.FindByDateRange(ctx, member, period.Start, period.End, nil)
		if err != nil {
			return err
		}
		coveredIDs := make([]worklog.EntryID, len(covered))
		var toSubmit []*worklog.WorkLogEntry
		for i, e := range covered {
			coveredIDs[i] = e.ID
			if e.Status == worklog.StatusDraft || e.Status == worklog.StatusRejected {
				toSubmit = append(toSubmit, e)
			}
		}

		var absenceIDs []string
		if s.absences != nil {
			records, err := s.absences.AbsencesInRange(ctx, member, period.Start, period.End)
			if err != nil {
				return err
			}
			for _, r := range records {
				absenceIDs = append(absenceIDs, r.ID)
			}
		}

		// Unchanged set and nothing left to flip: the retry case.
		if a.Status == ApprovalSubmitted && len(toSubmit) == 0 &&
			sameEntrySet(a.EntryIDs, coveredIDs) && sameStringSet(a.AbsenceIDs, absenceIDs) {
			result = a
			return nil
		}

		expected := a.Version
		ev, err := a.Submit(coveredIDs, absenceIDs, submittedBy, s.now())
		if err != nil {
			return err
		}

		for _, e := range toSubmit {
			preVersion := e.Version
			entryEv, err := e.Transition(worklog.StatusSubmitted, submittedBy, "", s.now())
			if err != nil {
				return err
			}
			if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
				return err
			}
		}

		if err := s.approvals.SaveApproval(ctx, a, []eventstore.DomainEvent{ev}, expected); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// ApproveMonth finalizes a submitted month. Covered entries still in
// SUBMITTED become APPROVED; entries a daily rejection released stay
// where their own cycle put them.
func (s *MonthlyService) ApproveMonth(ctx context.Context, id ApprovalID, reviewedBy worklog.MemberID) (*MonthlyApproval, error) {
	var result *MonthlyApproval
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.approvals.ApprovalByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkReviewer(ctx, reviewedBy, a.MemberID); err != nil {
			return err
		}

		expected := a.Version
		ev, err := a.Approve(reviewedBy, s.now())
		if err != nil {
			return err
		}

		for _, entryID := range a.EntryIDs {
			e, err := s.entries.FindByID(ctx, entryID)
			if err != nil {
				return err
			}
			if e.Status != worklog.StatusSubmitted {
				continue
			}
			preVersion := e.Version
			entryEv, err := e.Transition(worklog.StatusApproved, reviewedBy, "", s.now())
			if err != nil {
				return err
			}
			if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
				return err
			}
		}

		if err := s.approvals.SaveApproval(ctx, a, []eventstore.DomainEvent{ev}, expected); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.Notification{
		Recipient:   string(result.MemberID),
		Kind:        notify.KindMonthApproved,
		ReferenceID: string(result.ID),
		Title:       "Monthly work log approved",
		Body: fmt.Sprintf("Your work log for %s through %s was approved.",
			fiscal.FormatDate(result.Period.Start), fiscal.FormatDate(result.Period.End)),
		At: s.now(),
	})
	return result, nil
}

// RejectMonth sends a submitted month back to the member with a reason.
// Covered entries in SUBMITTED revert to DRAFT for rework.
func (s *MonthlyService) RejectMonth(ctx context.Context, id ApprovalID, reviewedBy worklog.MemberID, reason string) (*MonthlyApproval, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejecting approval %s: %w", id, ErrReasonRequired)
	}

	var result *MonthlyApproval
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.approvals.ApprovalByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkReviewer(ctx, reviewedBy, a.MemberID); err != nil {
			return err
		}

		expected := a.Version
		ev, err := a.Reject(reviewedBy, reason, s.now())
		if err != nil {
			return err
		}

		for _, entryID := range a.EntryIDs {
			e, err := s.entries.FindByID(ctx, entryID)
			if err != nil {
				return err
			}
			if e.Status != worklog.StatusSubmitted {
				continue
			}
			preVersion := e.Version
			entryEv, err := e.Transition(worklog.StatusDraft, reviewedBy, reason, s.now())
			if err != nil {
				return err
			}
			if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
				return err
			}
		}

		if err := s.approvals.SaveApproval(ctx, a, []eventstore.DomainEvent{ev}, expected); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.Notification{
		Recipient:   string(result.MemberID),
		Kind:        notify.KindMonthRejected,
		ReferenceID: string(result.ID),
		Title:       "Monthly work log rejected",
		Body: fmt.Sprintf("Your work log for %s through %s was rejected: %s",
			fiscal.FormatDate(result.Period.Start), fiscal.FormatDate(result.Period.End), reason),
		At: s.now(),
	})
	return result, nil
}

// =============================================================================
// READS
// =============================================================================

// Get replays one approval.
func (s *MonthlyService) Get(ctx context.Context, id ApprovalID) (*MonthlyApproval, error) {
	return s.approvals.ApprovalByID(ctx, id)
}

// ForPeriod returns the member's approval for the period starting at
// periodStart, or nil when the month was never submitted.
func (s *MonthlyService) ForPeriod(ctx context.Context, member worklog.MemberID, periodStart time.Time) (*MonthlyApproval, error) {
	return s.approvals.ApprovalForPeriod(ctx, member, fiscal.DayOf(periodStart))
}

// ForDate returns the member's approval whose period contains the date,
// or nil.
func (s *MonthlyService) ForDate(ctx context.Context, member worklog.MemberID, date time.Time) (*MonthlyApproval, error) {
	return s.approvals.ApprovalCovering(ctx, member, fiscal.DayOf(date))
}

// =============================================================================
// INTERNAL
// =============================================================================

// checkActor enforces the proxy rule for submission: submitting for
// someone else requires them in your reporting subtree.
func (s *MonthlyService) checkActor(ctx context.Context, actor, member worklog.MemberID) error {
	if actor == "" || actor == member {
		return nil
	}
	ok, err := s.hierarchy.IsSubordinateOf(ctx, actor, member)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s submitting for %s: %w", actor, member, worklog.ErrProxyNotAllowed)
	}
	return nil
}

// checkReviewer enforces who may decide a month: a manager above the
// member, never the member themselves.
func (s *MonthlyService) checkReviewer(ctx context.Context, reviewer, member worklog.MemberID) error {
	if reviewer == member {
		return fmt.Errorf("%s reviewing own month: %w", reviewer, ErrUnauthorized)
	}
	ok, err := s.hierarchy.IsSubordinateOf(ctx, reviewer, member)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s reviewing %s: %w", reviewer, member, ErrUnauthorized)
	}
	return nil
}

// emit delivers a notification outside the transaction. Delivery
// failures are logged and swallowed; the workflow already committed.
func (s *MonthlyService) emit(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"recipient": n.Recipient,
			"kind":      n.Kind,
		}).Warn("notification delivery failed")
	}
}

func sameEntrySet(a, b []worklog.EntryID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[worklog.EntryID]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
