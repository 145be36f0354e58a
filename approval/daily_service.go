/*
daily_service.go - Daily decision workflows

PURPOSE:
  A supervisor's per-entry rulings: approve a batch, reject one with a
  mandatory comment, or recall an earlier approval. Only direct
  managers decide; the reporting subtree is not enough here.

BATCH SEMANTICS:
  ApproveEntries is all-or-nothing. One bad entry (not a direct
  report, already approved, not submitted) fails the whole batch, so a
  supervisor never half-applies a morning's review.

OVERRIDE CREATION:
  RejectEntry writes the rejection log row that releases the member's
  date from monthly gating. Against an already APPROVED month the
  rejection itself is blocked unless the date was released earlier, so
  the release has to come from a rejection made while the month was
  still under review.

SEE ALSO:
  - daily.go: Decision and rejection-log records
  - service.go: The monthly cycle these decisions punch holes into
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

// DailyService executes supervisor decisions on individual entries.
type DailyService struct {
	decisions  DecisionStore
	rejections RejectionLog
	entries    worklog.Repository
	approvals  MonthlyRepository
	atomic     worklog.Atomic
	hierarchy  worklog.Hierarchy
	notifier   notify.Notifier
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewDailyService(decisions DecisionStore, rejections RejectionLog, entries worklog.Repository, approvals MonthlyRepository, atomic worklog.Atomic, hierarchy worklog.Hierarchy) *DailyService {
	return &DailyService{
		decisions:  decisions,
		rejections: rejections,
		entries:    entries,
		approvals:  approvals,
		atomic:     atomic,
		hierarchy:  hierarchy,
		log:        logrus.StandardLogger(),
		now:        time.Now,
	}
}

// WithNotifier wires post-commit member notifications.
func (s *DailyService) WithNotifier(n notify.Notifier) *DailyService {
	s.notifier = n
	return s
}

func (s *DailyService) WithLogger(log logrus.FieldLogger) *DailyService {
	s.log = log
	return s
}

// WithClock overrides time for tests.
func (s *DailyService) WithClock(now func() time.Time) *DailyService {
	s.now = now
	return s
}

// =============================================================================
// APPROVE
// =============================================================================

// ApproveEntries approves a batch of submitted entries in one atomic
// unit. Every entry must belong to a direct report of the supervisor
// and must not already carry an active APPROVED decision.
func (s *DailyService) ApproveEntries(ctx context.Context, entryIDs []worklog.EntryID, supervisorID worklog.MemberID, comment string) ([]Decision, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}

	var made []Decision
	affected := map[worklog.MemberID]int{}
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		for _, entryID := range entryIDs {
			e, err := s.entries.FindByID(ctx, entryID)
			if err != nil {
				return err
			}
			if err := s.checkDirectManager(ctx, supervisorID, e.MemberID); err != nil {
				return err
			}

			active, err := s.decisions.ActiveDecisionForEntry(ctx, e.ID)
			if err != nil {
				return err
			}
			if active != nil && active.Status == DecisionApproved {
				return fmt.Errorf("entry %s: %w", e.ID, ErrAlreadyApproved)
			}

			preVersion := e.Version
			entryEv, err := e.Transition(worklog.StatusApproved, supervisorID, comment, s.now())
			if err != nil {
				return err
			}

			d := Decision{
				ID:           DecisionID(uuid.NewString()),
				EntryID:      e.ID,
				MemberID:     e.MemberID,
				SupervisorID: supervisorID,
				Status:       DecisionApproved,
				Comment:      comment,
				CreatedAt:    s.now(),
				UpdatedAt:    s.now(),
			}
			if err := s.decisions.InsertDecision(ctx, d); err != nil {
				return err
			}
			if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
				return err
			}
			made = append(made, d)
			affected[e.MemberID]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// One notification per member, not per entry.
	for member, count := range affected {
		body := fmt.Sprintf("%d work log entries were approved.", count)
		if count == 1 {
			body = "A work log entry was approved."
		}
		s.emit(ctx, notify.Notification{
			Recipient:   string(member),
			Kind:        notify.KindEntriesApproved,
			ReferenceID: string(firstDecisionFor(made, member)),
			Title:       "Work log approved",
			Body:        body,
			At:          s.now(),
		})
	}
	return made, nil
}

// =============================================================================
// REJECT
// =============================================================================

// RejectEntry rejects one entry with a mandatory comment, reverts it
// for rework and writes the rejection log row that releases the
// member's date from monthly gating.
func (s *DailyService) RejectEntry(ctx context.Context, entryID worklog.EntryID, supervisorID worklog.MemberID, comment string) (*Decision, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("rejecting entry %s: %w", entryID, ErrCommentRequired)
	}

	var made *Decision
	var member worklog.MemberID
	var day string
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.entries.FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if supervisorID == e.MemberID {
			return fmt.Errorf("%s rejecting own entry %s: %w", supervisorID, e.ID, ErrSelfRejection)
		}
		if err := s.checkDirectManager(ctx, supervisorID, e.MemberID); err != nil {
			return err
		}

		active, err := s.decisions.ActiveDecisionForEntry(ctx, e.ID)
		if err != nil {
			return err
		}
		if active != nil && active.Status == DecisionRejected {
			return fmt.Errorf("entry %s: %w", e.ID, ErrAlreadyRejected)
		}

		// An APPROVED month seals its dates. Only a date already
		// released by an earlier rejection can be rejected again.
		covering, err := s.approvals.ApprovalCovering(ctx, e.MemberID, e.Date)
		if err != nil {
			return err
		}
		if covering != nil && covering.Status == ApprovalApproved {
			released, err := s.rejections.HasActiveRejection(ctx, e.MemberID, e.Date)
			if err != nil {
				return err
			}
			if !released {
				return &RejectBlockedError{
					EntryID:       e.ID,
					MemberID:      e.MemberID,
					Date:          fiscal.FormatDate(e.Date),
					MonthlyStatus: covering.Status,
				}
			}
		}

		preVersion := e.Version
		entryEv, err := e.Transition(worklog.StatusRejected, supervisorID, comment, s.now())
		if err != nil {
			return err
		}

		d := Decision{
			ID:           DecisionID(uuid.NewString()),
			EntryID:      e.ID,
			MemberID:     e.MemberID,
			SupervisorID: supervisorID,
			Status:       DecisionRejected,
			Comment:      comment,
			CreatedAt:    s.now(),
			UpdatedAt:    s.now(),
		}
		if err := s.decisions.InsertDecision(ctx, d); err != nil {
			return err
		}
		if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
			return err
		}

		rec := RejectionRecord{
			ID:         uuid.NewString(),
			MemberID:   e.MemberID,
			Date:       e.Date,
			Reason:     comment,
			EntryIDs:   []worklog.EntryID{e.ID},
			DecisionID: d.ID,
			CreatedAt:  s.now(),
		}
		if err := s.rejections.AppendRejection(ctx, rec); err != nil {
			return err
		}

		made = &d
		member = e.MemberID
		day = fiscal.FormatDate(e.Date)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, notify.Notification{
		Recipient:   string(member),
		Kind:        notify.KindEntryRejected,
		ReferenceID: string(entryID),
		Title:       "Work log entry rejected",
		Body:        fmt.Sprintf("Your entry for %s was rejected: %s", day, comment),
		At:          s.now(),
	})
	return made, nil
}

// =============================================================================
// RECALL
// =============================================================================

// RecallApproval withdraws an APPROVED decision. Only the supervisor
// who made it may recall it; the entry returns to SUBMITTED for a
// fresh ruling.
func (s *DailyService) RecallApproval(ctx context.Context, decisionID DecisionID, supervisorID worklog.MemberID) (*Decision, error) {
	var recalled *Decision
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		d, err := s.decisions.DecisionByID(ctx, decisionID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("decision %s: %w", decisionID, ErrDecisionNotFound)
		}
		if d.SupervisorID != supervisorID {
			return fmt.Errorf("%s recalling decision %s made by %s: %w", supervisorID, d.ID, d.SupervisorID, ErrUnauthorized)
		}
		if d.Status != DecisionApproved || d.Superseded {
			return &InvalidDecisionStateError{DecisionID: d.ID, Status: d.Status, Operation: "recall"}
		}

		if err := s.decisions.UpdateDecisionStatus(ctx, d.ID, DecisionRecalled, s.now()); err != nil {
			return err
		}

		e, err := s.entries.FindByID(ctx, d.EntryID)
		if err != nil {
			return err
		}
		if e.Status == worklog.StatusApproved {
			preVersion := e.Version
			entryEv, err := e.Transition(worklog.StatusSubmitted, supervisorID, "", s.now())
			if err != nil {
				return err
			}
			if err := s.entries.Save(ctx, e, []eventstore.DomainEvent{entryEv}, preVersion); err != nil {
				return err
			}
		}

		after := *d
		after.Status = DecisionRecalled
		after.UpdatedAt = s.now()
		recalled = &after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recalled, nil
}

// =============================================================================
// READS
// =============================================================================

// DecisionForEntry returns the entry's active decision, or nil.
func (s *DailyService) DecisionForEntry(ctx context.Context, entry worklog.EntryID) (*Decision, error) {
	return s.decisions.ActiveDecisionForEntry(ctx, entry)
}

// RejectionsFor returns the member-date rejection log rows, newest
// first.
func (s *DailyService) RejectionsFor(ctx context.Context, member worklog.MemberID, date time.Time) ([]RejectionRecord, error) {
	return s.rejections.RejectionsForDate(ctx, member, fiscal.DayOf(date))
}

// =============================================================================
// INTERNAL
// =============================================================================

func (s *DailyService) checkDirectManager(ctx context.Context, supervisor, member worklog.MemberID) error {
	ok, err := s.hierarchy.IsDirectManagerOf(ctx, supervisor, member)
	if err != nil {
		return err
	}
	if !ok {
		return &NotDirectReportError{SupervisorID: supervisor, MemberID: member}
	}
	return nil
}

func (s *DailyService) emit(ctx context.Context, n notify.Notification) {
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

func firstDecisionFor(made []Decision, member worklog.MemberID) DecisionID {
	for _, d := range made {
		if d.MemberID == member {
			return d.ID
		}
	}
	return ""
}
