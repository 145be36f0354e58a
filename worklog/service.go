/*
service.go - Entry command handling

PURPOSE:
  The write path for work-log entries. Each command validates, rebuilds
  the aggregate, produces events and hands them to the repository inside
  one atomic unit, so the daily-cap re-check and the append commit (or
  fail) together.

VALIDATION ORDER (create):
  1. Hour quantization - Cheap, no I/O
  2. Proxy authority   - Reporting-line check
  3. Uniqueness        - (member, project, date) slot, inside the tx
  4. Daily cap         - Against the latest committed total, inside the tx

CONCURRENCY:
  Callers pass the version they loaded; a mismatch with persisted state
  fails before any validation runs against stale data. The append itself
  re-enforces the version, so a race lost between load and commit still
  surfaces as an optimistic lock failure.

SEE ALSO:
  - entry.go: Aggregate-level rules (editability, transition table)
  - repository.go: The contracts this drives
*/
package worklog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
)

// =============================================================================
// COMMANDS
// =============================================================================

// CreateEntry logs hours for a member on a project and date.
// EnteredBy may differ from MemberID only for managers (proxy entry).
type CreateEntry struct {
	MemberID  MemberID
	ProjectID ProjectID
	Date      time.Time
	Hours     float64
	Comment   string
	EnteredBy MemberID
}

// UpdateEntry rewrites hours/comment of an editable entry.
// Version is the aggregate version the caller loaded.
type UpdateEntry struct {
	EntryID   EntryID
	Hours     float64
	Comment   string
	Version   int
	UpdatedBy MemberID
}

// DeleteEntry terminally deletes an editable entry.
type DeleteEntry struct {
	EntryID   EntryID
	Version   int
	DeletedBy MemberID
}

// =============================================================================
// ENTRY SERVICE
// =============================================================================

// EntryService executes entry commands against the repository.
type EntryService struct {
	repo      Repository
	atomic    Atomic
	hierarchy Hierarchy
	gate      ApprovalGate
	now       func() time.Time
}

func NewEntryService(repo Repository, atomic Atomic, hierarchy Hierarchy) *EntryService {
	return &EntryService{
		repo:      repo,
		atomic:    atomic,
		hierarchy: hierarchy,
		now:       time.Now,
	}
}

// WithGate wires the monthly-approval gate consulted on recalls.
func (s *EntryService) WithGate(gate ApprovalGate) *EntryService {
	s.gate = gate
	return s
}

// WithClock overrides time for tests.
func (s *EntryService) WithClock(now func() time.Time) *EntryService {
	s.now = now
	return s
}

// Create validates and persists a new DRAFT entry.
func (s *EntryService) Create(ctx context.Context, cmd CreateEntry) (*WorkLogEntry, error) {
	hours, err := NewHours(cmd.Hours)
	if err != nil {
		return nil, err
	}
	if err := s.checkProxy(ctx, cmd.EnteredBy, cmd.MemberID); err != nil {
		return nil, err
	}
	day := fiscal.DayOf(cmd.Date)

	var created *WorkLogEntry
	err = s.atomic.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByMemberProjectDate(ctx, cmd.MemberID, cmd.ProjectID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return &DuplicateEntryError{
				MemberID:   cmd.MemberID,
				ProjectID:  cmd.ProjectID,
				Date:       fiscal.FormatDate(day),
				ExistingID: existing.ID,
			}
		}

		total, err := s.repo.TotalHoursForDate(ctx, cmd.MemberID, day, "")
		if err != nil {
			return err
		}
		if total.Add(hours).ExceedsDailyCap() {
			return &DailyLimitError{
				MemberID:  cmd.MemberID,
				Date:      fiscal.FormatDate(day),
				Existing:  total,
				Requested: hours,
			}
		}

		entry, ev, err := NewEntry(EntryID(uuid.NewString()), cmd.MemberID, cmd.ProjectID, day, hours, cmd.Comment, cmd.EnteredBy, s.now())
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, entry, []eventstore.DomainEvent{ev}, 0); err != nil {
			return err
		}
		created = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update rewrites an editable entry at the caller's version.
func (s *EntryService) Update(ctx context.Context, cmd UpdateEntry) (*WorkLogEntry, error) {
	hours, err := NewHours(cmd.Hours)
	if err != nil {
		return nil, err
	}

	var updated *WorkLogEntry
	err = s.atomic.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.FindByID(ctx, cmd.EntryID)
		if err != nil {
			return err
		}
		if err := checkVersion(entry, cmd.Version); err != nil {
			return err
		}
		if err := s.checkProxy(ctx, cmd.UpdatedBy, entry.MemberID); err != nil {
			return err
		}

		// Recompute the cap with this entry's previous hours excluded.
		total, err := s.repo.TotalHoursForDate(ctx, entry.MemberID, entry.Date, entry.ID)
		if err != nil {
			return err
		}
		if total.Add(hours).ExceedsDailyCap() {
			return &DailyLimitError{
				MemberID:  entry.MemberID,
				Date:      fiscal.FormatDate(entry.Date),
				Existing:  total,
				Requested: hours,
			}
		}

		expected := entry.Version
		ev, err := entry.UpdateDetails(hours, cmd.Comment, cmd.UpdatedBy, s.now())
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, entry, []eventstore.DomainEvent{ev}, expected); err != nil {
			return err
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete terminally deletes an editable entry at the caller's version.
func (s *EntryService) Delete(ctx context.Context, cmd DeleteEntry) error {
	return s.atomic.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.FindByID(ctx, cmd.EntryID)
		if err != nil {
			return err
		}
		if err := checkVersion(entry, cmd.Version); err != nil {
			return err
		}
		if err := s.checkProxy(ctx, cmd.DeletedBy, entry.MemberID); err != nil {
			return err
		}

		expected := entry.Version
		ev, err := entry.MarkDeleted(cmd.DeletedBy, s.now())
		if err != nil {
			return err
		}
		return s.repo.Save(ctx, entry, []eventstore.DomainEvent{ev}, expected)
	})
}

// ChangeStatus performs one member-facing status move (submit, recall,
// resubmit). Recalls to DRAFT consult the monthly gate: a SUBMITTED or
// APPROVED covering month blocks the recall unless an active
// daily-rejection override releases the date.
func (s *EntryService) ChangeStatus(ctx context.Context, id EntryID, to EntryStatus, actor MemberID) (*WorkLogEntry, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{EntryID: id, To: to}
	}

	var changed *WorkLogEntry
	err := s.atomic.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkProxy(ctx, actor, entry.MemberID); err != nil {
			return err
		}

		if to == StatusDraft && s.gate != nil {
			locked, monthlyStatus, err := s.gate.EntryLocked(ctx, entry.MemberID, entry.Date)
			if err != nil {
				return err
			}
			if locked {
				return &RecallBlockedError{
					EntryID:       entry.ID,
					MemberID:      entry.MemberID,
					Date:          fiscal.FormatDate(entry.Date),
					MonthlyStatus: monthlyStatus,
				}
			}
		}

		expected := entry.Version
		ev, err := entry.Transition(to, actor, "", s.now())
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, entry, []eventstore.DomainEvent{ev}, expected); err != nil {
			return err
		}
		changed = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// Get replays one entry.
func (s *EntryService) Get(ctx context.Context, id EntryID) (*WorkLogEntry, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns a member's entries in [from, to], optionally filtered by
// status.
func (s *EntryService) List(ctx context.Context, member MemberID, from, to time.Time, filter []EntryStatus) ([]*WorkLogEntry, error) {
	return s.repo.FindByDateRange(ctx, member, fiscal.DayOf(from), fiscal.DayOf(to), filter)
}

// DailyTotal returns the member's committed total for a date.
func (s *EntryService) DailyTotal(ctx context.Context, member MemberID, date time.Time) (Hours, error) {
	return s.repo.TotalHoursForDate(ctx, member, fiscal.DayOf(date), "")
}

// checkProxy enforces the proxy rule: acting for someone else requires
// them in your reporting subtree.
func (s *EntryService) checkProxy(ctx context.Context, actor, member MemberID) error {
	if actor == "" || actor == member {
		return nil
	}
	ok, err := s.hierarchy.IsSubordinateOf(ctx, actor, member)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s acting for %s: %w", actor, member, ErrProxyNotAllowed)
	}
	return nil
}

// checkVersion compares the caller's loaded version with persisted state.
func checkVersion(entry *WorkLogEntry, callerVersion int) error {
	if callerVersion != entry.Version {
		return &eventstore.OptimisticLockError{
			AggregateType: AggregateTypeEntry,
			AggregateID:   eventstore.AggregateID(entry.ID),
			Expected:      callerVersion,
			Actual:        entry.Version,
		}
	}
	return nil
}
