/*
repository.go - Persistence and collaborator contracts for entries

PURPOSE:
  Defines what the entry workflows need from the outside world: an
  aggregate repository driving the event store, an atomic-unit runner
  for multi-write operations, the reporting-line oracle, and the monthly
  gate consulted on recall.

SAVE CONTRACT:
  Save appends the entry's new events at expectedVersion and keeps the
  query-side rows (range scans, daily totals) in step within the same
  transaction. A version race surfaces eventstore.OptimisticLockError
  and writes nothing.

ATOMIC UNITS:
  WithTx runs fn so that every repository write inside shares one
  commit. The entry service uses it to make "re-check the daily cap,
  then append" a single unit; the approval workflows use it for
  month-wide batches.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests

SEE ALSO:
  - service.go: The workflows these contracts serve
*/
package worklog

import (
	"context"
	"time"

	"github.com/warp/worklog-engine/eventstore"
)

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository persists entries through the event store and answers the
// read-side queries the invariants need.
type Repository interface {
	// Save appends events at expectedVersion and updates the read model
	// atomically. On success the entry's Version is advanced.
	Save(ctx context.Context, entry *WorkLogEntry, events []eventstore.DomainEvent, expectedVersion int) error

	// FindByID replays an entry. ErrEntryNotFound when the stream does
	// not exist. Deleted entries are returned with StatusDeleted.
	FindByID(ctx context.Context, id EntryID) (*WorkLogEntry, error)

	// FindByMemberProjectDate returns the non-deleted entry occupying the
	// uniqueness slot, or nil when the slot is free.
	FindByMemberProjectDate(ctx context.Context, member MemberID, project ProjectID, date time.Time) (*WorkLogEntry, error)

	// FindByDateRange returns a member's entries with date in [from, to],
	// ordered by date. A nil filter means every non-deleted status;
	// an explicit filter is honored verbatim (DELETED included only when
	// asked for).
	FindByDateRange(ctx context.Context, member MemberID, from, to time.Time, filter []EntryStatus) ([]*WorkLogEntry, error)

	// TotalHoursForDate sums non-deleted hours for the member-date,
	// excluding at most one entry (the one being rewritten).
	TotalHoursForDate(ctx context.Context, member MemberID, date time.Time, exclude EntryID) (Hours, error)
}

// Atomic runs fn as one transaction: every repository write made with
// the ctx it passes shares a single commit or rollback.
type Atomic interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// =============================================================================
// COLLABORATORS - Provided by the surrounding system
// =============================================================================

// Hierarchy answers reporting-line questions. Implementations walk the
// member directory; results are authoritative, not cached here.
type Hierarchy interface {
	// IsSubordinateOf reports whether member is in manager's reporting
	// subtree (direct or indirect).
	IsSubordinateOf(ctx context.Context, manager, member MemberID) (bool, error)

	// IsDirectManagerOf reports a direct reporting line only.
	IsDirectManagerOf(ctx context.Context, manager, member MemberID) (bool, error)
}

// ApprovalGate reports whether a member-date is locked by a covering
// monthly approval, after considering the daily-rejection override.
// The approval package provides the implementation.
type ApprovalGate interface {
	// EntryLocked returns (locked, monthlyStatus). locked is false when
	// no covering monthly approval exists, it is not SUBMITTED/APPROVED,
	// or an active daily-rejection override releases the date.
	EntryLocked(ctx context.Context, member MemberID, date time.Time) (bool, string, error)
}

// =============================================================================
// IN-MEMORY HIERARCHY - For tests and demo seeds
// =============================================================================

// maxReportingDepth bounds manager-chain walks like the fiscal package
// bounds organization walks.
const maxReportingDepth = 32

// MemoryHierarchy is a map-backed reporting line: member -> manager.
type MemoryHierarchy struct {
	managers map[MemberID]MemberID
}

func NewMemoryHierarchy() *MemoryHierarchy {
	return &MemoryHierarchy{managers: make(map[MemberID]MemberID)}
}

// SetManager records member's direct manager.
func (h *MemoryHierarchy) SetManager(member, manager MemberID) {
	h.managers[member] = manager
}

func (h *MemoryHierarchy) IsDirectManagerOf(_ context.Context, manager, member MemberID) (bool, error) {
	return h.managers[member] == manager, nil
}

func (h *MemoryHierarchy) IsSubordinateOf(_ context.Context, manager, member MemberID) (bool, error) {
	current := member
	for depth := 0; depth < maxReportingDepth; depth++ {
		next, ok := h.managers[current]
		if !ok {
			return false, nil
		}
		if next == manager {
			return true, nil
		}
		current = next
	}
	return false, nil
}
