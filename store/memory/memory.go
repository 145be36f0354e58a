/*
memory.go - In-memory store (for testing/dev)

PURPOSE:
  One Store backing every persistence contract of the engine: event
  streams with snapshots, the entry and approval repositories, the
  decision store and the rejection log. State lives in maps so tests
  and the demo server run without SQLite.

TRANSACTIONS:
  WithTx takes the write lock for the whole unit, snapshots all state,
  and restores it when fn fails. The ctx fn receives marks the
  transaction; store methods called with it skip locking, which makes
  every write inside one commit. Calls within fn must stay on the
  calling goroutine.

FIDELITY:
  Same contract as store/sqlite: gapless versions, all-or-nothing
  appends, replayed aggregates, one live approval per member-period.

SEE ALSO:
  - store/sqlite: Production implementation
  - eventstore/memory.go: The bare event store this extends with read models
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

// Compile-time contract checks.
var (
	_ eventstore.Store           = (*Store)(nil)
	_ eventstore.SnapshotStore   = (*Store)(nil)
	_ worklog.Repository         = (*Store)(nil)
	_ worklog.Atomic             = (*Store)(nil)
	_ approval.MonthlyRepository = (*Store)(nil)
	_ approval.DecisionStore     = (*Store)(nil)
	_ approval.RejectionLog      = (*Store)(nil)
)

type monthKey struct {
	Member worklog.MemberID
	Start  string // yyyy-mm-dd period start
}

// Store holds every record family behind one lock.
type Store struct {
	mu sync.RWMutex

	streams   map[eventstore.AggregateID][]eventstore.StoredEvent
	snapshots map[eventstore.AggregateID]eventstore.Snapshot

	entryRows    map[worklog.EntryID]worklog.WorkLogEntry
	approvalRows map[approval.ApprovalID]approval.MonthlyApproval
	monthIndex   map[monthKey]approval.ApprovalID

	decisions     map[approval.DecisionID]approval.Decision
	activeByEntry map[worklog.EntryID]approval.DecisionID
	rejections    []approval.RejectionRecord

	snapshotEvery int
}

func NewStore() *Store {
	return &Store{
		streams:       make(map[eventstore.AggregateID][]eventstore.StoredEvent),
		snapshots:     make(map[eventstore.AggregateID]eventstore.Snapshot),
		entryRows:     make(map[worklog.EntryID]worklog.WorkLogEntry),
		approvalRows:  make(map[approval.ApprovalID]approval.MonthlyApproval),
		monthIndex:    make(map[monthKey]approval.ApprovalID),
		decisions:     make(map[approval.DecisionID]approval.Decision),
		activeByEntry: make(map[worklog.EntryID]approval.DecisionID),
		snapshotEvery: eventstore.DefaultSnapshotEvery,
	}
}

// WithSnapshotEvery overrides the snapshot cadence. Zero disables
// snapshotting.
func (s *Store) WithSnapshotEvery(every int) *Store {
	s.snapshotEvery = every
	return s
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// WithTx runs fn holding the write lock, restoring pre-state when fn
// fails. Nested calls join the ambient transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotState()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restoreState(snap)
		return err
	}
	return nil
}

// rlock takes the read lock unless a transaction already holds the
// write lock. Returns the matching unlock.
func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type storeState struct {
	streams       map[eventstore.AggregateID][]eventstore.StoredEvent
	snapshots     map[eventstore.AggregateID]eventstore.Snapshot
	entryRows     map[worklog.EntryID]worklog.WorkLogEntry
	approvalRows  map[approval.ApprovalID]approval.MonthlyApproval
	monthIndex    map[monthKey]approval.ApprovalID
	decisions     map[approval.DecisionID]approval.Decision
	activeByEntry map[worklog.EntryID]approval.DecisionID
	rejections    []approval.RejectionRecord
}

func (s *Store) snapshotState() storeState {
	streams := make(map[eventstore.AggregateID][]eventstore.StoredEvent, len(s.streams))
	for id, evs := range s.streams {
		streams[id] = append([]eventstore.StoredEvent{}, evs...)
	}
	snapshots := make(map[eventstore.AggregateID]eventstore.Snapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		snapshots[id] = snap
	}
	entryRows := make(map[worklog.EntryID]worklog.WorkLogEntry, len(s.entryRows))
	for id, row := range s.entryRows {
		entryRows[id] = row
	}
	approvalRows := make(map[approval.ApprovalID]approval.MonthlyApproval, len(s.approvalRows))
	for id, row := range s.approvalRows {
		row.EntryIDs = append([]worklog.EntryID{}, row.EntryIDs...)
		row.AbsenceIDs = append([]string{}, row.AbsenceIDs...)
		approvalRows[id] = row
	}
	monthIndex := make(map[monthKey]approval.ApprovalID, len(s.monthIndex))
	for k, id := range s.monthIndex {
		monthIndex[k] = id
	}
	decisions := make(map[approval.DecisionID]approval.Decision, len(s.decisions))
	for id, d := range s.decisions {
		decisions[id] = d
	}
	activeByEntry := make(map[worklog.EntryID]approval.DecisionID, len(s.activeByEntry))
	for id, d := range s.activeByEntry {
		activeByEntry[id] = d
	}
	return storeState{
		streams:       streams,
		snapshots:     snapshots,
		entryRows:     entryRows,
		approvalRows:  approvalRows,
		monthIndex:    monthIndex,
		decisions:     decisions,
		activeByEntry: activeByEntry,
		rejections:    append([]approval.RejectionRecord{}, s.rejections...),
	}
}

func (s *Store) restoreState(state storeState) {
	s.streams = state.streams
	s.snapshots = state.snapshots
	s.entryRows = state.entryRows
	s.approvalRows = state.approvalRows
	s.monthIndex = state.monthIndex
	s.decisions = state.decisions
	s.activeByEntry = state.activeByEntry
	s.rejections = state.rejections
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) Append(ctx context.Context, id eventstore.AggregateID, typ eventstore.AggregateType, events []eventstore.DomainEvent, expectedVersion int) ([]eventstore.StoredEvent, error) {
	if len(events) == 0 {
		return nil, eventstore.ErrEmptyAppend
	}
	defer s.lock(ctx)()
	return s.appendLocked(id, typ, events, expectedVersion)
}

func (s *Store) appendLocked(id eventstore.AggregateID, typ eventstore.AggregateType, events []eventstore.DomainEvent, expectedVersion int) ([]eventstore.StoredEvent, error) {
	stream := s.streams[id]
	current := 0
	if n := len(stream); n > 0 {
		current = stream[n-1].Version
	}
	if current != expectedVersion {
		return nil, &eventstore.OptimisticLockError{
			AggregateType: typ,
			AggregateID:   id,
			Expected:      expectedVersion,
			Actual:        current,
		}
	}

	stored := make([]eventstore.StoredEvent, 0, len(events))
	for i, ev := range events {
		stored = append(stored, eventstore.StoredEvent{
			DomainEvent:   ev,
			AggregateID:   id,
			AggregateType: typ,
			Version:       expectedVersion + 1 + i,
		})
	}
	s.streams[id] = append(stream, stored...)
	return stored, nil
}

func (s *Store) Load(ctx context.Context, id eventstore.AggregateID) ([]eventstore.StoredEvent, error) {
	defer s.rlock(ctx)()
	result := make([]eventstore.StoredEvent, len(s.streams[id]))
	copy(result, s.streams[id])
	return result, nil
}

func (s *Store) LoadFromVersion(ctx context.Context, id eventstore.AggregateID, after int) ([]eventstore.StoredEvent, error) {
	defer s.rlock(ctx)()
	var result []eventstore.StoredEvent
	for _, ev := range s.streams[id] {
		if ev.Version > after {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (s *Store) CurrentVersion(ctx context.Context, id eventstore.AggregateID) (int, error) {
	defer s.rlock(ctx)()
	stream := s.streams[id]
	if len(stream) == 0 {
		return 0, nil
	}
	return stream[len(stream)-1].Version, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap eventstore.Snapshot) error {
	defer s.lock(ctx)()
	s.saveSnapshotLocked(snap)
	return nil
}

func (s *Store) saveSnapshotLocked(snap eventstore.Snapshot) {
	existing, ok := s.snapshots[snap.AggregateID]
	if !ok || snap.Version >= existing.Version {
		s.snapshots[snap.AggregateID] = snap
	}
}

func (s *Store) LatestSnapshot(ctx context.Context, id eventstore.AggregateID) (*eventstore.Snapshot, error) {
	defer s.rlock(ctx)()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, nil
	}
	copied := snap
	return &copied, nil
}

// maybeSnapshotLocked mirrors eventstore.MaybeSnapshot without the
// interface round-trip, since the lock is already held.
func (s *Store) maybeSnapshotLocked(id eventstore.AggregateID, typ eventstore.AggregateType, version int, agg eventstore.SnapshotAggregate, now time.Time) error {
	if s.snapshotEvery <= 0 || version%s.snapshotEvery != 0 {
		return nil
	}
	state, err := agg.SnapshotState()
	if err != nil {
		return err
	}
	s.saveSnapshotLocked(eventstore.Snapshot{
		AggregateID:   id,
		AggregateType: typ,
		Version:       version,
		State:         state,
		TakenAt:       now,
	})
	return nil
}

// =============================================================================
// ENTRY REPOSITORY
// =============================================================================

func (s *Store) Save(ctx context.Context, entry *worklog.WorkLogEntry, events []eventstore.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return eventstore.ErrEmptyAppend
	}
	defer s.lock(ctx)()

	stored, err := s.appendLocked(eventstore.AggregateID(entry.ID), worklog.AggregateTypeEntry, events, expectedVersion)
	if err != nil {
		return err
	}
	entry.Version = stored[len(stored)-1].Version
	s.entryRows[entry.ID] = *entry
	return s.maybeSnapshotLocked(eventstore.AggregateID(entry.ID), worklog.AggregateTypeEntry, entry.Version, entry, time.Now().UTC())
}

func (s *Store) FindByID(ctx context.Context, id worklog.EntryID) (*worklog.WorkLogEntry, error) {
	defer s.rlock(ctx)()
	return s.replayEntryLocked(id)
}

// replayEntryLocked rebuilds the entry from its snapshot and event
// suffix, the same read path the SQLite store uses.
func (s *Store) replayEntryLocked(id worklog.EntryID) (*worklog.WorkLogEntry, error) {
	aggID := eventstore.AggregateID(id)
	stream := s.streams[aggID]
	snap, hasSnap := s.snapshots[aggID]
	if len(stream) == 0 && !hasSnap {
		return nil, fmt.Errorf("entry %s: %w", id, worklog.ErrEntryNotFound)
	}

	entry := &worklog.WorkLogEntry{}
	version := 0
	if hasSnap {
		if err := entry.RestoreSnapshot(snap.State); err != nil {
			return nil, err
		}
		version = snap.Version
	}
	for _, ev := range stream {
		if ev.Version <= version {
			continue
		}
		if err := entry.Apply(ev); err != nil {
			return nil, err
		}
		version = ev.Version
	}
	entry.Version = version
	return entry, nil
}

func (s *Store) FindByMemberProjectDate(ctx context.Context, member worklog.MemberID, project worklog.ProjectID, date time.Time) (*worklog.WorkLogEntry, error) {
	defer s.rlock(ctx)()
	for _, row := range s.entryRows {
		if row.MemberID == member && row.ProjectID == project && fiscal.SameDay(row.Date, date) && !row.Deleted() {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) FindByDateRange(ctx context.Context, member worklog.MemberID, from, to time.Time, filter []worklog.EntryStatus) ([]*worklog.WorkLogEntry, error) {
	defer s.rlock(ctx)()

	var result []*worklog.WorkLogEntry
	for _, row := range s.entryRows {
		if row.MemberID != member || row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		if !statusMatches(row.Status, filter) {
			continue
		}
		copied := row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func statusMatches(status worklog.EntryStatus, filter []worklog.EntryStatus) bool {
	if len(filter) == 0 {
		return status != worklog.StatusDeleted
	}
	for _, f := range filter {
		if status == f {
			return true
		}
	}
	return false
}

func (s *Store) TotalHoursForDate(ctx context.Context, member worklog.MemberID, date time.Time, exclude worklog.EntryID) (worklog.Hours, error) {
	defer s.rlock(ctx)()

	total := worklog.ZeroHours()
	for _, row := range s.entryRows {
		if row.MemberID != member || !fiscal.SameDay(row.Date, date) || row.Deleted() || row.ID == exclude {
			continue
		}
		total = total.Add(row.Hours)
	}
	return total, nil
}

// =============================================================================
// MONTHLY APPROVAL REPOSITORY
// =============================================================================

func (s *Store) SaveApproval(ctx context.Context, a *approval.MonthlyApproval, events []eventstore.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return eventstore.ErrEmptyAppend
	}
	defer s.lock(ctx)()

	// One live approval per (member, period start). A second creation
	// attempt means the caller raced a concurrent submission.
	key := monthKey{Member: a.MemberID, Start: fiscal.FormatDate(a.Period.Start)}
	if existing, ok := s.monthIndex[key]; ok && existing != a.ID {
		row := s.approvalRows[existing]
		return &eventstore.OptimisticLockError{
			AggregateType: approval.AggregateTypeMonthly,
			AggregateID:   eventstore.AggregateID(existing),
			Expected:      expectedVersion,
			Actual:        row.Version,
		}
	}

	stored, err := s.appendLocked(eventstore.AggregateID(a.ID), approval.AggregateTypeMonthly, events, expectedVersion)
	if err != nil {
		return err
	}
	a.Version = stored[len(stored)-1].Version

	row := *a
	row.EntryIDs = append([]worklog.EntryID{}, a.EntryIDs...)
	row.AbsenceIDs = append([]string{}, a.AbsenceIDs...)
	s.approvalRows[a.ID] = row
	s.monthIndex[key] = a.ID
	return s.maybeSnapshotLocked(eventstore.AggregateID(a.ID), approval.AggregateTypeMonthly, a.Version, a, time.Now().UTC())
}

func (s *Store) ApprovalByID(ctx context.Context, id approval.ApprovalID) (*approval.MonthlyApproval, error) {
	defer s.rlock(ctx)()
	return s.replayApprovalLocked(id)
}

func (s *Store) replayApprovalLocked(id approval.ApprovalID) (*approval.MonthlyApproval, error) {
	aggID := eventstore.AggregateID(id)
	stream := s.streams[aggID]
	snap, hasSnap := s.snapshots[aggID]
	if len(stream) == 0 && !hasSnap {
		return nil, fmt.Errorf("approval %s: %w", id, approval.ErrApprovalNotFound)
	}

	a := &approval.MonthlyApproval{}
	version := 0
	if hasSnap {
		if err := a.RestoreSnapshot(snap.State); err != nil {
			return nil, err
		}
		version = snap.Version
	}
	for _, ev := range stream {
		if ev.Version <= version {
			continue
		}
		if err := a.Apply(ev); err != nil {
			return nil, err
		}
		version = ev.Version
	}
	a.Version = version
	return a, nil
}

func (s *Store) ApprovalForPeriod(ctx context.Context, member worklog.MemberID, periodStart time.Time) (*approval.MonthlyApproval, error) {
	defer s.rlock(ctx)()

	id, ok := s.monthIndex[monthKey{Member: member, Start: fiscal.FormatDate(periodStart)}]
	if !ok {
		return nil, nil
	}
	return s.replayApprovalLocked(id)
}

func (s *Store) ApprovalCovering(ctx context.Context, member worklog.MemberID, date time.Time) (*approval.MonthlyApproval, error) {
	defer s.rlock(ctx)()

	for id, row := range s.approvalRows {
		if row.MemberID == member && row.Period.Contains(date) {
			return s.replayApprovalLocked(id)
		}
	}
	return nil, nil
}

// =============================================================================
// DECISION STORE
// =============================================================================

func (s *Store) InsertDecision(ctx context.Context, d approval.Decision) error {
	defer s.lock(ctx)()

	if prevID, ok := s.activeByEntry[d.EntryID]; ok {
		prev := s.decisions[prevID]
		prev.Superseded = true
		prev.UpdatedAt = d.CreatedAt
		s.decisions[prevID] = prev
	}
	s.decisions[d.ID] = d
	s.activeByEntry[d.EntryID] = d.ID
	return nil
}

func (s *Store) DecisionByID(ctx context.Context, id approval.DecisionID) (*approval.Decision, error) {
	defer s.rlock(ctx)()

	d, ok := s.decisions[id]
	if !ok {
		return nil, nil
	}
	copied := d
	return &copied, nil
}

func (s *Store) ActiveDecisionForEntry(ctx context.Context, entry worklog.EntryID) (*approval.Decision, error) {
	defer s.rlock(ctx)()

	id, ok := s.activeByEntry[entry]
	if !ok {
		return nil, nil
	}
	d := s.decisions[id]
	if !d.Active() {
		return nil, nil
	}
	copied := d
	return &copied, nil
}

func (s *Store) UpdateDecisionStatus(ctx context.Context, id approval.DecisionID, status approval.DecisionStatus, at time.Time) error {
	defer s.lock(ctx)()

	d, ok := s.decisions[id]
	if !ok {
		return fmt.Errorf("decision %s: %w", id, approval.ErrDecisionNotFound)
	}
	d.Status = status
	d.UpdatedAt = at
	s.decisions[id] = d
	return nil
}

// =============================================================================
// REJECTION LOG
// =============================================================================

func (s *Store) AppendRejection(ctx context.Context, rec approval.RejectionRecord) error {
	defer s.lock(ctx)()
	rec.EntryIDs = append([]worklog.EntryID{}, rec.EntryIDs...)
	s.rejections = append(s.rejections, rec)
	return nil
}

func (s *Store) HasActiveRejection(ctx context.Context, member worklog.MemberID, date time.Time) (bool, error) {
	defer s.rlock(ctx)()

	for _, rec := range s.rejections {
		if rec.MemberID != member || !fiscal.SameDay(rec.Date, date) {
			continue
		}
		d, ok := s.decisions[rec.DecisionID]
		if ok && d.Active() && d.Status == approval.DecisionRejected {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RejectionsForDate(ctx context.Context, member worklog.MemberID, date time.Time) ([]approval.RejectionRecord, error) {
	defer s.rlock(ctx)()

	var result []approval.RejectionRecord
	for i := len(s.rejections) - 1; i >= 0; i-- {
		rec := s.rejections[i]
		if rec.MemberID == member && fiscal.SameDay(rec.Date, date) {
			rec.EntryIDs = append([]worklog.EntryID{}, rec.EntryIDs...)
			result = append(result, rec)
		}
	}
	return result, nil
}
