/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  eventstore.Store:           Append-only event streams
  eventstore.SnapshotStore:   Aggregate snapshots
  worklog.Repository:         Entry events + read model
  worklog.Atomic:             Multi-aggregate transactions
  worklog.Hierarchy:          Reporting-line walks over the member directory
  approval.MonthlyRepository: Monthly approval events + period index
  approval.DecisionStore:     Supervisor decisions
  approval.RejectionLog:      Daily rejection audit rows
  approval.AbsenceSource:     Absence reads for monthly coverage
  fiscal.OrganizationLookup:  Organization tree nodes
  fiscal.PatternSource:       Calendar patterns and tenant defaults

APPEND-ONLY ENFORCEMENT:
  The events table takes no UPDATE or DELETE statements. State changes
  flow through new events; the read-model tables are projections kept in
  step inside the same transaction as each append.

KEY TABLES:
  events:                  Immutable per-aggregate streams, gapless versions
  snapshots:               One frozen state per aggregate (newest wins)
  worklog_entries:         Entry read model for scans and totals
  monthly_approvals:       Approval read model + (member, period) live index
  daily_decisions:         Supervisor decisions, at most one active per entry
  daily_rejection_log:     Override signal rows behind daily rejections
  members:                 Directory rows with manager links
  organizations:           Tenant organization tree
  fiscal_year_patterns:    Fiscal year anchors
  monthly_period_patterns: Accounting month anchors
  tenant_defaults:         Per-tenant pattern fallbacks
  absences:                Absence records covered by monthly submissions

INDEXES:
  Critical indexes for correctness and performance:
  - events primary key (aggregate_id, version): optimistic lock backstop
  - idx_unique_entry_slot: one live entry per (member, project, date)
  - monthly_approvals UNIQUE(member_id, period_start): one live approval
    per member-month
  - idx_entries_member_date: range scans and daily totals (hot path)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/worklog.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  entries := worklog.NewEntryService(store, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - eventstore/store.go: Stream and snapshot contracts
  - worklog/repository.go: Entry repository contract
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

// Compile-time interface checks.
var (
	_ eventstore.Store           = (*Store)(nil)
	_ eventstore.SnapshotStore   = (*Store)(nil)
	_ worklog.Repository         = (*Store)(nil)
	_ worklog.Atomic             = (*Store)(nil)
	_ worklog.Hierarchy          = (*Store)(nil)
	_ approval.MonthlyRepository = (*Store)(nil)
	_ approval.DecisionStore     = (*Store)(nil)
	_ approval.RejectionLog      = (*Store)(nil)
	_ approval.AbsenceSource     = (*Store)(nil)
	_ fiscal.OrganizationLookup  = (*Store)(nil)
	_ fiscal.PatternSource       = (*Store)(nil)
)

// timeLayout is RFC3339 with fixed nanosecond width so timestamp strings
// order lexicographically. parseTime reads it back as plain RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// maxReportingDepth bounds manager-chain walks, mirroring the in-memory
// hierarchy.
const maxReportingDepth = 32

// Store implements all storage interfaces using SQLite.
type Store struct {
	db            *sql.DB
	mu            sync.RWMutex
	snapshotEvery int
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, snapshotEvery: eventstore.DefaultSnapshotEvery}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// WithSnapshotEvery tunes the snapshot cadence. Zero disables snapshots.
func (s *Store) WithSnapshotEvery(n int) *Store {
	s.snapshotEvery = n
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Events (append-only streams, one row per aggregate version)
	CREATE TABLE IF NOT EXISTS events (
		aggregate_id TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		version INTEGER NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (aggregate_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_aggregate_type
		ON events(aggregate_type);

	-- Snapshots (one frozen state per aggregate, newest wins)
	CREATE TABLE IF NOT EXISTS snapshots (
		aggregate_id TEXT PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		version INTEGER NOT NULL,
		state TEXT NOT NULL,
		taken_at TEXT NOT NULL
	);

	-- Work log entries (read model projected from the streams)
	CREATE TABLE IF NOT EXISTS worklog_entries (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		comment TEXT,
		status TEXT NOT NULL,
		entered_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_member_date
		ON worklog_entries(member_id, entry_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_entry_slot
		ON worklog_entries(member_id, project_id, entry_date)
		WHERE status != 'DELETED';

	-- Monthly approvals (read model + live period index)
	CREATE TABLE IF NOT EXISTS monthly_approvals (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		entry_ids TEXT NOT NULL,
		absence_ids TEXT NOT NULL,
		submitted_by TEXT,
		submitted_at TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		rejection_reason TEXT,
		version INTEGER NOT NULL,
		UNIQUE (member_id, period_start)
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_member_range
		ON monthly_approvals(member_id, period_start, period_end);

	-- Daily decisions (at most one active row per entry)
	CREATE TABLE IF NOT EXISTS daily_decisions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		supervisor_id TEXT NOT NULL,
		status TEXT NOT NULL,
		comment TEXT,
		superseded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_entry
		ON daily_decisions(entry_id);

	-- Daily rejection log (append-only override audit)
	CREATE TABLE IF NOT EXISTS daily_rejection_log (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		rejection_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		entry_ids TEXT NOT NULL,
		decision_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rejections_member_date
		ON daily_rejection_log(member_id, rejection_date);

	-- Member directory (manager_id NULL at the top of the line)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		manager_id TEXT,
		organization_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_members_manager
		ON members(manager_id);

	-- Organization tree
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_id TEXT,
		fiscal_year_pattern_id TEXT,
		monthly_period_pattern_id TEXT
	);

	-- Calendar patterns and tenant fallbacks
	CREATE TABLE IF NOT EXISTS fiscal_year_patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_month INTEGER NOT NULL,
		start_day INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monthly_period_patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_day INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tenant_defaults (
		tenant_id TEXT PRIMARY KEY,
		fiscal_year_pattern_id TEXT,
		monthly_period_pattern_id TEXT
	);

	-- Absences (read-only in this engine, covered by monthly submissions)
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		absence_date TEXT NOT NULL,
		kind TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_member_date
		ON absences(member_id, absence_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (worklog.Atomic)
// =============================================================================

// txKey marks a context as carrying an open transaction. Store methods
// called with such a context run against it instead of the pool and skip
// the mutex, which WithTx already holds.
type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// dbtx is the handle subset shared by *sql.DB and *sql.Tx, so query and
// write helpers serve both paths.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) reader(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// withWrite runs fn against the ambient transaction when ctx carries one,
// otherwise inside a fresh transaction committed on success.
func (s *Store) withWrite(ctx context.Context, fn func(h dbtx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(tx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// WithTx executes fn as one unit of work. Every store call made with the
// ctx it receives shares a single commit or rollback. Nested calls join
// the ambient transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// EVENT STORE (eventstore.Store)
// =============================================================================

// Append persists events at expectedVersion+1, +2, ... or fails with an
// OptimisticLockError without writing anything.
func (s *Store) Append(ctx context.Context, id eventstore.AggregateID, typ eventstore.AggregateType, events []eventstore.DomainEvent, expectedVersion int) ([]eventstore.StoredEvent, error) {
	var stored []eventstore.StoredEvent
	err := s.withWrite(ctx, func(h dbtx) error {
		var err error
		stored, err = s.appendEvents(ctx, h, id, typ, events, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) appendEvents(ctx context.Context, h dbtx, id eventstore.AggregateID, typ eventstore.AggregateType, events []eventstore.DomainEvent, expectedVersion int) ([]eventstore.StoredEvent, error) {
	if len(events) == 0 {
		return nil, eventstore.ErrEmptyAppend
	}

	current, err := currentVersion(ctx, h, id)
	if err != nil {
		return nil, err
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
		se := eventstore.StoredEvent{
			DomainEvent:   ev,
			AggregateID:   id,
			AggregateType: typ,
			Version:       expectedVersion + 1 + i,
		}
		_, err := h.ExecContext(ctx, `
			INSERT INTO events
				(aggregate_id, aggregate_type, version, event_id, event_type, occurred_at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(id), string(typ), se.Version, ev.EventID, string(ev.Type),
			ev.OccurredAt.UTC().Format(timeLayout), string(ev.Payload))
		if err != nil {
			// A concurrent writer won the version; the primary key caught it.
			if isUniqueConstraintError(err) {
				return nil, &eventstore.OptimisticLockError{
					AggregateType: typ,
					AggregateID:   id,
					Expected:      expectedVersion,
					Actual:        se.Version,
				}
			}
			return nil, fmt.Errorf("failed to append event: %w", err)
		}
		stored = append(stored, se)
	}
	return stored, nil
}

// Load returns the full stream ascending by version. Unknown aggregates
// yield an empty stream.
func (s *Store) Load(ctx context.Context, id eventstore.AggregateID) ([]eventstore.StoredEvent, error) {
	defer s.rlock(ctx)()
	return s.loadEvents(ctx, s.reader(ctx), id, 0)
}

// LoadFromVersion returns the suffix of the stream with version > after.
func (s *Store) LoadFromVersion(ctx context.Context, id eventstore.AggregateID, after int) ([]eventstore.StoredEvent, error) {
	defer s.rlock(ctx)()
	return s.loadEvents(ctx, s.reader(ctx), id, after)
}

// CurrentVersion returns the highest version in the stream, 0 when the
// stream does not exist.
func (s *Store) CurrentVersion(ctx context.Context, id eventstore.AggregateID) (int, error) {
	defer s.rlock(ctx)()
	return currentVersion(ctx, s.reader(ctx), id)
}

func currentVersion(ctx context.Context, h dbtx, id eventstore.AggregateID) (int, error) {
	var version int
	err := h.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`,
		string(id)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream version: %w", err)
	}
	return version, nil
}

func (s *Store) loadEvents(ctx context.Context, h dbtx, id eventstore.AggregateID, after int) ([]eventstore.StoredEvent, error) {
	rows, err := h.QueryContext(ctx, `
		SELECT aggregate_id, aggregate_type, version, event_id, event_type, occurred_at, payload
		FROM events
		WHERE aggregate_id = ? AND version > ?
		ORDER BY version`,
		string(id), after)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var stream []eventstore.StoredEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		stream = append(stream, ev)
	}
	return stream, rows.Err()
}

func scanEvent(rows *sql.Rows) (eventstore.StoredEvent, error) {
	var (
		ev         eventstore.StoredEvent
		aggID      string
		aggType    string
		eventType  string
		occurredAt string
		payload    string
	)
	err := rows.Scan(&aggID, &aggType, &ev.Version, &ev.EventID, &eventType, &occurredAt, &payload)
	if err != nil {
		return ev, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.AggregateID = eventstore.AggregateID(aggID)
	ev.AggregateType = eventstore.AggregateType(aggType)
	ev.Type = eventstore.EventType(eventType)
	ev.Payload = json.RawMessage(payload)
	ev.OccurredAt, err = parseTime(occurredAt)
	if err != nil {
		return ev, fmt.Errorf("failed to parse event time: %w", err)
	}
	return ev, nil
}

// =============================================================================
// SNAPSHOT STORE (eventstore.SnapshotStore)
// =============================================================================

// SaveSnapshot stores the snapshot unless a newer one already exists.
func (s *Store) SaveSnapshot(ctx context.Context, snap eventstore.Snapshot) error {
	return s.withWrite(ctx, func(h dbtx) error {
		return saveSnapshot(ctx, h, snap)
	})
}

func saveSnapshot(ctx context.Context, h dbtx, snap eventstore.Snapshot) error {
	_, err := h.ExecContext(ctx, `
		INSERT INTO snapshots (aggregate_id, aggregate_type, version, state, taken_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(aggregate_id) DO UPDATE SET
			aggregate_type = excluded.aggregate_type,
			version = excluded.version,
			state = excluded.state,
			taken_at = excluded.taken_at
		WHERE excluded.version >= snapshots.version`,
		string(snap.AggregateID), string(snap.AggregateType), snap.Version,
		string(snap.State), snap.TakenAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the aggregate's snapshot, or nil when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, id eventstore.AggregateID) (*eventstore.Snapshot, error) {
	defer s.rlock(ctx)()
	return latestSnapshot(ctx, s.reader(ctx), id)
}

func latestSnapshot(ctx context.Context, h dbtx, id eventstore.AggregateID) (*eventstore.Snapshot, error) {
	var (
		snap    eventstore.Snapshot
		aggType string
		state   string
		takenAt string
	)
	err := h.QueryRowContext(ctx, `
		SELECT aggregate_type, version, state, taken_at
		FROM snapshots
		WHERE aggregate_id = ?`,
		string(id)).Scan(&aggType, &snap.Version, &state, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap.AggregateID = id
	snap.AggregateType = eventstore.AggregateType(aggType)
	snap.State = json.RawMessage(state)
	snap.TakenAt, err = parseTime(takenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot time: %w", err)
	}
	return &snap, nil
}

// maybeSnapshot freezes the aggregate when its version crosses the
// cadence, inside the same transaction as the append that got it there.
func (s *Store) maybeSnapshot(ctx context.Context, h dbtx, id eventstore.AggregateID, typ eventstore.AggregateType, version int, agg eventstore.SnapshotAggregate, now time.Time) error {
	if s.snapshotEvery <= 0 || version == 0 || version%s.snapshotEvery != 0 {
		return nil
	}
	state, err := agg.SnapshotState()
	if err != nil {
		return fmt.Errorf("failed to freeze snapshot state: %w", err)
	}
	return saveSnapshot(ctx, h, eventstore.Snapshot{
		AggregateID:   id,
		AggregateType: typ,
		Version:       version,
		State:         state,
		TakenAt:       now,
	})
}

// =============================================================================
// WORK LOG REPOSITORY (worklog.Repository)
// =============================================================================

const entryColumns = `id, member_id, project_id, entry_date, hours, comment, status, entered_by, created_at, updated_at, version`

// Save appends the entry's events and projects the read-model row in the
// same transaction. On success the entry's Version is advanced.
func (s *Store) Save(ctx context.Context, entry *worklog.WorkLogEntry, events []eventstore.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return eventstore.ErrEmptyAppend
	}
	aggID := eventstore.AggregateID(entry.ID)
	return s.withWrite(ctx, func(h dbtx) error {
		stored, err := s.appendEvents(ctx, h, aggID, worklog.AggregateTypeEntry, events, expectedVersion)
		if err != nil {
			return err
		}
		entry.Version = stored[len(stored)-1].Version
		if err := upsertEntry(ctx, h, entry); err != nil {
			return err
		}
		return s.maybeSnapshot(ctx, h, aggID, worklog.AggregateTypeEntry, entry.Version, entry, time.Now().UTC())
	})
}

func upsertEntry(ctx context.Context, h dbtx, e *worklog.WorkLogEntry) error {
	_, err := h.ExecContext(ctx, `
		INSERT INTO worklog_entries
			(id, member_id, project_id, entry_date, hours, comment, status, entered_by, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hours = excluded.hours,
			comment = excluded.comment,
			status = excluded.status,
			updated_at = excluded.updated_at,
			version = excluded.version`,
		string(e.ID), string(e.MemberID), string(e.ProjectID), fiscal.FormatDate(e.Date),
		e.Hours.String(), nullString(e.Comment), string(e.Status), string(e.EnteredBy),
		e.CreatedAt.UTC().Format(timeLayout), e.UpdatedAt.UTC().Format(timeLayout), e.Version)
	if err != nil {
		// Two writers raced for the same free slot; the service-level
		// check cannot see uncommitted neighbors.
		if isSlotUniquenessError(err) {
			return fmt.Errorf("slot %s/%s/%s: %w",
				e.MemberID, e.ProjectID, fiscal.FormatDate(e.Date), worklog.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save worklog entry: %w", err)
	}
	return nil
}

// FindByID replays the entry from its snapshot and event suffix.
func (s *Store) FindByID(ctx context.Context, id worklog.EntryID) (*worklog.WorkLogEntry, error) {
	defer s.rlock(ctx)()
	h := s.reader(ctx)
	aggID := eventstore.AggregateID(id)

	snap, err := latestSnapshot(ctx, h, aggID)
	if err != nil {
		return nil, err
	}

	entry := &worklog.WorkLogEntry{}
	version := 0
	if snap != nil {
		if err := entry.RestoreSnapshot(snap.State); err != nil {
			return nil, err
		}
		version = snap.Version
	}

	stream, err := s.loadEvents(ctx, h, aggID, version)
	if err != nil {
		return nil, err
	}
	if version == 0 && len(stream) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, worklog.ErrEntryNotFound)
	}
	for _, ev := range stream {
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
	row := s.reader(ctx).QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM worklog_entries
		WHERE member_id = ? AND project_id = ? AND entry_date = ? AND status != ?`,
		string(member), string(project), fiscal.FormatDate(date), string(worklog.StatusDeleted))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by slot: %w", err)
	}
	return entry, nil
}

func (s *Store) FindByDateRange(ctx context.Context, member worklog.MemberID, from, to time.Time, filter []worklog.EntryStatus) ([]*worklog.WorkLogEntry, error) {
	defer s.rlock(ctx)()

	query := `
		SELECT ` + entryColumns + `
		FROM worklog_entries
		WHERE member_id = ? AND entry_date >= ? AND entry_date <= ?`
	args := []any{string(member), fiscal.FormatDate(from), fiscal.FormatDate(to)}

	if len(filter) == 0 {
		query += ` AND status != ?`
		args = append(args, string(worklog.StatusDeleted))
	} else {
		placeholders := make([]string, len(filter))
		for i, st := range filter {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY entry_date, created_at, id`

	rows, err := s.reader(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*worklog.WorkLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// TotalHoursForDate sums in Go rather than SQL so the quarter-hour
// decimal arithmetic stays exact.
func (s *Store) TotalHoursForDate(ctx context.Context, member worklog.MemberID, date time.Time, exclude worklog.EntryID) (worklog.Hours, error) {
	defer s.rlock(ctx)()
	rows, err := s.reader(ctx).QueryContext(ctx, `
		SELECT hours
		FROM worklog_entries
		WHERE member_id = ? AND entry_date = ? AND status != ? AND id != ?`,
		string(member), fiscal.FormatDate(date), string(worklog.StatusDeleted), string(exclude))
	if err != nil {
		return worklog.ZeroHours(), fmt.Errorf("failed to total hours: %w", err)
	}
	defer rows.Close()

	total := worklog.ZeroHours()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return worklog.ZeroHours(), fmt.Errorf("failed to scan hours: %w", err)
		}
		h, err := parseHours(raw)
		if err != nil {
			return worklog.ZeroHours(), err
		}
		total = total.Add(h)
	}
	return total, rows.Err()
}

func scanEntry(sc rowScanner) (*worklog.WorkLogEntry, error) {
	var (
		e         worklog.WorkLogEntry
		id        string
		member    string
		project   string
		date      string
		hours     string
		comment   sql.NullString
		status    string
		enteredBy string
		createdAt string
		updatedAt string
	)
	err := sc.Scan(&id, &member, &project, &date, &hours, &comment, &status,
		&enteredBy, &createdAt, &updatedAt, &e.Version)
	if err != nil {
		return nil, err
	}

	e.ID = worklog.EntryID(id)
	e.MemberID = worklog.MemberID(member)
	e.ProjectID = worklog.ProjectID(project)
	e.Comment = comment.String
	e.Status = worklog.EntryStatus(status)
	e.EnteredBy = worklog.MemberID(enteredBy)

	if e.Date, err = fiscal.ParseDate(date); err != nil {
		return nil, fmt.Errorf("failed to parse entry date: %w", err)
	}
	if e.Hours, err = parseHours(hours); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse entry time: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse entry time: %w", err)
	}
	return &e, nil
}

// =============================================================================
// MONTHLY APPROVALS (approval.MonthlyRepository)
// =============================================================================

// SaveApproval appends the approval's events and projects the read-model
// row in the same transaction. A second live approval for the same
// (member, period start) fails with a conflict.
func (s *Store) SaveApproval(ctx context.Context, a *approval.MonthlyApproval, events []eventstore.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return eventstore.ErrEmptyAppend
	}
	aggID := eventstore.AggregateID(a.ID)
	return s.withWrite(ctx, func(h dbtx) error {
		var (
			existingID      string
			existingVersion int
		)
		err := h.QueryRowContext(ctx, `
			SELECT id, version FROM monthly_approvals
			WHERE member_id = ? AND period_start = ?`,
			string(a.MemberID), fiscal.FormatDate(a.Period.Start)).Scan(&existingID, &existingVersion)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check approval period: %w", err)
		}
		// The caller acted on a stale "no approval exists yet" view.
		if err == nil && existingID != string(a.ID) {
			return &eventstore.OptimisticLockError{
				AggregateType: approval.AggregateTypeMonthly,
				AggregateID:   eventstore.AggregateID(existingID),
				Expected:      expectedVersion,
				Actual:        existingVersion,
			}
		}

		stored, err := s.appendEvents(ctx, h, aggID, approval.AggregateTypeMonthly, events, expectedVersion)
		if err != nil {
			return err
		}
		a.Version = stored[len(stored)-1].Version
		if err := upsertApproval(ctx, h, a); err != nil {
			return err
		}
		return s.maybeSnapshot(ctx, h, aggID, approval.AggregateTypeMonthly, a.Version, a, time.Now().UTC())
	})
}

func upsertApproval(ctx context.Context, h dbtx, a *approval.MonthlyApproval) error {
	entryIDs, err := json.Marshal(a.EntryIDs)
	if err != nil {
		return fmt.Errorf("failed to encode entry ids: %w", err)
	}
	absenceIDs, err := json.Marshal(a.AbsenceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode absence ids: %w", err)
	}

	_, err = h.ExecContext(ctx, `
		INSERT INTO monthly_approvals
			(id, member_id, period_start, period_end, status, entry_ids, absence_ids,
			 submitted_by, submitted_at, reviewed_by, reviewed_at, rejection_reason, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			entry_ids = excluded.entry_ids,
			absence_ids = excluded.absence_ids,
			submitted_by = excluded.submitted_by,
			submitted_at = excluded.submitted_at,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at,
			rejection_reason = excluded.rejection_reason,
			version = excluded.version`,
		string(a.ID), string(a.MemberID),
		fiscal.FormatDate(a.Period.Start), fiscal.FormatDate(a.Period.End),
		string(a.Status), string(entryIDs), string(absenceIDs),
		nullString(string(a.SubmittedBy)), nullTime(a.SubmittedAt),
		nullString(string(a.ReviewedBy)), nullTime(a.ReviewedAt),
		nullString(a.RejectionReason), a.Version)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &eventstore.OptimisticLockError{
				AggregateType: approval.AggregateTypeMonthly,
				AggregateID:   eventstore.AggregateID(a.ID),
				Expected:      a.Version - 1,
				Actual:        a.Version,
			}
		}
		return fmt.Errorf("failed to save monthly approval: %w", err)
	}
	return nil
}

// ApprovalByID replays the approval from its snapshot and event suffix.
func (s *Store) ApprovalByID(ctx context.Context, id approval.ApprovalID) (*approval.MonthlyApproval, error) {
	defer s.rlock(ctx)()
	return s.replayApproval(ctx, s.reader(ctx), id)
}

func (s *Store) replayApproval(ctx context.Context, h dbtx, id approval.ApprovalID) (*approval.MonthlyApproval, error) {
	aggID := eventstore.AggregateID(id)

	snap, err := latestSnapshot(ctx, h, aggID)
	if err != nil {
		return nil, err
	}

	a := &approval.MonthlyApproval{}
	version := 0
	if snap != nil {
		if err := a.RestoreSnapshot(snap.State); err != nil {
			return nil, err
		}
		version = snap.Version
	}

	stream, err := s.loadEvents(ctx, h, aggID, version)
	if err != nil {
		return nil, err
	}
	if version == 0 && len(stream) == 0 {
		return nil, fmt.Errorf("approval %s: %w", id, approval.ErrApprovalNotFound)
	}
	for _, ev := range stream {
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
	h := s.reader(ctx)

	var id string
	err := h.QueryRowContext(ctx, `
		SELECT id FROM monthly_approvals
		WHERE member_id = ? AND period_start = ?`,
		string(member), fiscal.FormatDate(periodStart)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find approval for period: %w", err)
	}
	return s.replayApproval(ctx, h, approval.ApprovalID(id))
}

func (s *Store) ApprovalCovering(ctx context.Context, member worklog.MemberID, date time.Time) (*approval.MonthlyApproval, error) {
	defer s.rlock(ctx)()
	h := s.reader(ctx)
	day := fiscal.FormatDate(date)

	var id string
	err := h.QueryRowContext(ctx, `
		SELECT id FROM monthly_approvals
		WHERE member_id = ? AND period_start <= ? AND period_end >= ?`,
		string(member), day, day).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find covering approval: %w", err)
	}
	return s.replayApproval(ctx, h, approval.ApprovalID(id))
}

// =============================================================================
// DAILY DECISIONS (approval.DecisionStore)
// =============================================================================

const decisionColumns = `id, entry_id, member_id, supervisor_id, status, comment, superseded, created_at, updated_at`

// InsertDecision stores the decision and supersedes the entry's previous
// active one in the same transaction.
func (s *Store) InsertDecision(ctx context.Context, d approval.Decision) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			UPDATE daily_decisions
			SET superseded = 1, updated_at = ?
			WHERE entry_id = ? AND superseded = 0 AND status != ?`,
			d.CreatedAt.UTC().Format(timeLayout), string(d.EntryID), string(approval.DecisionRecalled))
		if err != nil {
			return fmt.Errorf("failed to supersede decision: %w", err)
		}

		_, err = h.ExecContext(ctx, `
			INSERT INTO daily_decisions
				(id, entry_id, member_id, supervisor_id, status, comment, superseded, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(d.ID), string(d.EntryID), string(d.MemberID), string(d.SupervisorID),
			string(d.Status), nullString(d.Comment), d.Superseded,
			d.CreatedAt.UTC().Format(timeLayout), d.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert decision: %w", err)
		}
		return nil
	})
}

func (s *Store) DecisionByID(ctx context.Context, id approval.DecisionID) (*approval.Decision, error) {
	defer s.rlock(ctx)()
	row := s.reader(ctx).QueryRowContext(ctx, `
		SELECT `+decisionColumns+` FROM daily_decisions WHERE id = ?`,
		string(id))

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load decision: %w", err)
	}
	return d, nil
}

func (s *Store) ActiveDecisionForEntry(ctx context.Context, entry worklog.EntryID) (*approval.Decision, error) {
	defer s.rlock(ctx)()
	row := s.reader(ctx).QueryRowContext(ctx, `
		SELECT `+decisionColumns+`
		FROM daily_decisions
		WHERE entry_id = ? AND superseded = 0 AND status != ?
		ORDER BY created_at DESC
		LIMIT 1`,
		string(entry), string(approval.DecisionRecalled))

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active decision: %w", err)
	}
	return d, nil
}

func (s *Store) UpdateDecisionStatus(ctx context.Context, id approval.DecisionID, status approval.DecisionStatus, at time.Time) error {
	return s.withWrite(ctx, func(h dbtx) error {
		res, err := h.ExecContext(ctx, `
			UPDATE daily_decisions SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), at.UTC().Format(timeLayout), string(id))
		if err != nil {
			return fmt.Errorf("failed to update decision: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update decision: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("decision %s: %w", id, approval.ErrDecisionNotFound)
		}
		return nil
	})
}

func scanDecision(sc rowScanner) (*approval.Decision, error) {
	var (
		d          approval.Decision
		id         string
		entry      string
		member     string
		supervisor string
		status     string
		comment    sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := sc.Scan(&id, &entry, &member, &supervisor, &status, &comment,
		&d.Superseded, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.ID = approval.DecisionID(id)
	d.EntryID = worklog.EntryID(entry)
	d.MemberID = worklog.MemberID(member)
	d.SupervisorID = worklog.MemberID(supervisor)
	d.Status = approval.DecisionStatus(status)
	d.Comment = comment.String

	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse decision time: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse decision time: %w", err)
	}
	return &d, nil
}

// =============================================================================
// REJECTION LOG (approval.RejectionLog)
// =============================================================================

func (s *Store) AppendRejection(ctx context.Context, rec approval.RejectionRecord) error {
	entryIDs, err := json.Marshal(rec.EntryIDs)
	if err != nil {
		return fmt.Errorf("failed to encode entry ids: %w", err)
	}
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO daily_rejection_log
				(id, member_id, rejection_date, reason, entry_ids, decision_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.MemberID), fiscal.FormatDate(rec.Date), rec.Reason,
			string(entryIDs), string(rec.DecisionID), rec.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to append rejection: %w", err)
		}
		return nil
	})
}

// HasActiveRejection reports whether any rejection on the member-date
// still points at an active REJECTED decision.
func (s *Store) HasActiveRejection(ctx context.Context, member worklog.MemberID, date time.Time) (bool, error) {
	defer s.rlock(ctx)()
	var count int
	err := s.reader(ctx).QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM daily_rejection_log r
		JOIN daily_decisions d ON d.id = r.decision_id
		WHERE r.member_id = ? AND r.rejection_date = ?
			AND d.superseded = 0 AND d.status = ?`,
		string(member), fiscal.FormatDate(date), string(approval.DecisionRejected)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check rejection override: %w", err)
	}
	return count > 0, nil
}

func (s *Store) RejectionsForDate(ctx context.Context, member worklog.MemberID, date time.Time) ([]approval.RejectionRecord, error) {
	defer s.rlock(ctx)()
	rows, err := s.reader(ctx).QueryContext(ctx, `
		SELECT id, member_id, rejection_date, reason, entry_ids, decision_id, created_at
		FROM daily_rejection_log
		WHERE member_id = ? AND rejection_date = ?
		ORDER BY created_at DESC, id DESC`,
		string(member), fiscal.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	var records []approval.RejectionRecord
	for rows.Next() {
		rec, err := scanRejection(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRejection(rows *sql.Rows) (approval.RejectionRecord, error) {
	var (
		rec        approval.RejectionRecord
		member     string
		date       string
		entryIDs   string
		decisionID string
		createdAt  string
	)
	err := rows.Scan(&rec.ID, &member, &date, &rec.Reason, &entryIDs, &decisionID, &createdAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan rejection: %w", err)
	}

	rec.MemberID = worklog.MemberID(member)
	rec.DecisionID = approval.DecisionID(decisionID)
	if err := json.Unmarshal([]byte(entryIDs), &rec.EntryIDs); err != nil {
		return rec, fmt.Errorf("failed to decode entry ids: %w", err)
	}
	if rec.Date, err = fiscal.ParseDate(date); err != nil {
		return rec, fmt.Errorf("failed to parse rejection date: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, fmt.Errorf("failed to parse rejection time: %w", err)
	}
	return rec, nil
}

// =============================================================================
// MEMBER DIRECTORY (worklog.Hierarchy)
// =============================================================================

// MemberRecord is a directory row. An empty ManagerID marks the top of a
// reporting line.
type MemberRecord struct {
	ID             worklog.MemberID
	Name           string
	ManagerID      worklog.MemberID
	OrganizationID fiscal.OrganizationID
}

// SaveMember upserts a directory row.
func (s *Store) SaveMember(ctx context.Context, m MemberRecord) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO members (id, name, manager_id, organization_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				manager_id = excluded.manager_id,
				organization_id = excluded.organization_id`,
			string(m.ID), m.Name, nullString(string(m.ManagerID)), nullString(string(m.OrganizationID)))
		if err != nil {
			return fmt.Errorf("failed to save member: %w", err)
		}
		return nil
	})
}

// FindMember returns a directory row, nil when the member is unknown.
func (s *Store) FindMember(ctx context.Context, id worklog.MemberID) (*MemberRecord, error) {
	defer s.rlock(ctx)()
	var name string
	var mgr, org sql.NullString
	err := s.reader(ctx).QueryRowContext(ctx,
		`SELECT name, manager_id, organization_id FROM members WHERE id = ?`,
		string(id)).Scan(&name, &mgr, &org)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return &MemberRecord{
		ID:             id,
		Name:           name,
		ManagerID:      worklog.MemberID(mgr.String),
		OrganizationID: fiscal.OrganizationID(org.String),
	}, nil
}

// ListMembers returns the whole directory ordered by id.
func (s *Store) ListMembers(ctx context.Context) ([]MemberRecord, error) {
	defer s.rlock(ctx)()
	rows, err := s.reader(ctx).QueryContext(ctx,
		`SELECT id, name, manager_id, organization_id FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberRecord
	for rows.Next() {
		var m MemberRecord
		var id, name string
		var mgr, org sql.NullString
		if err := rows.Scan(&id, &name, &mgr, &org); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.ID = worklog.MemberID(id)
		m.Name = name
		m.ManagerID = worklog.MemberID(mgr.String)
		m.OrganizationID = fiscal.OrganizationID(org.String)
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsSubordinateOf walks the member's manager chain looking for manager.
func (s *Store) IsSubordinateOf(ctx context.Context, manager, member worklog.MemberID) (bool, error) {
	defer s.rlock(ctx)()
	h := s.reader(ctx)

	current := string(member)
	for depth := 0; depth < maxReportingDepth; depth++ {
		var mgr sql.NullString
		err := h.QueryRowContext(ctx,
			`SELECT manager_id FROM members WHERE id = ?`, current).Scan(&mgr)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to read reporting line: %w", err)
		}
		if !mgr.Valid || mgr.String == "" {
			return false, nil
		}
		if mgr.String == string(manager) {
			return true, nil
		}
		current = mgr.String
	}
	return false, nil
}

func (s *Store) IsDirectManagerOf(ctx context.Context, manager, member worklog.MemberID) (bool, error) {
	defer s.rlock(ctx)()
	var mgr sql.NullString
	err := s.reader(ctx).QueryRowContext(ctx,
		`SELECT manager_id FROM members WHERE id = ?`, string(member)).Scan(&mgr)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read reporting line: %w", err)
	}
	return mgr.Valid && mgr.String == string(manager), nil
}

// =============================================================================
// ABSENCES (approval.AbsenceSource)
// =============================================================================

// SaveAbsence upserts an absence record.
func (s *Store) SaveAbsence(ctx context.Context, rec approval.AbsenceRecord) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO absences (id, member_id, absence_date, kind)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				member_id = excluded.member_id,
				absence_date = excluded.absence_date,
				kind = excluded.kind`,
			rec.ID, string(rec.MemberID), fiscal.FormatDate(rec.Date), rec.Kind)
		if err != nil {
			return fmt.Errorf("failed to save absence: %w", err)
		}
		return nil
	})
}

func (s *Store) AbsencesInRange(ctx context.Context, member worklog.MemberID, from, to time.Time) ([]approval.AbsenceRecord, error) {
	defer s.rlock(ctx)()
	rows, err := s.reader(ctx).QueryContext(ctx, `
		SELECT id, member_id, absence_date, kind
		FROM absences
		WHERE member_id = ? AND absence_date >= ? AND absence_date <= ?
		ORDER BY absence_date, id`,
		string(member), fiscal.FormatDate(from), fiscal.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}
	defer rows.Close()

	var records []approval.AbsenceRecord
	for rows.Next() {
		var (
			rec      approval.AbsenceRecord
			memberID string
			date     string
		)
		if err := rows.Scan(&rec.ID, &memberID, &date, &rec.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		rec.MemberID = worklog.MemberID(memberID)
		if rec.Date, err = fiscal.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse absence date: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// FISCAL CALENDAR REFERENCE (fiscal.OrganizationLookup, fiscal.PatternSource)
// =============================================================================

// SaveOrganization upserts an organization node.
func (s *Store) SaveOrganization(ctx context.Context, node fiscal.OrganizationNode) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO organizations
				(id, tenant_id, name, parent_id, fiscal_year_pattern_id, monthly_period_pattern_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				tenant_id = excluded.tenant_id,
				name = excluded.name,
				parent_id = excluded.parent_id,
				fiscal_year_pattern_id = excluded.fiscal_year_pattern_id,
				monthly_period_pattern_id = excluded.monthly_period_pattern_id`,
			string(node.ID), string(node.TenantID), node.Name,
			nullRef((*string)(node.ParentID)),
			nullRef((*string)(node.FiscalYearPatternID)),
			nullRef((*string)(node.MonthlyPeriodPatternID)))
		if err != nil {
			return fmt.Errorf("failed to save organization: %w", err)
		}
		return nil
	})
}

func (s *Store) FindOrganization(ctx context.Context, id fiscal.OrganizationID) (*fiscal.OrganizationNode, error) {
	defer s.rlock(ctx)()
	var (
		node      fiscal.OrganizationNode
		tenant    string
		parent    sql.NullString
		fyPattern sql.NullString
		mpPattern sql.NullString
	)
	err := s.reader(ctx).QueryRowContext(ctx, `
		SELECT tenant_id, name, parent_id, fiscal_year_pattern_id, monthly_period_pattern_id
		FROM organizations
		WHERE id = ?`,
		string(id)).Scan(&tenant, &node.Name, &parent, &fyPattern, &mpPattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	node.ID = id
	node.TenantID = fiscal.TenantID(tenant)
	if parent.Valid {
		p := fiscal.OrganizationID(parent.String)
		node.ParentID = &p
	}
	if fyPattern.Valid {
		p := fiscal.PatternID(fyPattern.String)
		node.FiscalYearPatternID = &p
	}
	if mpPattern.Valid {
		p := fiscal.PatternID(mpPattern.String)
		node.MonthlyPeriodPatternID = &p
	}
	return &node, nil
}

// SaveFiscalYearPattern upserts a fiscal year anchor.
func (s *Store) SaveFiscalYearPattern(ctx context.Context, p fiscal.FiscalYearPattern) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO fiscal_year_patterns (id, name, start_month, start_day)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				start_month = excluded.start_month,
				start_day = excluded.start_day`,
			string(p.ID), p.Name, int(p.StartMonth), p.StartDay)
		if err != nil {
			return fmt.Errorf("failed to save fiscal year pattern: %w", err)
		}
		return nil
	})
}

func (s *Store) FiscalYearPattern(ctx context.Context, id fiscal.PatternID) (*fiscal.FiscalYearPattern, error) {
	defer s.rlock(ctx)()
	var (
		p          fiscal.FiscalYearPattern
		startMonth int
	)
	err := s.reader(ctx).QueryRowContext(ctx, `
		SELECT name, start_month, start_day FROM fiscal_year_patterns WHERE id = ?`,
		string(id)).Scan(&p.Name, &startMonth, &p.StartDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fiscal year pattern: %w", err)
	}
	p.ID = id
	p.StartMonth = time.Month(startMonth)
	return &p, nil
}

// SaveMonthlyPeriodPattern upserts an accounting month anchor.
func (s *Store) SaveMonthlyPeriodPattern(ctx context.Context, p fiscal.MonthlyPeriodPattern) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO monthly_period_patterns (id, name, start_day)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				start_day = excluded.start_day`,
			string(p.ID), p.Name, p.StartDay)
		if err != nil {
			return fmt.Errorf("failed to save monthly period pattern: %w", err)
		}
		return nil
	})
}

func (s *Store) MonthlyPeriodPattern(ctx context.Context, id fiscal.PatternID) (*fiscal.MonthlyPeriodPattern, error) {
	defer s.rlock(ctx)()
	var p fiscal.MonthlyPeriodPattern
	err := s.reader(ctx).QueryRowContext(ctx, `
		SELECT name, start_day FROM monthly_period_patterns WHERE id = ?`,
		string(id)).Scan(&p.Name, &p.StartDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly period pattern: %w", err)
	}
	p.ID = id
	return &p, nil
}

// SaveTenantDefaults upserts a tenant's pattern fallbacks.
func (s *Store) SaveTenantDefaults(ctx context.Context, d fiscal.TenantDefaults) error {
	return s.withWrite(ctx, func(h dbtx) error {
		_, err := h.ExecContext(ctx, `
			INSERT INTO tenant_defaults (tenant_id, fiscal_year_pattern_id, monthly_period_pattern_id)
			VALUES (?, ?, ?)
			ON CONFLICT(tenant_id) DO UPDATE SET
				fiscal_year_pattern_id = excluded.fiscal_year_pattern_id,
				monthly_period_pattern_id = excluded.monthly_period_pattern_id`,
			string(d.TenantID),
			nullRef((*string)(d.FiscalYearPatternID)),
			nullRef((*string)(d.MonthlyPeriodPatternID)))
		if err != nil {
			return fmt.Errorf("failed to save tenant defaults: %w", err)
		}
		return nil
	})
}

func (s *Store) TenantDefaults(ctx context.Context, tenant fiscal.TenantID) (*fiscal.TenantDefaults, error) {
	defer s.rlock(ctx)()
	var (
		fyPattern sql.NullString
		mpPattern sql.NullString
	)
	err := s.reader(ctx).QueryRowContext(ctx, `
		SELECT fiscal_year_pattern_id, monthly_period_pattern_id
		FROM tenant_defaults
		WHERE tenant_id = ?`,
		string(tenant)).Scan(&fyPattern, &mpPattern)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant defaults: %w", err)
	}

	d := fiscal.TenantDefaults{TenantID: tenant}
	if fyPattern.Valid {
		p := fiscal.PatternID(fyPattern.String)
		d.FiscalYearPatternID = &p
	}
	if mpPattern.Valid {
		p := fiscal.PatternID(mpPattern.String)
		d.MonthlyPeriodPatternID = &p
	}
	return &d, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. For demos and tests.
func (s *Store) Reset(ctx context.Context) error {
	return s.withWrite(ctx, func(h dbtx) error {
		for _, table := range []string{
			"events", "snapshots", "worklog_entries", "monthly_approvals",
			"daily_decisions", "daily_rejection_log", "absences",
			"members", "organizations", "fiscal_year_patterns",
			"monthly_period_patterns", "tenant_defaults",
		} {
			if _, err := h.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// rowScanner lets scan helpers serve both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullRef(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(*p)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseHours(raw string) (worklog.Hours, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return worklog.ZeroHours(), fmt.Errorf("failed to parse hours: %w", err)
	}
	h, err := worklog.HoursFromDecimal(d)
	if err != nil {
		return worklog.ZeroHours(), fmt.Errorf("failed to parse hours: %w", err)
	}
	return h, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// SQLite names the violated columns, not the index, in its error text.
func isSlotUniquenessError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "worklog_entries.member_id")
}
