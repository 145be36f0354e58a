/*
store.go - Persistence contract for event streams

PURPOSE:
  Defines the interface between aggregates and the database. The store is
  append-only and enforces optimistic concurrency through per-aggregate
  version checks. Different implementations can use SQLite or in-memory
  storage.

APPEND-ONLY CONTRACT:
  - Append(): The ONLY write operation. No Update, no Delete. Ever.
  - A mismatch between expectedVersion and the stream's current version
    rejects the whole batch with OptimisticLockError.
  - A matching append persists all events at consecutive versions
    (expectedVersion+1, +2, ...) atomically and durably before returning.

OPTIMISTIC CONCURRENCY:
  Writers load an aggregate, remember its version, decide, then append at
  that version. Two racing writers can both load version N; only one
  append at N succeeds. The loser reloads and retries (or surfaces the
  conflict). The store never serializes writers beyond this check.

SNAPSHOTS:
  Snapshots are a load-time optimization only. LoadAggregate restores the
  newest snapshot (if any) and replays the remaining suffix; the result is
  identical to a full replay. Writing snapshots is best-effort.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - eventstore/memory.go: In-memory for testing

SEE ALSO:
  - types.go: Event envelope and replay
  - errors.go: OptimisticLockError and helpers
*/
package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// STORE - Append-only event persistence
// =============================================================================

// Store handles persistence of event streams.
type Store interface {
	// Append persists events at expectedVersion+1, +2, ... atomically.
	// Fails with OptimisticLockError if the stream's current version is
	// not expectedVersion; nothing is written in that case.
	// Returns the stored events with versions assigned.
	Append(ctx context.Context, id AggregateID, typ AggregateType, events []DomainEvent, expectedVersion int) ([]StoredEvent, error)

	// Load returns the full stream ascending by version.
	// An unknown aggregate id yields an empty slice, not an error.
	Load(ctx context.Context, id AggregateID) ([]StoredEvent, error)

	// LoadFromVersion returns the suffix of the stream with version > after.
	LoadFromVersion(ctx context.Context, id AggregateID, after int) ([]StoredEvent, error)

	// CurrentVersion returns the highest version in the stream, 0 when the
	// stream does not exist.
	CurrentVersion(ctx context.Context, id AggregateID) (int, error)
}

// =============================================================================
// SNAPSHOTS - Optional fast-load support
// =============================================================================

// DefaultSnapshotEvery is the append cadence at which repositories take
// snapshots. Purely a tuning knob; replay semantics do not change.
const DefaultSnapshotEvery = 50

// Snapshot freezes an aggregate's state at a version so loads can skip
// the prefix of the stream.
type Snapshot struct {
	AggregateID   AggregateID
	AggregateType AggregateType
	Version       int
	State         json.RawMessage
	TakenAt       time.Time
}

// SnapshotStore persists snapshots. Losing a snapshot loses nothing but
// load speed.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LatestSnapshot returns the newest snapshot for the aggregate, or
	// nil when none exists.
	LatestSnapshot(ctx context.Context, id AggregateID) (*Snapshot, error)
}

// SnapshotAggregate is an Aggregate that can also freeze and restore its
// own state for snapshotting.
type SnapshotAggregate interface {
	Aggregate

	// SnapshotState serializes current state.
	SnapshotState() (json.RawMessage, error)

	// RestoreSnapshot replaces state with a previously frozen one.
	RestoreSnapshot(state json.RawMessage) error
}

// LoadAggregate rebuilds agg from the newest snapshot plus the event
// suffix, falling back to a full replay when snaps is nil or empty.
// Returns the aggregate's current version (0 when the stream is empty).
func LoadAggregate(ctx context.Context, store Store, snaps SnapshotStore, id AggregateID, agg SnapshotAggregate) (int, error) {
	after := 0
	if snaps != nil {
		snap, err := snaps.LatestSnapshot(ctx, id)
		if err != nil {
			return 0, err
		}
		if snap != nil {
			if err := agg.RestoreSnapshot(snap.State); err != nil {
				return 0, err
			}
			after = snap.Version
		}
	}
	events, err := store.LoadFromVersion(ctx, id, after)
	if err != nil {
		return 0, err
	}
	version, err := Replay(agg, events)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		version = after
	}
	return version, nil
}

// MaybeSnapshot writes a snapshot when version lands on the cadence.
// Best-effort: callers treat errors as advisory.
func MaybeSnapshot(ctx context.Context, snaps SnapshotStore, id AggregateID, typ AggregateType, version, every int, agg SnapshotAggregate, now time.Time) error {
	if snaps == nil || every <= 0 || version == 0 || version%every != 0 {
		return nil
	}
	state, err := agg.SnapshotState()
	if err != nil {
		return err
	}
	return snaps.SaveSnapshot(ctx, Snapshot{
		AggregateID:   id,
		AggregateType: typ,
		Version:       version,
		State:         state,
		TakenAt:       now.UTC(),
	})
}
