/*
eventstore_test.go - Specification tests for the append-only event store

PURPOSE:
  These tests serve as EXECUTABLE SPECIFICATIONS of the store contract.
  Each test documents one guarantee: gapless versioning, optimistic lock
  rejection, all-or-nothing batches, replay determinism, snapshot
  equivalence.

READING THESE TESTS:
  Each test has GIVEN/WHEN/THEN comments explaining the scenario and
  assertions with explanatory messages.
*/
package eventstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/warp/worklog-engine/eventstore"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

const (
	testAggType   = eventstore.AggregateType("test_counter")
	evIncremented = eventstore.EventType("test.incremented")
)

type incrementedPayload struct {
	Amount int `json:"amount"`
}

// counter is a minimal aggregate used to exercise replay and snapshots.
type counter struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
}

func (c *counter) Apply(ev eventstore.StoredEvent) error {
	if ev.Type != evIncremented {
		return errors.New("unexpected event type")
	}
	var p incrementedPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return err
	}
	c.Total += p.Amount
	c.Applied++
	return nil
}

func (c *counter) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(c)
}

func (c *counter) RestoreSnapshot(state json.RawMessage) error {
	return json.Unmarshal(state, c)
}

func incEvent(t *testing.T, amount int) eventstore.DomainEvent {
	t.Helper()
	ev, err := eventstore.NewEvent(evIncremented, time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC), incrementedPayload{Amount: amount})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

// =============================================================================
// 1. VERSIONING - Gapless, 1-based, monotonically increasing
// =============================================================================

func TestAppendAssignsGaplessVersions(t *testing.T) {
	// GIVEN an empty stream
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-1")

	// WHEN appending a batch of three events at version 0
	stored, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{
		incEvent(t, 1), incEvent(t, 2), incEvent(t, 3),
	}, 0)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// THEN versions are 1, 2, 3 with no gaps
	for i, ev := range stored {
		if ev.Version != i+1 {
			t.Errorf("event %d: expected version %d, got %d", i, i+1, ev.Version)
		}
	}

	// AND a subsequent append continues the sequence
	more, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{incEvent(t, 4)}, 3)
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if more[0].Version != 4 {
		t.Errorf("expected version 4, got %d", more[0].Version)
	}
}

func TestCurrentVersionIsZeroForUnknownAggregate(t *testing.T) {
	store := eventstore.NewMemory()

	v, err := store.CurrentVersion(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("currentVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0 for unknown aggregate, got %d", v)
	}
}

func TestLoadUnknownAggregateReturnsEmpty(t *testing.T) {
	store := eventstore.NewMemory()

	events, err := store.Load(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty stream, got %d events", len(events))
	}
}

// =============================================================================
// 2. OPTIMISTIC CONCURRENCY - Stale appends rejected, nothing written
// =============================================================================

func TestStaleAppendFailsWithOptimisticLockError(t *testing.T) {
	// GIVEN a stream at version 2
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-2")
	if _, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{incEvent(t, 1), incEvent(t, 1)}, 0); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}

	// WHEN appending at a stale expected version
	_, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{incEvent(t, 1)}, 1)

	// THEN the append fails with a lock error carrying both versions
	var lockErr *eventstore.OptimisticLockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected OptimisticLockError, got %v", err)
	}
	if lockErr.Expected != 1 || lockErr.Actual != 2 {
		t.Errorf("expected expected=1 actual=2, got expected=%d actual=%d", lockErr.Expected, lockErr.Actual)
	}
	if !eventstore.IsConflict(err) {
		t.Error("IsConflict should classify the lock error")
	}

	// AND nothing was written
	v, _ := store.CurrentVersion(ctx, id)
	if v != 2 {
		t.Errorf("stream should remain at version 2, got %d", v)
	}
}

func TestRacingWritersOnlyOneWins(t *testing.T) {
	// GIVEN two writers that both observed version 0
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-race")

	// WHEN both append concurrently at version 0
	events := []eventstore.DomainEvent{incEvent(t, 1), incEvent(t, 1)}
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{events[slot]}, 0)
			results[slot] = err
		}(i)
	}
	wg.Wait()

	// THEN exactly one append succeeded
	failures := 0
	for _, err := range results {
		if err != nil {
			failures++
			if !eventstore.IsConflict(err) {
				t.Errorf("loser should observe a conflict, got %v", err)
			}
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one loser, got %d failures", failures)
	}

	// AND the stream holds exactly one event
	v, _ := store.CurrentVersion(ctx, id)
	if v != 1 {
		t.Errorf("expected stream at version 1, got %d", v)
	}
}

func TestEmptyAppendRejected(t *testing.T) {
	store := eventstore.NewMemory()

	_, err := store.Append(context.Background(), "counter-3", testAggType, nil, 0)
	if !errors.Is(err, eventstore.ErrEmptyAppend) {
		t.Fatalf("expected ErrEmptyAppend, got %v", err)
	}
}

// =============================================================================
// 3. REPLAY - Aggregate equals the fold of its events
// =============================================================================

func TestReplayFoldsEventsInOrder(t *testing.T) {
	// GIVEN a stream of increments
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-4")
	if _, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{
		incEvent(t, 5), incEvent(t, 10), incEvent(t, 20),
	}, 0); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// WHEN replaying the full stream
	events, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	c := &counter{}
	version, err := eventstore.Replay(c, events)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	// THEN state is the fold and version is the last event's version
	if c.Total != 35 || c.Applied != 3 {
		t.Errorf("expected total=35 applied=3, got total=%d applied=%d", c.Total, c.Applied)
	}
	if version != 3 {
		t.Errorf("expected version 3, got %d", version)
	}
}

func TestLoadFromVersionReturnsSuffix(t *testing.T) {
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-5")
	if _, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{
		incEvent(t, 1), incEvent(t, 2), incEvent(t, 3), incEvent(t, 4),
	}, 0); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	suffix, err := store.LoadFromVersion(ctx, id, 2)
	if err != nil {
		t.Fatalf("loadFromVersion failed: %v", err)
	}
	if len(suffix) != 2 {
		t.Fatalf("expected 2 events after version 2, got %d", len(suffix))
	}
	if suffix[0].Version != 3 || suffix[1].Version != 4 {
		t.Errorf("expected versions 3,4, got %d,%d", suffix[0].Version, suffix[1].Version)
	}
}

// =============================================================================
// 4. SNAPSHOTS - Snapshot + suffix replay == full replay
// =============================================================================

func TestSnapshotPlusSuffixEqualsFullReplay(t *testing.T) {
	// GIVEN a stream of 7 events with a snapshot taken at version 5
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-6")

	full := &counter{}
	for i := 1; i <= 7; i++ {
		stored, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{incEvent(t, i)}, i-1)
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		if _, err := eventstore.Replay(full, stored); err != nil {
			t.Fatalf("replay %d failed: %v", i, err)
		}
		if err := eventstore.MaybeSnapshot(ctx, store, id, testAggType, i, 5, full, time.Now()); err != nil {
			t.Fatalf("maybeSnapshot %d failed: %v", i, err)
		}
	}

	snap, err := store.LatestSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("latestSnapshot failed: %v", err)
	}
	if snap == nil || snap.Version != 5 {
		t.Fatalf("expected snapshot at version 5, got %+v", snap)
	}

	// WHEN loading via snapshot + suffix
	fast := &counter{}
	version, err := eventstore.LoadAggregate(ctx, store, store, id, fast)
	if err != nil {
		t.Fatalf("loadAggregate failed: %v", err)
	}

	// THEN the result matches a full replay exactly
	if version != 7 {
		t.Errorf("expected version 7, got %d", version)
	}
	if fast.Total != full.Total || fast.Applied != full.Applied {
		t.Errorf("snapshot load diverged: full=%+v fast=%+v", full, fast)
	}
}

func TestLoadAggregateWithoutSnapshotsFallsBackToFullReplay(t *testing.T) {
	store := eventstore.NewMemory()
	ctx := context.Background()
	id := eventstore.AggregateID("counter-7")
	if _, err := store.Append(ctx, id, testAggType, []eventstore.DomainEvent{incEvent(t, 3), incEvent(t, 4)}, 0); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	c := &counter{}
	version, err := eventstore.LoadAggregate(ctx, store, nil, id, c)
	if err != nil {
		t.Fatalf("loadAggregate failed: %v", err)
	}
	if version != 2 || c.Total != 7 {
		t.Errorf("expected version=2 total=7, got version=%d total=%d", version, c.Total)
	}
}

// =============================================================================
// 5. REGISTRY - Typed decode with generic fallback
// =============================================================================

func TestDecodeUsesRegisteredPayloadType(t *testing.T) {
	eventstore.RegisterEventType(evIncremented, func() any { return &incrementedPayload{} })

	ev := incEvent(t, 9)
	stored := eventstore.StoredEvent{DomainEvent: ev, AggregateID: "counter-8", AggregateType: testAggType, Version: 1}

	decoded, err := eventstore.Decode(stored)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	payload, ok := decoded.(*incrementedPayload)
	if !ok {
		t.Fatalf("expected *incrementedPayload, got %T", decoded)
	}
	if payload.Amount != 9 {
		t.Errorf("expected amount 9, got %d", payload.Amount)
	}
}

func TestDecodeFallsBackToMapForUnregisteredType(t *testing.T) {
	ev, err := eventstore.NewEvent("test.never_registered", time.Now(), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	stored := eventstore.StoredEvent{DomainEvent: ev, AggregateID: "counter-9", AggregateType: testAggType, Version: 1}

	decoded, err := eventstore.Decode(stored)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("expected map fallback, got %T", decoded)
	}
	if m["k"] != "v" {
		t.Errorf("expected k=v in fallback map, got %v", m)
	}
}
