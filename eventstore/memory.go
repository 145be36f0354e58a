/*
memory.go - In-memory event store (for testing/dev)

PURPOSE:
  Reference implementation of Store and SnapshotStore backed by maps.
  Enforces the same contract as the SQLite store: gapless versions,
  all-or-nothing appends, optimistic lock checks.

SEE ALSO:
  - store.go: The contract this implements
  - store/sqlite: Production implementation
*/
package eventstore

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements Store and SnapshotStore in process memory.
type Memory struct {
	mu        sync.RWMutex
	streams   map[AggregateID][]StoredEvent
	snapshots map[AggregateID]Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		streams:   make(map[AggregateID][]StoredEvent),
		snapshots: make(map[AggregateID]Snapshot),
	}
}

// Append persists events at consecutive versions. All-or-nothing: the
// version check happens before any event is written.
func (m *Memory) Append(_ context.Context, id AggregateID, typ AggregateType, events []DomainEvent, expectedVersion int) ([]StoredEvent, error) {
	if len(events) == 0 {
		return nil, ErrEmptyAppend
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(id, typ, events, expectedVersion)
}

func (m *Memory) appendLocked(id AggregateID, typ AggregateType, events []DomainEvent, expectedVersion int) ([]StoredEvent, error) {
	stream := m.streams[id]
	current := 0
	if n := len(stream); n > 0 {
		current = stream[n-1].Version
	}
	if current != expectedVersion {
		return nil, &OptimisticLockError{
			AggregateType: typ,
			AggregateID:   id,
			Expected:      expectedVersion,
			Actual:        current,
		}
	}

	stored := make([]StoredEvent, 0, len(events))
	for i, ev := range events {
		stored = append(stored, StoredEvent{
			DomainEvent:   ev,
			AggregateID:   id,
			AggregateType: typ,
			Version:       expectedVersion + 1 + i,
		})
	}
	m.streams[id] = append(stream, stored...)
	return stored, nil
}

func (m *Memory) Load(_ context.Context, id AggregateID) ([]StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]StoredEvent, len(m.streams[id]))
	copy(result, m.streams[id])
	return result, nil
}

func (m *Memory) LoadFromVersion(_ context.Context, id AggregateID, after int) ([]StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []StoredEvent
	for _, ev := range m.streams[id] {
		if ev.Version > after {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (m *Memory) CurrentVersion(_ context.Context, id AggregateID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stream := m.streams[id]
	if len(stream) == 0 {
		return 0, nil
	}
	return stream[len(stream)-1].Version, nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) SaveSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keep only the newest snapshot per aggregate.
	existing, ok := m.snapshots[snap.AggregateID]
	if !ok || snap.Version >= existing.Version {
		m.snapshots[snap.AggregateID] = snap
	}
	return nil
}

func (m *Memory) LatestSnapshot(_ context.Context, id AggregateID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return nil, nil
	}
	copied := snap
	return &copied, nil
}
