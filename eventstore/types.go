/*
types.go - Core event types for the append-only event store

PURPOSE:
  Defines the event envelope every aggregate in the system is persisted
  through. State is never stored directly: it is derived by replaying the
  aggregate's event stream in version order.

KEY CONCEPTS:
  DomainEvent: An immutable fact produced by an aggregate. Carries its own
               identity, type and JSON payload, but no position: position is
               assigned by the store at append time.
  StoredEvent: A DomainEvent after persistence. Gains the aggregate
               coordinates (type + id) and a 1-based, gapless Version.
  Aggregate:   Anything that can rebuild itself by applying stored events.

DESIGN PRINCIPLES:
  1. Events are facts - Never mutated, never deleted
  2. Version is truth - Per-aggregate, monotonically increasing, no gaps
  3. Payloads are opaque - The store round-trips JSON it does not interpret
  4. Replay is total - An aggregate is exactly the fold of its events

EXAMPLE:
  ev, _ := eventstore.NewEvent("worklog.entry_created", now, payload)
  stored, err := store.Append(ctx, id, "worklog_entry", []eventstore.DomainEvent{ev}, 0)

SEE ALSO:
  - store.go: Persistence contract and snapshot support
  - registry.go: Payload decoding back into typed structs
  - memory.go: In-memory implementation
*/
package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS - Typed strings to prevent mixing
// =============================================================================

// AggregateID uniquely identifies one event stream.
type AggregateID string

// AggregateType names the kind of aggregate a stream belongs to
// (e.g. "worklog_entry", "monthly_approval").
type AggregateType string

// EventType names what happened (e.g. "worklog.entry_created").
type EventType string

// =============================================================================
// EVENTS
// =============================================================================

// DomainEvent is an immutable fact awaiting persistence.
// Position within the stream is assigned by the store, not the producer.
type DomainEvent struct {
	EventID    string
	Type       EventType
	OccurredAt time.Time
	Payload    json.RawMessage
}

// StoredEvent is a DomainEvent after it has been appended to a stream.
// Version is 1-based and gapless within the aggregate.
type StoredEvent struct {
	DomainEvent
	AggregateID   AggregateID
	AggregateType AggregateType
	Version       int
}

// NewEvent builds a DomainEvent with a fresh id and the payload marshaled
// to JSON. The payload must marshal cleanly; events are never constructed
// from unserializable state.
func NewEvent(eventType EventType, occurredAt time.Time, payload any) (DomainEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return DomainEvent{}, err
	}
	return DomainEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Payload:    raw,
	}, nil
}

// =============================================================================
// REPLAY
// =============================================================================

// Aggregate rebuilds state by folding stored events in version order.
type Aggregate interface {
	// Apply folds one event into the aggregate. Called in ascending
	// version order. An error aborts the replay.
	Apply(ev StoredEvent) error
}

// Replay folds events into agg and returns the version of the last event
// applied (0 when events is empty).
func Replay(agg Aggregate, events []StoredEvent) (int, error) {
	version := 0
	for _, ev := range events {
		if err := agg.Apply(ev); err != nil {
			return version, err
		}
		version = ev.Version
	}
	return version, nil
}
