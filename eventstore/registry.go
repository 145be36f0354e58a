/*
registry.go - Event type registration and payload decoding

PURPOSE:
  Provides a registry for domain packages to register their event types.
  This enables deserialization from storage/JSON back to concrete payload
  structs while keeping the store domain-agnostic.

HOW IT WORKS:
  1. Domain packages define their payload structs
  2. Domain packages register a prototype factory on init()
  3. Readers (API history endpoints, tooling) use Decode to reconstruct
     the typed payload from a stored event

USAGE:
  // In worklog/events.go
  func init() {
      eventstore.RegisterEventType(EventEntryCreated, func() any { return &EntryCreated{} })
  }

  // In a reader
  payload, _ := eventstore.Decode(stored)

WHY A REGISTRY:
  - Event store stays domain-agnostic
  - Domains own their payload types
  - Unregistered types still decode (as generic maps) instead of failing

SEE ALSO:
  - types.go: DomainEvent/StoredEvent definitions
  - worklog/events.go, approval/events.go: Registrations
*/
package eventstore

import (
	"encoding/json"
	"sync"
)

// =============================================================================
// EVENT TYPE REGISTRY
// =============================================================================

var (
	eventRegistry = make(map[EventType]func() any)
	registryMu    sync.RWMutex
)

// RegisterEventType adds a payload prototype factory to the global registry.
// Call this from domain package init() functions.
func RegisterEventType(t EventType, factory func() any) {
	registryMu.Lock()
	defer registryMu.Unlock()
	eventRegistry[t] = factory
}

// LookupEventType returns the payload factory for a type, nil if unregistered.
func LookupEventType(t EventType) func() any {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return eventRegistry[t]
}

// RegisteredEventTypes returns all registered event type names.
func RegisteredEventTypes() []EventType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]EventType, 0, len(eventRegistry))
	for t := range eventRegistry {
		result = append(result, t)
	}
	return result
}

// Decode unmarshals a stored event's payload into its registered struct.
// Unregistered types decode into map[string]any so readers keep working
// when a domain package isn't loaded.
func Decode(ev StoredEvent) (any, error) {
	if factory := LookupEventType(ev.Type); factory != nil {
		payload := factory()
		if err := json.Unmarshal(ev.Payload, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
	var generic map[string]any
	if err := json.Unmarshal(ev.Payload, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}
