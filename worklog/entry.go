/*
entry.go - WorkLogEntry aggregate behavior

PURPOSE:
  The command side of the aggregate: each method validates against
  current state, produces the event, and applies it to the in-memory
  state. Persisting the event (and with it the optimistic version
  check) is the repository's job.

SEE ALSO:
  - events.go: Payloads and the replay fold
  - service.go: Cross-entry validation (daily cap, duplicates, proxy)
*/
package worklog

import (
	"time"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
)

// NewEntry births a DRAFT entry and its created event. The caller has
// already validated uniqueness and the daily cap.
func NewEntry(id EntryID, member MemberID, project ProjectID, date time.Time, hours Hours, comment string, enteredBy MemberID, now time.Time) (*WorkLogEntry, eventstore.DomainEvent, error) {
	day := fiscal.DayOf(date)
	ev, err := eventstore.NewEvent(EventEntryCreated, now, EntryCreated{
		EntryID:   string(id),
		MemberID:  string(member),
		ProjectID: string(project),
		Date:      fiscal.FormatDate(day),
		Hours:     hours,
		Comment:   comment,
		EnteredBy: string(enteredBy),
	})
	if err != nil {
		return nil, eventstore.DomainEvent{}, err
	}

	entry := &WorkLogEntry{
		ID:        id,
		MemberID:  member,
		ProjectID: project,
		Date:      day,
		Hours:     hours,
		Comment:   comment,
		Status:    StatusDraft,
		EnteredBy: enteredBy,
		CreatedAt: ev.OccurredAt,
		UpdatedAt: ev.OccurredAt,
	}
	return entry, ev, nil
}

// UpdateDetails changes hours/comment. Editable statuses only.
func (e *WorkLogEntry) UpdateDetails(hours Hours, comment string, updatedBy MemberID, now time.Time) (eventstore.DomainEvent, error) {
	if !e.Status.Editable() {
		return eventstore.DomainEvent{}, &NotEditableError{EntryID: e.ID, Status: e.Status, Operation: "update"}
	}
	ev, err := eventstore.NewEvent(EventEntryUpdated, now, EntryUpdated{
		Hours:     hours,
		Comment:   comment,
		UpdatedBy: string(updatedBy),
	})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}
	e.Hours = hours
	e.Comment = comment
	e.UpdatedAt = ev.OccurredAt
	return ev, nil
}

// MarkDeleted terminates the entry. Editable statuses only.
func (e *WorkLogEntry) MarkDeleted(deletedBy MemberID, now time.Time) (eventstore.DomainEvent, error) {
	if !e.Status.Editable() {
		return eventstore.DomainEvent{}, &NotEditableError{EntryID: e.ID, Status: e.Status, Operation: "delete"}
	}
	ev, err := eventstore.NewEvent(EventEntryDeleted, now, EntryDeleted{DeletedBy: string(deletedBy)})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}
	e.Status = StatusDeleted
	e.UpdatedAt = ev.OccurredAt
	return ev, nil
}

// Transition performs one status-machine move and returns its event.
func (e *WorkLogEntry) Transition(to EntryStatus, actor MemberID, reason string, now time.Time) (eventstore.DomainEvent, error) {
	if !e.Status.CanTransitionTo(to) {
		return eventstore.DomainEvent{}, &InvalidTransitionError{EntryID: e.ID, From: e.Status, To: to}
	}
	ev, err := eventstore.NewEvent(EventEntryStatusChanged, now, EntryStatusChanged{
		From:   string(e.Status),
		To:     string(to),
		Actor:  string(actor),
		Reason: reason,
	})
	if err != nil {
		return eventstore.DomainEvent{}, err
	}
	e.Status = to
	e.UpdatedAt = ev.OccurredAt
	return ev, nil
}
