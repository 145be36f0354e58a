/*
events.go - Event stream of the WorkLogEntry aggregate

PURPOSE:
  The four facts an entry's history is made of, their payloads, and the
  replay fold that turns a stream back into a WorkLogEntry. Payload
  dates are YYYY-MM-DD strings and hours are exact decimal strings so a
  stream re-read years later reproduces state bit-for-bit.

EVENT TYPES:
  worklog.entry_created        - Entry born in DRAFT
  worklog.entry_updated        - Hours/comment changed (editable statuses)
  worklog.entry_deleted        - Terminal deletion
  worklog.entry_status_changed - One legal status-machine move

SEE ALSO:
  - types.go: The state these events fold into
  - eventstore/registry.go: Decode support for readers
*/
package worklog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
)

// AggregateTypeEntry tags work-log entry streams in the event store.
const AggregateTypeEntry = eventstore.AggregateType("worklog_entry")

const (
	EventEntryCreated       = eventstore.EventType("worklog.entry_created")
	EventEntryUpdated       = eventstore.EventType("worklog.entry_updated")
	EventEntryDeleted       = eventstore.EventType("worklog.entry_deleted")
	EventEntryStatusChanged = eventstore.EventType("worklog.entry_status_changed")
)

func init() {
	eventstore.RegisterEventType(EventEntryCreated, func() any { return &EntryCreated{} })
	eventstore.RegisterEventType(EventEntryUpdated, func() any { return &EntryUpdated{} })
	eventstore.RegisterEventType(EventEntryDeleted, func() any { return &EntryDeleted{} })
	eventstore.RegisterEventType(EventEntryStatusChanged, func() any { return &EntryStatusChanged{} })
}

// =============================================================================
// PAYLOADS
// =============================================================================

type EntryCreated struct {
	EntryID   string `json:"entry_id"`
	MemberID  string `json:"member_id"`
	ProjectID string `json:"project_id"`
	Date      string `json:"date"`
	Hours     Hours  `json:"hours"`
	Comment   string `json:"comment,omitempty"`
	EnteredBy string `json:"entered_by"`
}

type EntryUpdated struct {
	Hours     Hours  `json:"hours"`
	Comment   string `json:"comment,omitempty"`
	UpdatedBy string `json:"updated_by"`
}

type EntryDeleted struct {
	DeletedBy string `json:"deleted_by"`
}

type EntryStatusChanged struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// REPLAY
// =============================================================================

var _ eventstore.SnapshotAggregate = (*WorkLogEntry)(nil)

// Apply folds one stored event into the entry. Replay path only; live
// mutations go through the aggregate methods in entry.go.
func (e *WorkLogEntry) Apply(ev eventstore.StoredEvent) error {
	switch ev.Type {
	case EventEntryCreated:
		var p EntryCreated
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		date, err := fiscal.ParseDate(p.Date)
		if err != nil {
			return fmt.Errorf("entry %s: bad date in created event: %w", p.EntryID, err)
		}
		e.ID = EntryID(p.EntryID)
		e.MemberID = MemberID(p.MemberID)
		e.ProjectID = ProjectID(p.ProjectID)
		e.Date = date
		e.Hours = p.Hours
		e.Comment = p.Comment
		e.Status = StatusDraft
		e.EnteredBy = MemberID(p.EnteredBy)
		e.CreatedAt = ev.OccurredAt

	case EventEntryUpdated:
		var p EntryUpdated
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		e.Hours = p.Hours
		e.Comment = p.Comment

	case EventEntryDeleted:
		e.Status = StatusDeleted

	case EventEntryStatusChanged:
		var p EntryStatusChanged
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		e.Status = EntryStatus(p.To)

	default:
		return fmt.Errorf("worklog entry %s: unknown event type %q", e.ID, ev.Type)
	}

	e.UpdatedAt = ev.OccurredAt
	e.Version = ev.Version
	return nil
}

// entrySnapshot is the frozen form of an entry for the snapshot store.
type entrySnapshot struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	ProjectID string `json:"project_id"`
	Date      string `json:"date"`
	Hours     Hours  `json:"hours"`
	Comment   string `json:"comment,omitempty"`
	Status    string `json:"status"`
	EnteredBy string `json:"entered_by"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (e *WorkLogEntry) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(entrySnapshot{
		ID:        string(e.ID),
		MemberID:  string(e.MemberID),
		ProjectID: string(e.ProjectID),
		Date:      fiscal.FormatDate(e.Date),
		Hours:     e.Hours,
		Comment:   e.Comment,
		Status:    string(e.Status),
		EnteredBy: string(e.EnteredBy),
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (e *WorkLogEntry) RestoreSnapshot(state json.RawMessage) error {
	var s entrySnapshot
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	date, err := fiscal.ParseDate(s.Date)
	if err != nil {
		return err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, s.UpdatedAt)
	if err != nil {
		return err
	}
	e.ID = EntryID(s.ID)
	e.MemberID = MemberID(s.MemberID)
	e.ProjectID = ProjectID(s.ProjectID)
	e.Date = date
	e.Hours = s.Hours
	e.Comment = s.Comment
	e.Status = EntryStatus(s.Status)
	e.EnteredBy = MemberID(s.EnteredBy)
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	return nil
}
