package worklog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

func newDraftEntry(t *testing.T) (*worklog.WorkLogEntry, []eventstore.DomainEvent) {
	t.Helper()
	entry, ev, err := worklog.NewEntry(
		"entry-1", "alice", "proj-a",
		fiscal.Date(2025, time.March, 10),
		worklog.MustHours(8), "backend work", "alice",
		time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return entry, []eventstore.DomainEvent{ev}
}

// stamp turns domain events into a stored stream at versions 1..N.
func stamp(id worklog.EntryID, events []eventstore.DomainEvent) []eventstore.StoredEvent {
	stored := make([]eventstore.StoredEvent, len(events))
	for i, ev := range events {
		stored[i] = eventstore.StoredEvent{
			DomainEvent:   ev,
			AggregateID:   eventstore.AggregateID(id),
			AggregateType: worklog.AggregateTypeEntry,
			Version:       i + 1,
		}
	}
	return stored
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestEntryStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to worklog.EntryStatus
		ok       bool
	}{
		{worklog.StatusDraft, worklog.StatusSubmitted, true},
		{worklog.StatusDraft, worklog.StatusDeleted, true},
		{worklog.StatusDraft, worklog.StatusApproved, false},
		{worklog.StatusSubmitted, worklog.StatusDraft, true},
		{worklog.StatusSubmitted, worklog.StatusApproved, true},
		{worklog.StatusSubmitted, worklog.StatusRejected, true},
		{worklog.StatusSubmitted, worklog.StatusDeleted, false},
		{worklog.StatusApproved, worklog.StatusSubmitted, true},
		{worklog.StatusApproved, worklog.StatusRejected, true},
		{worklog.StatusApproved, worklog.StatusDraft, false},
		{worklog.StatusRejected, worklog.StatusSubmitted, true},
		{worklog.StatusRejected, worklog.StatusDraft, true},
		{worklog.StatusRejected, worklog.StatusDeleted, true},
		{worklog.StatusDeleted, worklog.StatusDraft, false},
		{worklog.StatusDeleted, worklog.StatusSubmitted, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestEntry_UpdateAfterSubmit_NotEditable(t *testing.T) {
	// GIVEN: A submitted entry
	// WHEN: Updating its hours
	// THEN: Rejected as not editable

	entry, _ := newDraftEntry(t)
	_, err := entry.Transition(worklog.StatusSubmitted, "alice", "", time.Now())
	require.NoError(t, err)

	_, err = entry.UpdateDetails(worklog.MustHours(4), "less", "alice", time.Now())
	assert.ErrorIs(t, err, worklog.ErrNotEditable)

	var notEditable *worklog.NotEditableError
	require.ErrorAs(t, err, &notEditable)
	assert.Equal(t, worklog.StatusSubmitted, notEditable.Status)
	assert.Equal(t, "update", notEditable.Operation)
}

func TestEntry_DeleteOnlyWhileEditable(t *testing.T) {
	// GIVEN: A submitted entry
	// WHEN: Deleting it
	// THEN: Rejected; after recall to DRAFT the delete goes through

	entry, _ := newDraftEntry(t)
	_, err := entry.Transition(worklog.StatusSubmitted, "alice", "", time.Now())
	require.NoError(t, err)

	_, err = entry.MarkDeleted("alice", time.Now())
	assert.ErrorIs(t, err, worklog.ErrNotEditable)

	_, err = entry.Transition(worklog.StatusDraft, "alice", "", time.Now())
	require.NoError(t, err)
	_, err = entry.MarkDeleted("alice", time.Now())
	require.NoError(t, err)
	assert.Equal(t, worklog.StatusDeleted, entry.Status)
	assert.True(t, entry.Deleted())
}

func TestEntry_IllegalMove_ReportsFromAndTo(t *testing.T) {
	// GIVEN: A fresh DRAFT entry
	// WHEN: Approving it directly
	// THEN: The transition error names both endpoints

	entry, _ := newDraftEntry(t)
	_, err := entry.Transition(worklog.StatusApproved, "boss", "", time.Now())
	assert.ErrorIs(t, err, worklog.ErrInvalidTransition)

	var invalid *worklog.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, worklog.StatusDraft, invalid.From)
	assert.Equal(t, worklog.StatusApproved, invalid.To)
}

// =============================================================================
// REPLAY
// =============================================================================

func TestEntry_ReplayFoldsBackToLiveState(t *testing.T) {
	// GIVEN: An entry that was created, updated, and submitted
	// WHEN: A fresh aggregate replays the stored stream
	// THEN: It matches the live state, at version 3

	live, events := newDraftEntry(t)

	ev, err := live.UpdateDetails(worklog.MustHours(6.5), "trimmed", "alice", time.Date(2025, time.March, 10, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	events = append(events, ev)

	ev, err = live.Transition(worklog.StatusSubmitted, "alice", "", time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	events = append(events, ev)

	replayed := &worklog.WorkLogEntry{}
	version, err := eventstore.Replay(replayed, stamp(live.ID, events))
	require.NoError(t, err)

	assert.Equal(t, 3, version)
	assert.Equal(t, live.ID, replayed.ID)
	assert.Equal(t, live.MemberID, replayed.MemberID)
	assert.Equal(t, live.ProjectID, replayed.ProjectID)
	assert.True(t, live.Date.Equal(replayed.Date))
	assert.True(t, live.Hours.Equal(replayed.Hours))
	assert.Equal(t, "trimmed", replayed.Comment)
	assert.Equal(t, worklog.StatusSubmitted, replayed.Status)
	assert.True(t, live.CreatedAt.Equal(replayed.CreatedAt))
	assert.True(t, live.UpdatedAt.Equal(replayed.UpdatedAt))
}

func TestEntry_SnapshotRestoresEveryField(t *testing.T) {
	// GIVEN: An updated, rejected entry
	// WHEN: Snapshotting and restoring into a fresh aggregate
	// THEN: The restored state matches field for field

	live, _ := newDraftEntry(t)
	_, err := live.Transition(worklog.StatusSubmitted, "alice", "", time.Now().UTC())
	require.NoError(t, err)
	_, err = live.Transition(worklog.StatusRejected, "boss", "wrong project", time.Now().UTC())
	require.NoError(t, err)

	state, err := live.SnapshotState()
	require.NoError(t, err)

	restored := &worklog.WorkLogEntry{}
	require.NoError(t, restored.RestoreSnapshot(state))

	assert.Equal(t, live.ID, restored.ID)
	assert.Equal(t, live.MemberID, restored.MemberID)
	assert.Equal(t, live.ProjectID, restored.ProjectID)
	assert.True(t, live.Date.Equal(restored.Date))
	assert.True(t, live.Hours.Equal(restored.Hours))
	assert.Equal(t, live.Comment, restored.Comment)
	assert.Equal(t, worklog.StatusRejected, restored.Status)
	assert.Equal(t, live.EnteredBy, restored.EnteredBy)
	assert.True(t, live.CreatedAt.Equal(restored.CreatedAt))
	assert.True(t, live.UpdatedAt.Equal(restored.UpdatedAt))
}
