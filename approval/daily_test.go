package approval_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/worklog"
)

// submitDay logs a draft for bob and self-submits it.
func (e *env) submitDay(t *testing.T, project string, date time.Time, hours float64) *worklog.WorkLogEntry {
	t.Helper()
	entry := e.logDay(t, project, date, hours)
	submitted, err := e.entries.ChangeStatus(context.Background(), entry.ID, worklog.StatusSubmitted, "bob")
	require.NoError(t, err)
	return submitted
}

// =============================================================================
// BATCH APPROVAL
// =============================================================================

func TestDailyService_ApproveEntries_Batch(t *testing.T) {
	// GIVEN: Two submitted entries of bob
	// WHEN: carol approves them in one batch
	// THEN: Both get APPROVED with active decisions; bob is notified once

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.submitDay(t, "proj-a", day1, 8)
	e2 := e.submitDay(t, "proj-a", day2, 8)

	decisions, err := e.daily.ApproveEntries(ctx, []worklog.EntryID{e1.ID, e2.ID}, "carol", "looks right")
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	for _, id := range []worklog.EntryID{e1.ID, e2.ID} {
		assert.Equal(t, worklog.StatusApproved, e.entryStatus(t, id))
		d, err := e.daily.DecisionForEntry(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, approval.DecisionApproved, d.Status)
		assert.Equal(t, worklog.MemberID("carol"), d.SupervisorID)
	}

	notes := e.notesOfKind(notify.KindEntriesApproved)
	require.Len(t, notes, 1, "one notification per member, not per entry")
	assert.Equal(t, "bob", notes[0].Recipient)
}

func TestDailyService_ApproveEntries_AllOrNothing(t *testing.T) {
	// GIVEN: A batch mixing bob's entry with dave's (not carol's report)
	// WHEN: carol approves the batch
	// THEN: The whole batch fails and bob's entry stays SUBMITTED

	e := newEnv(t)
	ctx := context.Background()

	bobEntry := e.submitDay(t, "proj-a", day1, 8)
	daveEntry, err := e.entries.Create(ctx, worklog.CreateEntry{
		MemberID: "dave", ProjectID: "proj-z", Date: day1, Hours: 8, EnteredBy: "dave",
	})
	require.NoError(t, err)
	_, err = e.entries.ChangeStatus(ctx, daveEntry.ID, worklog.StatusSubmitted, "dave")
	require.NoError(t, err)

	_, err = e.daily.ApproveEntries(ctx, []worklog.EntryID{bobEntry.ID, daveEntry.ID}, "carol", "")
	assert.ErrorIs(t, err, approval.ErrNotDirectReport)

	assert.Equal(t, worklog.StatusSubmitted, e.entryStatus(t, bobEntry.ID), "batch rolled back")
	d, err := e.daily.DecisionForEntry(ctx, bobEntry.ID)
	require.NoError(t, err)
	assert.Nil(t, d, "no decision survives a failed batch")
}

func TestDailyService_ApproveEntries_DirectReportsOnly(t *testing.T) {
	// GIVEN: erin manages carol manages bob
	// WHEN: erin daily-approves bob's entry
	// THEN: Refused; the daily mechanism is for direct managers

	e := newEnv(t)
	entry := e.submitDay(t, "proj-a", day1, 8)

	_, err := e.daily.ApproveEntries(context.Background(), []worklog.EntryID{entry.ID}, "erin", "")
	assert.ErrorIs(t, err, approval.ErrNotDirectReport)

	var notDirect *approval.NotDirectReportError
	require.ErrorAs(t, err, &notDirect)
	assert.Equal(t, worklog.MemberID("erin"), notDirect.SupervisorID)
	assert.Equal(t, worklog.MemberID("bob"), notDirect.MemberID)
}

func TestDailyService_ApproveEntries_TwiceIsReported(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)

	_, err := e.daily.ApproveEntries(ctx, []worklog.EntryID{entry.ID}, "carol", "")
	require.NoError(t, err)

	_, err = e.daily.ApproveEntries(ctx, []worklog.EntryID{entry.ID}, "carol", "")
	assert.ErrorIs(t, err, approval.ErrAlreadyApproved)
}

func TestDailyService_ApproveEntries_EmptyBatch_NoOp(t *testing.T) {
	e := newEnv(t)
	decisions, err := e.daily.ApproveEntries(context.Background(), nil, "carol", "")
	assert.NoError(t, err)
	assert.Empty(t, decisions)
}

// =============================================================================
// REJECTION
// =============================================================================

func TestDailyService_RejectEntry_RequiresComment(t *testing.T) {
	e := newEnv(t)
	entry := e.submitDay(t, "proj-a", day1, 8)

	_, err := e.daily.RejectEntry(context.Background(), entry.ID, "carol", "  ")
	assert.ErrorIs(t, err, approval.ErrCommentRequired)
	assert.Equal(t, worklog.StatusSubmitted, e.entryStatus(t, entry.ID))
}

func TestDailyService_RejectEntry_NoSelfRejection(t *testing.T) {
	e := newEnv(t)
	entry := e.submitDay(t, "proj-a", day1, 8)

	_, err := e.daily.RejectEntry(context.Background(), entry.ID, "bob", "rejecting myself")
	assert.ErrorIs(t, err, approval.ErrSelfRejection)
}

func TestDailyService_RejectEntry_RevertsAndLogs(t *testing.T) {
	// GIVEN: A submitted entry
	// WHEN: carol rejects it with a comment
	// THEN: Entry is REJECTED (editable again), the rejection log has the
	//       row, and bob is notified with the comment

	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)

	d, err := e.daily.RejectEntry(ctx, entry.ID, "carol", "wrong project code")
	require.NoError(t, err)
	assert.Equal(t, approval.DecisionRejected, d.Status)
	assert.Equal(t, worklog.StatusRejected, e.entryStatus(t, entry.ID))

	records, err := e.daily.RejectionsFor(ctx, "bob", day1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "wrong project code", records[0].Reason)
	assert.Equal(t, []worklog.EntryID{entry.ID}, records[0].EntryIDs)
	assert.Equal(t, d.ID, records[0].DecisionID)

	notes := e.notesOfKind(notify.KindEntryRejected)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Body, "wrong project code")

	// Rejected entries are editable without further ceremony.
	_, err = e.entries.Update(ctx, worklog.UpdateEntry{
		EntryID: entry.ID, Hours: 6, Comment: "fixed code", Version: 3, UpdatedBy: "bob",
	})
	assert.NoError(t, err)
}

func TestDailyService_RejectEntry_TwiceIsReported(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)

	_, err := e.daily.RejectEntry(ctx, entry.ID, "carol", "first")
	require.NoError(t, err)

	_, err = e.daily.RejectEntry(ctx, entry.ID, "carol", "second")
	assert.ErrorIs(t, err, approval.ErrAlreadyRejected)
}

// =============================================================================
// RECALL
// =============================================================================

func TestDailyService_RecallApproval_ReturnsEntryToReview(t *testing.T) {
	// GIVEN: carol approved bob's entry
	// WHEN: carol recalls her decision
	// THEN: Decision is RECALLED, entry back to SUBMITTED, no active
	//       decision remains

	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)

	decisions, err := e.daily.ApproveEntries(ctx, []worklog.EntryID{entry.ID}, "carol", "")
	require.NoError(t, err)

	recalled, err := e.daily.RecallApproval(ctx, decisions[0].ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, approval.DecisionRecalled, recalled.Status)
	assert.Equal(t, worklog.StatusSubmitted, e.entryStatus(t, entry.ID))

	active, err := e.daily.DecisionForEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "recalled decisions no longer bind the entry")
}

func TestDailyService_RecallApproval_OriginalSupervisorOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)
	decisions, err := e.daily.ApproveEntries(ctx, []worklog.EntryID{entry.ID}, "carol", "")
	require.NoError(t, err)

	_, err = e.daily.RecallApproval(ctx, decisions[0].ID, "erin")
	assert.ErrorIs(t, err, approval.ErrUnauthorized)
}

func TestDailyService_RecallApproval_OnlyApprovedDecisions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entry := e.submitDay(t, "proj-a", day1, 8)

	d, err := e.daily.RejectEntry(ctx, entry.ID, "carol", "nope")
	require.NoError(t, err)

	_, err = e.daily.RecallApproval(ctx, d.ID, "carol")
	assert.ErrorIs(t, err, approval.ErrInvalidApprovalState, "rejections are not recallable")

	_, err = e.daily.RecallApproval(ctx, "no-such-decision", "carol")
	assert.ErrorIs(t, err, approval.ErrDecisionNotFound)
}

// =============================================================================
// OVERRIDE vs MONTHLY LOCK (Scenario C)
// =============================================================================

func TestOverride_DailyRejectionReleasesDateFromApprovedMonth(t *testing.T) {
	// GIVEN: bob's month of three entries is submitted; carol daily-rejects
	//        the first, then approves the month
	// WHEN: bob recalls the rejected entry and one still under the lock
	// THEN: The released date recalls fine despite the APPROVED month;
	//       the locked date stays blocked

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	e2 := e.logDay(t, "proj-a", day2, 8)
	e3 := e.logDay(t, "proj-b", day3, 4)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	// Rejection while the month is in review creates the override.
	_, err = e.daily.RejectEntry(ctx, e1.ID, "carol", "wrong project")
	require.NoError(t, err)

	approved, err := e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, approval.ApprovalApproved, approved.Status)
	assert.Equal(t, worklog.StatusRejected, e.entryStatus(t, e1.ID), "released entry skipped by month approval")
	assert.Equal(t, worklog.StatusApproved, e.entryStatus(t, e2.ID))
	assert.Equal(t, worklog.StatusApproved, e.entryStatus(t, e3.ID))

	// The released date moves freely.
	recalled, err := e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusDraft, "bob")
	require.NoError(t, err, "active rejection overrides the monthly lock")
	assert.Equal(t, worklog.StatusDraft, recalled.Status)

	// Its neighbors stay sealed.
	_, err = e.entries.ChangeStatus(ctx, e2.ID, worklog.StatusDraft, "bob")
	assert.ErrorIs(t, err, worklog.ErrRecallBlocked)
}

func TestOverride_ExpiresWhenEntryIsApprovedAgain(t *testing.T) {
	// GIVEN: The released entry was fixed, resubmitted, and daily-approved
	// WHEN: bob tries to recall it once more
	// THEN: The override is spent (its rejection is superseded), so the
	//       APPROVED month blocks again

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	e.logDay(t, "proj-a", day2, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	_, err = e.daily.RejectEntry(ctx, e1.ID, "carol", "wrong project")
	require.NoError(t, err)
	_, err = e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)

	// Fix under the override, resubmit, and get the fresh approval.
	_, err = e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusDraft, "bob")
	require.NoError(t, err)
	fixed, err := e.entries.Get(ctx, e1.ID)
	require.NoError(t, err)
	_, err = e.entries.Update(ctx, worklog.UpdateEntry{
		EntryID: e1.ID, Hours: 8, Comment: "right project now", Version: fixed.Version, UpdatedBy: "bob",
	})
	require.NoError(t, err)
	_, err = e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusSubmitted, "bob")
	require.NoError(t, err)
	_, err = e.daily.ApproveEntries(ctx, []worklog.EntryID{e1.ID}, "carol", "")
	require.NoError(t, err)

	_, err = e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusDraft, "bob")
	assert.ErrorIs(t, err, worklog.ErrRecallBlocked, "the fresh approval closed the hole")
}

func TestOverride_RejectingUnderApprovedMonthNeedsRelease(t *testing.T) {
	// GIVEN: A month approved with no prior daily rejection
	// WHEN: carol daily-rejects a sealed entry
	// THEN: Blocked; the release must come from a rejection made while
	//       the month was still under review

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	_, err = e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)

	_, err = e.daily.RejectEntry(ctx, e1.ID, "carol", "too late")
	assert.ErrorIs(t, err, approval.ErrRejectBlocked)

	var blocked *approval.RejectBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, approval.ApprovalApproved, blocked.MonthlyStatus)
}
