package approval_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/store/memory"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// env wires the whole engine over the in-memory store: bob reports to
// carol, carol reports to erin; dave is unrelated.
type env struct {
	store     *memory.Store
	hierarchy *worklog.MemoryHierarchy
	absences  *approval.MemoryAbsences
	notes     *notify.Memory
	entries   *worklog.EntryService
	monthly   *approval.MonthlyService
	daily     *approval.DailyService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	hierarchy := worklog.NewMemoryHierarchy()
	hierarchy.SetManager("bob", "carol")
	hierarchy.SetManager("carol", "erin")
	absences := approval.NewMemoryAbsences()
	notes := notify.NewMemory()

	gate := approval.NewGate(store, store)
	return &env{
		store:     store,
		hierarchy: hierarchy,
		absences:  absences,
		notes:     notes,
		entries:   worklog.NewEntryService(store, store, hierarchy).WithGate(gate),
		monthly: approval.NewMonthlyService(store, store, store, hierarchy).
			WithAbsences(absences).WithNotifier(notes),
		daily: approval.NewDailyService(store, store, store, store, store, hierarchy).
			WithNotifier(notes),
	}
}

// logDay creates a draft entry for bob.
func (e *env) logDay(t *testing.T, project string, date time.Time, hours float64) *worklog.WorkLogEntry {
	t.Helper()
	entry, err := e.entries.Create(context.Background(), worklog.CreateEntry{
		MemberID:  "bob",
		ProjectID: worklog.ProjectID(project),
		Date:      date,
		Hours:     hours,
		EnteredBy: "bob",
	})
	require.NoError(t, err)
	return entry
}

func (e *env) entryStatus(t *testing.T, id worklog.EntryID) worklog.EntryStatus {
	t.Helper()
	entry, err := e.entries.Get(context.Background(), id)
	require.NoError(t, err)
	return entry.Status
}

func (e *env) notesOfKind(kind notify.Kind) []notify.Notification {
	var out []notify.Notification
	for _, n := range e.notes.Notifications() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

var (
	bobPeriod = fiscal.Period{
		Start: fiscal.Date(2025, time.February, 21),
		End:   fiscal.Date(2025, time.March, 20),
	}
	day1 = fiscal.Date(2025, time.March, 3)
	day2 = fiscal.Date(2025, time.March, 4)
	day3 = fiscal.Date(2025, time.March, 5)
)

// =============================================================================
// SUBMISSION
// =============================================================================

func TestMonthlyService_Submit_SweepsDraftsIntoReview(t *testing.T) {
	// GIVEN: Three drafts and one absence inside bob's fiscal month
	// WHEN: Submitting the month
	// THEN: One SUBMITTED approval covering all of them, entries in review

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	e2 := e.logDay(t, "proj-a", day2, 8)
	e3 := e.logDay(t, "proj-b", day3, 4)
	e.absences.Add(approval.AbsenceRecord{ID: "abs-1", MemberID: "bob", Date: fiscal.Date(2025, time.March, 6), Kind: "vacation"})

	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	assert.Equal(t, approval.ApprovalSubmitted, a.Status)
	assert.Equal(t, 1, a.Version)
	assert.Len(t, a.EntryIDs, 3)
	assert.Equal(t, []string{"abs-1"}, a.AbsenceIDs)
	for _, id := range []worklog.EntryID{e1.ID, e2.ID, e3.ID} {
		assert.Equal(t, worklog.StatusSubmitted, e.entryStatus(t, id))
	}

	// The approval is findable by period start and by covered date.
	byPeriod, err := e.monthly.ForPeriod(ctx, "bob", bobPeriod.Start)
	require.NoError(t, err)
	require.NotNil(t, byPeriod)
	assert.Equal(t, a.ID, byPeriod.ID)

	byDate, err := e.monthly.ForDate(ctx, "bob", day2)
	require.NoError(t, err)
	require.NotNil(t, byDate)
	assert.Equal(t, a.ID, byDate.ID)
}

func TestMonthlyService_Submit_UnchangedRetry_IsNoOp(t *testing.T) {
	// GIVEN: A submitted month
	// WHEN: Submitting again with nothing changed
	// THEN: Same aggregate, same version, no new event

	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)

	first, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	retry, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	assert.Equal(t, first.ID, retry.ID, "one live approval per member-period")
	assert.Equal(t, first.Version, retry.Version)

	version, err := e.store.CurrentVersion(ctx, eventstore.AggregateID(first.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, version, "retry appended nothing")
}

func TestMonthlyService_Submit_ChangedSet_RefixesCoverage(t *testing.T) {
	// GIVEN: A submitted month and a new draft logged afterwards
	// WHEN: Resubmitting
	// THEN: A fresh submission event fixes the larger set

	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)

	first, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	require.Len(t, first.EntryIDs, 1)

	late := e.logDay(t, "proj-b", day2, 4)
	second, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Len(t, second.EntryIDs, 2)
	assert.True(t, second.CoversEntry(late.ID))
	assert.Equal(t, worklog.StatusSubmitted, e.entryStatus(t, late.ID))
}

func TestMonthlyService_Submit_ProxyNeedsReportingLine(t *testing.T) {
	// GIVEN: bob's month with one draft
	// WHEN: carol (manager) and dave (stranger) submit on his behalf
	// THEN: The manager may, the stranger may not

	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)

	_, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "dave")
	assert.ErrorIs(t, err, worklog.ErrProxyNotAllowed)

	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "carol")
	require.NoError(t, err)
	assert.Equal(t, worklog.MemberID("carol"), a.SubmittedBy)
}

// =============================================================================
// REVIEW
// =============================================================================

func TestMonthlyService_Approve_FinalizesCoveredEntries(t *testing.T) {
	// GIVEN: A submitted month of three entries, plus a draft logged after
	// WHEN: carol approves it
	// THEN: Covered entries are APPROVED, the late draft is untouched,
	//       bob is notified once

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	e2 := e.logDay(t, "proj-a", day2, 8)
	e3 := e.logDay(t, "proj-b", day3, 4)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	late := e.logDay(t, "proj-c", day3, 2)

	approved, err := e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, approval.ApprovalApproved, approved.Status)
	assert.Equal(t, worklog.MemberID("carol"), approved.ReviewedBy)

	for _, id := range []worklog.EntryID{e1.ID, e2.ID, e3.ID} {
		assert.Equal(t, worklog.StatusApproved, e.entryStatus(t, id))
	}
	assert.Equal(t, worklog.StatusDraft, e.entryStatus(t, late.ID), "outside the covered set")

	notes := e.notesOfKind(notify.KindMonthApproved)
	require.Len(t, notes, 1)
	assert.Equal(t, "bob", notes[0].Recipient)
}

func TestMonthlyService_Approve_Authorization(t *testing.T) {
	// GIVEN: bob's submitted month
	// WHEN: bob, dave, and erin (indirect manager) try to approve
	// THEN: Self and stranger are refused; the chain above is allowed

	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	_, err = e.monthly.ApproveMonth(ctx, a.ID, "bob")
	assert.ErrorIs(t, err, approval.ErrUnauthorized, "no self approval")

	_, err = e.monthly.ApproveMonth(ctx, a.ID, "dave")
	assert.ErrorIs(t, err, approval.ErrUnauthorized)

	_, err = e.monthly.ApproveMonth(ctx, a.ID, "erin")
	assert.NoError(t, err, "any manager up the chain may review")
}

func TestMonthlyService_Approve_Twice_ReportsAlreadyApproved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	_, err = e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)

	_, err = e.monthly.ApproveMonth(ctx, a.ID, "carol")
	assert.ErrorIs(t, err, approval.ErrAlreadyApproved)
}

func TestMonthlyService_Reject_RevertsEntriesWithReason(t *testing.T) {
	// GIVEN: A submitted month
	// WHEN: carol rejects it (reason required)
	// THEN: Entries return to DRAFT for rework, reason and notification
	//       reach bob, and the cycle can restart

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	_, err = e.monthly.RejectMonth(ctx, a.ID, "carol", "   ")
	assert.ErrorIs(t, err, approval.ErrReasonRequired, "blank reason refused")

	rejected, err := e.monthly.RejectMonth(ctx, a.ID, "carol", "friday is missing")
	require.NoError(t, err)
	assert.Equal(t, approval.ApprovalRejected, rejected.Status)
	assert.Equal(t, "friday is missing", rejected.RejectionReason)
	assert.Equal(t, worklog.StatusDraft, e.entryStatus(t, e1.ID))

	notes := e.notesOfKind(notify.KindMonthRejected)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Body, "friday is missing")

	// Rework and resubmit restarts the cycle on the same aggregate.
	_, err = e.entries.Update(ctx, worklog.UpdateEntry{
		EntryID: e1.ID, Hours: 7.5, Comment: "fixed", Version: 3, UpdatedBy: "bob",
	})
	require.NoError(t, err)

	again, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, approval.ApprovalSubmitted, again.Status)
}

func TestMonthlyService_NotifyFailure_DoesNotFailApproval(t *testing.T) {
	// GIVEN: A notifier that always fails
	// WHEN: carol approves the month
	// THEN: The approval still commits; delivery trouble is not a veto

	e := newEnv(t)
	ctx := context.Background()
	e.logDay(t, "proj-a", day1, 8)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	e.notes.FailWith(context.DeadlineExceeded)
	approved, err := e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, approval.ApprovalApproved, approved.Status)
}

// =============================================================================
// MONTHLY LOCK (Scenario B)
// =============================================================================

func TestMonthlyLock_ApprovedMonthSealsItsEntries(t *testing.T) {
	// GIVEN: A submitted and approved month of three entries
	// WHEN: bob tries to recall, update, and delete one of them
	// THEN: Recall is blocked by the approval; update and delete fail
	//       because APPROVED entries are not editable

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	e.logDay(t, "proj-a", day2, 8)
	e.logDay(t, "proj-b", day3, 4)
	a, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)
	_, err = e.monthly.ApproveMonth(ctx, a.ID, "carol")
	require.NoError(t, err)

	_, err = e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusDraft, "bob")
	assert.ErrorIs(t, err, worklog.ErrRecallBlocked)
	var blocked *worklog.RecallBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, string(approval.ApprovalApproved), blocked.MonthlyStatus)

	entry, err := e.entries.Get(ctx, e1.ID)
	require.NoError(t, err)
	_, err = e.entries.Update(ctx, worklog.UpdateEntry{
		EntryID: e1.ID, Hours: 1, Comment: "sneaky", Version: entry.Version, UpdatedBy: "bob",
	})
	assert.ErrorIs(t, err, worklog.ErrNotEditable)

	err = e.entries.Delete(ctx, worklog.DeleteEntry{EntryID: e1.ID, Version: entry.Version, DeletedBy: "bob"})
	assert.ErrorIs(t, err, worklog.ErrNotEditable)
}

func TestMonthlyLock_SubmittedMonthBlocksRecallToo(t *testing.T) {
	// GIVEN: A month in review (SUBMITTED, not yet decided)
	// WHEN: bob recalls an entry of that month
	// THEN: Blocked; the covered set must not shift under the reviewer

	e := newEnv(t)
	ctx := context.Background()

	e1 := e.logDay(t, "proj-a", day1, 8)
	_, err := e.monthly.SubmitMonth(ctx, "bob", bobPeriod, "bob")
	require.NoError(t, err)

	_, err = e.entries.ChangeStatus(ctx, e1.ID, worklog.StatusDraft, "bob")
	assert.ErrorIs(t, err, worklog.ErrRecallBlocked)

	var blocked *worklog.RecallBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, string(approval.ApprovalSubmitted), blocked.MonthlyStatus)
}
