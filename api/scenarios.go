/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates organizations,
	members, patterns and entries that demonstrate specific features.

AVAILABLE SCENARIOS:

	small-team:              Manager with two reports, drafts and a proxy entry
	month-end-review:        A submitted month awaiting manager review
	approved-month-override: Approved month with an active daily-rejection override
	fiscal-calendar:         Pattern inheritance across an organization tree

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the directory (organizations, members, patterns)
 3. Create entries through the real services
 4. Optionally run the approval workflow to the advertised state

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "month-end-review"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - store/sqlite/sqlite.go: Seed persistence
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/store/sqlite"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "Manager with two reports, draft and submitted entries, one proxy entry",
		Category:    "worklog",
	},
	{
		ID:          "month-end-review",
		Name:        "Month-End Review",
		Description: "A full month submitted and waiting for manager approval or rejection",
		Category:    "approval",
	},
	{
		ID:          "approved-month-override",
		Name:        "Approved Month With Override",
		Description: "Approved month where one entry carries an active daily rejection, so it can be recalled despite the lock",
		Category:    "approval",
	},
	{
		ID:          "fiscal-calendar",
		Name:        "Fiscal Calendar",
		Description: "Organization tree inheriting an April fiscal year from the tenant and a mid-month accounting period from a child node",
		Category:    "fiscal",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "small-team":
		err = h.loadSmallTeamScenario(ctx)
	case "month-end-review":
		err = h.loadMonthEndReviewScenario(ctx)
	case "approved-month-override":
		err = h.loadApprovedMonthOverrideScenario(ctx)
	case "fiscal-calendar":
		err = h.loadFiscalCalendarScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallTeamScenario(ctx context.Context) error {
	if err := h.Store.SaveOrganization(ctx, fiscal.OrganizationNode{
		ID:       "org-acme",
		TenantID: "tenant-demo",
		Name:     "Acme Engineering",
	}); err != nil {
		return err
	}

	members := []sqlite.MemberRecord{
		{ID: "grace", Name: "Grace Okafor", OrganizationID: "org-acme"},
		{ID: "heidi", Name: "Heidi Lindqvist", ManagerID: "grace", OrganizationID: "org-acme"},
		{ID: "ivan", Name: "Ivan Petrov", ManagerID: "grace", OrganizationID: "org-acme"},
	}
	for _, m := range members {
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return err
		}
	}

	// Heidi: one submitted day, one split draft day.
	submitted, err := h.Entries.Create(ctx, worklog.CreateEntry{
		MemberID: "heidi", ProjectID: "proj-atlas",
		Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Hours: 8, Comment: "Sprint kickoff and pairing", EnteredBy: "heidi",
	})
	if err != nil {
		return err
	}
	if _, err := h.Entries.ChangeStatus(ctx, submitted.ID, worklog.StatusSubmitted, "heidi"); err != nil {
		return err
	}

	drafts := []worklog.CreateEntry{
		{MemberID: "heidi", ProjectID: "proj-atlas",
			Date:  time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
			Hours: 6, Comment: "Ingestion pipeline", EnteredBy: "heidi"},
		{MemberID: "heidi", ProjectID: "proj-beacon",
			Date:  time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
			Hours: 2, Comment: "Design review", EnteredBy: "heidi"},
	}
	for _, cmd := range drafts {
		if _, err := h.Entries.Create(ctx, cmd); err != nil {
			return err
		}
	}

	// Ivan was in the field; Grace logs his day for him.
	_, err = h.Entries.Create(ctx, worklog.CreateEntry{
		MemberID: "ivan", ProjectID: "proj-beacon",
		Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Hours: 7.5, Comment: "Customer site visit", EnteredBy: "grace",
	})
	return err
}

func (h *Handler) loadMonthEndReviewScenario(ctx context.Context) error {
	if err := h.seedReviewTeam(ctx); err != nil {
		return err
	}
	_, _, err := h.submitFebruary(ctx)
	return err
}

func (h *Handler) loadApprovedMonthOverrideScenario(ctx context.Context) error {
	if err := h.seedReviewTeam(ctx); err != nil {
		return err
	}
	entryIDs, a, err := h.submitFebruary(ctx)
	if err != nil {
		return err
	}

	// Omar flags the first day before signing off the month. The active
	// rejection keeps that one date reworkable after the lock.
	if _, err := h.Daily.RejectEntry(ctx, entryIDs[0], "omar", "Hours billed to the wrong project"); err != nil {
		return err
	}

	_, err = h.Monthly.ApproveMonth(ctx, a.ID, "omar")
	return err
}

func (h *Handler) loadFiscalCalendarScenario(ctx context.Context) error {
	aprilStart := fiscal.PatternID("fy-april-start")
	midMonth := fiscal.PatternID("mp-mid-month")

	if err := h.Store.SaveFiscalYearPattern(ctx, fiscal.FiscalYearPattern{
		ID: aprilStart, Name: "April fiscal year", StartMonth: time.April, StartDay: 1,
	}); err != nil {
		return err
	}
	if err := h.Store.SaveMonthlyPeriodPattern(ctx, fiscal.MonthlyPeriodPattern{
		ID: midMonth, Name: "16th to 15th", StartDay: 16,
	}); err != nil {
		return err
	}
	if err := h.Store.SaveTenantDefaults(ctx, fiscal.TenantDefaults{
		TenantID:            "tenant-demo",
		FiscalYearPatternID: &aprilStart,
	}); err != nil {
		return err
	}

	root := fiscal.OrganizationNode{
		ID: "org-global", TenantID: "tenant-demo", Name: "Global Operations",
	}
	rootID := root.ID
	plant := fiscal.OrganizationNode{
		ID: "org-plant", TenantID: "tenant-demo", Name: "Nagoya Plant",
		ParentID:               &rootID,
		MonthlyPeriodPatternID: &midMonth,
	}
	if err := h.Store.SaveOrganization(ctx, root); err != nil {
		return err
	}
	if err := h.Store.SaveOrganization(ctx, plant); err != nil {
		return err
	}

	members := []sqlite.MemberRecord{
		{ID: "rafa", Name: "Rafael Sousa", OrganizationID: "org-global"},
		{ID: "kana", Name: "Kana Watanabe", ManagerID: "rafa", OrganizationID: "org-plant"},
	}
	for _, m := range members {
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return err
		}
	}

	// Two entries either side of the March 16 period boundary.
	entries := []worklog.CreateEntry{
		{MemberID: "kana", ProjectID: "proj-line-retrofit",
			Date:  time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			Hours: 7.75, Comment: "Controller calibration", EnteredBy: "kana"},
		{MemberID: "kana", ProjectID: "proj-line-retrofit",
			Date:  time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
			Hours: 8, Comment: "Acceptance run", EnteredBy: "kana"},
	}
	for _, cmd := range entries {
		if _, err := h.Entries.Create(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// seedReviewTeam sets up Omar managing Maya with three February days and
// one recorded absence.
func (h *Handler) seedReviewTeam(ctx context.Context) error {
	if err := h.Store.SaveOrganization(ctx, fiscal.OrganizationNode{
		ID:       "org-acme",
		TenantID: "tenant-demo",
		Name:     "Acme Engineering",
	}); err != nil {
		return err
	}

	members := []sqlite.MemberRecord{
		{ID: "omar", Name: "Omar Haddad", OrganizationID: "org-acme"},
		{ID: "maya", Name: "Maya Chen", ManagerID: "omar", OrganizationID: "org-acme"},
	}
	for _, m := range members {
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return err
		}
	}

	return h.Store.SaveAbsence(ctx, approval.AbsenceRecord{
		ID:       "abs-maya-feb-05",
		MemberID: "maya",
		Date:     time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC),
		Kind:     "VACATION",
	})
}

// submitFebruary logs Maya's three February days and submits the month.
// Returns the entry ids in date order and the submitted approval.
func (h *Handler) submitFebruary(ctx context.Context) ([]worklog.EntryID, *approval.MonthlyApproval, error) {
	cmds := []worklog.CreateEntry{
		{MemberID: "maya", ProjectID: "proj-atlas",
			Date:  time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC),
			Hours: 8, Comment: "Schema migration", EnteredBy: "maya"},
		{MemberID: "maya", ProjectID: "proj-atlas",
			Date:  time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC),
			Hours: 7.5, Comment: "Migration rollout", EnteredBy: "maya"},
		{MemberID: "maya", ProjectID: "proj-beacon",
			Date:  time.Date(2026, time.February, 4, 0, 0, 0, 0, time.UTC),
			Hours: 8, Comment: "Incident review", EnteredBy: "maya"},
	}

	ids := make([]worklog.EntryID, 0, len(cmds))
	for _, cmd := range cmds {
		e, err := h.Entries.Create(ctx, cmd)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, e.ID)
	}

	period, err := h.memberPeriod(ctx, "maya", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, nil, err
	}
	a, err := h.Monthly.SubmitMonth(ctx, "maya", period, "maya")
	if err != nil {
		return nil, nil, err
	}
	return ids, a, nil
}
