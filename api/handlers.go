/*
handlers.go - HTTP API handlers for the work-log engine

PURPOSE:
  Exposes the work-log and approval engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Entries:
    GET    /api/entries                      List entries for a member and range
    POST   /api/entries                      Create entry
    GET    /api/entries/{id}                 Get entry
    PUT    /api/entries/{id}                 Update hours/comment
    DELETE /api/entries/{id}                 Delete entry
    POST   /api/entries/{id}/status          Drive the entry state machine
    GET    /api/entries/{id}/history         Decoded event stream
    GET    /api/entries/{id}/decision        Active daily decision, if any
    POST   /api/entries/{id}/reject          Daily rejection by direct manager

  Monthly approvals:
    POST   /api/approvals/submit             Submit the month containing a date
    GET    /api/approvals                    Find by member + date or period_start
    GET    /api/approvals/{id}               Get approval
    POST   /api/approvals/{id}/approve       Approve a submitted month
    POST   /api/approvals/{id}/reject        Reject a submitted month

  Daily decisions:
    POST   /api/decisions/approve            Batch-approve submitted entries
    GET    /api/decisions/{id}               Get decision
    POST   /api/decisions/{id}/recall        Recall an approval decision

  Members:
    GET    /api/members                      Directory listing
    GET    /api/members/{id}/daily-total     Committed hours for one day
    GET    /api/members/{id}/rejections      Rejection log rows for one day

  Fiscal calendar:
    GET    /api/organizations/{id}/date-info Classify a date

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    GET    /api/scenarios/current            Currently loaded scenario
    POST   /api/scenarios/load               Load a demo scenario
    POST   /api/admin/reset                  Clear all data

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also backs every service contract)
  - Entries/Monthly/Daily: Domain command services
  - Resolver: Fiscal calendar resolution

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (services, resolver, store reads)
  4. Serialize response
  5. Map domain errors to status + code

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Authorization failures
  - 404: Resource not found
  - 409: Conflict (optimistic lock, duplicate slot, state machine)
  - 500: Internal errors, fiscal configuration errors
  Every domain error carries a stable machine code in the "code" field.

SECURITY NOTE:
  Currently NO authentication. Actor identity rides in request bodies and
  is trusted as given; authorization checks run against the directory.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/store/sqlite"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Entries  *worklog.EntryService
	Monthly  *approval.MonthlyService
	Daily    *approval.DailyService
	Resolver *fiscal.Resolver

	log logrus.FieldLogger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the full service stack on top of one store.
func NewHandler(store *sqlite.Store) *Handler {
	gate := approval.NewGate(store, store)
	entries := worklog.NewEntryService(store, store, store).WithGate(gate)
	monthly := approval.NewMonthlyService(store, store, store, store).WithAbsences(store)
	daily := approval.NewDailyService(store, store, store, store, store, store)

	return &Handler{
		Store:    store,
		Entries:  entries,
		Monthly:  monthly,
		Daily:    daily,
		Resolver: fiscal.NewResolver(store, store),
		log:      logrus.StandardLogger(),
	}
}

// WithLogger routes handler and service logging through log.
func (h *Handler) WithLogger(log logrus.FieldLogger) *Handler {
	h.log = log
	h.Monthly.WithLogger(log)
	h.Daily.WithLogger(log)
	return h
}

// WithNotifier wires workflow notifications into the services.
func (h *Handler) WithNotifier(n notify.Notifier) *Handler {
	h.Monthly.WithNotifier(n)
	h.Daily.WithNotifier(n)
	return h
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns a member's entries in a date range.
// GET /api/entries?member_id=&from=&to=&status=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}
	from, err := fiscal.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := fiscal.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	filter, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status filter", err)
		return
	}

	entries, err := h.Entries.List(r.Context(), worklog.MemberID(memberID), from, to, filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry logs hours for a member on a project and date.
// POST /api/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := fiscal.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	enteredBy := req.EnteredBy
	if enteredBy == "" {
		enteredBy = req.MemberID
	}

	entry, err := h.Entries.Create(r.Context(), worklog.CreateEntry{
		MemberID:  worklog.MemberID(req.MemberID),
		ProjectID: worklog.ProjectID(req.ProjectID),
		Date:      date,
		Hours:     req.Hours,
		Comment:   req.Comment,
		EnteredBy: worklog.MemberID(enteredBy),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// GetEntry returns a single entry rebuilt from its event stream.
// GET /api/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := worklog.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Entries.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// UpdateEntry rewrites hours/comment of an editable entry.
// PUT /api/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := worklog.EntryID(chi.URLParam(r, "id"))

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Entries.Update(r.Context(), worklog.UpdateEntry{
		EntryID:   id,
		Hours:     req.Hours,
		Comment:   req.Comment,
		Version:   req.Version,
		UpdatedBy: worklog.MemberID(req.UpdatedBy),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// DeleteEntry terminally deletes an editable entry.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := worklog.EntryID(chi.URLParam(r, "id"))

	var req DeleteEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Entries.Delete(r.Context(), worklog.DeleteEntry{
		EntryID:   id,
		Version:   req.Version,
		DeletedBy: worklog.MemberID(req.DeletedBy),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ChangeEntryStatus drives the entry state machine: submit, recall,
// resubmit after rejection.
// POST /api/entries/{id}/status
func (h *Handler) ChangeEntryStatus(w http.ResponseWriter, r *http.Request) {
	id := worklog.EntryID(chi.URLParam(r, "id"))

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to, ok := parseEntryStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown status: "+req.Status, nil)
		return
	}

	entry, err := h.Entries.ChangeStatus(r.Context(), id, to, worklog.MemberID(req.Actor))
	if err != nil {
		h.writeDomainError(w, "Failed to change status", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// EntryHistory returns the decoded event stream of one entry.
// GET /api/entries/{id}/history
func (h *Handler) EntryHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stream, err := h.Store.Load(r.Context(), eventstore.AggregateID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	if len(stream) == 0 {
		writeError(w, http.StatusNotFound, "Entry not found", nil)
		return
	}

	dtos := make([]EventDTO, len(stream))
	for i, ev := range stream {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DailyTotal reports the committed hour total for one member-day.
// GET /api/members/{id}/daily-total?date=
func (h *Handler) DailyTotal(w http.ResponseWriter, r *http.Request) {
	memberID := worklog.MemberID(chi.URLParam(r, "id"))
	date, err := fiscal.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	total, err := h.Entries.DailyTotal(r.Context(), memberID, date)
	if err != nil {
		h.writeDomainError(w, "Failed to compute daily total", err)
		return
	}
	writeJSON(w, http.StatusOK, DailyTotalDTO{
		MemberID:   string(memberID),
		Date:       fiscal.FormatDate(date),
		TotalHours: total.Float64(),
	})
}

// =============================================================================
// MONTHLY APPROVAL HANDLERS
// =============================================================================

// SubmitMonth submits the accounting month containing the given date.
// The period boundaries come from the member's fiscal calendar.
// POST /api/approvals/submit
func (h *Handler) SubmitMonth(w http.ResponseWriter, r *http.Request) {
	var req SubmitMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := fiscal.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	submittedBy := req.SubmittedBy
	if submittedBy == "" {
		submittedBy = req.MemberID
	}

	ctx := r.Context()
	period, err := h.memberPeriod(ctx, worklog.MemberID(req.MemberID), date)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve accounting month", err)
		return
	}

	a, err := h.Monthly.SubmitMonth(ctx, worklog.MemberID(req.MemberID), period, worklog.MemberID(submittedBy))
	if err != nil {
		h.writeDomainError(w, "Failed to submit month", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApprovalDTO(a))
}

// GetApproval returns a monthly approval by id.
// GET /api/approvals/{id}
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	id := approval.ApprovalID(chi.URLParam(r, "id"))

	a, err := h.Monthly.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get approval", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(a))
}

// FindApproval locates a member's approval by covered date or by exact
// period start. Responds 404 when no approval exists yet.
// GET /api/approvals?member_id=&date= or ?member_id=&period_start=
func (h *Handler) FindApproval(w http.ResponseWriter, r *http.Request) {
	memberID := worklog.MemberID(r.URL.Query().Get("member_id"))
	if memberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}

	var (
		a   *approval.MonthlyApproval
		err error
	)
	switch {
	case r.URL.Query().Get("period_start") != "":
		var start time.Time
		start, err = fiscal.ParseDate(r.URL.Query().Get("period_start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period_start (use YYYY-MM-DD)", err)
			return
		}
		a, err = h.Monthly.ForPeriod(r.Context(), memberID, start)
	case r.URL.Query().Get("date") != "":
		var date time.Time
		date, err = fiscal.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		a, err = h.Monthly.ForDate(r.Context(), memberID, date)
	default:
		writeError(w, http.StatusBadRequest, "date or period_start is required", nil)
		return
	}

	if err != nil {
		h.writeDomainError(w, "Failed to find approval", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "No approval for this period", nil)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(a))
}

// ApproveMonth approves a submitted month. The reviewer must be in the
// member's reporting line.
// POST /api/approvals/{id}/approve
func (h *Handler) ApproveMonth(w http.ResponseWriter, r *http.Request) {
	id := approval.ApprovalID(chi.URLParam(r, "id"))

	var req ReviewMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Monthly.ApproveMonth(r.Context(), id, worklog.MemberID(req.ReviewedBy))
	if err != nil {
		h.writeDomainError(w, "Failed to approve month", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(a))
}

// RejectMonth rejects a submitted month with a mandatory reason and
// sweeps covered entries back to DRAFT.
// POST /api/approvals/{id}/reject
func (h *Handler) RejectMonth(w http.ResponseWriter, r *http.Request) {
	id := approval.ApprovalID(chi.URLParam(r, "id"))

	var req ReviewMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Monthly.RejectMonth(r.Context(), id, worklog.MemberID(req.ReviewedBy), req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to reject month", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(a))
}

// =============================================================================
// DAILY DECISION HANDLERS
// =============================================================================

// ApproveEntries batch-approves submitted entries as their direct manager.
// POST /api/decisions/approve
func (h *Handler) ApproveEntries(w http.ResponseWriter, r *http.Request) {
	var req ApproveEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.EntryIDs) == 0 {
		writeError(w, http.StatusBadRequest, "entry_ids is required", nil)
		return
	}

	decisions, err := h.Daily.ApproveEntries(r.Context(),
		entryIDsFromStrings(req.EntryIDs), worklog.MemberID(req.SupervisorID), req.Comment)
	if err != nil {
		h.writeDomainError(w, "Failed to approve entries", err)
		return
	}

	dtos := make([]DecisionDTO, len(decisions))
	for i := range decisions {
		dtos[i] = toDecisionDTO(&decisions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RejectEntry rejects one submitted entry and logs the override record.
// POST /api/entries/{id}/reject
func (h *Handler) RejectEntry(w http.ResponseWriter, r *http.Request) {
	entryID := worklog.EntryID(chi.URLParam(r, "id"))

	var req RejectEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Daily.RejectEntry(r.Context(), entryID, worklog.MemberID(req.SupervisorID), req.Comment)
	if err != nil {
		h.writeDomainError(w, "Failed to reject entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

// GetDecision returns a daily decision by id.
// GET /api/decisions/{id}
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := approval.DecisionID(chi.URLParam(r, "id"))

	d, err := h.Store.DecisionByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get decision", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Decision not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

// RecallDecision recalls an active approval decision, returning the
// entry to SUBMITTED.
// POST /api/decisions/{id}/recall
func (h *Handler) RecallDecision(w http.ResponseWriter, r *http.Request) {
	id := approval.DecisionID(chi.URLParam(r, "id"))

	var req RecallDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Daily.RecallApproval(r.Context(), id, worklog.MemberID(req.SupervisorID))
	if err != nil {
		h.writeDomainError(w, "Failed to recall decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

// EntryDecision returns the active decision binding an entry, if any.
// GET /api/entries/{id}/decision
func (h *Handler) EntryDecision(w http.ResponseWriter, r *http.Request) {
	entryID := worklog.EntryID(chi.URLParam(r, "id"))

	d, err := h.Daily.DecisionForEntry(r.Context(), entryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get decision", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "No active decision for entry", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

// MemberRejections returns the rejection log rows for one member-day,
// newest first.
// GET /api/members/{id}/rejections?date=
func (h *Handler) MemberRejections(w http.ResponseWriter, r *http.Request) {
	memberID := worklog.MemberID(chi.URLParam(r, "id"))
	date, err := fiscal.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	records, err := h.Daily.RejectionsFor(r.Context(), memberID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rejections", err)
		return
	}

	dtos := make([]RejectionDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRejectionDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns the directory.
// GET /api/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = MemberDTO{
			ID:             string(m.ID),
			Name:           m.Name,
			ManagerID:      string(m.ManagerID),
			OrganizationID: string(m.OrganizationID),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FISCAL CALENDAR HANDLERS
// =============================================================================

// DateInfo classifies a date under an organization's fiscal calendar.
// GET /api/organizations/{id}/date-info?date=
func (h *Handler) DateInfo(w http.ResponseWriter, r *http.Request) {
	orgID := fiscal.OrganizationID(chi.URLParam(r, "id"))
	date, err := fiscal.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	info, err := h.Resolver.DateInfo(r.Context(), orgID, date)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve date", err)
		return
	}
	writeJSON(w, http.StatusOK, toDateInfoDTO(info))
}

// memberPeriod resolves the accounting month for a member and date.
// Members without an organization fall back to the calendar month.
func (h *Handler) memberPeriod(ctx context.Context, member worklog.MemberID, date time.Time) (fiscal.Period, error) {
	rec, err := h.Store.FindMember(ctx, member)
	if err != nil {
		return fiscal.Period{}, err
	}
	if rec == nil || rec.OrganizationID == "" {
		return fiscal.MonthlyPeriodPattern{StartDay: 1}.PeriodFor(date), nil
	}
	return h.Resolver.MonthlyPeriodFor(ctx, rec.OrganizationID, date)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data. Development use only.
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to status + machine code.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusAndCode(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

// statusAndCode classifies a domain error. Specific sentinels first,
// then family helpers, then the 500 fallback.
func statusAndCode(err error) (int, string) {
	switch {
	// Validation and invariant violations.
	case errors.Is(err, worklog.ErrDailyLimitExceeded):
		return http.StatusBadRequest, "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, worklog.ErrInvalidHours):
		return http.StatusBadRequest, "INVALID_TIME_AMOUNT"
	case errors.Is(err, approval.ErrCommentRequired):
		return http.StatusBadRequest, "COMMENT_REQUIRED"
	case errors.Is(err, approval.ErrReasonRequired):
		return http.StatusBadRequest, "REASON_REQUIRED"

	// Conflicts with existing state.
	case errors.Is(err, worklog.ErrDuplicateEntry):
		return http.StatusConflict, "DUPLICATE_ENTRY"
	case errors.Is(err, worklog.ErrRecallBlocked):
		return http.StatusConflict, "RECALL_BLOCKED_BY_APPROVAL"
	case errors.Is(err, approval.ErrRejectBlocked):
		return http.StatusConflict, "REJECT_BLOCKED_BY_APPROVAL"
	case errors.Is(err, approval.ErrAlreadyApproved):
		return http.StatusConflict, "ALREADY_APPROVED"
	case errors.Is(err, approval.ErrAlreadyRejected):
		return http.StatusConflict, "ALREADY_REJECTED"
	case errors.Is(err, worklog.ErrInvalidTransition),
		errors.Is(err, worklog.ErrNotEditable),
		errors.Is(err, approval.ErrInvalidApprovalState):
		return http.StatusConflict, "INVALID_STATUS"
	case worklog.IsConflict(err):
		return http.StatusConflict, "OPTIMISTIC_LOCK_FAILURE"

	// Authorization.
	case errors.Is(err, worklog.ErrProxyNotAllowed):
		return http.StatusForbidden, "PROXY_ENTRY_NOT_ALLOWED"
	case errors.Is(err, approval.ErrNotDirectReport):
		return http.StatusForbidden, "NOT_DIRECT_REPORT"
	case errors.Is(err, approval.ErrSelfRejection):
		return http.StatusForbidden, "SELF_REJECTION_NOT_ALLOWED"
	case errors.Is(err, approval.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED"

	// Missing resources.
	case errors.Is(err, worklog.ErrEntryNotFound):
		return http.StatusNotFound, "ENTRY_NOT_FOUND"
	case errors.Is(err, approval.ErrApprovalNotFound):
		return http.StatusNotFound, "APPROVAL_NOT_FOUND"
	case errors.Is(err, approval.ErrDecisionNotFound):
		return http.StatusNotFound, "DECISION_NOT_FOUND"
	case errors.Is(err, fiscal.ErrOrganizationNotFound):
		return http.StatusNotFound, "ORGANIZATION_NOT_FOUND"

	// Fiscal configuration errors are server-side faults.
	case errors.Is(err, fiscal.ErrInvalidPattern):
		return http.StatusInternalServerError, "INVALID_PATTERN"
	case errors.Is(err, fiscal.ErrPatternNotFound):
		return http.StatusInternalServerError, "PATTERN_NOT_FOUND"
	case errors.Is(err, fiscal.ErrPatternUnresolved):
		return http.StatusInternalServerError, "PATTERN_UNRESOLVED"
	case errors.Is(err, fiscal.ErrHierarchyTooDeep):
		return http.StatusInternalServerError, "HIERARCHY_TOO_DEEP"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func parseEntryStatus(s string) (worklog.EntryStatus, bool) {
	switch worklog.EntryStatus(strings.ToUpper(s)) {
	case worklog.StatusDraft:
		return worklog.StatusDraft, true
	case worklog.StatusSubmitted:
		return worklog.StatusSubmitted, true
	case worklog.StatusApproved:
		return worklog.StatusApproved, true
	case worklog.StatusRejected:
		return worklog.StatusRejected, true
	case worklog.StatusDeleted:
		return worklog.StatusDeleted, true
	}
	return "", false
}

// parseStatusFilter parses a comma-separated status list. Empty input
// means "all non-deleted".
func parseStatusFilter(raw string) ([]worklog.EntryStatus, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	filter := make([]worklog.EntryStatus, 0, len(parts))
	for _, p := range parts {
		status, ok := parseEntryStatus(strings.TrimSpace(p))
		if !ok {
			return nil, fmt.Errorf("unknown status %q", p)
		}
		filter = append(filter, status)
	}
	return filter, nil
}
