/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Entries:
    EntryDTO, CreateEntryRequest, UpdateEntryRequest, DeleteEntryRequest,
    ChangeStatusRequest, DailyTotalDTO, EventDTO

  Monthly approvals:
    ApprovalDTO, SubmitMonthRequest, ReviewMonthRequest

  Daily decisions:
    DecisionDTO, ApproveEntriesRequest, RejectEntryRequest,
    RecallDecisionRequest, RejectionDTO

  Fiscal calendar:
    DateInfoDTO, PeriodDTO

  Directory:
    MemberDTO

  Scenarios:
    ScenarioDTO

CONVENTIONS:
  Dates are "YYYY-MM-DD" strings, timestamps RFC3339. Hours ride as JSON
  numbers; the domain quantizes them on the way in.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - worklog/types.go, approval/monthly.go: Domain types behind the DTOs
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/worklog-engine/approval"
	"github.com/warp/worklog-engine/eventstore"
	"github.com/warp/worklog-engine/fiscal"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

// EntryDTO represents a work-log entry in API responses.
type EntryDTO struct {
	ID        string  `json:"id"`
	MemberID  string  `json:"member_id"`
	ProjectID string  `json:"project_id"`
	Date      string  `json:"date"`
	Hours     float64 `json:"hours"`
	Comment   string  `json:"comment,omitempty"`
	Status    string  `json:"status"`
	EnteredBy string  `json:"entered_by"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	Version   int     `json:"version"`
}

// CreateEntryRequest logs hours for a member. entered_by may differ from
// member_id only when the actor manages the member (proxy entry).
type CreateEntryRequest struct {
	MemberID  string  `json:"member_id"`
	ProjectID string  `json:"project_id"`
	Date      string  `json:"date"`
	Hours     float64 `json:"hours"`
	Comment   string  `json:"comment,omitempty"`
	EnteredBy string  `json:"entered_by"`
}

// UpdateEntryRequest rewrites hours/comment of an editable entry. Version
// is the aggregate version the client last read.
type UpdateEntryRequest struct {
	Hours     float64 `json:"hours"`
	Comment   string  `json:"comment,omitempty"`
	Version   int     `json:"version"`
	UpdatedBy string  `json:"updated_by"`
}

// DeleteEntryRequest terminally deletes an editable entry.
type DeleteEntryRequest struct {
	Version   int    `json:"version"`
	DeletedBy string `json:"deleted_by"`
}

// ChangeStatusRequest drives the entry state machine (submit, recall,
// resubmit after rejection).
type ChangeStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// DailyTotalDTO reports the committed hour total for one member-day.
type DailyTotalDTO struct {
	MemberID   string  `json:"member_id"`
	Date       string  `json:"date"`
	TotalHours float64 `json:"total_hours"`
}

// EventDTO is one decoded stream position of an aggregate's history.
type EventDTO struct {
	Version    int             `json:"version"`
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// =============================================================================
// MONTHLY APPROVAL TYPES
// =============================================================================

// ApprovalDTO represents a monthly approval in API responses.
type ApprovalDTO struct {
	ID              string   `json:"id"`
	MemberID        string   `json:"member_id"`
	PeriodStart     string   `json:"period_start"`
	PeriodEnd       string   `json:"period_end"`
	Status          string   `json:"status"`
	EntryIDs        []string `json:"entry_ids"`
	AbsenceIDs      []string `json:"absence_ids,omitempty"`
	SubmittedBy     string   `json:"submitted_by"`
	SubmittedAt     string   `json:"submitted_at"`
	ReviewedBy      string   `json:"reviewed_by,omitempty"`
	ReviewedAt      string   `json:"reviewed_at,omitempty"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	Version         int      `json:"version"`
}

// SubmitMonthRequest submits the accounting month containing date for
// review. The period boundaries come from the member's fiscal calendar,
// never from the client.
type SubmitMonthRequest struct {
	MemberID    string `json:"member_id"`
	Date        string `json:"date"`
	SubmittedBy string `json:"submitted_by"`
}

// ReviewMonthRequest approves or rejects a submitted month. Reason is
// required for rejections only.
type ReviewMonthRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Reason     string `json:"reason,omitempty"`
}

// =============================================================================
// DAILY DECISION TYPES
// =============================================================================

// DecisionDTO represents a daily supervisor decision in API responses.
type DecisionDTO struct {
	ID           string `json:"id"`
	EntryID      string `json:"entry_id"`
	MemberID     string `json:"member_id"`
	SupervisorID string `json:"supervisor_id"`
	Status       string `json:"status"`
	Comment      string `json:"comment,omitempty"`
	Superseded   bool   `json:"superseded"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ApproveEntriesRequest batch-approves submitted entries.
type ApproveEntriesRequest struct {
	EntryIDs     []string `json:"entry_ids"`
	SupervisorID string   `json:"supervisor_id"`
	Comment      string   `json:"comment,omitempty"`
}

// RejectEntryRequest rejects one submitted entry. Comment is mandatory.
type RejectEntryRequest struct {
	SupervisorID string `json:"supervisor_id"`
	Comment      string `json:"comment"`
}

// RecallDecisionRequest recalls an active approval decision.
type RecallDecisionRequest struct {
	SupervisorID string `json:"supervisor_id"`
}

// RejectionDTO represents one row of the daily rejection log.
type RejectionDTO struct {
	ID         string   `json:"id"`
	MemberID   string   `json:"member_id"`
	Date       string   `json:"date"`
	Reason     string   `json:"reason"`
	EntryIDs   []string `json:"entry_ids"`
	DecisionID string   `json:"decision_id"`
	CreatedAt  string   `json:"created_at"`
}

// =============================================================================
// FISCAL CALENDAR TYPES
// =============================================================================

// PeriodDTO is an inclusive civil-date range.
type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateInfoDTO classifies one date under one organization's fiscal
// calendar. Source tags name the resolution tier that won.
type DateInfoDTO struct {
	Date                string    `json:"date"`
	FiscalYear          int       `json:"fiscal_year"`
	FiscalYearPeriod    PeriodDTO `json:"fiscal_year_period"`
	FiscalYearSource    string    `json:"fiscal_year_source"`
	MonthlyPeriod       PeriodDTO `json:"monthly_period"`
	MonthlyPeriodSource string    `json:"monthly_period_source"`
}

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

// MemberDTO represents a directory member in API responses.
type MemberDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ManagerID      string `json:"manager_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the uniform error shape. Code is a stable machine
// tag; Error and Details are for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEntryDTO(e *worklog.WorkLogEntry) EntryDTO {
	return EntryDTO{
		ID:        string(e.ID),
		MemberID:  string(e.MemberID),
		ProjectID: string(e.ProjectID),
		Date:      fiscal.FormatDate(e.Date),
		Hours:     e.Hours.Float64(),
		Comment:   e.Comment,
		Status:    string(e.Status),
		EnteredBy: string(e.EnteredBy),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
		Version:   e.Version,
	}
}

func toApprovalDTO(a *approval.MonthlyApproval) ApprovalDTO {
	dto := ApprovalDTO{
		ID:              string(a.ID),
		MemberID:        string(a.MemberID),
		PeriodStart:     fiscal.FormatDate(a.Period.Start),
		PeriodEnd:       fiscal.FormatDate(a.Period.End),
		Status:          string(a.Status),
		EntryIDs:        entryIDStrings(a.EntryIDs),
		AbsenceIDs:      a.AbsenceIDs,
		SubmittedBy:     string(a.SubmittedBy),
		SubmittedAt:     a.SubmittedAt.Format(time.RFC3339),
		ReviewedBy:      string(a.ReviewedBy),
		RejectionReason: a.RejectionReason,
		Version:         a.Version,
	}
	if !a.ReviewedAt.IsZero() {
		dto.ReviewedAt = a.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toDecisionDTO(d *approval.Decision) DecisionDTO {
	return DecisionDTO{
		ID:           string(d.ID),
		EntryID:      string(d.EntryID),
		MemberID:     string(d.MemberID),
		SupervisorID: string(d.SupervisorID),
		Status:       string(d.Status),
		Comment:      d.Comment,
		Superseded:   d.Superseded,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.Format(time.RFC3339),
	}
}

func toRejectionDTO(r approval.RejectionRecord) RejectionDTO {
	return RejectionDTO{
		ID:         r.ID,
		MemberID:   string(r.MemberID),
		Date:       fiscal.FormatDate(r.Date),
		Reason:     r.Reason,
		EntryIDs:   entryIDStrings(r.EntryIDs),
		DecisionID: string(r.DecisionID),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func toEventDTO(ev eventstore.StoredEvent) EventDTO {
	return EventDTO{
		Version:    ev.Version,
		Type:       string(ev.Type),
		OccurredAt: ev.OccurredAt.Format(time.RFC3339Nano),
		Payload:    ev.Payload,
	}
}

func toDateInfoDTO(info *fiscal.DateInfo) DateInfoDTO {
	return DateInfoDTO{
		Date:                fiscal.FormatDate(info.Date),
		FiscalYear:          info.FiscalYear,
		FiscalYearPeriod:    toPeriodDTO(info.FiscalYearPeriod),
		FiscalYearSource:    info.FiscalYearSource,
		MonthlyPeriod:       toPeriodDTO(info.MonthlyPeriod),
		MonthlyPeriodSource: info.MonthlyPeriodSource,
	}
}

func toPeriodDTO(p fiscal.Period) PeriodDTO {
	return PeriodDTO{Start: fiscal.FormatDate(p.Start), End: fiscal.FormatDate(p.End)}
}

func entryIDStrings(ids []worklog.EntryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func entryIDsFromStrings(raw []string) []worklog.EntryID {
	out := make([]worklog.EntryID, len(raw))
	for i, s := range raw {
		out[i] = worklog.EntryID(s)
	}
	return out
}
