/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money travels as
  strings with two decimals so clients never round through float64.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Runs:       RunRequest, RunResponse, RunDTO, RunSummaryDTO
  Employees:  RecordDTO
  Validation: ValidateResponse
  Rules:      factory.RulesFile, returned as is

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/vr"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RunRequest starts a run. An empty competency uses the rules file.
type RunRequest struct {
	Competency string `json:"competency,omitempty"`
}

// StatsDTO is vr.Stats with money as fixed-point strings.
type StatsDTO struct {
	Total                  int            `json:"total"`
	Eligible               int            `json:"eligible"`
	Ineligible             int            `json:"ineligible"`
	TotalValue             string         `json:"total_value"`
	TotalEmployerCost      string         `json:"total_employer_cost"`
	TotalEmployeeDeduction string         `json:"total_employee_deduction"`
	ExclusionsByReason     map[string]int `json:"exclusions_by_reason"`
	WithVacation           int            `json:"with_vacation"`
	WithOverseas           int            `json:"with_overseas"`
}

// RunResponse is returned by POST /api/runs.
type RunResponse struct {
	RunID      string            `json:"run_id"`
	Competency string            `json:"competency"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DurationMS int64             `json:"duration_ms"`
	Stats      StatsDTO          `json:"stats"`
	Checks     []vr.Check        `json:"checks"`
	Outputs    []string          `json:"outputs"`
	Warnings   []extract.Warning `json:"warnings"`
}

// RunSummaryDTO is one entry of GET /api/runs.
type RunSummaryDTO struct {
	ID         string    `json:"id"`
	Competency string    `json:"competency"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Stats      StatsDTO  `json:"stats"`
}

// RunDTO is a stored run without its records.
type RunDTO struct {
	RunSummaryDTO
	Checks  []vr.Check `json:"checks"`
	Outputs []string   `json:"outputs"`
}

// RecordDTO is one employee of a run.
type RecordDTO struct {
	ID                int64          `json:"id"`
	Role              string         `json:"role"`
	Status            string         `json:"status"`
	Union             string         `json:"union"`
	NormalizedUnion   string         `json:"normalized_union"`
	AdmissionDate     *string        `json:"admission_date,omitempty"`
	Eligible          bool           `json:"eligible"`
	Reason            string         `json:"reason,omitempty"`
	Exclusions        []vr.Exclusion `json:"exclusions"`
	VacationDays      int            `json:"vacation_days"`
	TerminationDate   *string        `json:"termination_date,omitempty"`
	DailyRate         *string        `json:"daily_rate"`
	WorkingDays       *int           `json:"working_days"`
	EffectiveDays     string         `json:"effective_days"`
	Total             string         `json:"total"`
	EmployerCost      string         `json:"employer_cost"`
	EmployeeDeduction string         `json:"employee_deduction"`
}

// ValidateResponse is returned by POST /api/validate.
type ValidateResponse struct {
	Valid   bool            `json:"valid"`
	Error   string          `json:"error,omitempty"`
	Report  *extract.Report `json:"report"`
	Summary map[string]int  `json:"rows"`
}

// IntegrityResponse is returned by GET /api/integrity.
type IntegrityResponse struct {
	OK    bool                 `json:"ok"`
	Files []extract.FileStatus `json:"files"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toStatsDTO(s vr.Stats) StatsDTO {
	reasons := s.ExclusionsByReason
	if reasons == nil {
		reasons = map[string]int{}
	}
	return StatsDTO{
		Total:                  s.Total,
		Eligible:               s.Eligible,
		Ineligible:             s.Ineligible,
		TotalValue:             money(s.TotalValue),
		TotalEmployerCost:      money(s.TotalEmployerCost),
		TotalEmployeeDeduction: money(s.TotalEmployeeDeduction),
		ExclusionsByReason:     reasons,
		WithVacation:           s.WithVacation,
		WithOverseas:           s.WithOverseas,
	}
}

func toRunResponse(out *pipeline.Outcome) RunResponse {
	warnings := []extract.Warning{}
	if out.Extraction != nil && out.Extraction.Warnings != nil {
		warnings = out.Extraction.Warnings
	}
	return RunResponse{
		RunID:      out.RunID,
		Competency: out.Competency.String(),
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		DurationMS: out.Duration().Milliseconds(),
		Stats:      toStatsDTO(out.Result.Stats),
		Checks:     out.Result.Checks,
		Outputs:    nonNil(out.Outputs),
		Warnings:   warnings,
	}
}

func toRunSummaryDTO(s vr.RunSummary) RunSummaryDTO {
	return RunSummaryDTO{
		ID:         s.ID,
		Competency: s.Competency.String(),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Stats:      toStatsDTO(s.Stats),
	}
}

func toRunDTO(r vr.Run) RunDTO {
	return RunDTO{
		RunSummaryDTO: toRunSummaryDTO(r.Summary()),
		Checks:        nonNil(r.Checks),
		Outputs:       nonNil(r.Outputs),
	}
}

func toRecordDTO(r vr.Record) RecordDTO {
	dto := RecordDTO{
		ID:                int64(r.ID),
		Role:              r.Role,
		Status:            r.Status,
		Union:             r.Union,
		NormalizedUnion:   r.NormalizedUnion,
		AdmissionDate:     date(r.AdmissionDate),
		Eligible:          r.Eligible,
		Reason:            r.Reason,
		Exclusions:        nonNil(r.Exclusions),
		VacationDays:      r.VacationDays,
		TerminationDate:   date(r.TerminationDate),
		WorkingDays:       r.WorkingDays,
		EffectiveDays:     r.EffectiveDays.String(),
		Total:             money(r.Total),
		EmployerCost:      money(r.EmployerCost),
		EmployeeDeduction: money(r.EmployeeDeduction),
	}
	if r.DailyRate != nil {
		s := money(*r.DailyRate)
		dto.DailyRate = &s
	}
	return dto
}

func toRecordDTOs(records []vr.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

func date(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
