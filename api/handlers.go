/*
handlers.go - HTTP API handlers for the VR benefit engine

PURPOSE:
  Exposes the monthly pipeline and the stored runs via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the
  pipeline and the run store.

ENDPOINTS:
  Runs:
    POST   /api/runs                                Execute a run
    GET    /api/runs                                List stored runs
    GET    /api/runs/{competency}                   Get a run (no records)
    DELETE /api/runs/{competency}                   Delete a run
    GET    /api/runs/{competency}/employees         Records (?eligible=true|false)
    GET    /api/runs/{competency}/employees/{id}    One record

  Inputs:
    POST   /api/validate                            Check inputs without writing
    GET    /api/integrity                           Per-file status
    GET    /api/rules                               Active rules

CONCURRENCY:
  Runs are serialized. A run requested while another executes is rejected
  with 409 instead of queued, since both would write the same output
  directory.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (competency, id, query)
  - 404: Run or employee not found
  - 409: Run already in progress
  - 422: Inputs cannot be processed (missing/malformed source, union without rate)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - pipeline/pipeline.go: The run itself
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/vr"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pipeline *pipeline.Pipeline
	Store    vr.RunStore
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger

	running sync.Mutex
}

// NewHandler creates a handler. The pipeline should persist into store so
// that finished runs are visible through the run endpoints.
func NewHandler(p *pipeline.Pipeline, store vr.RunStore, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Pipeline: p, Store: store, Metrics: m, Log: log}
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun executes the pipeline.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := h.Pipeline
	if req.Competency != "" {
		c, err := generic.ParseCompetency(req.Competency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid competency", err)
			return
		}
		if p, err = p.ForCompetency(c); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid competency", err)
			return
		}
	}

	if !h.running.TryLock() {
		writeError(w, http.StatusConflict, "Run rejected", generic.ErrRunInProgress)
		return
	}
	defer h.running.Unlock()

	// The run outlives a disconnecting client once it holds the lock.
	out, err := p.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		h.Log.WithError(err).Warn("run request failed")
		writeError(w, statusFor(err), "Run failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunResponse(out))
}

// ListRuns returns every stored run, newest first.
// GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunSummaryDTO, len(runs))
	for i, s := range runs {
		dtos[i] = toRunSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a stored run without its records.
// GET /api/runs/{competency}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// DeleteRun removes a stored run. Output files are left in place.
// DELETE /api/runs/{competency}
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	c, err := generic.ParseCompetency(chi.URLParam(r, "competency"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid competency", err)
		return
	}
	if err := h.Store.DeleteRun(r.Context(), c); err != nil {
		writeError(w, statusFor(err), "Failed to delete run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRunEmployees returns the records of a run in roster order.
// GET /api/runs/{competency}/employees?eligible=true|false
func (h *Handler) ListRunEmployees(w http.ResponseWriter, r *http.Request) {
	var eligible *bool
	if q := r.URL.Query().Get("eligible"); q != "" {
		b, err := strconv.ParseBool(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid eligible filter", err)
			return
		}
		eligible = &b
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(run.FilterRecords(eligible)))
}

// GetRunEmployee returns one record of a run.
// GET /api/runs/{competency}/employees/{id}
func (h *Handler) GetRunEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee id", err)
		return
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	rec, err := run.Employee(vr.EmployeeID(id))
	if err != nil {
		writeError(w, statusFor(err), "Employee not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (vr.Run, bool) {
	c, err := generic.ParseCompetency(chi.URLParam(r, "competency"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid competency", err)
		return vr.Run{}, false
	}
	run, err := h.Store.LoadRun(r.Context(), c)
	if err != nil {
		writeError(w, statusFor(err), "Failed to load run", err)
		return vr.Run{}, false
	}
	return run, true
}

// =============================================================================
// INPUT HANDLERS
// =============================================================================

// Validate reads and cross-checks the inputs without computing or writing.
// POST /api/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Pipeline.Validate(r.Context())
	resp := ValidateResponse{Valid: err == nil, Report: rep, Summary: map[string]int{}}
	if rep != nil {
		for _, s := range rep.Sources {
			if s.Present {
				resp.Summary[string(s.Category)] = s.Rows
			}
		}
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Integrity reports, per configured input file, whether it can be read.
// GET /api/integrity
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	files := h.Pipeline.Integrity()
	writeJSON(w, http.StatusOK, IntegrityResponse{OK: mandatoryOK(files), Files: files})
}

// GetRules returns the rules the pipeline runs with.
// GET /api/rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules := h.Pipeline.Rules()
	writeJSON(w, http.StatusOK, factory.ToYAML(&rules))
}

// Healthz reports liveness and store reachability.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Store.ListRuns(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mandatoryOK(files []extract.FileStatus) bool {
	for _, f := range files {
		if f.Mandatory && !f.OK() {
			return false
		}
	}
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrRunInProgress):
		return http.StatusConflict
	case generic.IsFatalSource(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

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
