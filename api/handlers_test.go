/*
handlers_test.go - Tests for API handlers

Tests for:
- Executing a run and reading it back (runs, employees, filters)
- Error mapping (400, 404, 409, 422)
- Validation, integrity, rules, health and metrics endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/extract/extracttest"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/store/sqlite"
	"github.com/warp/benefit-engine/vr"
)

type testServer struct {
	handler *Handler
	router  http.Handler
	rules   *factory.Rules
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()
	names := map[vr.Category]string{}
	for c, path := range extracttest.Payroll(t, in) {
		names[c] = filepath.Base(path)
	}
	rules := &factory.Rules{
		Config: *extracttest.Config(),
		Inputs: factory.Inputs{Dir: in, Files: names},
		Output: factory.OutputSpec{
			Dir:        out,
			Workbook:   "VR_MENSAL_{competency}.xlsx",
			Exclusions: "colaboradores_excluidos.xlsx",
			LogDir:     filepath.Join(out, "logs"),
		},
		Limits: extract.Limits{WorkdaysMin: 15, WorkdaysMax: 25},
	}

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, _ := test.NewNullLogger()
	m := metrics.New()
	p := pipeline.New(rules, pipeline.WithStore(store), pipeline.WithMetrics(m), pipeline.WithLogger(logger))
	h := NewHandler(p, store, m, logger)
	return &testServer{handler: h, router: NewRouter(h), rules: rules}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateRun_AndReadBack(t *testing.T) {
	// GIVEN: A server over the May payroll exports
	// WHEN: Executing a run
	// THEN: The run is stored and readable through every run endpoint

	s := newTestServer(t)

	rec := s.do(t, "POST", "/api/runs", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RunResponse](t, rec)
	assert.Equal(t, "2025-05", created.Competency)
	assert.Equal(t, 8, created.Stats.Total)
	assert.Equal(t, 3, created.Stats.Eligible)
	assert.Equal(t, "2010.00", created.Stats.TotalValue)
	assert.Len(t, created.Outputs, 2)
	assert.NotEmpty(t, created.Warnings)

	rec = s.do(t, "GET", "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunSummaryDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, created.RunID, runs[0].ID)

	rec = s.do(t, "GET", "/api/runs/2025-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[RunDTO](t, rec)
	assert.Equal(t, created.Outputs, run.Outputs)
	assert.NotEmpty(t, run.Checks)

	rec = s.do(t, "GET", "/api/runs/2025-05/employees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RecordDTO](t, rec), 8)

	rec = s.do(t, "GET", "/api/runs/2025-05/employees?eligible=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	excluded := decode[[]RecordDTO](t, rec)
	assert.Len(t, excluded, 5)
	for _, e := range excluded {
		assert.False(t, e.Eligible)
		assert.NotEmpty(t, e.Reason)
		assert.Equal(t, "0.00", e.Total)
	}

	rec = s.do(t, "GET", "/api/runs/2025-05/employees/100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[RecordDTO](t, rec)
	assert.True(t, emp.Eligible)
	assert.Equal(t, "825.00", emp.Total)
	require.NotNil(t, emp.DailyRate)
	assert.Equal(t, "37.50", *emp.DailyRate)
}

func TestCreateRun_OtherCompetency(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/api/runs", `{"competency":"2025-06"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-06", decode[RunResponse](t, rec).Competency)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/runs/2025-06", "").Code)
}

func TestCreateRun_ClientGoneStillCompletes(t *testing.T) {
	// GIVEN: A run request whose client has already disconnected
	// WHEN: The run is accepted
	// THEN: It still writes the outputs and stores the run

	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/runs", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.FileExists(t, filepath.Join(s.rules.Output.Dir, "VR_MENSAL_2025_05.xlsx"))
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/runs/2025-05", "").Code)
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		prep   func(s *testServer)
		status int
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "invalid competency", body: `{"competency":"2025-13"}`, status: http.StatusBadRequest},
		{
			name: "missing mandatory source",
			prep: func(s *testServer) {
				require.NoError(t, os.Remove(s.rules.Inputs.Path(vr.CategoryWorkdays)))
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "run in progress",
			prep:   func(s *testServer) { s.handler.running.Lock() },
			status: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.prep != nil {
				tt.prep(s)
			}

			rec := s.do(t, "POST", "/api/runs", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestRunEndpoints_Errors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/runs", "").Code)

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/api/runs/2025-13", http.StatusBadRequest},
		{"GET", "/api/runs/2024-01", http.StatusNotFound},
		{"GET", "/api/runs/2025-05/employees?eligible=maybe", http.StatusBadRequest},
		{"GET", "/api/runs/2025-05/employees/abc", http.StatusBadRequest},
		{"GET", "/api/runs/2025-05/employees/999", http.StatusNotFound},
		{"DELETE", "/api/runs/2024-01", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(t, tt.method, tt.path, "").Code)
		})
	}
}

func TestDeleteRun(t *testing.T) {
	// GIVEN: A stored run
	// WHEN: Deleting it
	// THEN: It is gone but its output files remain

	s := newTestServer(t)
	created := decode[RunResponse](t, s.do(t, "POST", "/api/runs", ""))

	rec := s.do(t, "DELETE", "/api/runs/2025-05", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/runs/2025-05", "").Code)
	for _, path := range created.Outputs {
		assert.FileExists(t, path)
	}
}

func TestValidate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/api/validate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, 8, resp.Summary[string(vr.CategoryActive)])

	s.rules.Config.UnionAliases = nil
	s = newTestServerWithRules(t, s)
	rec = s.do(t, "POST", "/api/validate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp = decode[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Error, "unions without daily rate")
}

// newTestServerWithRules rebuilds the pipeline after s.rules was changed.
func newTestServerWithRules(t *testing.T, s *testServer) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := NewHandler(pipeline.New(s.rules, pipeline.WithLogger(logger)), s.handler.Store, nil, logger)
	return &testServer{handler: h, router: NewRouter(h), rules: s.rules}
}

func TestIntegrity(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/api/integrity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[IntegrityResponse](t, rec)
	assert.True(t, resp.OK)
	assert.Len(t, resp.Files, len(vr.Categories))

	require.NoError(t, os.Remove(s.rules.Inputs.Path(vr.CategoryActive)))
	resp = decode[IntegrityResponse](t, s.do(t, "GET", "/api/integrity", ""))
	assert.False(t, resp.OK)
}

func TestGetRules(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/api/rules", "")

	require.Equal(t, http.StatusOK, rec.Code)
	rules := decode[factory.RulesFile](t, rec)
	assert.Equal(t, "2025-05", rules.Competency)
	assert.Equal(t, 15, rules.Rules.CutoffDay)
	assert.Equal(t, []string{"DIRETOR"}, rules.Exclusions.Roles)
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/runs", "").Code)

	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/healthz", "").Code)

	rec := s.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `vr_runs_total{status="succeeded"} 1`))
	assert.Contains(t, rec.Body.String(), "vr_last_run_total_value 2010")
}
