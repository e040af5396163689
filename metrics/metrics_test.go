package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

func run(t *testing.T) *vr.Result {
	t.Helper()
	cfg := vr.DefaultConfig(generic.MustParseCompetency("2025-05"))
	cfg.ExcludedRoles = []string{"DIRETOR"}
	engine, err := vr.NewEngine(&cfg)
	require.NoError(t, err)
	res, err := engine.Run(vr.Sources{
		Active: []vr.ActiveRow{
			{ID: 100, Role: "ANALISTA", Union: "SP"},
			{ID: 200, Role: "APRENDIZ", Union: "SP"},
			{ID: 800, Role: "DIRETOR", Union: "SP"},
		},
		Apprentices: []vr.RoleRow{{ID: 200, Role: "APRENDIZ"}},
		Workdays:    []vr.UnionWorkdaysRow{{Union: "SP", Days: 22}},
		Rates:       []vr.UnionRateRow{{Union: "SP", Rate: decimal.RequireFromString("35")}},
	})
	require.NoError(t, err)
	return res
}

func TestObserveRun(t *testing.T) {
	// GIVEN: A run with one eligible employee and two role exclusions
	// WHEN: Observing it
	// THEN: Counters and gauges reflect the result

	m := New()
	m.ObserveRun(run(t), 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusSucceeded)))
	assert.Equal(t, 770.0, testutil.ToFloat64(m.totalValue))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.exclusions.WithLabelValues(string(vr.PhaseRole))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.employees.WithLabelValues("eligible")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.employees.WithLabelValues("ineligible")))
}

func TestObserveFailure(t *testing.T) {
	m := New()
	m.ObserveFailure(time.Second)
	m.ObserveFailure(time.Second)

	count, err := testutil.GatherAndCount(m.Registry(), "vr_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusSucceeded)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFailure(time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `vr_runs_total{status="failed"} 1`)
}
