package vr_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var may2025 = generic.MustParseCompetency("2025-05")

func testConfig() *vr.Config {
	cfg := vr.DefaultConfig(may2025)
	cfg.ExcludedRoles = []string{"DIRETOR"}
	cfg.ExcludedLeaveTypes = []string{"Licença Maternidade", "Auxílio Doença"}
	return &cfg
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func employee(id int64, union, role string) vr.ActiveRow {
	return vr.ActiveRow{ID: vr.EmployeeID(id), Employer: 1410, Role: role, Status: "Trabalhando", Union: union}
}

// baseSources has one SP union at 22 days and 35.00 per day.
func baseSources(active ...vr.ActiveRow) vr.Sources {
	return vr.Sources{
		Active:   active,
		Workdays: []vr.UnionWorkdaysRow{{Union: "SP", Days: 22}},
		Rates:    []vr.UnionRateRow{{Union: "SP", Rate: dec("35.00")}},
	}
}

func run(t *testing.T, cfg *vr.Config, src vr.Sources) *vr.Result {
	t.Helper()
	engine, err := vr.NewEngine(cfg)
	require.NoError(t, err)
	res, err := engine.Run(src)
	require.NoError(t, err)
	return res
}

func get(t *testing.T, res *vr.Result, id int64) *vr.Record {
	t.Helper()
	rec, ok := res.Table.Get(vr.EmployeeID(id))
	require.True(t, ok, "employee %d not in table", id)
	return rec
}

func assertZeroMoney(t *testing.T, rec *vr.Record) {
	t.Helper()
	assert.True(t, rec.EffectiveDays.IsZero(), "effective days %s", rec.EffectiveDays)
	assert.True(t, rec.Total.IsZero(), "total %s", rec.Total)
	assert.True(t, rec.EmployerCost.IsZero(), "employer %s", rec.EmployerCost)
	assert.True(t, rec.EmployeeDeduction.IsZero(), "employee %s", rec.EmployeeDeduction)
}

// =============================================================================
// EMPLOYEE CASES
// =============================================================================

func TestEngine_StandardEmployeeFullMonth(t *testing.T) {
	// GIVEN: Employee 100 in union SP (22 days, 35.00/day), no adjustments
	// WHEN: Running the engine
	// THEN: Full month valued and split 80/20

	res := run(t, testConfig(), baseSources(employee(100, "SP", "ANALYST")))
	rec := get(t, res, 100)

	assert.True(t, rec.Eligible)
	assert.Empty(t, rec.Reason)
	assert.True(t, rec.EffectiveDays.Equal(dec("22")))
	assert.True(t, rec.Total.Equal(dec("770.00")), "total %s", rec.Total)
	assert.True(t, rec.EmployerCost.Equal(dec("616.00")), "employer %s", rec.EmployerCost)
	assert.True(t, rec.EmployeeDeduction.Equal(dec("154.00")), "employee %s", rec.EmployeeDeduction)
}

func TestEngine_ApprenticeExcluded(t *testing.T) {
	src := baseSources(employee(200, "SP", "APRENDIZ"))
	src.Apprentices = []vr.RoleRow{{ID: 200, Role: "APRENDIZ"}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 200)

	assert.False(t, rec.Eligible)
	assert.Equal(t, vr.ReasonApprentice, rec.Reason)
	assertZeroMoney(t, rec)
}

func TestEngine_VacationDaysReduceEffectiveDays(t *testing.T) {
	src := baseSources(employee(300, "SP", "ANALYST"))
	src.Vacations = []vr.VacationRow{{ID: 300, Status: "Férias", Days: 10}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 300)

	assert.True(t, rec.Eligible)
	assert.Equal(t, 10, rec.VacationDays)
	assert.True(t, rec.EffectiveDays.Equal(dec("12")))
	assert.True(t, rec.Total.Equal(dec("420.00")), "total %s", rec.Total)
}

func TestEngine_TerminatedBeforeCutoffExcluded(t *testing.T) {
	src := baseSources(employee(400, "SP", "ANALYST"))
	src.Terminated = []vr.TerminationRow{{ID: 400, Date: generic.Date(2025, time.May, 10), Notice: "OK"}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 400)

	assert.False(t, rec.Eligible)
	assert.Contains(t, rec.Reason, "15")
	require.NotNil(t, rec.TerminationDate)
	assert.Equal(t, 10, rec.TerminationDate.Day())
	assert.Equal(t, "OK", rec.TerminationNotice)
	assertZeroMoney(t, rec)
}

func TestEngine_TerminatedAfterCutoffPaidInFull(t *testing.T) {
	src := baseSources(employee(500, "SP", "ANALYST"))
	src.Terminated = []vr.TerminationRow{{ID: 500, Date: generic.Date(2025, time.May, 20), Notice: "OK"}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 500)

	assert.True(t, rec.Eligible)
	assert.True(t, rec.Total.Equal(dec("770.00")), "total %s", rec.Total)
	require.NotNil(t, rec.TerminationDate)
}

func TestEngine_OverseasRemovedExcluded(t *testing.T) {
	// GIVEN: Employee 600 is overseas with "removed", and also on vacation
	// WHEN: Running the engine
	// THEN: Ineligible regardless of the other tables

	src := baseSources(employee(600, "SP", "ANALYST"))
	src.Vacations = []vr.VacationRow{{ID: 600, Days: 5}}
	src.Overseas = []vr.OverseasRow{{ID: 600, Value: dec("1000"), Observation: "removed"}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 600)

	assert.False(t, rec.Eligible)
	assert.Equal(t, "overseas: removed", rec.Reason)
	assert.True(t, rec.OverseasValue.IsZero())
	assertZeroMoney(t, rec)
}

// =============================================================================
// ENGINE BEHAVIOR
// =============================================================================

func TestEngine_MissingRosterIsFatal(t *testing.T) {
	engine, err := vr.NewEngine(testConfig())
	require.NoError(t, err)

	res, err := engine.Run(vr.Sources{Rates: []vr.UnionRateRow{}})

	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrMissingSource))
	var missing *generic.MissingSourceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ativos", missing.Category)
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.EmployeeShare = dec("0.30")

	_, err := vr.NewEngine(cfg)

	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

func TestEngine_Idempotent(t *testing.T) {
	// GIVEN: A mixed roster with every adjustment table present
	// WHEN: Running the engine twice on the same inputs
	// THEN: Both tables are identical

	src := mixedSources()
	first := run(t, testConfig(), src)
	second := run(t, testConfig(), src)

	assert.Equal(t, first.Table.Records(), second.Table.Records())
	assert.Equal(t, first.Stats, second.Stats)
}

func TestEngine_InvariantsHoldOnMixedRoster(t *testing.T) {
	cfg := testConfig()
	res := run(t, cfg, mixedSources())

	require.NoError(t, vr.Verify(res.Table, cfg))
	for _, rec := range res.Table.Records() {
		assert.Equal(t, rec.Eligible, rec.Reason == "", "employee %d", rec.ID)
		if rec.Eligible {
			assert.True(t, generic.WithinCent(rec.Total, rec.EmployerCost.Add(rec.EmployeeDeduction)))
			assert.False(t, rec.EffectiveDays.IsNegative())
		} else {
			assertZeroMoney(t, &rec)
		}
	}
	assert.True(t, vr.AllPassed(res.Checks))
}

func TestEngine_AuditsExclusionsAndChecks(t *testing.T) {
	recorder := generic.NewAuditRecorder()
	engine, err := vr.NewEngine(testConfig(), vr.WithAuditor(recorder))
	require.NoError(t, err)

	_, err = engine.Run(mixedSources())
	require.NoError(t, err)

	exclusions := recorder.CountByCategory(generic.AuditExclusion)
	assert.Equal(t, 2, exclusions[string(vr.PhaseRole)])
	assert.Equal(t, 1, exclusions[string(vr.PhaseLeave)])
	assert.Equal(t, 1, exclusions[string(vr.PhaseTermination)])
	assert.Equal(t, 1, exclusions[string(vr.PhaseOverseas)])
	assert.Len(t, recorder.ByKind(generic.AuditValidation), 5)
	assert.NotEmpty(t, recorder.ByKind(generic.AuditSourceLoaded))
}

func TestResult_EligibleSortedByID(t *testing.T) {
	res := run(t, testConfig(), mixedSources())

	eligible := res.Eligible()
	require.NotEmpty(t, eligible)
	for i := 1; i < len(eligible); i++ {
		assert.Less(t, int64(eligible[i-1].ID), int64(eligible[i].ID))
	}
	assert.Len(t, res.Excluded(), res.Stats.Ineligible)
}

// mixedSources covers every phase: 7 roster employees, one unknown id.
func mixedSources() vr.Sources {
	src := baseSources(
		employee(700, "SP", "ANALYST"),
		employee(100, "SP", "ANALYST"),
		employee(200, "SP", "APRENDIZ"),
		employee(300, "SP", "DIRETOR COMERCIAL"),
		employee(400, "SP", "ANALYST"),
		employee(500, "SP", "ANALYST"),
		employee(600, "SP", "ANALYST"),
	)
	src.Apprentices = []vr.RoleRow{{ID: 200, Role: "APRENDIZ"}}
	src.Interns = []vr.RoleRow{}
	src.Leaves = []vr.LeaveRow{{ID: 400, Type: "Licença Maternidade"}, {ID: 500, Type: "Férias"}}
	src.Vacations = []vr.VacationRow{{ID: 100, Days: 10}, {ID: 999, Days: 3}}
	src.Terminated = []vr.TerminationRow{{ID: 500, Date: generic.Date(2025, time.May, 3)}}
	src.Overseas = []vr.OverseasRow{
		{ID: 600, Value: dec("1500.00"), Observation: "removed from program"},
		{ID: 700, Value: dec("1000.00"), Observation: ""},
	}
	src.Admissions = []vr.AdmissionRow{{ID: 100, Date: generic.Date(2025, time.May, 10)}}
	return src
}
