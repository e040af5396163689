package vr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

func TestValuation_MissingWorkingDaysUsesDefault(t *testing.T) {
	// GIVEN: Union RJ has a rate but no working-day entry
	// WHEN: Valuing
	// THEN: 22 default days are used

	src := baseSources(employee(1, "RJ", "ANALYST"))
	src.Rates = append(src.Rates, vr.UnionRateRow{Union: "RJ", Rate: dec("30.00")})

	res := run(t, testConfig(), src)
	rec := get(t, res, 1)

	assert.Nil(t, rec.WorkingDays)
	assert.True(t, rec.EffectiveDays.Equal(dec("22")))
	assert.True(t, rec.Total.Equal(dec("660.00")))
	assert.Equal(t, 1, res.Valuation.DefaultWorkingDays)
	assert.Equal(t, 1, res.Consolidation.MissingWorkingDays)
}

func TestValuation_MissingRateIsSilentZero(t *testing.T) {
	res := run(t, testConfig(), baseSources(employee(2, "PR", "ANALYST")))
	rec := get(t, res, 2)

	assert.True(t, rec.Eligible)
	assert.Nil(t, rec.DailyRate)
	assert.True(t, rec.Total.IsZero())
	assert.Equal(t, []vr.EmployeeID{2}, res.Valuation.SilentZero)
	assert.Equal(t, 1, res.Consolidation.MissingRate)
}

func TestValuation_VacationBeyondWorkingDaysClampsToZero(t *testing.T) {
	src := baseSources(employee(3, "SP", "ANALYST"))
	src.Vacations = []vr.VacationRow{{ID: 3, Days: 30}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 3)

	assert.True(t, rec.Eligible)
	assert.True(t, rec.EffectiveDays.IsZero())
	assert.True(t, rec.Total.IsZero())
}

func TestValuation_OverseasValueOverridesDailyRate(t *testing.T) {
	src := baseSources(employee(4, "SP", "ANALYST"))
	src.Vacations = []vr.VacationRow{{ID: 4, Days: 2}}
	src.Overseas = []vr.OverseasRow{{ID: 4, Value: dec("1234.56"), Observation: "expatriado"}}

	res := run(t, testConfig(), src)
	rec := get(t, res, 4)

	assert.True(t, rec.Total.Equal(dec("1234.56")))
	assert.True(t, rec.EffectiveDays.Equal(dec("20")))
	assert.Equal(t, vr.ObservationOverseas, rec.Observation)
	assert.True(t, rec.EmployerCost.Add(rec.EmployeeDeduction).Equal(rec.Total))
}

func TestValuation_SplitIsExactWithOddCents(t *testing.T) {
	// GIVEN: 33.33/day and a 70/30 split producing sub-cent products
	// WHEN: Valuing 22 days (733.26)
	// THEN: Employer is rounded, employee is the remainder, sum is exact

	cfg := testConfig()
	cfg.EmployerShare = dec("0.7")
	cfg.EmployeeShare = dec("0.3")
	src := baseSources(employee(5, "SP", "ANALYST"))
	src.Rates = []vr.UnionRateRow{{Union: "SP", Rate: dec("33.33")}}

	res := run(t, cfg, src)
	rec := get(t, res, 5)

	assert.True(t, rec.Total.Equal(dec("733.26")))
	assert.True(t, rec.EmployerCost.Equal(dec("513.28")), "employer %s", rec.EmployerCost)
	assert.True(t, rec.EmployeeDeduction.Equal(dec("219.98")), "employee %s", rec.EmployeeDeduction)
	require.NoError(t, vr.Verify(res.Table, cfg))
}

func TestValuation_UnionAliasesResolveLookups(t *testing.T) {
	cfg := testConfig()
	cfg.UnionAliases = map[string]string{"SINDPD SP - SIND.TRAB.EM PROC DADOS": "SP"}

	res := run(t, cfg, baseSources(employee(6, " SINDPD SP - SIND.TRAB.EM PROC DADOS ", "ANALYST")))
	rec := get(t, res, 6)

	assert.Equal(t, "SP", rec.NormalizedUnion)
	require.NotNil(t, rec.DailyRate)
	assert.True(t, rec.Total.Equal(dec("770.00")))
}

// =============================================================================
// INVARIANT VERIFICATION
// =============================================================================

func TestVerify_DetectsInconsistentRows(t *testing.T) {
	cfg := testConfig()
	eligibleWithReason := vr.Record{ID: 1, Eligible: true, Reason: "apprentice"}
	ineligibleWithMoney := vr.Record{
		ID: 2, Reason: "intern",
		Exclusions: []vr.Exclusion{{Phase: vr.PhaseRole, Reason: "intern"}},
		Total:      dec("10"),
	}
	badSplit := vr.Record{ID: 3, Eligible: true, Total: dec("100"), EmployerCost: dec("50"), EmployeeDeduction: dec("20")}

	err := vr.Verify(vr.NewTable([]vr.Record{eligibleWithReason, ineligibleWithMoney, badSplit}), cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvariantViolation))
	assert.Contains(t, err.Error(), vr.RuleReasonConsistency)
	assert.Contains(t, err.Error(), vr.RuleIneligibleZero)
	assert.Contains(t, err.Error(), vr.RuleSplitSum)
	assert.Contains(t, err.Error(), vr.RuleShareRatio)
}

func TestVerify_EffectiveDaysAboveBase(t *testing.T) {
	days := 20
	rec := vr.Record{ID: 1, Eligible: true, WorkingDays: &days, EffectiveDays: dec("21")}

	err := vr.Verify(vr.NewTable([]vr.Record{rec}), testConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), vr.RuleEffectiveDays)
}
