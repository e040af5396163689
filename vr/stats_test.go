package vr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

func TestStats_CountsAndTotals(t *testing.T) {
	res := run(t, testConfig(), mixedSources())
	s := res.Stats

	// 700 overseas 1000.00, 100 vacation 12 days 420.00; the rest excluded
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 2, s.Eligible)
	assert.Equal(t, 5, s.Ineligible)
	assert.True(t, s.TotalValue.Equal(dec("1420.00")), "total %s", s.TotalValue)
	assert.True(t, s.TotalEmployerCost.Equal(dec("1136.00")))
	assert.True(t, s.TotalEmployeeDeduction.Equal(dec("284.00")))
	assert.Equal(t, 1, s.WithVacation)
	assert.Equal(t, 1, s.WithOverseas)
	assert.Equal(t, map[string]int{
		"apprentice":                     1,
		"role: DIRETOR":                  1,
		"leave: Licença Maternidade":     1,
		"terminated before day 15":       1,
		"overseas: removed from program": 1,
	}, s.ExclusionsByReason)
}

func TestStats_ReasonsOrderedByCount(t *testing.T) {
	s := vr.Stats{ExclusionsByReason: map[string]int{"b": 1, "a": 1, "c": 3}}

	assert.Equal(t, []string{"c", "a", "b"}, s.Reasons())
}

func TestChecks_AllPassOnConsistentTotals(t *testing.T) {
	cfg := testConfig()
	res := run(t, cfg, mixedSources())

	checks := vr.Checks(res.Stats, cfg)

	require.Len(t, checks, 5)
	for _, c := range checks {
		assert.True(t, c.Passed, "%s: %s", c.Name, c.Detail)
	}
	assert.Equal(t, "employer 80.0% | employee 20.0%", checks[1].Detail)
}

func TestChecks_DetectsShareMismatch(t *testing.T) {
	cfg := testConfig()
	s := vr.Stats{
		Total: 1, Eligible: 1,
		TotalValue:             dec("100"),
		TotalEmployerCost:      dec("70"),
		TotalEmployeeDeduction: dec("30"),
	}

	checks := vr.Checks(s, cfg)

	assert.False(t, vr.AllPassed(checks))
	assert.True(t, checks[0].Passed)
	assert.False(t, checks[1].Passed)
}

func TestChecks_ZeroTotalSkipsShareCheck(t *testing.T) {
	s := vr.ComputeStats(vr.NewTable(nil))

	checks := vr.Checks(s, testConfig())

	assert.Len(t, checks, 4)
	assert.True(t, vr.AllPassed(checks))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*vr.Config)
		field  string
	}{
		{"zero competency", func(c *vr.Config) { c.Competency = generic.Competency{} }, "competency"},
		{"cutoff too high", func(c *vr.Config) { c.CutoffDay = 32 }, "cutoff_day"},
		{"shares not summing to one", func(c *vr.Config) { c.EmployerShare = dec("0.9") }, "shares"},
		{"negative share", func(c *vr.Config) {
			c.EmployerShare = dec("1.2")
			c.EmployeeShare = dec("-0.2")
		}, "shares"},
		{"blank overseas keyword", func(c *vr.Config) { c.OverseasExclusionKeywords = []string{" "} }, "overseas_exclusion_keywords"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			var cfgErr *generic.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, testConfig().Validate())
}
