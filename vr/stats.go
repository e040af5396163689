package vr

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// STATISTICS
// =============================================================================

// Stats summarizes a valued table. Money totals cover eligible rows only.
type Stats struct {
	Total                  int             `json:"total"`
	Eligible               int             `json:"eligible"`
	Ineligible             int             `json:"ineligible"`
	TotalValue             decimal.Decimal `json:"total_value"`
	TotalEmployerCost      decimal.Decimal `json:"total_employer_cost"`
	TotalEmployeeDeduction decimal.Decimal `json:"total_employee_deduction"`
	ExclusionsByReason     map[string]int  `json:"exclusions_by_reason"`
	WithVacation           int             `json:"with_vacation"`
	WithOverseas           int             `json:"with_overseas"`
}

// ComputeStats aggregates the table without modifying it.
func ComputeStats(table *Table) Stats {
	s := Stats{
		TotalValue:             decimal.Zero,
		TotalEmployerCost:      decimal.Zero,
		TotalEmployeeDeduction: decimal.Zero,
		ExclusionsByReason:     make(map[string]int),
	}
	table.Each(func(rec *Record) {
		s.Total++
		if rec.Eligible {
			s.Eligible++
			s.TotalValue = s.TotalValue.Add(rec.Total)
			s.TotalEmployerCost = s.TotalEmployerCost.Add(rec.EmployerCost)
			s.TotalEmployeeDeduction = s.TotalEmployeeDeduction.Add(rec.EmployeeDeduction)
		} else {
			s.Ineligible++
			s.ExclusionsByReason[rec.Reason]++
		}
		if rec.VacationDays > 0 {
			s.WithVacation++
		}
		if rec.OverseasValue.IsPositive() {
			s.WithOverseas++
		}
	})
	return s
}

// Reasons returns the exclusion reasons sorted by descending count, then name.
func (s Stats) Reasons() []string {
	keys := make([]string, 0, len(s.ExclusionsByReason))
	for k := range s.ExclusionsByReason {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := s.ExclusionsByReason[keys[i]], s.ExclusionsByReason[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// =============================================================================
// CONSISTENCY CHECKS
// =============================================================================

// Check names for the consistency validations.
const (
	CheckSplitSum       = "employer + employee = total"
	CheckSharePercent   = "employer/employee percentages match configuration"
	CheckVacations      = "employees with vacation processed"
	CheckOverseas       = "employees overseas processed"
	CheckEmployeeTotals = "total processed = eligible + excluded"
)

// Check is one consistency validation over the run totals.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// percentTolerance is the allowed gap, in percentage points, between the
// observed and the configured shares.
var percentTolerance = decimal.RequireFromString("0.1")

// Checks derives the consistency validations shown in the report. The share
// check is omitted when the total value is zero.
func Checks(s Stats, cfg *Config) []Check {
	var out []Check

	sum := s.TotalEmployerCost.Add(s.TotalEmployeeDeduction)
	diff := s.TotalValue.Sub(sum).Abs()
	out = append(out, Check{
		Name:   CheckSplitSum,
		Passed: diff.LessThan(generic.Cent),
		Detail: "difference " + diff.StringFixed(2),
	})

	if s.TotalValue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		employerPct := s.TotalEmployerCost.Div(s.TotalValue).Mul(hundred)
		employeePct := s.TotalEmployeeDeduction.Div(s.TotalValue).Mul(hundred)
		ok := employerPct.Sub(generic.Percent(cfg.EmployerShare)).Abs().LessThan(percentTolerance) &&
			employeePct.Sub(generic.Percent(cfg.EmployeeShare)).Abs().LessThan(percentTolerance)
		out = append(out, Check{
			Name:   CheckSharePercent,
			Passed: ok,
			Detail: fmt.Sprintf("employer %s%% | employee %s%%", employerPct.StringFixed(1), employeePct.StringFixed(1)),
		})
	}

	out = append(out,
		Check{Name: CheckVacations, Passed: true, Detail: fmt.Sprintf("%d employees", s.WithVacation)},
		Check{Name: CheckOverseas, Passed: true, Detail: fmt.Sprintf("%d employees", s.WithOverseas)},
		Check{
			Name:   CheckEmployeeTotals,
			Passed: s.Total == s.Eligible+s.Ineligible,
			Detail: fmt.Sprintf("%d = %d + %d", s.Total, s.Eligible, s.Ineligible),
		},
	)
	return out
}

// AllPassed reports whether every check passed.
func AllPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}
