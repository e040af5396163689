package vr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// Invariant rule names reported in *generic.InvariantError.
const (
	RuleReasonConsistency = "eligible-iff-no-reason"
	RuleSplitSum          = "split-sums-to-total"
	RuleShareRatio        = "split-matches-shares"
	RuleIneligibleZero    = "ineligible-is-zero"
	RuleEffectiveDays     = "effective-days-range"
	RuleUniqueID          = "unique-employee"
)

// Verify checks every record of a valued table. All violations are returned
// joined; nil means the table is consistent.
func Verify(table *Table, cfg *Config) error {
	var errs []error
	fail := func(rec *Record, rule, format string, args ...any) {
		errs = append(errs, &generic.InvariantError{
			Subject: "employee " + rec.ID.String(),
			Rule:    rule,
			Detail:  fmt.Sprintf(format, args...),
		})
	}

	if len(table.index) != len(table.rows) {
		errs = append(errs, &generic.InvariantError{
			Subject: "table",
			Rule:    RuleUniqueID,
			Detail:  fmt.Sprintf("%d rows for %d ids", len(table.rows), len(table.index)),
		})
	}

	fallback := cfg.defaultWorkingDays()
	table.Each(func(rec *Record) {
		if rec.Eligible != (rec.Reason == "") {
			fail(rec, RuleReasonConsistency, "eligible=%t reason=%q", rec.Eligible, rec.Reason)
		}
		if rec.Eligible == (len(rec.Exclusions) > 0) {
			fail(rec, RuleReasonConsistency, "eligible=%t with %d exclusions", rec.Eligible, len(rec.Exclusions))
		}

		if !rec.Eligible {
			if !rec.EffectiveDays.IsZero() || !rec.Total.IsZero() ||
				!rec.EmployerCost.IsZero() || !rec.EmployeeDeduction.IsZero() {
				fail(rec, RuleIneligibleZero, "days=%s total=%s employer=%s employee=%s",
					rec.EffectiveDays, rec.Total, rec.EmployerCost, rec.EmployeeDeduction)
			}
			return
		}

		if !generic.WithinCent(rec.Total, rec.EmployerCost.Add(rec.EmployeeDeduction)) {
			fail(rec, RuleSplitSum, "total %s != %s + %s",
				rec.Total.StringFixed(2), rec.EmployerCost.StringFixed(2), rec.EmployeeDeduction.StringFixed(2))
		}
		if !generic.WithinCent(rec.EmployerCost, rec.Total.Mul(cfg.EmployerShare)) ||
			!generic.WithinCent(rec.EmployeeDeduction, rec.Total.Mul(cfg.EmployeeShare)) {
			fail(rec, RuleShareRatio, "employer %s employee %s of total %s",
				rec.EmployerCost.StringFixed(2), rec.EmployeeDeduction.StringFixed(2), rec.Total.StringFixed(2))
		}

		base := decimal.NewFromInt(int64(max(rec.BaseWorkingDays(fallback), 0)))
		if rec.EffectiveDays.IsNegative() || rec.EffectiveDays.GreaterThan(base) {
			fail(rec, RuleEffectiveDays, "effective %s outside [0, %s]", rec.EffectiveDays, base)
		}
	})

	return errors.Join(errs...)
}
