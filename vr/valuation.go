package vr

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// VALUATION - Effective days, total and the employer/employee split
// =============================================================================
//
// Defaults for missing union data are applied here and nowhere else:
//   working days -> Config.DefaultWorkingDays (22)
//   daily rate   -> 0, producing a silent zero total

// ObservationOverseas marks rows whose total came from the overseas table.
const ObservationOverseas = "special value - overseas"

// ValuationReport counts the non-standard valuations.
type ValuationReport struct {
	Valued             int
	Zeroed             int // ineligible rows forced to zero
	Overseas           int
	DefaultWorkingDays int // eligible rows valued with the default day count
	SilentZero         []EmployeeID
}

type Valuator struct {
	cfg   *Config
	audit generic.Auditor
}

func NewValuator(cfg *Config, audit generic.Auditor) *Valuator {
	if audit == nil {
		audit = generic.NopAuditor{}
	}
	return &Valuator{cfg: cfg, audit: audit}
}

// Value writes EffectiveDays, Total, EmployerCost and EmployeeDeduction on
// every record. EmployerCost is Total times the employer share rounded to
// cents; EmployeeDeduction is the remainder, so the two always add up to
// Total. With shares summing to one this differs from Total times the
// employee share by at most half a cent.
func (v *Valuator) Value(table *Table) ValuationReport {
	var report ValuationReport
	fallback := v.cfg.defaultWorkingDays()

	table.Each(func(rec *Record) {
		if !rec.Eligible {
			rec.EffectiveDays = decimal.Zero
			rec.Total = decimal.Zero
			rec.EmployerCost = decimal.Zero
			rec.EmployeeDeduction = decimal.Zero
			report.Zeroed++
			return
		}

		if rec.WorkingDays == nil {
			report.DefaultWorkingDays++
		}
		base := rec.BaseWorkingDays(fallback)
		effective := max(0, base-rec.VacationDays)
		rec.EffectiveDays = decimal.NewFromInt(int64(effective))

		if override, ok := overseasTotal(rec); ok {
			rec.Total = generic.RoundCents(override)
			rec.Observation = ObservationOverseas
			report.Overseas++
		} else {
			rec.Total = generic.RoundCents(rec.EffectiveDays.Mul(rec.Rate()))
			if rec.DailyRate == nil {
				report.SilentZero = append(report.SilentZero, rec.ID)
			}
		}

		rec.EmployerCost, rec.EmployeeDeduction = generic.Split(rec.Total, v.cfg.EmployerShare)
		report.Valued++
	})

	if n := len(report.SilentZero); n > 0 {
		v.audit.Record(generic.AuditEntry{
			Kind:     generic.AuditWarning,
			Subject:  string(CategoryRates),
			Category: "silent_zero",
			Message:  fmt.Sprintf("%d eligible employees valued at zero for lack of a daily rate", n),
			Fields:   map[string]any{"count": n},
		})
	}
	return report
}

// overseasTotal returns the overseas value when it overrides the daily rate.
func overseasTotal(rec *Record) (decimal.Decimal, bool) {
	if rec.OverseasValue.IsPositive() {
		return rec.OverseasValue, true
	}
	return decimal.Zero, false
}
