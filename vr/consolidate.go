package vr

import (
	"fmt"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// CONSOLIDATOR - One record per roster employee
// =============================================================================

// ConsolidationReport counts what the joins could not resolve.
type ConsolidationReport struct {
	Rows               int
	DuplicateIDs       []EmployeeID
	WithAdmission      int
	MissingRate        int
	MissingWorkingDays int
}

type Consolidator struct {
	normalize UnionNormalizer
	audit     generic.Auditor
}

func NewConsolidator(normalize UnionNormalizer, audit generic.Auditor) *Consolidator {
	if normalize == nil {
		normalize = IdentityNormalizer
	}
	if audit == nil {
		audit = generic.NopAuditor{}
	}
	return &Consolidator{normalize: normalize, audit: audit}
}

// Consolidate left-joins roster, admissions and union lookups into a Table.
// The only error is a missing active roster.
func (c *Consolidator) Consolidate(src Sources, bases *UnionBases) (*Table, ConsolidationReport, error) {
	var report ConsolidationReport
	if src.Active == nil {
		return nil, report, &generic.MissingSourceError{Category: string(CategoryActive)}
	}

	table := newTable(len(src.Active))
	for _, row := range src.Active {
		if !table.add(newRecord(row)) {
			report.DuplicateIDs = append(report.DuplicateIDs, row.ID)
			c.audit.Record(generic.AuditEntry{
				Kind:     generic.AuditWarning,
				Subject:  row.ID.String(),
				Category: "duplicate_key",
				Message:  fmt.Sprintf("employee %s repeated in active roster, keeping first row", row.ID),
			})
		}
	}
	report.Rows = table.Len()

	// First admission row per employee.
	seen := make(map[EmployeeID]bool, len(src.Admissions))
	for _, adm := range src.Admissions {
		if seen[adm.ID] {
			continue
		}
		seen[adm.ID] = true
		rec, ok := table.Get(adm.ID)
		if !ok || adm.Date.IsZero() {
			continue
		}
		d := generic.DateOnly(adm.Date)
		rec.AdmissionDate = &d
		report.WithAdmission++
	}

	table.Each(func(rec *Record) {
		rec.NormalizedUnion = c.normalize(rec.Union)
		if rate, ok := bases.Rate(rec.NormalizedUnion); ok {
			rec.DailyRate = &rate
		} else {
			report.MissingRate++
		}
		if days, ok := bases.WorkingDays(rec.NormalizedUnion); ok {
			rec.WorkingDays = &days
		} else {
			report.MissingWorkingDays++
		}
	})

	if report.MissingRate > 0 {
		c.audit.Record(generic.AuditEntry{
			Kind:     generic.AuditWarning,
			Subject:  string(CategoryRates),
			Category: "missing_rate",
			Message:  fmt.Sprintf("%d employees without daily rate", report.MissingRate),
			Fields:   map[string]any{"count": report.MissingRate},
		})
	}
	if report.MissingWorkingDays > 0 {
		c.audit.Record(generic.AuditEntry{
			Kind:     generic.AuditWarning,
			Subject:  string(CategoryWorkdays),
			Category: "missing_working_days",
			Message:  fmt.Sprintf("%d employees without working days", report.MissingWorkingDays),
			Fields:   map[string]any{"count": report.MissingWorkingDays},
		})
	}

	return table, report, nil
}
