package vr

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE ROWS - Already-validated input tables, one type per category
// =============================================================================

type ActiveRow struct {
	ID       EmployeeID
	Employer int64
	Role     string
	Status   string
	Union    string
}

// AdmissionRow has a zero Date when the source cell was empty or unparseable.
type AdmissionRow struct {
	ID   EmployeeID
	Date time.Time
	Role string
}

// TerminationRow has a zero Date when the source cell was empty or unparseable.
type TerminationRow struct {
	ID     EmployeeID
	Date   time.Time
	Notice string
}

type LeaveRow struct {
	ID   EmployeeID
	Type string
}

// RoleRow is used by both the apprentices and the interns tables.
type RoleRow struct {
	ID   EmployeeID
	Role string
}

type UnionWorkdaysRow struct {
	Union string
	Days  int
}

type UnionRateRow struct {
	Union string
	Rate  decimal.Decimal
}

type OverseasRow struct {
	ID          EmployeeID
	Value       decimal.Decimal
	Observation string
}

type VacationRow struct {
	ID     EmployeeID
	Status string
	Days   int
}

// =============================================================================
// SOURCES - The bundle handed to the engine
// =============================================================================

// Sources bundles every input table. A nil slice means the source is absent
// (its phase is skipped); an empty non-nil slice means present with no rows.
type Sources struct {
	Active      []ActiveRow
	Admissions  []AdmissionRow
	Terminated  []TerminationRow
	Leaves      []LeaveRow
	Apprentices []RoleRow
	Interns     []RoleRow
	Workdays    []UnionWorkdaysRow
	Rates       []UnionRateRow
	Overseas    []OverseasRow
	Vacations   []VacationRow
}

// Present reports whether the table for c was supplied.
func (s Sources) Present(c Category) bool {
	switch c {
	case CategoryActive:
		return s.Active != nil
	case CategoryAdmissions:
		return s.Admissions != nil
	case CategoryTerminated:
		return s.Terminated != nil
	case CategoryLeaves:
		return s.Leaves != nil
	case CategoryApprentices:
		return s.Apprentices != nil
	case CategoryInterns:
		return s.Interns != nil
	case CategoryWorkdays:
		return s.Workdays != nil
	case CategoryRates:
		return s.Rates != nil
	case CategoryOverseas:
		return s.Overseas != nil
	case CategoryVacations:
		return s.Vacations != nil
	}
	return false
}

// Rows returns the row count of the table for c (0 when absent).
func (s Sources) Rows(c Category) int {
	switch c {
	case CategoryActive:
		return len(s.Active)
	case CategoryAdmissions:
		return len(s.Admissions)
	case CategoryTerminated:
		return len(s.Terminated)
	case CategoryLeaves:
		return len(s.Leaves)
	case CategoryApprentices:
		return len(s.Apprentices)
	case CategoryInterns:
		return len(s.Interns)
	case CategoryWorkdays:
		return len(s.Workdays)
	case CategoryRates:
		return len(s.Rates)
	case CategoryOverseas:
		return len(s.Overseas)
	case CategoryVacations:
		return len(s.Vacations)
	}
	return 0
}
