/*
Package vr computes the monthly meal-voucher (VR) benefit.

PURPOSE:
  Starting from independently-maintained source tables (active roster,
  admissions, terminations, leaves, vacations, apprentices, interns, overseas
  assignments, per-union daily rate, per-union working days) the engine
  produces one auditable figure per eligible employee, split between the
  employer and the employee.

PIPELINE (strictly left to right, one shared table per run):
  1. Preparer      union rate / working-day lookups (prepare.go)
  2. Consolidator  one Record per roster employee (consolidate.go)
  3. RuleChain     six ordered eligibility/adjustment phases (rules.go)
  4. Valuator      effective days, total, employer/employee split (valuation.go)
  5. ComputeStats  counts, totals, consistency checks (stats.go)

KEY CONCEPTS IN THIS FILE (types.go):
  - EmployeeID: the "matricula", unique integer key across all sources
  - Record: the consolidated, mutable per-employee row
  - Exclusion: one reason an employee lost eligibility, tagged with its phase
  - Table: records in roster order plus an id -> index map built once

PRECEDENCE:
  Each phase may overwrite Reason regardless of earlier phases (last write
  wins). Exclusions keeps every reason in the order it was applied, so an
  employee who is both an apprentice and on an excluded leave shows
  Reason "leave: ..." and the full history [apprentice, leave: ...].

SEE ALSO:
  - engine.go: Wires the stages together
  - invariants.go: Post-run consistency verification
*/
package vr

import (
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EmployeeID is the employee registration number (matricula).
type EmployeeID int64

func (id EmployeeID) String() string { return strconv.FormatInt(int64(id), 10) }

// Category names a source table. Values match the keys of the rules file.
type Category string

const (
	CategoryActive      Category = "ativos"
	CategoryAdmissions  Category = "admissoes"
	CategoryLeaves      Category = "afastamentos"
	CategoryApprentices Category = "aprendizes"
	CategoryWorkdays    Category = "dias_uteis"
	CategoryRates       Category = "sindicato_valor"
	CategoryTerminated  Category = "desligados"
	CategoryInterns     Category = "estagios"
	CategoryOverseas    Category = "exterior"
	CategoryVacations   Category = "ferias"
)

// Categories lists every source category in extraction order.
var Categories = []Category{
	CategoryActive, CategoryAdmissions, CategoryLeaves, CategoryApprentices,
	CategoryWorkdays, CategoryRates, CategoryTerminated, CategoryInterns,
	CategoryOverseas, CategoryVacations,
}

// MandatoryCategories must be present for a run to start.
var MandatoryCategories = []Category{CategoryActive, CategoryRates, CategoryWorkdays}

// IsMandatory reports whether c is one of MandatoryCategories.
func (c Category) IsMandatory() bool {
	for _, m := range MandatoryCategories {
		if m == c {
			return true
		}
	}
	return false
}

// =============================================================================
// RULE PHASES
// =============================================================================

// Phase identifies a step of the rule chain.
type Phase string

const (
	PhaseRole        Phase = "role"
	PhaseLeave       Phase = "leave"
	PhaseVacation    Phase = "vacation"
	PhaseTermination Phase = "termination"
	PhaseOverseas    Phase = "overseas"
	PhaseAdmission   Phase = "admission"
)

// Phases is the fixed order the rule chain runs in.
var Phases = []Phase{PhaseRole, PhaseLeave, PhaseVacation, PhaseTermination, PhaseOverseas, PhaseAdmission}

// Exclusion is one reason an employee was marked ineligible.
type Exclusion struct {
	Phase  Phase  `json:"phase"`
	Reason string `json:"reason"`
}

// =============================================================================
// RECORD - Consolidated employee row
// =============================================================================

// Record is the consolidated view of one roster employee. It is created by the
// Consolidator and mutated in place by the RuleChain and the Valuator.
type Record struct {
	ID              EmployeeID
	Employer        int64
	Role            string
	Status          string // leave-status description from the roster
	Union           string
	NormalizedUnion string
	AdmissionDate   *time.Time

	Eligible   bool
	Reason     string      // empty iff Eligible
	Exclusions []Exclusion // every exclusion, in application order

	VacationDays      int
	LeaveDays         int // tracked only, not used by valuation
	TerminationDate   *time.Time
	TerminationNotice string
	OverseasValue     decimal.Decimal
	Observation       string

	// Union lookups; nil means the union had no entry.
	DailyRate   *decimal.Decimal
	WorkingDays *int

	// Valuation output; zero for ineligible rows.
	EffectiveDays     decimal.Decimal
	Total             decimal.Decimal
	EmployerCost      decimal.Decimal
	EmployeeDeduction decimal.Decimal
}

// newRecord returns a record in the default "eligible, no exclusion" state.
func newRecord(row ActiveRow) *Record {
	return &Record{
		ID:       row.ID,
		Employer: row.Employer,
		Role:     row.Role,
		Status:   row.Status,
		Union:    row.Union,
		Eligible: true,
	}
}

// exclude marks the record ineligible. Reason is overwritten; history is kept
// with each (phase, reason) pair at most once.
func (r *Record) exclude(phase Phase, reason string) {
	r.Eligible = false
	r.Reason = reason
	entry := Exclusion{Phase: phase, Reason: reason}
	if !slices.Contains(r.Exclusions, entry) {
		r.Exclusions = append(r.Exclusions, entry)
	}
}

// FirstReason returns the earliest exclusion reason, or "" when eligible.
func (r *Record) FirstReason() string {
	if len(r.Exclusions) == 0 {
		return ""
	}
	return r.Exclusions[0].Reason
}

// BaseWorkingDays returns the union working days or the given default.
func (r *Record) BaseWorkingDays(fallback int) int {
	if r.WorkingDays == nil {
		return fallback
	}
	return *r.WorkingDays
}

// Rate returns the union daily rate or zero when missing.
func (r *Record) Rate() decimal.Decimal {
	if r.DailyRate == nil {
		return decimal.Zero
	}
	return *r.DailyRate
}

// Clone returns a deep copy (pointers and history duplicated).
func (r *Record) Clone() Record {
	c := *r
	c.Exclusions = append([]Exclusion(nil), r.Exclusions...)
	if r.AdmissionDate != nil {
		d := *r.AdmissionDate
		c.AdmissionDate = &d
	}
	if r.TerminationDate != nil {
		d := *r.TerminationDate
		c.TerminationDate = &d
	}
	if r.DailyRate != nil {
		d := *r.DailyRate
		c.DailyRate = &d
	}
	if r.WorkingDays != nil {
		d := *r.WorkingDays
		c.WorkingDays = &d
	}
	return c
}

// =============================================================================
// TABLE - Records indexed by employee id
// =============================================================================

// Table holds one record per roster employee in roster order.
type Table struct {
	rows  []*Record
	index map[EmployeeID]int
}

func newTable(capacity int) *Table {
	return &Table{
		rows:  make([]*Record, 0, capacity),
		index: make(map[EmployeeID]int, capacity),
	}
}

// NewTable builds a table from records, keeping the first record of each id.
func NewTable(records []Record) *Table {
	t := newTable(len(records))
	for i := range records {
		rec := records[i].Clone()
		t.add(&rec)
	}
	return t
}

// add appends rec unless its id is already present. Returns false on duplicates.
func (t *Table) add(rec *Record) bool {
	if _, ok := t.index[rec.ID]; ok {
		return false
	}
	t.index[rec.ID] = len(t.rows)
	t.rows = append(t.rows, rec)
	return true
}

func (t *Table) Len() int { return len(t.rows) }

// Get returns the record for id.
func (t *Table) Get(id EmployeeID) (*Record, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}

// Each calls fn for every record in roster order.
func (t *Table) Each(fn func(*Record)) {
	for _, r := range t.rows {
		fn(r)
	}
}

// Records returns deep copies of all records in roster order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Filter returns copies of the records for which keep returns true.
func (t *Table) Filter(keep func(*Record) bool) []Record {
	var out []Record
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}
