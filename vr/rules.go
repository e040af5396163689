package vr

import (
	"fmt"
	"strings"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// RULE CHAIN - Eligibility and adjustment phases
// =============================================================================
//
// Phases run in the fixed order of Phases. Each reads only its own source
// table and makes one indexed pass over it. Rows whose employee is not in the
// roster are counted as unmatched and otherwise ignored.

// Exclusion reason texts.
const (
	ReasonApprentice = "apprentice"
	ReasonIntern     = "intern"
)

func roleReason(keyword string) string { return "role: " + keyword }

func leaveReason(leaveType string) string { return "leave: " + leaveType }

func terminationReason(cutoff int) string { return fmt.Sprintf("terminated before day %d", cutoff) }

func overseasReason(observation string) string { return "overseas: " + observation }

// PhaseResult summarizes one phase of the chain.
type PhaseResult struct {
	Phase      Phase `json:"phase"`
	Skipped    bool  `json:"skipped"` // source absent
	SourceRows int   `json:"source_rows"`
	Matched    int   `json:"matched"`
	Unmatched  int   `json:"unmatched"`
	Excluded   int   `json:"excluded"`
	Adjusted   int   `json:"adjusted"` // annotations that kept eligibility
}

// PhaseReport is the outcome of a full chain application.
type PhaseReport struct {
	Results []PhaseResult

	// AdmissionDays holds the worked days of employees admitted inside the
	// competency month. Audit only; valuation does not read it.
	AdmissionDays map[EmployeeID]int
}

// Result returns the summary of phase p.
func (r PhaseReport) Result(p Phase) (PhaseResult, bool) {
	for _, res := range r.Results {
		if res.Phase == p {
			return res, true
		}
	}
	return PhaseResult{}, false
}

// UnmatchedTotal sums unmatched rows over all phases.
func (r PhaseReport) UnmatchedTotal() int {
	n := 0
	for _, res := range r.Results {
		n += res.Unmatched
	}
	return n
}

type RuleChain struct {
	cfg   *Config
	audit generic.Auditor
}

func NewRuleChain(cfg *Config, audit generic.Auditor) *RuleChain {
	if audit == nil {
		audit = generic.NopAuditor{}
	}
	return &RuleChain{cfg: cfg, audit: audit}
}

// Apply runs every phase over table in order.
func (c *RuleChain) Apply(table *Table, src Sources) PhaseReport {
	report := PhaseReport{AdmissionDays: make(map[EmployeeID]int)}
	report.Results = append(report.Results,
		c.applyRoles(table, src),
		c.applyLeaves(table, src),
		c.applyVacations(table, src),
		c.applyTerminations(table, src),
		c.applyOverseas(table, src),
		c.applyAdmissions(table, src, report.AdmissionDays),
	)
	for _, res := range report.Results {
		if res.Unmatched > 0 {
			c.audit.Record(generic.AuditEntry{
				Kind:     generic.AuditWarning,
				Subject:  string(res.Phase),
				Category: "unknown_employee",
				Message:  fmt.Sprintf("%d rows reference employees not in the active roster", res.Unmatched),
				Fields:   map[string]any{"count": res.Unmatched},
			})
		}
	}
	return report
}

func (c *RuleChain) excludeRecord(rec *Record, phase Phase, reason string) {
	rec.exclude(phase, reason)
	c.audit.Record(generic.AuditEntry{
		Kind:     generic.AuditExclusion,
		Subject:  rec.ID.String(),
		Category: string(phase),
		Message:  reason,
	})
}

func (c *RuleChain) special(rec *Record, phase Phase, kind, detail string) {
	c.audit.Record(generic.AuditEntry{
		Kind:     generic.AuditSpecialCalculation,
		Subject:  rec.ID.String(),
		Category: string(phase),
		Message:  kind,
		Fields:   map[string]any{"detail": detail},
	})
}

// -----------------------------------------------------------------------------
// (a) Role exclusion
// -----------------------------------------------------------------------------

func (c *RuleChain) applyRoles(table *Table, src Sources) PhaseResult {
	res := PhaseResult{Phase: PhaseRole}
	if src.Apprentices == nil && src.Interns == nil && len(c.cfg.ExcludedRoles) == 0 {
		res.Skipped = true
		return res
	}

	byID := func(rows []RoleRow, reason string) {
		for _, row := range rows {
			res.SourceRows++
			rec, ok := table.Get(row.ID)
			if !ok {
				res.Unmatched++
				continue
			}
			res.Matched++
			res.Excluded++
			c.excludeRecord(rec, PhaseRole, reason)
		}
	}
	byID(src.Apprentices, ReasonApprentice)
	byID(src.Interns, ReasonIntern)

	for _, kw := range c.cfg.ExcludedRoles {
		needle := strings.ToUpper(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		table.Each(func(rec *Record) {
			if strings.Contains(strings.ToUpper(rec.Role), needle) {
				res.Excluded++
				c.excludeRecord(rec, PhaseRole, roleReason(kw))
			}
		})
	}
	return res
}

// -----------------------------------------------------------------------------
// (b) Leave exclusion
// -----------------------------------------------------------------------------

func (c *RuleChain) applyLeaves(table *Table, src Sources) PhaseResult {
	res := PhaseResult{Phase: PhaseLeave}
	if src.Leaves == nil {
		res.Skipped = true
		return res
	}
	excluded := make(map[string]bool, len(c.cfg.ExcludedLeaveTypes))
	for _, t := range c.cfg.ExcludedLeaveTypes {
		excluded[strings.TrimSpace(t)] = true
	}

	for _, row := range src.Leaves {
		res.SourceRows++
		rec, ok := table.Get(row.ID)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		leaveType := strings.TrimSpace(row.Type)
		if excluded[leaveType] {
			res.Excluded++
			c.excludeRecord(rec, PhaseLeave, leaveReason(leaveType))
		}
	}
	return res
}

// -----------------------------------------------------------------------------
// (c) Vacation annotation
// -----------------------------------------------------------------------------

func (c *RuleChain) applyVacations(table *Table, src Sources) PhaseResult {
	res := PhaseResult{Phase: PhaseVacation}
	if src.Vacations == nil {
		res.Skipped = true
		return res
	}
	for _, row := range src.Vacations {
		res.SourceRows++
		rec, ok := table.Get(row.ID)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		res.Adjusted++
		rec.VacationDays = max(row.Days, 0)
		c.special(rec, PhaseVacation, "vacation days", fmt.Sprintf("%d vacation days", rec.VacationDays))
	}
	return res
}

// -----------------------------------------------------------------------------
// (d) Termination cutoff
// -----------------------------------------------------------------------------

func (c *RuleChain) applyTerminations(table *Table, src Sources) PhaseResult {
	res := PhaseResult{Phase: PhaseTermination}
	if src.Terminated == nil {
		res.Skipped = true
		return res
	}
	cutoff := c.cfg.CutoffDay
	for _, row := range src.Terminated {
		res.SourceRows++
		rec, ok := table.Get(row.ID)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		rec.TerminationNotice = row.Notice
		if row.Date.IsZero() {
			rec.TerminationDate = nil
			continue
		}
		d := generic.DateOnly(row.Date)
		rec.TerminationDate = &d

		if d.Day() <= cutoff {
			res.Excluded++
			c.excludeRecord(rec, PhaseTermination, terminationReason(cutoff))
			continue
		}
		res.Adjusted++
		c.special(rec, PhaseTermination, "terminated after cutoff, full month",
			fmt.Sprintf("terminated on day %d, cutoff %d", d.Day(), cutoff))
	}
	return res
}

// -----------------------------------------------------------------------------
// (e) Overseas override
// -----------------------------------------------------------------------------

func (c *RuleChain) applyOverseas(table *Table, src Sources) PhaseResult {
	res := PhaseResult{Phase: PhaseOverseas}
	if src.Overseas == nil {
		res.Skipped = true
		return res
	}
	keywords := c.cfg.overseasKeywords()
	for _, row := range src.Overseas {
		res.SourceRows++
		rec, ok := table.Get(row.ID)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		if containsAnyFold(row.Observation, keywords) {
			res.Excluded++
			c.excludeRecord(rec, PhaseOverseas, overseasReason(strings.TrimSpace(row.Observation)))
			continue
		}
		res.Adjusted++
		rec.OverseasValue = generic.ClampZero(row.Value)
		c.special(rec, PhaseOverseas, "overseas special value", "value "+rec.OverseasValue.StringFixed(2))
	}
	return res
}

func containsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// (f) Admission-month annotation
// -----------------------------------------------------------------------------

func (c *RuleChain) applyAdmissions(table *Table, src Sources, days map[EmployeeID]int) PhaseResult {
	res := PhaseResult{Phase: PhaseAdmission}
	if src.Admissions == nil {
		res.Skipped = true
		return res
	}
	comp := c.cfg.Competency
	for _, row := range src.Admissions {
		res.SourceRows++
		rec, ok := table.Get(row.ID)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		if row.Date.IsZero() || !comp.Contains(row.Date) {
			continue
		}
		worked := comp.DaysFrom(row.Date)
		days[rec.ID] = worked
		res.Adjusted++
		c.special(rec, PhaseAdmission, "admitted in competency month",
			fmt.Sprintf("admitted on day %d, %d days worked", row.Date.Day(), worked))
	}
	return res
}
