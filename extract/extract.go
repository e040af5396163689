/*
Package extract reads the monthly payroll spreadsheets into vr.Sources.

PURPOSE:
  The benefit core works on typed rows. This package is the boundary where
  loosely formatted Excel exports (accented headers, banner rows, unnamed
  columns, Brazilian number formats, Excel serial dates) become those rows,
  and where cross-file consistency is checked before the core runs.

KEY CONCEPTS:
  Schema:      Required columns per category, with accepted header spellings
  Locator:     Resolves a category to its file path (factory.Inputs)
  Limits:      Expected range of union working days
  Report:      Per-source row counts plus every warning raised

FATAL vs WARNING:
  Fatal (the run must not start):
    - A mandatory source (ativos, sindicato_valor, dias_uteis) is missing
    - A present source lacks required columns
    - A roster union has no daily rate after normalization
  Warning (recorded, extraction continues):
    - Optional source missing (the category stays nil)
    - More than half of a column failed type conversion
    - Adjustment rows for IDs not on the roster
    - Working days outside the configured limits

USAGE:
  ex := extract.New(rules.Inputs, &rules.Config, rules.Limits, extract.WithLogger(log))
  sources, report, err := ex.Extract()

SEE ALSO:
  - vr/sources.go: Row types produced here
  - factory/rules.go: Inputs and Limits
  - extract/inspect.go: File integrity report
*/
package extract

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// failureThreshold is the share of failed conversions in a column above
// which a warning is raised.
const failureThreshold = 0.5

// maxListed caps how many IDs a single warning message lists.
const maxListed = 10

// Limits is the accepted range of union working days. A zero Max disables
// the check.
type Limits struct {
	WorkdaysMin int
	WorkdaysMax int
}

// Locator resolves a category to the path of its spreadsheet. An empty path
// means the category is not configured.
type Locator interface {
	Path(c vr.Category) string
}

// =============================================================================
// REPORT
// =============================================================================

// SourceStat describes how one category was read.
type SourceStat struct {
	Category vr.Category `json:"category"`
	Path     string      `json:"path"`
	Present  bool        `json:"present"`
	Rows     int         `json:"rows"`
	Dropped  int         `json:"dropped"`
}

// Warning is a recoverable data problem.
type Warning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Report summarizes an extraction.
type Report struct {
	Sources  []SourceStat `json:"sources"`
	Warnings []Warning    `json:"warnings"`
}

// Source returns the stat for c.
func (r *Report) Source(c vr.Category) (SourceStat, bool) {
	for _, s := range r.Sources {
		if s.Category == c {
			return s, true
		}
	}
	return SourceStat{}, false
}

// WarningsFor returns the warnings raised under category.
func (r *Report) WarningsFor(category string) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Category == category {
			out = append(out, w)
		}
	}
	return out
}

// Warning categories.
const (
	WarnOptionalMissing = "optional_missing"
	WarnConversion      = "conversion"
	WarnUnknownID       = "unknown_id"
	WarnWorkdaysRange   = "workdays_range"
)

// =============================================================================
// EXTRACTOR
// =============================================================================

type Extractor struct {
	locator   Locator
	normalize vr.UnionNormalizer
	limits    Limits
	log       logrus.FieldLogger
	audit     generic.Auditor
}

type Option func(*Extractor)

// WithLogger sets the technical logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option { return func(e *Extractor) { e.log = l } }

// WithAuditor also records every warning in the audit trail.
func WithAuditor(a generic.Auditor) Option { return func(e *Extractor) { e.audit = a } }

// New creates an extractor. cfg supplies the union normalization used by the
// rate cross-check.
func New(loc Locator, cfg *vr.Config, limits Limits, opts ...Option) *Extractor {
	e := &Extractor{
		locator:   loc,
		normalize: cfg.Normalizer(),
		limits:    limits,
		log:       logrus.StandardLogger(),
		audit:     generic.NopAuditor{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads every configured source and runs the cross-checks. On error
// the returned Sources are empty; the report still describes what was read.
func (e *Extractor) Extract() (vr.Sources, *Report, error) {
	report := &Report{}

	if err := e.checkMandatory(); err != nil {
		return vr.Sources{}, report, err
	}

	var src vr.Sources
	for _, c := range vr.Categories {
		if err := e.readCategory(c, &src, report); err != nil {
			return vr.Sources{}, report, err
		}
	}

	if err := e.crossCheck(src, report); err != nil {
		return vr.Sources{}, report, err
	}

	e.log.WithFields(logrus.Fields{
		"sources":  len(report.Sources),
		"warnings": len(report.Warnings),
	}).Info("extraction complete")
	return src, report, nil
}

func (e *Extractor) checkMandatory() error {
	err := CheckMandatory(e.locator)
	var missing *generic.MissingSourceError
	if errors.As(err, &missing) {
		e.log.WithFields(logrus.Fields{"category": missing.Category, "path": missing.Path}).Error("mandatory source not found")
	}
	return err
}

// CheckMandatory returns a *generic.MissingSourceError for the first
// mandatory category whose file is not configured or does not exist.
func CheckMandatory(loc Locator) error {
	for _, c := range vr.MandatoryCategories {
		path := loc.Path(c)
		if path == "" || !fileExists(path) {
			return &generic.MissingSourceError{Category: string(c), Path: path}
		}
	}
	return nil
}

func (e *Extractor) readCategory(c vr.Category, src *vr.Sources, report *Report) error {
	path := e.locator.Path(c)
	stat := SourceStat{Category: c, Path: path}
	defer func() { report.Sources = append(report.Sources, stat) }()

	if path == "" || !fileExists(path) {
		if c.IsMandatory() {
			return &generic.MissingSourceError{Category: string(c), Path: path}
		}
		e.warn(report, WarnOptionalMissing, c, fmt.Sprintf("optional source %s not found: %s", c, path))
		return nil
	}

	rows, err := ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c, err)
	}
	sh, err := locate(c, rows)
	if err != nil {
		return err
	}

	stat.Present = true
	stat.Rows, stat.Dropped = convert(sh, src)

	total := len(sh.rows)
	for _, name := range sortedKeys(sh.failures) {
		if failed := sh.failures[name]; total > 0 && float64(failed) > float64(total)*failureThreshold {
			e.warn(report, WarnConversion, c, fmt.Sprintf("too many invalid values in column %s of %s: %d of %d", name, c, failed, total))
		}
	}

	e.log.WithFields(logrus.Fields{"category": c, "path": path, "rows": stat.Rows, "dropped": stat.Dropped}).Info("source read")
	return nil
}

func (e *Extractor) warn(report *Report, category string, c vr.Category, msg string) {
	report.Warnings = append(report.Warnings, Warning{Category: category, Message: msg})
	e.log.WithFields(logrus.Fields{"category": c, "check": category}).Warn(msg)
	e.audit.Record(generic.AuditEntry{
		Kind:     generic.AuditWarning,
		Subject:  string(c),
		Category: category,
		Message:  msg,
	})
}

// =============================================================================
// CONVERSION - One function per category
// =============================================================================

// convert fills the category's slice in src and returns the rows kept and
// the rows dropped for lacking a usable key.
func convert(sh *sheet, src *vr.Sources) (kept, dropped int) {
	switch sh.category {
	case vr.CategoryActive:
		src.Active = make([]vr.ActiveRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			employer, _ := parseInt(sh.str(row, colEmployer))
			src.Active = append(src.Active, vr.ActiveRow{
				ID:       id,
				Employer: employer,
				Role:     sh.str(row, colRole),
				Status:   sh.str(row, colStatus),
				Union:    sh.str(row, colUnion),
			})
		}
		kept = len(src.Active)

	case vr.CategoryAdmissions:
		src.Admissions = make([]vr.AdmissionRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			src.Admissions = append(src.Admissions, vr.AdmissionRow{
				ID:   id,
				Date: sh.date(row, colAdmission),
				Role: sh.str(row, colCargo),
			})
		}
		kept = len(src.Admissions)

	case vr.CategoryTerminated:
		src.Terminated = make([]vr.TerminationRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			src.Terminated = append(src.Terminated, vr.TerminationRow{
				ID:     id,
				Date:   sh.date(row, colTermination),
				Notice: sh.str(row, colNotice),
			})
		}
		kept = len(src.Terminated)

	case vr.CategoryLeaves:
		src.Leaves = make([]vr.LeaveRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			src.Leaves = append(src.Leaves, vr.LeaveRow{ID: id, Type: sh.str(row, colStatus)})
		}
		kept = len(src.Leaves)

	case vr.CategoryApprentices, vr.CategoryInterns:
		rows := make([]vr.RoleRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			rows = append(rows, vr.RoleRow{ID: id, Role: sh.str(row, colRole)})
		}
		if sh.category == vr.CategoryApprentices {
			src.Apprentices = rows
		} else {
			src.Interns = rows
		}
		kept = len(rows)

	case vr.CategoryWorkdays:
		src.Workdays = make([]vr.UnionWorkdaysRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			union := sh.str(row, colWorkUnion)
			days, ok := sh.integer(row, colWorkdays)
			if union == "" || !ok {
				dropped++
				continue
			}
			src.Workdays = append(src.Workdays, vr.UnionWorkdaysRow{Union: union, Days: days})
		}
		kept = len(src.Workdays)

	case vr.CategoryRates:
		src.Rates = make([]vr.UnionRateRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			union := sh.str(row, colState)
			rate, ok := sh.amount(row, colValue)
			if union == "" || !ok {
				dropped++
				continue
			}
			src.Rates = append(src.Rates, vr.UnionRateRow{Union: union, Rate: rate})
		}
		kept = len(src.Rates)

	case vr.CategoryOverseas:
		src.Overseas = make([]vr.OverseasRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			value, _ := sh.amount(row, colValue)
			src.Overseas = append(src.Overseas, vr.OverseasRow{
				ID:          id,
				Value:       value,
				Observation: sh.str(row, colObservation),
			})
		}
		kept = len(src.Overseas)

	case vr.CategoryVacations:
		src.Vacations = make([]vr.VacationRow, 0, len(sh.rows))
		for _, row := range sh.rows {
			id, ok := sh.id(row)
			if !ok {
				dropped++
				continue
			}
			days, _ := sh.integer(row, colVacation)
			src.Vacations = append(src.Vacations, vr.VacationRow{
				ID:     id,
				Status: sh.str(row, colStatus),
				Days:   days,
			})
		}
		kept = len(src.Vacations)
	}
	return kept, dropped
}

// =============================================================================
// CROSS CHECKS
// =============================================================================

func (e *Extractor) crossCheck(src vr.Sources, report *Report) error {
	roster := make(map[vr.EmployeeID]bool, len(src.Active))
	for _, row := range src.Active {
		roster[row.ID] = true
	}

	adjustments := []struct {
		category vr.Category
		ids      []vr.EmployeeID
	}{
		{vr.CategoryAdmissions, idsOf(src.Admissions, func(r vr.AdmissionRow) vr.EmployeeID { return r.ID })},
		{vr.CategoryLeaves, idsOf(src.Leaves, func(r vr.LeaveRow) vr.EmployeeID { return r.ID })},
		{vr.CategoryTerminated, idsOf(src.Terminated, func(r vr.TerminationRow) vr.EmployeeID { return r.ID })},
		{vr.CategoryVacations, idsOf(src.Vacations, func(r vr.VacationRow) vr.EmployeeID { return r.ID })},
	}
	for _, adj := range adjustments {
		if unknown := unknownIDs(adj.ids, roster); len(unknown) > 0 {
			e.warn(report, WarnUnknownID, adj.category,
				fmt.Sprintf("%d IDs in %s not found in the active roster: %s", len(unknown), adj.category, listIDs(unknown)))
		}
	}

	if err := e.checkRates(src); err != nil {
		return err
	}

	if e.limits.WorkdaysMax > 0 {
		for _, row := range src.Workdays {
			if row.Days < e.limits.WorkdaysMin || row.Days > e.limits.WorkdaysMax {
				e.warn(report, WarnWorkdaysRange, vr.CategoryWorkdays,
					fmt.Sprintf("working days for %s outside [%d, %d]: %d", row.Union, e.limits.WorkdaysMin, e.limits.WorkdaysMax, row.Days))
			}
		}
	}
	return nil
}

// checkRates fails when a normalized roster union has no rate.
func (e *Extractor) checkRates(src vr.Sources) error {
	rated := map[string]bool{}
	var labels []string
	for _, row := range src.Rates {
		label := strings.TrimSpace(row.Union)
		if !rated[label] {
			rated[label] = true
			labels = append(labels, label)
		}
	}

	seen := map[string]bool{}
	var missing []string
	for _, row := range src.Active {
		if strings.TrimSpace(row.Union) == "" {
			continue
		}
		union := e.normalize(row.Union)
		if !rated[union] && !seen[union] {
			seen[union] = true
			missing = append(missing, union)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	err := &generic.UnresolvedUnionError{Unions: missing, Suggestions: map[string][]string{}}
	for _, u := range missing {
		if hints := Suggest(u, labels); len(hints) > 0 {
			err.Suggestions[u] = hints
		}
	}
	e.log.WithField("unions", missing).Error("unions without daily rate")
	return err
}

// Suggest returns up to three candidates that fuzzily match label, closest
// first. Matching ignores case and accents in both directions.
func Suggest(label string, candidates []string) []string {
	type hit struct {
		target   string
		distance int
	}
	var hits []hit
	for _, c := range candidates {
		if fuzzy.MatchNormalizedFold(label, c) || fuzzy.MatchNormalizedFold(c, label) {
			hits = append(hits, hit{c, fuzzy.LevenshteinDistance(fold(label), fold(c))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	var out []string
	for i := 0; i < len(hits) && i < 3; i++ {
		out = append(out, hits[i].target)
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func idsOf[T any](rows []T, id func(T) vr.EmployeeID) []vr.EmployeeID {
	ids := make([]vr.EmployeeID, len(rows))
	for i, r := range rows {
		ids[i] = id(r)
	}
	return ids
}

func unknownIDs(ids []vr.EmployeeID, roster map[vr.EmployeeID]bool) []vr.EmployeeID {
	seen := map[vr.EmployeeID]bool{}
	var out []vr.EmployeeID
	for _, id := range ids {
		if !roster[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func listIDs(ids []vr.EmployeeID) string {
	parts := make([]string, 0, maxListed)
	for i, id := range ids {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(ids)-maxListed))
			break
		}
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
