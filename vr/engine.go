package vr

import (
	"fmt"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// ENGINE - Runs the five stages over one table
// =============================================================================

// Result is everything a run produced. Only returned when every stage
// succeeded and the table passed Verify.
type Result struct {
	Competency    generic.Competency
	Table         *Table
	Stats         Stats
	Checks        []Check
	Consolidation ConsolidationReport
	Phases        PhaseReport
	Valuation     ValuationReport
}

// Eligible returns the eligible records sorted by employee id.
func (r *Result) Eligible() []Record {
	return sortedByID(r.Table.Filter(func(rec *Record) bool { return rec.Eligible }))
}

// Excluded returns the ineligible records sorted by employee id.
func (r *Result) Excluded() []Record {
	return sortedByID(r.Table.Filter(func(rec *Record) bool { return !rec.Eligible }))
}

type Engine struct {
	cfg       *Config
	normalize UnionNormalizer
	audit     generic.Auditor
}

type Option func(*Engine)

// WithNormalizer overrides the normalizer derived from Config.UnionAliases.
func WithNormalizer(n UnionNormalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.normalize = n
		}
	}
}

// WithAuditor sets the sink for audit entries.
func WithAuditor(a generic.Auditor) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, &generic.ConfigError{Field: "config", Reason: "required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, normalize: cfg.Normalizer(), audit: generic.NopAuditor{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() *Config { return e.cfg }

// Run executes prepare, consolidate, rules, valuation and statistics. Any
// failure aborts the run and no partial result is returned.
func (e *Engine) Run(src Sources) (*Result, error) {
	for _, c := range Categories {
		if src.Present(c) {
			e.audit.Record(generic.AuditEntry{
				Kind:     generic.AuditSourceLoaded,
				Subject:  string(c),
				Category: "source",
				Message:  fmt.Sprintf("%d rows", src.Rows(c)),
				Fields:   map[string]any{"rows": src.Rows(c)},
			})
		}
	}

	bases := NewPreparer(e.normalize, e.audit).Prepare(src)

	table, consolidation, err := NewConsolidator(e.normalize, e.audit).Consolidate(src, bases)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	phases := NewRuleChain(e.cfg, e.audit).Apply(table, src)
	valuation := NewValuator(e.cfg, e.audit).Value(table)

	if err := Verify(table, e.cfg); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	stats := ComputeStats(table)
	checks := Checks(stats, e.cfg)
	for _, c := range checks {
		e.audit.Record(generic.AuditEntry{
			Kind:     generic.AuditValidation,
			Subject:  c.Name,
			Category: "consistency",
			Message:  c.Detail,
			Passed:   c.Passed,
		})
	}

	return &Result{
		Competency:    e.cfg.Competency,
		Table:         table,
		Stats:         stats,
		Checks:        checks,
		Consolidation: consolidation,
		Phases:        phases,
		Valuation:     valuation,
	}, nil
}
