/*
Package pipeline runs a complete monthly VR calculation.

PHASES:
  1. Prepare:  create output and log dirs, check mandatory inputs, remove
               previous outputs
  2. Extract:  read and cross-check every source (package extract)
  3. Compute:  vr.Engine.Run over the extracted sources
  4. Report:   monthly workbook, exclusions workbook, PDF summary and the
               audit summary
  5. Persist:  save the run, update metrics

Any phase failure aborts the run. Inputs are checked before outputs are
removed, so a run that cannot start leaves the previous outputs in place.
Once outputs were removed, a failure leaves the output directory partially
written; re-running over the same inputs produces the same files.

The audit trail of every run is appended to <logdir>/audit_<competency>.log
and the human-readable summary is written even when the run fails.

USAGE:
  p := pipeline.New(rules, pipeline.WithStore(store), pipeline.WithMetrics(m))
  outcome, err := p.Run(ctx)

SEE ALSO:
  - factory/rules.go: Rules consumed here
  - api/handlers.go, cmd/vr: Callers
*/
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/report"
	"github.com/warp/benefit-engine/vr"
)

// Outcome describes a successful run.
type Outcome struct {
	RunID      string
	Competency generic.Competency
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *vr.Result
	Extraction *extract.Report
	Outputs    []string // files written, in write order
	Removed    []string // previous outputs deleted during preparation
	AuditLog   string
	Summary    string
	Entries    []generic.AuditEntry
}

// Duration is the wall time of the run.
func (o *Outcome) Duration() time.Duration { return o.FinishedAt.Sub(o.StartedAt) }

type Pipeline struct {
	rules   factory.Rules
	store   vr.RunStore
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
	newID   func() string
}

type Option func(*Pipeline)

// WithStore persists successful runs.
func WithStore(s vr.RunStore) Option { return func(p *Pipeline) { p.store = s } }

// WithMetrics records runs in m.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the technical logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New copies rules; later changes to the caller's value do not affect the
// pipeline.
func New(rules *factory.Rules, opts ...Option) *Pipeline {
	p := &Pipeline{
		rules: *rules,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rules returns the rules the pipeline runs with.
func (p *Pipeline) Rules() factory.Rules { return p.rules }

// ForCompetency returns a pipeline computing another month with the same
// inputs, outputs and collaborators.
func (p *Pipeline) ForCompetency(c generic.Competency) (*Pipeline, error) {
	if !c.Valid() {
		return nil, &generic.CompetencyError{Value: c.String()}
	}
	cp := *p
	cp.rules.Config.Competency = c
	return &cp, nil
}

func (p *Pipeline) logDir() string {
	if p.rules.Output.LogDir != "" {
		return p.rules.Output.LogDir
	}
	return filepath.Join(p.rules.Output.Dir, "logs")
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the five phases.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	cfg := p.rules.Config
	out := &Outcome{RunID: p.newID(), Competency: cfg.Competency, StartedAt: p.now()}
	log := p.log.WithFields(logrus.Fields{"run_id": out.RunID, "competency": cfg.Competency.String()})

	fail := func(phase string, err error, summary *audit.Summary) (*Outcome, error) {
		finished := p.now()
		log.WithError(err).WithField("phase", phase).Error("run failed")
		if p.metrics != nil {
			p.metrics.ObserveFailure(finished.Sub(out.StartedAt))
		}
		if summary != nil {
			summary.FinishedAt = finished
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", phase, err))
			if _, werr := audit.WriteSummaryFile(p.logDir(), *summary); werr != nil {
				log.WithError(werr).Warn("failed to write audit summary")
			}
		}
		return nil, fmt.Errorf("%s: %w", phase, err)
	}

	// Phase 1
	log.Info("phase 1: preparing")
	if err := cfg.Validate(); err != nil {
		return fail("prepare", err, nil)
	}
	if err := extract.CheckMandatory(p.rules.Inputs); err != nil {
		return fail("prepare", err, nil)
	}
	for _, dir := range []string{p.rules.Output.Dir, p.logDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail("prepare", fmt.Errorf("failed to create %s: %w", dir, err), nil)
		}
	}
	// Cancellation is honoured until the previous outputs are removed; past
	// that point the run completes so the output directory is never left empty.
	if err := ctx.Err(); err != nil {
		return fail("prepare", err, nil)
	}
	removed, err := report.CleanOutputs(p.rules.Output.Dir)
	if err != nil {
		return fail("prepare", err, nil)
	}
	out.Removed = removed
	if len(removed) > 0 {
		log.WithField("files", len(removed)).Info("removed previous outputs")
	}

	auditLog, err := audit.Open(p.logDir(), cfg.Competency)
	if err != nil {
		return fail("prepare", err, nil)
	}
	defer auditLog.Close()
	out.AuditLog = auditLog.Path()

	recorder := generic.NewAuditRecorder()
	auditor := generic.MultiAuditor{recorder, auditLog}
	summary := &audit.Summary{Competency: cfg.Competency, StartedAt: out.StartedAt}

	// Phase 2
	log.Info("phase 2: extracting")
	src, extraction, err := extract.New(p.rules.Inputs, &cfg, p.rules.Limits,
		extract.WithLogger(log), extract.WithAuditor(auditor)).Extract()
	out.Extraction = extraction
	summary.Files = readFiles(extraction)
	summary.Entries = recorder.Entries()
	if err != nil {
		return fail("extract", err, summary)
	}

	// Phase 3
	log.Info("phase 3: computing")
	engine, err := vr.NewEngine(&cfg, vr.WithAuditor(auditor))
	if err != nil {
		return fail("compute", err, summary)
	}
	res, err := engine.Run(src)
	summary.Entries = recorder.Entries()
	if err != nil {
		return fail("compute", err, summary)
	}
	out.Result = res
	summary.Stats = res.Stats
	log.WithFields(logrus.Fields{
		"eligible":    res.Stats.Eligible,
		"ineligible":  res.Stats.Ineligible,
		"total_value": res.Stats.TotalValue.StringFixed(2),
	}).Info("computation complete")

	// Phase 4
	log.Info("phase 4: writing reports")
	if err := p.writeReports(res, &cfg, out); err != nil {
		return fail("report", err, summary)
	}
	out.FinishedAt = p.now()
	summary.FinishedAt = out.FinishedAt
	out.Entries = recorder.Entries()
	summary.Entries = out.Entries
	path, err := audit.WriteSummaryFile(p.logDir(), *summary)
	if err != nil {
		return fail("report", err, nil)
	}
	out.Summary = path

	// Phase 5
	log.Info("phase 5: persisting")
	if p.store != nil {
		run := vr.NewRun(out.RunID, res, out.StartedAt, out.FinishedAt, out.Outputs)
		if err := p.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			return fail("persist", err, nil)
		}
	}
	if p.metrics != nil {
		p.metrics.ObserveRun(res, out.Duration())
	}

	log.WithFields(logrus.Fields{
		"outputs":  len(out.Outputs),
		"duration": out.Duration().String(),
	}).Info("run complete")
	return out, nil
}

func (p *Pipeline) writeReports(res *vr.Result, cfg *vr.Config, out *Outcome) error {
	c := cfg.Competency

	path := p.rules.Output.WorkbookPath(c)
	if err := report.WriteWorkbook(path, res, cfg); err != nil {
		return err
	}
	out.Outputs = append(out.Outputs, path)

	if path = p.rules.Output.ExclusionsPath(c); path != "" {
		written, err := report.WriteExclusions(path, res.Table)
		if err != nil {
			return err
		}
		if written {
			out.Outputs = append(out.Outputs, path)
		}
	}

	if path = p.rules.Output.SummaryPDFPath(c); path != "" {
		if err := report.WriteSummaryPDF(path, res, cfg); err != nil {
			return err
		}
		out.Outputs = append(out.Outputs, path)
	}
	return nil
}

// =============================================================================
// VALIDATE / INTEGRITY
// =============================================================================

// Validate runs the input checks of phases 1 and 2 without writing anything.
func (p *Pipeline) Validate(ctx context.Context) (*extract.Report, error) {
	cfg := p.rules.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := extract.CheckMandatory(p.rules.Inputs); err != nil {
		return &extract.Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, rep, err := extract.New(p.rules.Inputs, &cfg, p.rules.Limits, extract.WithLogger(p.log)).Extract()
	return rep, err
}

// Integrity reports the state of every configured input file.
func (p *Pipeline) Integrity() []extract.FileStatus {
	return extract.Inspect(p.rules.Inputs)
}

func readFiles(rep *extract.Report) []string {
	if rep == nil {
		return nil
	}
	var files []string
	for _, s := range rep.Sources {
		if s.Present {
			files = append(files, filepath.Base(s.Path))
		}
	}
	return files
}
