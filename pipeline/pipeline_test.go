package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/extract/extracttest"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/store/memory"
	"github.com/warp/benefit-engine/vr"
)

// setup writes the payroll fixtures and returns rules pointing at them.
func setup(t *testing.T) *factory.Rules {
	t.Helper()
	in := t.TempDir()
	files := extracttest.Payroll(t, in)

	names := make(map[vr.Category]string, len(files))
	for c, path := range files {
		names[c] = filepath.Base(path)
	}
	out := t.TempDir()
	return &factory.Rules{
		Config: *extracttest.Config(),
		Inputs: factory.Inputs{Dir: in, Files: names},
		Output: factory.OutputSpec{
			Dir:        out,
			Workbook:   "VR_MENSAL_{competency}.xlsx",
			Exclusions: "colaboradores_excluidos.xlsx",
			SummaryPDF: "VR_RESUMO_{competency}.pdf",
			LogDir:     filepath.Join(out, "logs"),
		},
		Limits: extract.Limits{WorkdaysMin: 15, WorkdaysMax: 25},
	}
}

func TestRun(t *testing.T) {
	// GIVEN: The May payroll exports
	// WHEN: Running the full pipeline
	// THEN: The result is computed, every output written and the run stored

	rules := setup(t)
	store := memory.New()
	m := metrics.New()
	logger, _ := test.NewNullLogger()
	p := pipeline.New(rules, pipeline.WithStore(store), pipeline.WithMetrics(m), pipeline.WithLogger(logger))

	out, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "2025-05", out.Competency.String())
	assert.Equal(t, 3, out.Result.Stats.Eligible)
	assert.Equal(t, "2010.00", out.Result.Stats.TotalValue.StringFixed(2))

	require.Len(t, out.Outputs, 3)
	for _, path := range out.Outputs {
		assert.FileExists(t, path)
	}
	assert.Equal(t, filepath.Join(rules.Output.Dir, "VR_MENSAL_2025_05.xlsx"), out.Outputs[0])
	assert.FileExists(t, out.AuditLog)
	assert.Equal(t, audit.SummaryPath(rules.Output.LogDir, out.Competency), out.Summary)

	summary, err := os.ReadFile(out.Summary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "- Eligible for VR: 3")
	assert.Contains(t, string(summary), "ferias")

	run, err := store.LoadRun(context.Background(), out.Competency)
	require.NoError(t, err)
	assert.Equal(t, out.RunID, run.ID)
	assert.Len(t, run.Records, 8)
	assert.Equal(t, out.Outputs, run.Outputs)
}

func TestRun_IsIdempotent(t *testing.T) {
	// GIVEN: A completed run and a stale file from an older month
	// WHEN: Running again over the same inputs
	// THEN: Previous outputs are replaced and the store keeps one run

	rules := setup(t)
	store := memory.New()
	logger, _ := test.NewNullLogger()
	p := pipeline.New(rules, pipeline.WithStore(store), pipeline.WithLogger(logger))

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	stale := filepath.Join(rules.Output.Dir, "VR_MENSAL_2025_04.xlsx")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.Len(t, second.Removed, 4)
	assert.Equal(t, first.Result.Table.Records(), second.Result.Table.Records())

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.RunID, runs[0].ID)
}

func TestRun_MissingMandatoryKeepsOutputs(t *testing.T) {
	// GIVEN: A previous output and a missing rate file
	// WHEN: Running
	// THEN: The run fails before touching the output directory

	rules := setup(t)
	require.NoError(t, os.Remove(rules.Inputs.Path(vr.CategoryRates)))
	previous := filepath.Join(rules.Output.Dir, "VR_MENSAL_2025_04.xlsx")
	require.NoError(t, os.WriteFile(previous, []byte("old"), 0o644))
	m := metrics.New()
	logger, _ := test.NewNullLogger()

	_, err := pipeline.New(rules, pipeline.WithMetrics(m), pipeline.WithLogger(logger)).Run(context.Background())

	var missing *generic.MissingSourceError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, string(vr.CategoryRates), missing.Category)
	assert.FileExists(t, previous)
}

func TestRun_FailureWritesSummary(t *testing.T) {
	// GIVEN: A roster union whose rate label cannot be resolved
	// WHEN: Running
	// THEN: The run fails and the audit summary lists the error

	rules := setup(t)
	rules.Config.UnionAliases = nil
	logger, _ := test.NewNullLogger()

	_, err := pipeline.New(rules, pipeline.WithLogger(logger)).Run(context.Background())

	require.ErrorIs(t, err, generic.ErrUnresolvedUnion)
	data, rerr := os.ReadFile(audit.SummaryPath(rules.Output.LogDir, rules.Config.Competency))
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "ERRORS:\n✗ extract: unions without daily rate")
}

func TestRun_Cancelled(t *testing.T) {
	rules := setup(t)
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.New(rules, pipeline.WithLogger(logger)).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CancelledKeepsPreviousOutputs(t *testing.T) {
	// GIVEN: Outputs from a previous month and an already cancelled context
	// WHEN: Running
	// THEN: The run stops before cleaning, so the previous outputs survive

	rules := setup(t)
	previous := filepath.Join(rules.Output.Dir, "VR_MENSAL_2025_04.xlsx")
	require.NoError(t, os.MkdirAll(rules.Output.Dir, 0o755))
	require.NoError(t, os.WriteFile(previous, []byte("old"), 0o644))
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.New(rules, pipeline.WithLogger(logger)).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, previous)
}

func TestForCompetency(t *testing.T) {
	rules := setup(t)
	logger, _ := test.NewNullLogger()
	clock := func() time.Time { return time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC) }
	p := pipeline.New(rules, pipeline.WithLogger(logger), pipeline.WithClock(clock))

	june, err := p.ForCompetency(generic.MustParseCompetency("2025-06"))
	require.NoError(t, err)
	out, err := june.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-06", out.Competency.String())
	assert.Equal(t, filepath.Join(rules.Output.Dir, "VR_MENSAL_2025_06.xlsx"), out.Outputs[0])
	assert.Equal(t, "2025-05", p.Rules().Config.Competency.String(), "original pipeline unchanged")
	assert.Equal(t, clock(), out.StartedAt)

	_, err = p.ForCompetency(generic.Competency{})
	assert.ErrorIs(t, err, generic.ErrInvalidCompetency)
}

func TestValidate(t *testing.T) {
	rules := setup(t)
	logger, _ := test.NewNullLogger()
	p := pipeline.New(rules, pipeline.WithLogger(logger))

	rep, err := p.Validate(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, rep.WarningsFor(extract.WarnUnknownID))
	entries, err := os.ReadDir(rules.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "validation writes nothing")
}

func TestIntegrity(t *testing.T) {
	rules := setup(t)
	p := pipeline.New(rules)

	statuses := p.Integrity()

	require.Len(t, statuses, len(vr.Categories))
	byCategory := map[vr.Category]extract.FileStatus{}
	for _, s := range statuses {
		byCategory[s.Category] = s
	}
	assert.True(t, byCategory[vr.CategoryActive].OK())
	assert.Equal(t, 8, byCategory[vr.CategoryActive].Rows)
	assert.Equal(t, "not configured", byCategory[vr.CategoryInterns].Error)
}
