// Package memory provides an in-memory vr.RunStore.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	runs map[generic.Competency]vr.Run
}

var _ vr.RunStore = (*Memory)(nil)

func New() *Memory {
	return &Memory{runs: make(map[generic.Competency]vr.Run)}
}

// SaveRun replaces the run stored for the same competency.
func (m *Memory) SaveRun(_ context.Context, run vr.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.Competency] = copyRun(run)
	return nil
}

func (m *Memory) LoadRun(_ context.Context, competency generic.Competency) (vr.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[competency]
	if !ok {
		return vr.Run{}, fmt.Errorf("competency %s: %w", competency, generic.ErrRunNotFound)
	}
	return copyRun(run), nil
}

func (m *Memory) ListRuns(_ context.Context) ([]vr.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vr.RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.Summary())
	}
	vr.SortSummaries(out)
	return out, nil
}

func (m *Memory) DeleteRun(_ context.Context, competency generic.Competency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[competency]; !ok {
		return fmt.Errorf("competency %s: %w", competency, generic.ErrRunNotFound)
	}
	delete(m.runs, competency)
	return nil
}

// copyRun detaches stored runs from caller-owned slices.
func copyRun(run vr.Run) vr.Run {
	c := run
	c.Checks = append([]vr.Check(nil), run.Checks...)
	c.Outputs = append([]string(nil), run.Outputs...)
	c.Records = make([]vr.Record, len(run.Records))
	for i := range run.Records {
		c.Records[i] = run.Records[i].Clone()
	}
	return c
}
