/*
store.go - Persistence interface for completed runs

PURPOSE:
  A run is stored once it finished successfully, keyed by its competency.
  Storing a run for a competency that already has one replaces it, so
  re-processing a month never accumulates stale results.

KEY TYPES:
  Run:        A completed run with its records, statistics and outputs
  RunSummary: The listing view (no records)
  RunStore:   Persistence contract

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite, auto-migrated schema
  - store/memory/memory.go: In-memory for tests and dry runs
*/
package vr

import (
	"context"
	"sort"
	"time"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// RUN
// =============================================================================

type Run struct {
	ID         string
	Competency generic.Competency
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      Stats
	Checks     []Check
	Records    []Record // roster order
	Outputs    []string // files written by the run
}

type RunSummary struct {
	ID         string             `json:"id"`
	Competency generic.Competency `json:"competency"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Stats      Stats              `json:"stats"`
}

// NewRun captures a result as a storable run.
func NewRun(id string, res *Result, started, finished time.Time, outputs []string) Run {
	return Run{
		ID:         id,
		Competency: res.Competency,
		StartedAt:  started,
		FinishedAt: finished,
		Stats:      res.Stats,
		Checks:     append([]Check(nil), res.Checks...),
		Records:    res.Table.Records(),
		Outputs:    append([]string(nil), outputs...),
	}
}

func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		Competency: r.Competency,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Stats:      r.Stats,
	}
}

// Employee returns the stored record for id.
func (r Run) Employee(id EmployeeID) (Record, error) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, generic.ErrEmployeeNotFound
}

// FilterRecords returns the records whose eligibility equals eligible. A nil
// filter returns every record.
func (r Run) FilterRecords(eligible *bool) []Record {
	if eligible == nil {
		return r.Records
	}
	var out []Record
	for _, rec := range r.Records {
		if rec.Eligible == *eligible {
			out = append(out, rec)
		}
	}
	return out
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunStore persists completed runs. Implementations must be safe for
// concurrent use.
type RunStore interface {
	// SaveRun stores run, atomically replacing any run for the same competency.
	SaveRun(ctx context.Context, run Run) error

	// LoadRun returns the run for a competency or generic.ErrRunNotFound.
	LoadRun(ctx context.Context, competency generic.Competency) (Run, error)

	// ListRuns returns every stored run, newest competency first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// DeleteRun removes the run for a competency or returns generic.ErrRunNotFound.
	DeleteRun(ctx context.Context, competency generic.Competency) error
}

// SortSummaries orders summaries newest competency first.
func SortSummaries(s []RunSummary) {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Competency.String() > s[j].Competency.String()
	})
}

func sortedByID(records []Record) []Record {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}
