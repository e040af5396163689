/*
Package sqlite provides a SQLite-backed implementation of vr.RunStore.

PURPOSE:
  Keeps every completed run (one per competency) with its consolidated
  records, so results can be listed, inspected per employee and compared
  month over month without re-reading the source spreadsheets.

KEY TABLES:
  runs:        One row per competency (statistics, checks and outputs as JSON)
  run_records: One row per roster employee of a run

REPLACE SEMANTICS:
  SaveRun deletes the previous run for the same competency and inserts the
  new one inside a single transaction. Re-processing a month therefore never
  leaves two runs behind, and a failed save leaves the old run untouched.

MONEY:
  Decimals are stored as TEXT (decimal.String) and parsed back exactly.
  Missing optional values (rate, working days, dates) are NULL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./data/vr.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - vr/store.go: Interface definition
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

const dateLayout = "2006-01-02"

// Store implements vr.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ vr.RunStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		competency TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		checks_json TEXT NOT NULL,
		outputs_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_records (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		employee_id INTEGER NOT NULL,
		employer INTEGER NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		union_name TEXT NOT NULL,
		normalized_union TEXT NOT NULL,
		admission_date TEXT,
		eligible INTEGER NOT NULL,
		reason TEXT NOT NULL,
		exclusions_json TEXT NOT NULL,
		vacation_days INTEGER NOT NULL,
		leave_days INTEGER NOT NULL,
		termination_date TEXT,
		termination_notice TEXT NOT NULL,
		overseas_value TEXT NOT NULL,
		observation TEXT NOT NULL,
		daily_rate TEXT,
		working_days INTEGER,
		effective_days TEXT NOT NULL,
		total TEXT NOT NULL,
		employer_cost TEXT NOT NULL,
		employee_deduction TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_id)
	);

	-- Listing employees of a run in roster order
	CREATE INDEX IF NOT EXISTS idx_run_records_position
		ON run_records(run_id, position);

	-- Eligibility filter used by the API
	CREATE INDEX IF NOT EXISTS idx_run_records_eligible
		ON run_records(run_id, eligible);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (vr.RunStore interface)
// =============================================================================

// SaveRun stores run, replacing any run for the same competency atomically.
func (s *Store) SaveRun(ctx context.Context, run vr.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	checksJSON, _ := json.Marshal(nonNil(run.Checks))
	outputsJSON, _ := json.Marshal(nonNil(run.Outputs))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE competency = ?", run.Competency.String()); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, competency, started_at, finished_at, stats_json, checks_json, outputs_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Competency.String(),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(statsJSON),
		string(checksJSON),
		string(outputsJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_records
		(run_id, position, employee_id, employer, role, status, union_name, normalized_union,
		 admission_date, eligible, reason, exclusions_json, vacation_days, leave_days,
		 termination_date, termination_notice, overseas_value, observation, daily_rate,
		 working_days, effective_days, total, employer_cost, employee_deduction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		exclusionsJSON, _ := json.Marshal(nonNil(rec.Exclusions))
		_, err := stmt.ExecContext(ctx,
			run.ID, i, int64(rec.ID), rec.Employer, rec.Role, rec.Status, rec.Union, rec.NormalizedUnion,
			nullDate(rec.AdmissionDate), rec.Eligible, rec.Reason, string(exclusionsJSON),
			rec.VacationDays, rec.LeaveDays,
			nullDate(rec.TerminationDate), rec.TerminationNotice, rec.OverseasValue.String(), rec.Observation,
			nullDecimal(rec.DailyRate), nullInt(rec.WorkingDays),
			rec.EffectiveDays.String(), rec.Total.String(), rec.EmployerCost.String(), rec.EmployeeDeduction.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRun returns the run for a competency with all its records.
func (s *Store) LoadRun(ctx context.Context, competency generic.Competency) (vr.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, competency, started_at, finished_at, stats_json, checks_json, outputs_json
		FROM runs WHERE competency = ?
	`, competency.String())

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return vr.Run{}, fmt.Errorf("competency %s: %w", competency, generic.ErrRunNotFound)
	}
	if err != nil {
		return vr.Run{}, err
	}

	run.Records, err = s.queryRecords(ctx, run.ID)
	if err != nil {
		return vr.Run{}, err
	}
	return run, nil
}

// ListRuns returns every stored run, newest competency first.
func (s *Store) ListRuns(ctx context.Context) ([]vr.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, competency, started_at, finished_at, stats_json, '[]', '[]'
		FROM runs ORDER BY competency DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []vr.RunSummary
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, run.Summary())
	}
	return summaries, rows.Err()
}

// DeleteRun removes the run for a competency and its records.
func (s *Store) DeleteRun(ctx context.Context, competency generic.Competency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE competency = ?", competency.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("competency %s: %w", competency, generic.ErrRunNotFound)
	}
	return nil
}

// Reset removes every stored run.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM runs")
	return err
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, withDetails bool) (vr.Run, error) {
	var (
		run                     vr.Run
		competency              string
		startedAt, finishedAt   string
		statsJSON               string
		checksJSON, outputsJSON string
	)
	if err := row.Scan(&run.ID, &competency, &startedAt, &finishedAt, &statsJSON, &checksJSON, &outputsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	var err error
	if run.Competency, err = generic.ParseCompetency(competency); err != nil {
		return run, fmt.Errorf("stored run %s: %w", run.ID, err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return run, fmt.Errorf("failed to decode stats of run %s: %w", run.ID, err)
	}
	if withDetails {
		json.Unmarshal([]byte(checksJSON), &run.Checks)
		json.Unmarshal([]byte(outputsJSON), &run.Outputs)
	}
	return run, nil
}

func (s *Store) queryRecords(ctx context.Context, runID string) ([]vr.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, employer, role, status, union_name, normalized_union,
		       admission_date, eligible, reason, exclusions_json, vacation_days, leave_days,
		       termination_date, termination_notice, overseas_value, observation, daily_rate,
		       working_days, effective_days, total, employer_cost, employee_deduction
		FROM run_records
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []vr.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (vr.Record, error) {
	var (
		rec                          vr.Record
		employeeID                   int64
		admissionDate, terminationAt sql.NullString
		exclusionsJSON               string
		overseasValue                string
		dailyRate                    sql.NullString
		workingDays                  sql.NullInt64
		effectiveDays, total         string
		employerCost, employeeDeduct string
	)

	err := rows.Scan(
		&employeeID, &rec.Employer, &rec.Role, &rec.Status, &rec.Union, &rec.NormalizedUnion,
		&admissionDate, &rec.Eligible, &rec.Reason, &exclusionsJSON, &rec.VacationDays, &rec.LeaveDays,
		&terminationAt, &rec.TerminationNotice, &overseasValue, &rec.Observation, &dailyRate,
		&workingDays, &effectiveDays, &total, &employerCost, &employeeDeduct,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.ID = vr.EmployeeID(employeeID)
	rec.AdmissionDate = parseDate(admissionDate)
	rec.TerminationDate = parseDate(terminationAt)
	if exclusionsJSON != "" && exclusionsJSON != "[]" {
		json.Unmarshal([]byte(exclusionsJSON), &rec.Exclusions)
	}
	rec.OverseasValue = generic.MustParseDecimal(overseasValue)
	if dailyRate.Valid {
		d := generic.MustParseDecimal(dailyRate.String)
		rec.DailyRate = &d
	}
	if workingDays.Valid {
		n := int(workingDays.Int64)
		rec.WorkingDays = &n
	}
	rec.EffectiveDays = generic.MustParseDecimal(effectiveDays)
	rec.Total = generic.MustParseDecimal(total)
	rec.EmployerCost = generic.MustParseDecimal(employerCost)
	rec.EmployeeDeduction = generic.MustParseDecimal(employeeDeduct)
	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
