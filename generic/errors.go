/*
errors.go - Centralized error types for the benefit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Source errors - Mandatory input tables missing or unusable
  2. Configuration errors - Invalid rules (shares, cutoff, competency)
  3. Valuation errors - Invariant violations on the consolidated table
  4. Store errors - Run persistence lookups

USAGE:
  if errors.Is(err, generic.ErrMissingSource) {
      // fatal: abort the run, surface to the operator
  }

  var unresolved *generic.UnresolvedUnionError
  if errors.As(err, &unresolved) {
      fmt.Println(unresolved.Suggestions)
  }

SEE ALSO:
  - vr/consolidate.go: Raises MissingSourceError for the active roster
  - extract/extract.go: Raises MissingSourceError and UnresolvedUnionError
  - vr/invariants.go: Raises InvariantError
*/
package generic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingSource is returned when a mandatory source table is absent.
	// The run is aborted and no partial result is surfaced.
	ErrMissingSource = errors.New("mandatory source missing")

	// ErrMalformedSource is returned when a source exists but lacks required columns.
	ErrMalformedSource = errors.New("malformed source")

	// ErrUnresolvedUnion is returned when a roster union has no daily rate anywhere.
	ErrUnresolvedUnion = errors.New("union without daily rate")

	// ErrInvalidConfig is returned when the rules configuration is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCompetency is returned for a malformed year-month.
	ErrInvalidCompetency = errors.New("invalid competency")

	// ErrInvariantViolation is returned when the consolidated table breaks an invariant.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRunNotFound is returned when no run is stored for a competency.
	ErrRunNotFound = errors.New("run not found")

	// ErrEmployeeNotFound is returned when an employee is not part of a run.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRunInProgress is returned when a run is requested while another executes.
	ErrRunInProgress = errors.New("run already in progress")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingSourceError names the absent source category and, when known, its file.
type MissingSourceError struct {
	Category string
	Path     string
}

func (e *MissingSourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("mandatory source %q not found: %s", e.Category, e.Path)
	}
	return fmt.Sprintf("mandatory source %q not found", e.Category)
}

func (e *MissingSourceError) Unwrap() error { return ErrMissingSource }

// MalformedSourceError lists the required columns a source is missing.
type MalformedSourceError struct {
	Category string
	Missing  []string
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("source %q missing required columns: %s", e.Category, strings.Join(e.Missing, ", "))
}

func (e *MalformedSourceError) Unwrap() error { return ErrMalformedSource }

// UnresolvedUnionError lists roster unions with no daily rate, with close matches
// found in the rate table when there are any.
type UnresolvedUnionError struct {
	Unions      []string
	Suggestions map[string][]string
}

func (e *UnresolvedUnionError) Error() string {
	unions := append([]string(nil), e.Unions...)
	sort.Strings(unions)
	parts := make([]string, 0, len(unions))
	for _, u := range unions {
		if hints := e.Suggestions[u]; len(hints) > 0 {
			parts = append(parts, fmt.Sprintf("%s (did you mean %s?)", u, strings.Join(hints, ", ")))
			continue
		}
		parts = append(parts, u)
	}
	return "unions without daily rate: " + strings.Join(parts, "; ")
}

func (e *UnresolvedUnionError) Unwrap() error { return ErrUnresolvedUnion }

// ConfigError points at the offending configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// CompetencyError reports an unparseable or impossible year-month.
type CompetencyError struct {
	Value string
	Err   error
}

func (e *CompetencyError) Error() string {
	return fmt.Sprintf("invalid competency %q (want YYYY-MM)", e.Value)
}

func (e *CompetencyError) Unwrap() error { return ErrInvalidCompetency }

// InvariantError identifies the row and rule that failed verification.
type InvariantError struct {
	Subject string
	Rule    string
	Detail  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated for %s: %s", e.Rule, e.Subject, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatalSource returns true if the error means the inputs cannot be processed.
func IsFatalSource(err error) bool {
	return errors.Is(err, ErrMissingSource) ||
		errors.Is(err, ErrMalformedSource) ||
		errors.Is(err, ErrUnresolvedUnion)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidCompetency)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
