/*
audit.go - Audit trail entries emitted while computing benefits

PURPOSE:
  Every decision that changes what an employee receives leaves an entry:
  exclusions, special calculations, validations and degraded-data warnings.
  The engine only emits entries; where they end up (memory, log file,
  database) is decided by the Auditor the caller injects.

KEY TYPES:
  AuditEntry:    One recorded decision
  Auditor:       Sink for entries (interface)
  AuditRecorder: In-memory sink with per-kind/per-category queries
  MultiAuditor:  Fan-out to several sinks
  NopAuditor:    Discards everything

SEE ALSO:
  - audit/logger.go: logrus-backed Auditor writing JSON lines
  - audit/summary.go: Human-readable end-of-run summary
*/
package generic

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// AUDIT ENTRY
// =============================================================================

type AuditKind string

const (
	AuditExclusion          AuditKind = "exclusion"           // Employee lost eligibility
	AuditSpecialCalculation AuditKind = "special_calculation" // Non-standard valuation input
	AuditWarning            AuditKind = "warning"             // Degraded data, run continues
	AuditValidation         AuditKind = "validation"          // Check performed (passed or not)
	AuditSourceLoaded       AuditKind = "source_loaded"       // Input table read
)

// AuditEntry records one decision.
type AuditEntry struct {
	At       time.Time
	Kind     AuditKind
	Subject  string // employee id, source category or check name
	Category string // rule phase or grouping label
	Message  string
	Passed   bool // validations only
	Fields   map[string]any
}

// Auditor receives audit entries. Implementations must not fail the run.
type Auditor interface {
	Record(entry AuditEntry)
}

// =============================================================================
// IMPLEMENTATIONS
// =============================================================================

// NopAuditor discards entries.
type NopAuditor struct{}

func (NopAuditor) Record(AuditEntry) {}

// MultiAuditor forwards every entry to each sink in order.
type MultiAuditor []Auditor

func (m MultiAuditor) Record(entry AuditEntry) {
	for _, a := range m {
		if a != nil {
			a.Record(entry)
		}
	}
}

// AuditRecorder keeps entries in memory. Safe for concurrent use.
type AuditRecorder struct {
	mu      sync.RWMutex
	entries []AuditEntry
	now     func() time.Time
}

func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{now: time.Now}
}

func (r *AuditRecorder) Record(entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.At.IsZero() && r.now != nil {
		entry.At = r.now()
	}
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of all entries in recording order.
func (r *AuditRecorder) Entries() []AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AuditEntry(nil), r.entries...)
}

// ByKind returns the entries of one kind in recording order.
func (r *AuditRecorder) ByKind(kind AuditKind) []AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AuditEntry
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// CountByCategory counts entries of one kind per category.
func (r *AuditRecorder) CountByCategory(kind AuditKind) map[string]int {
	counts := make(map[string]int)
	for _, e := range r.ByKind(kind) {
		counts[e.Category]++
	}
	return counts
}

// SortedCategories returns the keys of counts in alphabetical order.
func SortedCategories(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
