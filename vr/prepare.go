package vr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// AUXILIARY BASES - Per-union lookups used by consolidation
// =============================================================================

// NormalizedWorkdays is a workdays row plus its canonical union label.
type NormalizedWorkdays struct {
	UnionWorkdaysRow
	Normalized string
}

// UnionBases holds copies of the rate and workdays tables and the lookups
// built from them. The zero value answers every lookup with a miss.
type UnionBases struct {
	Rates    []UnionRateRow
	Workdays []NormalizedWorkdays

	rateByUnion map[string]decimal.Decimal
	daysByUnion map[string]int
}

// Rate returns the daily rate for a canonical union label.
func (b *UnionBases) Rate(union string) (decimal.Decimal, bool) {
	if b == nil {
		return decimal.Zero, false
	}
	rate, ok := b.rateByUnion[union]
	return rate, ok
}

// WorkingDays returns the working-day count for a canonical union label.
func (b *UnionBases) WorkingDays(union string) (int, bool) {
	if b == nil {
		return 0, false
	}
	days, ok := b.daysByUnion[union]
	return days, ok
}

// Unions returns the rate-table labels in table order.
func (b *UnionBases) Unions() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.Rates))
	for _, r := range b.Rates {
		out = append(out, strings.TrimSpace(r.Union))
	}
	return out
}

// Preparer builds UnionBases from the sources.
type Preparer struct {
	normalize UnionNormalizer
	audit     generic.Auditor
}

func NewPreparer(normalize UnionNormalizer, audit generic.Auditor) *Preparer {
	if normalize == nil {
		normalize = IdentityNormalizer
	}
	if audit == nil {
		audit = generic.NopAuditor{}
	}
	return &Preparer{normalize: normalize, audit: audit}
}

// Prepare copies the lookup tables. Rates are keyed by the label as given in
// the rate table; workdays by the normalized label. The first row wins when a
// key repeats. Missing tables are tolerated.
func (p *Preparer) Prepare(src Sources) *UnionBases {
	bases := &UnionBases{
		rateByUnion: make(map[string]decimal.Decimal, len(src.Rates)),
		daysByUnion: make(map[string]int, len(src.Workdays)),
	}

	if src.Rates != nil {
		bases.Rates = append([]UnionRateRow{}, src.Rates...)
		for _, row := range bases.Rates {
			key := strings.TrimSpace(row.Union)
			if _, dup := bases.rateByUnion[key]; dup {
				p.warnDuplicate(CategoryRates, key)
				continue
			}
			bases.rateByUnion[key] = row.Rate
		}
	}

	if src.Workdays != nil {
		bases.Workdays = make([]NormalizedWorkdays, 0, len(src.Workdays))
		for _, row := range src.Workdays {
			nw := NormalizedWorkdays{UnionWorkdaysRow: row, Normalized: p.normalize(row.Union)}
			bases.Workdays = append(bases.Workdays, nw)
			if _, dup := bases.daysByUnion[nw.Normalized]; dup {
				p.warnDuplicate(CategoryWorkdays, nw.Normalized)
				continue
			}
			bases.daysByUnion[nw.Normalized] = row.Days
		}
	}

	return bases
}

func (p *Preparer) warnDuplicate(c Category, key string) {
	p.audit.Record(generic.AuditEntry{
		Kind:     generic.AuditWarning,
		Subject:  string(c),
		Category: "duplicate_key",
		Message:  fmt.Sprintf("duplicate union %q in %s, keeping first row", key, c),
	})
}
