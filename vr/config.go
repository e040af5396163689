package vr

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// CONFIG - Business parameters for one run
// =============================================================================

// DefaultWorkingDays is used when a union has no working-day entry.
const DefaultWorkingDays = 22

// DefaultOverseasKeywords mark overseas observations that exclude the employee.
var DefaultOverseasKeywords = []string{"terminated", "removed"}

// Config is built once per run and passed by pointer into every component.
type Config struct {
	Competency generic.Competency

	// CutoffDay: terminations on or before this day of the month exclude the
	// employee; later terminations keep the full-month value.
	CutoffDay int

	ExcludedRoles      []string // case-insensitive substrings of the role title
	ExcludedLeaveTypes []string // exact leave types

	EmployerShare decimal.Decimal
	EmployeeShare decimal.Decimal

	// UnionAliases maps raw union labels to their canonical form.
	UnionAliases map[string]string

	OverseasExclusionKeywords []string
	DefaultWorkingDays        int
}

// DefaultConfig returns the usual 80/20 split with cutoff on the 15th.
func DefaultConfig(competency generic.Competency) Config {
	return Config{
		Competency:                competency,
		CutoffDay:                 15,
		EmployerShare:             decimal.RequireFromString("0.80"),
		EmployeeShare:             decimal.RequireFromString("0.20"),
		OverseasExclusionKeywords: append([]string(nil), DefaultOverseasKeywords...),
		DefaultWorkingDays:        DefaultWorkingDays,
	}
}

// Validate returns a *generic.ConfigError for the first unusable field.
func (c *Config) Validate() error {
	if !c.Competency.Valid() {
		return &generic.ConfigError{Field: "competency", Reason: "must be a valid YYYY-MM"}
	}
	if c.CutoffDay < 1 || c.CutoffDay > 31 {
		return &generic.ConfigError{Field: "cutoff_day", Reason: "must be between 1 and 31"}
	}
	if c.EmployerShare.IsNegative() || c.EmployeeShare.IsNegative() {
		return &generic.ConfigError{Field: "shares", Reason: "must not be negative"}
	}
	if !generic.SharesSumToOne(c.EmployerShare, c.EmployeeShare) {
		return &generic.ConfigError{Field: "shares", Reason: "employer and employee shares must sum to 1"}
	}
	if c.DefaultWorkingDays < 0 {
		return &generic.ConfigError{Field: "default_working_days", Reason: "must not be negative"}
	}
	for _, kw := range c.OverseasExclusionKeywords {
		if strings.TrimSpace(kw) == "" {
			return &generic.ConfigError{Field: "overseas_exclusion_keywords", Reason: "empty keyword"}
		}
	}
	return nil
}

func (c *Config) defaultWorkingDays() int {
	if c.DefaultWorkingDays <= 0 {
		return DefaultWorkingDays
	}
	return c.DefaultWorkingDays
}

func (c *Config) overseasKeywords() []string {
	if c.OverseasExclusionKeywords == nil {
		return DefaultOverseasKeywords
	}
	return c.OverseasExclusionKeywords
}

// =============================================================================
// UNION NORMALIZATION
// =============================================================================

// UnionNormalizer maps a raw union label to its canonical form.
type UnionNormalizer func(raw string) string

// IdentityNormalizer only trims surrounding whitespace.
func IdentityNormalizer(raw string) string { return strings.TrimSpace(raw) }

// AliasNormalizer looks labels up in aliases after trimming. Unknown labels
// pass through trimmed.
func AliasNormalizer(aliases map[string]string) UnionNormalizer {
	return func(raw string) string {
		key := strings.TrimSpace(raw)
		if canonical, ok := aliases[key]; ok {
			return canonical
		}
		return key
	}
}

// Normalizer returns the alias normalizer for c.UnionAliases, or the identity
// normalizer when no aliases are configured.
func (c *Config) Normalizer() UnionNormalizer {
	if len(c.UnionAliases) == 0 {
		return IdentityNormalizer
	}
	return AliasNormalizer(c.UnionAliases)
}
