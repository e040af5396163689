/*
Package generic provides the domain-agnostic building blocks of the benefit engine.

PURPOSE:
  Money arithmetic, competency calendars, error types and audit entries that
  any benefit computation needs, whether the benefit is a meal voucher, a
  transport voucher or a childcare allowance. The vr package builds the
  meal-voucher rules on top of these.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal values rounded to cents at well-defined points
  - Share: a fraction of a total (employer share, employee share)
  - Split: divides a total between two parties without losing a cent

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Exactness: A split always sums back to the original total
  3. Explicit rounding: Only RoundCents rounds; everything else is exact

USAGE:
  total := generic.RoundCents(days.Mul(rate))
  employer, employee := generic.Split(total, decimal.RequireFromString("0.8"))

SEE ALSO:
  - time.go: Competency (year-month) calendar helpers
  - errors.go: Sentinel and structured errors
  - audit.go: Audit trail entries and recorders
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Cent-precise decimal helpers
// =============================================================================

// CentPlaces is the number of decimal places kept for monetary values.
const CentPlaces = 2

// Cent is the smallest monetary unit. Used as the tolerance of money checks.
var Cent = decimal.New(1, -CentPlaces)

// RoundCents rounds a monetary value to cents (half away from zero).
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// MustParseDecimal parses s, returning zero when s is not a number.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// WithinCent reports whether a and b differ by less than one cent.
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Cent)
}

// =============================================================================
// SHARES - Dividing a total between two parties
// =============================================================================

// Split divides total into the part owed by the first party (share of total,
// rounded to cents) and the remainder. first + second == total, always.
func Split(total, share decimal.Decimal) (first, second decimal.Decimal) {
	first = RoundCents(total.Mul(share))
	second = total.Sub(first)
	return first, second
}

// SharesSumToOne reports whether a + b == 1 exactly.
func SharesSumToOne(a, b decimal.Decimal) bool {
	return a.Add(b).Equal(decimal.NewFromInt(1))
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent renders a share as a percentage value (0.8 -> 80).
func Percent(share decimal.Decimal) decimal.Decimal {
	return share.Mul(decimal.NewFromInt(100))
}
