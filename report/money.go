package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
)

// FormatBRL renders an amount the way payroll reads it: "R$1.234,56".
func FormatBRL(d decimal.Decimal) string {
	cents := generic.RoundCents(d).Shift(2).IntPart()
	return money.New(cents, money.BRL).Display()
}
