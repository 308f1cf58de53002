// Package money holds the rounding and tolerance rules shared by pricing and
// order validation.
package money

import "github.com/shopspring/decimal"

// Tolerance is the largest difference between a client figure and the
// server figure that is still accepted.
var Tolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// Round rounds to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether |a-b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Percent returns round(amount * pct / 100, 2).
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// FromFloat converts a client-submitted number. Floats that came from JSON
// literals like 16.01 convert to their shortest decimal form.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// HasAtMostCents reports whether f carries no more than two decimals.
func HasAtMostCents(f float64) bool {
	return decimal.NewFromFloat(f).Exponent() >= -2
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
