// Package types provides fixed-point monetary and percentage values.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for money.
const MoneyPlaces int32 = 2

// PercentPlaces is the number of fractional digits kept for percentages.
const PercentPlaces int32 = 2

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Percent is a percentage in the range [0, 100].
type Percent = decimal.Decimal

var (
	hundred = decimal.NewFromInt(100)

	// HalfCent is the largest rounding error a single rounded amount may carry.
	HalfCent = decimal.New(5, -3)
)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds to two places, half away from zero.
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// IsCents reports whether m has at most two decimal places.
func IsCents(m Money) bool {
	return m.Equal(RoundMoney(m))
}

// DivMoney divides and rounds the quotient to two places (half-up).
func DivMoney(m Money, n int64) Money {
	if n == 0 {
		return decimal.Zero
	}
	return m.DivRound(decimal.NewFromInt(n), MoneyPlaces)
}

// ShareOf returns amount × pct / 100 rounded to money precision.
func ShareOf(amount Money, pct Percent) Money {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// ValidPercent reports whether pct lies within [0, 100].
func ValidPercent(pct Percent) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// Hundred returns 100 as a Percent.
func Hundred() Percent {
	return hundred
}

// Sum adds all values.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
