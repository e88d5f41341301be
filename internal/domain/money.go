package domain

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DollarsToCents converts a float64 dollar amount to int64 cents.
// It returns an error if the input carries more than 2 decimal places.
func DollarsToCents(f float64) (int64, error) {
	return DecimalToCents(decimal.NewFromFloat(f))
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// DecimalToCents converts an exact decimal dollar amount to cents,
// rejecting sub-cent precision and values outside the int64 range.
func DecimalToCents(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Round(2)) {
		return 0, &ValidationError{Message: "amount must have at most 2 decimal places"}
	}
	return shiftToCents(d)
}

// RoundToCents converts a decimal dollar amount to cents, rounding
// half away from zero. Used for prices reported by quote sources.
func RoundToCents(d decimal.Decimal) (int64, error) {
	return shiftToCents(d.Round(2))
}

func shiftToCents(d decimal.Decimal) (int64, error) {
	c := d.Shift(2)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, &ValidationError{Message: "amount is too large"}
	}
	return c.IntPart(), nil
}

// CentsToDollars converts an int64 cents value to a float64 dollar amount.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}

// FormatUSD renders cents as a US dollar display string, e.g. "$1,234.56".
func FormatUSD(c int64) string {
	return money.New(c, money.USD).Display()
}
