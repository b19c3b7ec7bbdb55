package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount with two-fraction-digit semantics.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// ParseMoney parses a decimal string such as "150.00" into Money.
func ParseMoney(s string) (Money, error) {
	m, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("ParseMoney: %q: %w", s, err)
	}
	return m, nil
}

// MoneyFromRat converts a NUMERIC value read from a warehouse into Money.
// A nil value is treated as zero.
func MoneyFromRat(r *big.Rat) (Money, error) {
	if r == nil {
		return Zero, nil
	}
	// BigQuery NUMERIC carries at most 9 fraction digits.
	return ParseMoney(r.FloatString(9))
}

// FormatMoney renders an amount with exactly two fraction digits.
func FormatMoney(m Money) string {
	return m.StringFixed(2)
}
