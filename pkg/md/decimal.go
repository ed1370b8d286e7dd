package md

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices and quantities are exact decimals end to end — they arrive as
// strings on the wire, stay decimal through the book, and are recorded back
// as strings. Binary floats never touch book values.

// ParsePrice parses a non-negative decimal price from its wire string.
func ParsePrice(s string) (decimal.Decimal, error) {
	return parsePositive("price", s)
}

// ParseQty parses a non-negative decimal quantity from its wire string.
func ParseQty(s string) (decimal.Decimal, error) {
	return parsePositive("qty", s)
}

func parsePositive(what, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", what, s, err)
	}
	if d.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: negative", what, s)
	}
	return d, nil
}

// MustDecimal parses a decimal literal, panicking on malformed input.
// Intended for tests and static tables.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
