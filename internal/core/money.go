// Package core provides money parsing and display helpers.
//
// Amounts are carried as shopspring decimals so that sums of entered values
// never pick up binary floating point noise.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyLabel is appended to every displayed TK amount.
const CurrencyLabel = "TK"

// ParseAmount converts user input into a positive decimal.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Signs, exponents, thousands separators, zero and negative values are rejected.
//
// Examples:
//
//	ParseAmount("50")    -> 50, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseOptionalAmount parses an optional non-negative adjustment field.
// Blank input yields zero.
func ParseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount the way every list and total shows it,
// e.g. "80.00 TK".
func FormatCurrency(d decimal.Decimal) string {
	return FormatFixed(d) + " " + CurrencyLabel
}

// FormatFixed renders d with exactly two decimals.
func FormatFixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}
