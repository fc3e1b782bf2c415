// Package core provides amount parsing and formatting utilities.
//
// This file contains functions for parsing signed decimal amounts from
// strings. Amounts are kept as decimal.Decimal so refunds and zero-value
// entries survive round-trips without float drift.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Zero and negative values are valid.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil (half-up)
//	ParseAmount("-5")     -> -5, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseNumber(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// ParseNumber accepts the same syntax as ParseAmount but keeps every digit.
// Filter literals use it so 25.004 compares as 25.004.
func ParseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",")+strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

var (
	MaxCents = decimal.NewFromInt(math.MaxInt64)
	MinCents = decimal.NewFromInt(math.MinInt64)
)

// Cents converts d, rounded to cents, to the integer SQLite stores.
// Amounts whose cents do not fit in an int64 are ErrInvalidAmount.
func Cents(d decimal.Decimal) (int64, error) {
	c := d.Round(2).Shift(2)
	if c.GreaterThan(MaxCents) || c.LessThan(MinCents) {
		return 0, ErrInvalidAmount
	}
	return c.IntPart(), nil
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
