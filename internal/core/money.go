// Package core provides the transaction domain: amounts, dates, validation
// rules and the monthly aggregation.
//
// This file contains functions for parsing monetary amounts from strings.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts must fit a float64: the largest finite value is below 1e309 and
// the smallest positive one is about 5e-324.
const (
	maxAmountMagnitude = 308
	minAmountMagnitude = -324
)

// ParseAmount converts a user supplied decimal string to a positive amount.
//
// Plain and exponent notation are accepted with a dot as decimal separator.
// Blank, non-numeric, zero, negative and non-finite inputs return
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("20")    -> 20, nil
//	ParseAmount("1e3")   -> 1000, nil
//	ParseAmount("12,34") -> 0, ErrInvalidAmount
//	ParseAmount("1e400") -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// finite reports whether a positive d converts to a finite, non-zero
// float64. The magnitude check runs first so huge exponents are never
// expanded.
func finite(d decimal.Decimal) bool {
	digits := len(d.Coefficient().Text(10))
	magnitude := int64(d.Exponent()) + int64(digits) - 1
	if magnitude > maxAmountMagnitude || magnitude < minAmountMagnitude {
		return false
	}
	f, _ := d.Float64()
	return !math.IsInf(f, 0) && f != 0
}
