// Package core holds the pure bill domain: derivation of consumption and
// billed amount from meter readings, and per-year aggregation for charts.
//
// This file contains the derivation rules applied while composing a new or
// edited bill. They run on every form change, so they are cheap, total and
// never panic.
package core

import (
	"math"
	"strconv"
	"strings"
)

// Consumption returns the usage volume for a billing period, floor-clamped
// at zero so readings entered out of order never produce a negative value.
// NaN inputs are treated as zero.
func Consumption(previous, current float64) float64 {
	if math.IsNaN(previous) {
		previous = 0
	}
	if math.IsNaN(current) {
		current = 0
	}
	return math.Max(0, current-previous)
}

// DeriveAmount computes the billed total from consumption and rate.
// It returns (round2(consumption*rate), true) only when both inputs are
// positive and finite; otherwise ok is false and the amount field is left
// to manual entry. A zero or incomplete result never overwrites a
// previously entered amount.
func DeriveAmount(consumption, rate float64) (amount float64, ok bool) {
	if !(consumption > 0) || !(rate > 0) {
		return 0, false
	}
	if math.IsInf(consumption, 0) || math.IsInf(rate, 0) {
		return 0, false
	}
	return Round2(consumption * rate), true
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// FormatNumber renders a value with two decimal places, dropping the
// decimals entirely when both are zero: 12.0 -> "12", 12.5 -> "12.50".
func FormatNumber(x float64) string {
	s := strconv.FormatFloat(Round2(x), 'f', 2, 64)
	if strings.HasSuffix(s, ".00") {
		return s[:len(s)-3]
	}
	return s
}

// ParseReading converts a form field to a float64, treating empty or
// malformed input as zero so derivation stays total during editing.
func ParseReading(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
