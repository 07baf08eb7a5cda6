package core

import (
	"math"
	"testing"
)

func TestConsumption(t *testing.T) {
	cases := []struct {
		prev, cur float64
		want      float64
	}{
		{100, 150, 50},
		{150, 140, 0}, // readings entered out of order clamp to zero
		{0, 0, 0},
		{0, 42.5, 42.5},
		{math.NaN(), 10, 10},
		{10, math.NaN(), 0},
	}
	for i, tc := range cases {
		if got := Consumption(tc.prev, tc.cur); got != tc.want {
			t.Fatalf("case %d: Consumption(%v, %v) = %v, want %v", i, tc.prev, tc.cur, got, tc.want)
		}
	}
}

func TestDeriveAmount(t *testing.T) {
	cases := []struct {
		consumption, rate float64
		want              float64
		ok                bool
	}{
		{50, 10, 500, true},
		{12.345, 1, 12.35, true}, // rounded to 2 decimals
		{0, 10, 0, false},
		{10, 0, 0, false},
		{-5, 10, 0, false},
		{math.NaN(), 10, 0, false},
		{math.Inf(1), 10, 0, false},
	}
	for i, tc := range cases {
		got, ok := DeriveAmount(tc.consumption, tc.rate)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("case %d: DeriveAmount(%v, %v) = (%v, %v), want (%v, %v)",
				i, tc.consumption, tc.rate, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{12.0, "12"},
		{12.5, "12.50"},
		{12.34, "12.34"},
		{0, "0"},
		{1234.999, "1235"},
	}
	for _, tc := range cases {
		if got := FormatNumber(tc.in); got != tc.want {
			t.Fatalf("FormatNumber(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseReading(t *testing.T) {
	if got := ParseReading(" 12.5 "); got != 12.5 {
		t.Fatalf("expected 12.5, got %v", got)
	}
	for _, in := range []string{"", "abc", "NaN"} {
		if got := ParseReading(in); got != 0 {
			t.Fatalf("ParseReading(%q) = %v, want 0", in, got)
		}
	}
}

// Full entry flow: readings and rate in, derived fields out.
func TestDerivationScenarios(t *testing.T) {
	c := Consumption(100, 150)
	if c != 50 {
		t.Fatalf("consumption = %v, want 50", c)
	}
	amt, ok := DeriveAmount(c, 10)
	if !ok || amt != 500 {
		t.Fatalf("amount = (%v, %v), want (500, true)", amt, ok)
	}

	// Reversed readings: clamped consumption, amount left to manual entry.
	c = Consumption(150, 140)
	if c != 0 {
		t.Fatalf("consumption = %v, want 0", c)
	}
	if _, ok := DeriveAmount(c, 10); ok {
		t.Fatalf("expected no derived amount for zero consumption")
	}
}
