package core

import (
	"errors"
	"regexp"
	"time"
)

const (
	Water       BillKind = "water"
	Electricity BillKind = "electricity"
)

type (
	// BillKind selects one of the two tracked utilities.
	BillKind string

	// Bill is one monthly utility bill for a single user.
	// Consumption and Amount are derived at entry time (see derive.go);
	// user-entered amounts that bypass derivation are stored as-is.
	Bill struct {
		ID              string
		UserID          string
		Kind            BillKind
		Month           string // YYYY-MM
		PreviousReading float64
		CurrentReading  float64
		Consumption     float64
		Rate            float64
		Amount          float64
		CreatedAt       time.Time
	}
)

var (
	ErrMissingMonth    = errors.New("missing month")
	ErrInvalidMonth    = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidKind     = errors.New("invalid bill kind")
	ErrNegativeReading = errors.New("meter reading cannot be negative")
	ErrNegativeRate    = errors.New("rate cannot be negative")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// IsValid returns true for the two supported kinds.
func (k BillKind) IsValid() bool {
	switch k {
	case Water, Electricity:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k BillKind) String() string {
	return string(k)
}

// Unit returns the consumption unit for display.
func (k BillKind) Unit() string {
	if k == Electricity {
		return "kWh"
	}
	return "m³"
}

// Table returns the record collection name backing this kind.
func (k BillKind) Table() string {
	if k == Electricity {
		return "electricity_bills"
	}
	return "water_bills"
}

// DefaultChartFloor is the minimum bar-chart axis height per kind, so
// sparse or new data sets still render with a stable axis.
func (k BillKind) DefaultChartFloor() float64 {
	if k == Electricity {
		return 250
	}
	return 18
}

// ValidMonth reports whether s is a zero-padded YYYY-MM string.
func ValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

func (b Bill) Validate() error {
	if !b.Kind.IsValid() {
		return ErrInvalidKind
	}
	if b.Month == "" {
		return ErrMissingMonth
	}
	if !ValidMonth(b.Month) {
		return ErrInvalidMonth
	}
	if b.PreviousReading < 0 || b.CurrentReading < 0 {
		return ErrNegativeReading
	}
	if b.Rate < 0 {
		return ErrNegativeRate
	}
	if b.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Year returns the 4-digit year prefix of Month, or "" if malformed.
func (b Bill) Year() string {
	if !ValidMonth(b.Month) {
		return ""
	}
	return b.Month[:4]
}
