package core

import (
	"strconv"
	"strings"
)

var monthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type (
	// MonthSlot is one calendar-month entry of a yearly chart series.
	// Bill is nil when no record exists for that month.
	MonthSlot struct {
		Label       string
		Consumption float64
		Bill        *Bill
	}

	// YearSummary aggregates one user's bills of a single kind and year.
	YearSummary struct {
		Count            int
		TotalConsumption float64
		TotalAmount      float64
		AverageRate      float64
	}
)

// MonthLabels returns the Jan..Dec label set in calendar order.
func MonthLabels() [12]string {
	return monthLabels
}

// MonthLabel maps the month component of a YYYY-MM string to its 3-letter
// label. It returns "" for anything that is not a valid zero-padded month.
func MonthLabel(month string) string {
	if !ValidMonth(month) {
		return ""
	}
	n, err := strconv.Atoi(month[5:7])
	if err != nil || n < 1 || n > 12 {
		return ""
	}
	return monthLabels[n-1]
}

// FilterByYear keeps bills whose month starts with the given 4-digit year.
func FilterByYear(bills []Bill, year int) []Bill {
	prefix := strconv.Itoa(year)
	out := make([]Bill, 0, len(bills))
	for _, b := range bills {
		if strings.HasPrefix(b.Month, prefix) {
			out = append(out, b)
		}
	}
	return out
}

// MonthlySeries distributes bills over the 12 calendar months. Each slot
// takes the first bill whose month label matches; later duplicates for the
// same month are ignored rather than summed.
func MonthlySeries(bills []Bill) [12]MonthSlot {
	var series [12]MonthSlot
	for i, label := range monthLabels {
		series[i].Label = label
		for j := range bills {
			if MonthLabel(bills[j].Month) == label {
				series[i].Bill = &bills[j]
				series[i].Consumption = bills[j].Consumption
				break
			}
		}
	}
	return series
}

// Summarize reduces a bill list to yearly totals. Bills without a rate are
// excluded from the rate average; an empty list yields an all-zero summary.
func Summarize(bills []Bill) YearSummary {
	s := YearSummary{Count: len(bills)}
	rated := 0
	var rateSum float64
	for _, b := range bills {
		s.TotalConsumption += b.Consumption
		s.TotalAmount += b.Amount
		if b.Rate > 0 {
			rateSum += b.Rate
			rated++
		}
	}
	if rated > 0 {
		s.AverageRate = rateSum / float64(rated)
	}
	return s
}

// ChartMax returns the axis height for a consumption chart: the maximum
// observed consumption, but never below floor.
func ChartMax(bills []Bill, floor float64) float64 {
	max := floor
	for _, b := range bills {
		if b.Consumption > max {
			max = b.Consumption
		}
	}
	return max
}
