package core

import (
	"testing"
)

func bill(month string, consumption, rate, amount float64) Bill {
	return Bill{Kind: Water, Month: month, Consumption: consumption, Rate: rate, Amount: amount}
}

func TestMonthLabel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2024-01", "Jan"},
		{"2024-12", "Dec"},
		{"2024-13", ""},
		{"2024-00", ""},
		{"2024-1", ""},
		{"garbage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MonthLabel(tc.in); got != tc.want {
			t.Fatalf("MonthLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilterByYear(t *testing.T) {
	bills := []Bill{
		bill("2024-01", 10, 0, 0),
		bill("2023-06", 20, 0, 0),
		bill("2024-11", 30, 0, 0),
	}
	got := FilterByYear(bills, 2024)
	if len(got) != 2 || got[0].Month != "2024-01" || got[1].Month != "2024-11" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if got := FilterByYear(nil, 2024); len(got) != 0 {
		t.Fatalf("expected empty result for empty input, got %+v", got)
	}
}

func TestMonthlySeries(t *testing.T) {
	bills := []Bill{
		bill("2024-03", 120, 0, 0),
		bill("2024-01", 80, 0, 0),
	}
	series := MonthlySeries(bills)
	if series[0].Consumption != 80 || series[0].Bill == nil {
		t.Fatalf("Jan slot = %+v, want consumption 80", series[0])
	}
	if series[2].Consumption != 120 {
		t.Fatalf("Mar slot = %+v, want consumption 120", series[2])
	}
	for _, i := range []int{1, 3, 4, 5, 6, 7, 8, 9, 10, 11} {
		if series[i].Bill != nil || series[i].Consumption != 0 {
			t.Fatalf("slot %s should be empty, got %+v", series[i].Label, series[i])
		}
	}
}

// Duplicate months keep the first record encountered, they do not sum.
func TestMonthlySeriesDuplicateMonth(t *testing.T) {
	bills := []Bill{
		bill("2024-02", 40, 0, 0),
		bill("2024-02", 99, 0, 0),
	}
	series := MonthlySeries(bills)
	if series[1].Consumption != 40 {
		t.Fatalf("Feb slot = %v, want first-match 40", series[1].Consumption)
	}
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	if empty.TotalConsumption != 0 || empty.TotalAmount != 0 || empty.AverageRate != 0 || empty.Count != 0 {
		t.Fatalf("empty summary not all-zero: %+v", empty)
	}

	s := Summarize([]Bill{
		bill("2024-01", 80, 8, 640),
		bill("2024-03", 120, 10, 1200),
		bill("2024-04", 50, 0, 300), // no rate set, excluded from rate average
	})
	if s.Count != 3 {
		t.Fatalf("count = %d, want 3", s.Count)
	}
	if s.TotalConsumption != 250 {
		t.Fatalf("totalConsumption = %v, want 250", s.TotalConsumption)
	}
	if s.TotalAmount != 2140 {
		t.Fatalf("totalAmount = %v, want 2140", s.TotalAmount)
	}
	if s.AverageRate != 9 {
		t.Fatalf("averageRate = %v, want 9", s.AverageRate)
	}
}

func TestSummarizeYearScenario(t *testing.T) {
	year := FilterByYear([]Bill{
		bill("2024-01", 80, 0, 0),
		bill("2024-03", 120, 0, 0),
		bill("2023-07", 999, 0, 0),
	}, 2024)
	s := Summarize(year)
	if s.TotalConsumption != 200 {
		t.Fatalf("totalConsumption = %v, want 200", s.TotalConsumption)
	}
}

func TestChartMax(t *testing.T) {
	bills := []Bill{bill("2024-01", 300, 0, 0)}
	if got := ChartMax(bills, 250); got != 300 {
		t.Fatalf("ChartMax = %v, want 300", got)
	}
	if got := ChartMax(nil, 18); got != 18 {
		t.Fatalf("ChartMax floor = %v, want 18", got)
	}
	if got := ChartMax([]Bill{bill("2024-01", 5, 0, 0)}, 18); got != 18 {
		t.Fatalf("ChartMax below floor = %v, want 18", got)
	}
}
