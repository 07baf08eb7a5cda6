package http

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"meterlog/internal/core"
)

type monthBar struct {
	Label       string
	Consumption string
	Amount      string
	HeightPct   float64
	HasBill     bool
}

type chartPanel struct {
	Kind     core.BillKind
	Title    string
	Unit     string
	AxisMax  string
	Months   []monthBar
	Summary  summaryView
	HasBills bool
}

type dashboardData struct {
	UserName string
	Year     int
	Years    []int
	Panels   []chartPanel
	Error    string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	year := parseYear(r)

	// Both kinds load in parallel; each list comes from the LRU cache when
	// a recent mutation has not invalidated it.
	var water, electricity []core.Bill
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		water, err = s.cachedBills(ctx, session.UserID, core.Water)
		return err
	})
	g.Go(func() error {
		var err error
		electricity, err = s.cachedBills(ctx, session.UserID, core.Electricity)
		return err
	})

	data := dashboardData{UserName: session.FullName, Year: year}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(r.Context(), "Failed to load dashboard data", "error", err)
		data.Error = "Could not load the dashboard. Please try again."
		data.Years = []int{year}
		s.render(w, r, "dashboard.html", data)
		return
	}

	data.Years = yearsOf(append(append([]core.Bill{}, water...), electricity...), year)
	data.Panels = []chartPanel{
		s.buildPanel(core.Water, water, year),
		s.buildPanel(core.Electricity, electricity, year),
	}
	s.render(w, r, "dashboard.html", data)
}

func (s *Server) cachedBills(ctx context.Context, userID string, kind core.BillKind) ([]core.Bill, error) {
	key := listCacheKey(userID, kind)
	if cached, ok := s.listCache.Get(key); ok {
		return cached, nil
	}
	list, err := s.billsvc.List(ctx, userID, kind, "month", false)
	if err != nil {
		return nil, err
	}
	s.listCache.Set(key, list)
	return list, nil
}

func (s *Server) buildPanel(kind core.BillKind, list []core.Bill, year int) chartPanel {
	inYear := core.FilterByYear(list, year)
	series := core.MonthlySeries(inYear)
	axisMax := core.ChartMax(inYear, s.floors[kind])

	months := make([]monthBar, 0, len(series))
	for _, slot := range series {
		bar := monthBar{Label: slot.Label}
		if slot.Bill != nil {
			bar.HasBill = true
			bar.Consumption = core.FormatNumber(slot.Consumption)
			bar.Amount = core.FormatNumber(slot.Bill.Amount)
			if axisMax > 0 {
				bar.HeightPct = slot.Consumption / axisMax * 100
			}
		}
		months = append(months, bar)
	}

	return chartPanel{
		Kind:     kind,
		Title:    kindTitle(kind),
		Unit:     kind.Unit(),
		AxisMax:  core.FormatNumber(axisMax),
		Months:   months,
		Summary:  toSummary(core.Summarize(inYear)),
		HasBills: len(inYear) > 0,
	}
}
