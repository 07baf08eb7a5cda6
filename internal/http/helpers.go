package http

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meterlog/internal/core"
	"meterlog/internal/services"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"fmtNum":     core.FormatNumber,
		"monthLabel": core.MonthLabel,
	}
}

// kindFromRequest resolves the {kind} path segment.
func kindFromRequest(r *http.Request) (core.BillKind, bool) {
	kind := core.BillKind(r.PathValue("kind"))
	return kind, kind.IsValid()
}

// parseYear extracts the year filter, defaulting to the current year.
func parseYear(r *http.Request) int {
	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			year = y
		}
	}
	return year
}

// billFormFromValues builds a form snapshot from query or POST values.
func billFormFromValues(values url.Values) services.BillForm {
	return services.BillForm{
		Month:           sanitizeInput(values.Get("month")),
		PreviousReading: sanitizeInput(values.Get("previous_reading")),
		CurrentReading:  sanitizeInput(values.Get("current_reading")),
		Rate:            sanitizeInput(values.Get("rate")),
		Amount:          sanitizeInput(values.Get("amount")),
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
