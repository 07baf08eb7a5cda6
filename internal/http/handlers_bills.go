package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"meterlog/internal/bills"
	"meterlog/internal/core"
	"meterlog/internal/services"
)

type billRow struct {
	ID          string
	Month       string
	MonthName   string
	Previous    string
	Current     string
	Consumption string
	Rate        string
	Amount      string
}

type summaryView struct {
	Count            int
	TotalConsumption string
	TotalAmount      string
	AverageRate      string
}

type billsPageData struct {
	Kind     core.BillKind
	Title    string
	Unit     string
	UserName string
	Year     int
	Years    []int
	Query    string
	Sort     string
	Dir      string
	Rows     []billRow
	Summary  summaryView
	Error    string
}

type previewView struct {
	Consumption string
	Amount      string
	Derived     bool
}

type billFormData struct {
	Kind       core.BillKind
	Title      string
	Unit       string
	Action     string
	PreviewURL string
	Form       services.BillForm
	Preview    previewView
	Error      string
}

func kindTitle(kind core.BillKind) string {
	if kind == core.Electricity {
		return "Electricity"
	}
	return "Water"
}

func (s *Server) handleBillsPage(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())
	year := parseYear(r)
	query := sanitizeInput(r.URL.Query().Get("q"))

	orderBy := r.URL.Query().Get("sort")
	if !bills.SortableColumns[orderBy] {
		orderBy = "month"
	}
	dir := r.URL.Query().Get("dir")
	if dir != "asc" {
		dir = "desc"
	}

	data := billsPageData{
		Kind:     kind,
		Title:    kindTitle(kind),
		Unit:     kind.Unit(),
		UserName: session.FullName,
		Year:     year,
		Query:    query,
		Sort:     orderBy,
		Dir:      dir,
	}

	list, err := s.billsvc.List(r.Context(), session.UserID, kind, orderBy, dir == "desc")
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list bills",
			"kind", kind.String(), "error", err)
		data.Error = "Could not load the records. Please try again."
		data.Years = []int{year}
		s.render(w, r, "bills.html", data)
		return
	}

	data.Years = yearsOf(list, year)
	visible := services.Search(core.FilterByYear(list, year), query)
	data.Rows = toRows(visible)
	data.Summary = toSummary(core.Summarize(visible))

	s.render(w, r, "bills.html", data)
}

func (s *Server) handleNewBillForm(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())

	var form services.BillForm
	if hasFormValues(r) {
		// Preview refresh: htmx re-requests the fragment with the values
		// typed so far.
		form = billFormFromValues(r.URL.Query())
	} else {
		existing, err := s.billsvc.List(r.Context(), session.UserID, kind, "month", false)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to prefill bill form",
				"kind", kind.String(), "error", err)
		}
		form = services.PrefillCreate(existing, time.Now())
	}

	s.render(w, r, "bill_form.html", billFormData{
		Kind:       kind,
		Title:      kindTitle(kind),
		Unit:       kind.Unit(),
		Action:     "/bills/" + kind.String(),
		PreviewURL: fmt.Sprintf("/bills/%s/new", kind.String()),
		Form:       form,
		Preview:    preview(form),
	})
}

func (s *Server) handleEditBillForm(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())
	id := r.PathValue("id")

	var form services.BillForm
	if hasFormValues(r) {
		form = billFormFromValues(r.URL.Query())
	} else {
		bill, err := s.billsvc.Get(r.Context(), session.UserID, kind, id)
		if err != nil {
			if errors.Is(err, bills.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.renderStoreError(w, r, err)
			return
		}
		form = services.BillForm{
			Month:           bill.Month,
			PreviousReading: core.FormatNumber(bill.PreviousReading),
			CurrentReading:  core.FormatNumber(bill.CurrentReading),
			Rate:            core.FormatNumber(bill.Rate),
			Amount:          core.FormatNumber(bill.Amount),
		}
	}

	s.render(w, r, "bill_form.html", billFormData{
		Kind:       kind,
		Title:      kindTitle(kind),
		Unit:       kind.Unit(),
		Action:     fmt.Sprintf("/bills/%s/%s", kind.String(), id),
		PreviewURL: fmt.Sprintf("/bills/%s/%s/edit", kind.String(), id),
		Form:       form,
		Preview:    preview(form),
	})
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := billFormFromValues(r.PostForm)

	saved, err := s.billsvc.Create(r.Context(), session.UserID, kind, form)
	if err != nil {
		s.renderBillError(w, r, kind,
			"/bills/"+kind.String(),
			fmt.Sprintf("/bills/%s/new", kind.String()),
			form, err)
		return
	}

	s.invalidateBills(session.UserID, kind)
	s.billMutated(w, r, kind, fmt.Sprintf("Saved %s bill for %s", kind.String(), saved.Month))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := billFormFromValues(r.PostForm)

	updated, err := s.billsvc.Update(r.Context(), session.UserID, kind, id, form)
	if err != nil {
		if errors.Is(err, bills.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.renderBillError(w, r, kind,
			fmt.Sprintf("/bills/%s/%s", kind.String(), id),
			fmt.Sprintf("/bills/%s/%s/edit", kind.String(), id),
			form, err)
		return
	}

	s.invalidateBills(session.UserID, kind)
	s.billMutated(w, r, kind, fmt.Sprintf("Updated %s bill for %s", kind.String(), updated.Month))
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	session := sessionFromContext(r.Context())
	id := r.PathValue("id")

	if err := s.billsvc.Delete(r.Context(), session.UserID, kind, id); err != nil {
		if errors.Is(err, bills.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.renderStoreError(w, r, err)
		return
	}

	s.invalidateBills(session.UserID, kind)
	s.billMutated(w, r, kind, "Record deleted")
}

// billMutated finishes a successful mutation: htmx callers get refresh
// events, plain form posts a redirect back to the table.
func (s *Server) billMutated(w http.ResponseWriter, r *http.Request, kind core.BillKind, msg string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Trigger", fmt.Sprintf(`{
			"bills:changed": {},
			"show-notification": {"type": "success", "message": "%s", "duration": 3000}
		}`, template.JSEscapeString(msg)))
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/bills/"+kind.String(), http.StatusSeeOther)
}

// renderBillError maps a failed mutation to either an inline validation
// message on the form fragment or a dismissible storage banner.
func (s *Server) renderBillError(w http.ResponseWriter, r *http.Request, kind core.BillKind, action, previewURL string, form services.BillForm, err error) {
	if isValidationError(err) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "bill_form.html", billFormData{
			Kind:       kind,
			Title:      kindTitle(kind),
			Unit:       kind.Unit(),
			Action:     action,
			PreviewURL: previewURL,
			Form:       form,
			Preview:    preview(form),
			Error:      err.Error(),
		})
		return
	}
	s.renderStoreError(w, r, err)
}

func (s *Server) renderStoreError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Storage operation failed", "error", err)
	w.WriteHeader(http.StatusInternalServerError)
	s.render(w, r, "error_banner.html", struct{ Message string }{
		Message: "Something went wrong saving your data. Please try again.",
	})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrMissingMonth, core.ErrInvalidMonth, core.ErrInvalidKind,
		core.ErrNegativeReading, core.ErrNegativeRate, core.ErrNegativeAmount,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// hasFormValues reports whether the request carries any bill field, which
// marks a preview refresh rather than an initial form load.
func hasFormValues(r *http.Request) bool {
	q := r.URL.Query()
	for _, key := range []string{"month", "previous_reading", "current_reading", "rate", "amount"} {
		if q.Has(key) {
			return true
		}
	}
	return false
}

// preview computes the derived consumption and amount for the values
// currently in the form.
func preview(form services.BillForm) previewView {
	consumption := core.Consumption(
		core.ParseReading(form.PreviousReading),
		core.ParseReading(form.CurrentReading))

	p := previewView{Consumption: core.FormatNumber(consumption)}
	if amount, ok := core.DeriveAmount(consumption, core.ParseReading(form.Rate)); ok {
		p.Amount = core.FormatNumber(amount)
		p.Derived = true
	} else {
		p.Amount = form.Amount
	}
	return p
}

func toRows(list []core.Bill) []billRow {
	rows := make([]billRow, 0, len(list))
	for _, b := range list {
		rows = append(rows, billRow{
			ID:          b.ID,
			Month:       b.Month,
			MonthName:   core.MonthLabel(b.Month),
			Previous:    core.FormatNumber(b.PreviousReading),
			Current:     core.FormatNumber(b.CurrentReading),
			Consumption: core.FormatNumber(b.Consumption),
			Rate:        core.FormatNumber(b.Rate),
			Amount:      core.FormatNumber(b.Amount),
		})
	}
	return rows
}

func toSummary(s core.YearSummary) summaryView {
	return summaryView{
		Count:            s.Count,
		TotalConsumption: core.FormatNumber(s.TotalConsumption),
		TotalAmount:      core.FormatNumber(s.TotalAmount),
		AverageRate:      core.FormatNumber(s.AverageRate),
	}
}

// yearsOf collects the distinct years present in the list, newest first,
// always including the selected year.
func yearsOf(list []core.Bill, selected int) []int {
	seen := map[int]bool{selected: true}
	years := []int{selected}
	for _, b := range list {
		if y, err := strconv.Atoi(b.Year()); err == nil && !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
