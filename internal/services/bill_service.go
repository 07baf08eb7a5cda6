// Package services orchestrates bill operations across storage and the
// export queue.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meterlog/internal/amqp"
	"meterlog/internal/bills"
	"meterlog/internal/core"
)

// Publisher is the slice of the AMQP client the service needs. Nil-able:
// a missing broker never blocks bill entry.
type Publisher interface {
	PublishBillSync(ctx context.Context, msg *amqp.BillSyncMessage) error
	PublishBillDelete(ctx context.Context, msg *amqp.BillDeleteMessage) error
}

// BillForm carries the raw form fields of the add/edit dialogs.
type BillForm struct {
	Month           string
	PreviousReading string
	CurrentReading  string
	Rate            string
	Amount          string
}

// BillService mediates between the record store and the derivation rules
// for one user action at a time.
type BillService struct {
	store bills.Store
	queue Publisher
}

func NewBillService(store bills.Store, queue Publisher) *BillService {
	return &BillService{store: store, queue: queue}
}

// Compose turns a submitted form into a bill with derived fields. The
// derived amount overwrites the entered one only when it is positive and
// fully determined; otherwise the user's entry stands.
func Compose(userID string, kind core.BillKind, form BillForm) (core.Bill, error) {
	if strings.TrimSpace(form.Month) == "" {
		return core.Bill{}, core.ErrMissingMonth
	}

	prev := core.ParseReading(form.PreviousReading)
	cur := core.ParseReading(form.CurrentReading)
	rate := core.ParseReading(form.Rate)

	consumption := core.Consumption(prev, cur)
	amount := core.ParseReading(form.Amount)
	if derived, ok := core.DeriveAmount(consumption, rate); ok {
		amount = derived
	}

	b := core.Bill{
		UserID:          userID,
		Kind:            kind,
		Month:           strings.TrimSpace(form.Month),
		PreviousReading: prev,
		CurrentReading:  cur,
		Consumption:     consumption,
		Rate:            rate,
		Amount:          amount,
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	return b, nil
}

func (s *BillService) List(ctx context.Context, userID string, kind core.BillKind, orderBy string, desc bool) ([]core.Bill, error) {
	return s.store.List(ctx, userID, kind, orderBy, desc)
}

// Create validates, derives and inserts a new bill, then queues it for
// spreadsheet export. A publish failure is logged, never surfaced: the
// local write already succeeded.
func (s *BillService) Create(ctx context.Context, userID string, kind core.BillKind, form BillForm) (core.Bill, error) {
	b, err := Compose(userID, kind, form)
	if err != nil {
		return core.Bill{}, err
	}

	saved, err := s.store.Insert(ctx, b)
	if err != nil {
		return core.Bill{}, fmt.Errorf("save bill: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishBillSync(ctx, amqp.NewBillSyncMessage(saved.ID, saved.Kind)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message", "id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

// Get returns one bill, refusing ids owned by another user.
func (s *BillService) Get(ctx context.Context, userID string, kind core.BillKind, id string) (core.Bill, error) {
	b, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return core.Bill{}, err
	}
	if b.UserID != userID {
		return core.Bill{}, bills.ErrNotFound
	}
	return b, nil
}

// Update replaces the editable fields of one bill, re-deriving consumption
// and amount, and queues the row for re-export.
func (s *BillService) Update(ctx context.Context, userID string, kind core.BillKind, id string, form BillForm) (core.Bill, error) {
	existing, err := s.Get(ctx, userID, kind, id)
	if err != nil {
		return core.Bill{}, err
	}

	b, err := Compose(existing.UserID, kind, form)
	if err != nil {
		return core.Bill{}, err
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt

	if err := s.store.Update(ctx, b); err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishBillSync(ctx, amqp.NewBillSyncMessage(b.ID, b.Kind)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message", "id", b.ID, "error", err)
		}
	}
	return b, nil
}

// Delete removes one bill and queues the matching spreadsheet row removal.
func (s *BillService) Delete(ctx context.Context, userID string, kind core.BillKind, id string) error {
	existing, err := s.Get(ctx, userID, kind, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishBillDelete(ctx, amqp.NewBillDeleteMessage(id, kind, existing.Month)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
		}
	}
	return nil
}

// PrefillCreate builds the defaults of the add-bill form: previous reading
// continues from the latest month's current reading, and the month defaults
// to the current calendar year-month.
func PrefillCreate(existing []core.Bill, now time.Time) BillForm {
	form := BillForm{Month: now.Format("2006-01")}
	if latest := mostRecent(existing); latest != nil {
		form.PreviousReading = core.FormatNumber(latest.CurrentReading)
	}
	return form
}

// mostRecent returns the bill with the greatest month string. Zero-padded
// YYYY-MM makes lexicographic comparison chronological.
func mostRecent(list []core.Bill) *core.Bill {
	var latest *core.Bill
	for i := range list {
		if latest == nil || list[i].Month > latest.Month {
			latest = &list[i]
		}
	}
	return latest
}

// Search keeps bills whose month, amount or consumption contains the term,
// case-insensitively. An empty term keeps everything.
func Search(list []core.Bill, term string) []core.Bill {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}
	out := make([]core.Bill, 0, len(list))
	for _, b := range list {
		if strings.Contains(strings.ToLower(b.Month), term) ||
			strings.Contains(core.FormatNumber(b.Amount), term) ||
			strings.Contains(core.FormatNumber(b.Consumption), term) {
			out = append(out, b)
		}
	}
	return out
}
