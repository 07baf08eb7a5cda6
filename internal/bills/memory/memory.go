// Package memory provides an in-memory bills.Store and bills.UserStore,
// used as the default backend and as a test double.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meterlog/internal/bills"
	"meterlog/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[core.BillKind][]core.Bill
	users []bills.User
}

func New() *Store {
	return &Store{items: map[core.BillKind][]core.Bill{}}
}

func (s *Store) List(_ context.Context, userID string, kind core.BillKind, orderBy string, desc bool) ([]core.Bill, error) {
	if !bills.SortableColumns[orderBy] {
		return nil, bills.StoreErrorf("unsortable column %q", orderBy)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, b := range s.items[kind] {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		less := compare(out[i], out[j], orderBy)
		if desc {
			return !less
		}
		return less
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, kind core.BillKind, id string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.items[kind] {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bill{}, bills.ErrNotFound
}

func (s *Store) Insert(_ context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	s.items[b.Kind] = append(s.items[b.Kind], b)
	return b, nil
}

func (s *Store) Update(_ context.Context, b core.Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[b.Kind]
	for i := range list {
		if list[i].ID == b.ID {
			// id, owner and creation time are immutable
			b.UserID = list[i].UserID
			b.CreatedAt = list[i].CreatedAt
			list[i] = b
			return nil
		}
	}
	return bills.ErrNotFound
}

func (s *Store) Delete(_ context.Context, kind core.BillKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[kind]
	for i := range list {
		if list[i].ID == id {
			s.items[kind] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return bills.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u bills.User) (bills.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return bills.User{}, bills.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (bills.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return bills.User{}, bills.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (bills.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return bills.User{}, bills.ErrNotFound
}

func compare(a, b core.Bill, col string) bool {
	switch col {
	case "amount":
		return a.Amount < b.Amount
	case "consumption":
		return a.Consumption < b.Consumption
	case "rate":
		return a.Rate < b.Rate
	case "previous_reading":
		return a.PreviousReading < b.PreviousReading
	case "current_reading":
		return a.CurrentReading < b.CurrentReading
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		// month: zero-padded YYYY-MM sorts correctly as a string
		return a.Month < b.Month
	}
}
