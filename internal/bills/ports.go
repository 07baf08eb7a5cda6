// Package bills defines the outbound ports for bill and user persistence.
package bills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meterlog/internal/core"
)

var (
	// ErrStore wraps any transport, constraint or auth failure from the
	// persistence layer. Handlers surface it as a dismissible banner.
	ErrStore = errors.New("store error")

	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

// StoreErrorf wraps err into the ErrStore taxonomy with context.
func StoreErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStore, fmt.Sprintf(format, args...))
}

// User is an account able to own bill records.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Ports for outbound adapters.
type (
	// Store is the CRUD contract over the two bill collections. Every
	// read is scoped to the owning user; Update and Delete operate by
	// row id with ownership enforced by the caller's session scoping.
	Store interface {
		// List returns all bills of one kind for a user, ordered by the
		// given column. orderBy must be one of the sortable columns.
		List(ctx context.Context, userID string, kind core.BillKind, orderBy string, desc bool) ([]core.Bill, error)
		Get(ctx context.Context, kind core.BillKind, id string) (core.Bill, error)
		Insert(ctx context.Context, b core.Bill) (core.Bill, error)
		Update(ctx context.Context, b core.Bill) error
		Delete(ctx context.Context, kind core.BillKind, id string) error
	}

	// UserStore persists accounts for the session provider.
	UserStore interface {
		CreateUser(ctx context.Context, u User) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
	}
)

// SortableColumns are the bill columns a List call may order by.
var SortableColumns = map[string]bool{
	"month":            true,
	"amount":           true,
	"consumption":      true,
	"rate":             true,
	"previous_reading": true,
	"current_reading":  true,
	"created_at":       true,
}
