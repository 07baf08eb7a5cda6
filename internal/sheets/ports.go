package sheets

import (
	"context"

	"meterlog/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// BillWriter exports a bill row. Upsert replaces an existing row with
	// the same id so edited bills do not duplicate on re-sync.
	BillWriter interface {
		Upsert(ctx context.Context, b core.Bill) (rowRef string, err error)
	}

	// BillDeleter removes a previously exported row by its bill id.
	BillDeleter interface {
		Delete(ctx context.Context, kind core.BillKind, id string) error
	}
)
