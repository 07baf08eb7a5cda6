// Package worker exports bill rows from SQLite to the configured
// spreadsheet, driven by AMQP messages with a periodic backup sweep.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"meterlog/internal/amqp"
	"meterlog/internal/core"
	"meterlog/internal/sheets"
	"meterlog/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.BillWriter
	deleter   sheets.BillDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.BillWriter, deleter sheets.BillDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single bill sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.BillSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"kind", msg.Kind.String())

	bill, err := w.storage.Get(ctx, msg.Kind, msg.ID)
	if err != nil {
		return fmt.Errorf("get bill from storage: %w", err)
	}

	if err := w.exportBill(ctx, bill); err != nil {
		return fmt.Errorf("export bill to sheet: %w", err)
	}
	return nil
}

// HandleDeleteMessage processes a single bill delete message from AMQP.
// The local row is already gone, so the message itself carries everything
// needed to locate the spreadsheet row.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.BillDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message",
		"id", msg.ID,
		"kind", msg.Kind.String(),
		"month", msg.Month)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No row deleter configured, skipping sheet deletion",
			"id", msg.ID)
		return nil
	}

	if err := w.deleter.Delete(ctx, msg.Kind, msg.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete bill row from sheet",
			"id", msg.ID,
			"kind", msg.Kind.String(),
			"error", err)
		return fmt.Errorf("delete bill row: %w", err)
	}

	slog.InfoContext(ctx, "Bill row removed from sheet",
		"id", msg.ID,
		"kind", msg.Kind.String())
	return nil
}

// ProcessPendingBills sweeps both bill tables for rows that were never
// exported. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingBills(ctx context.Context) error {
	for _, kind := range []core.BillKind{core.Water, core.Electricity} {
		pending, err := w.storage.ListPendingSync(ctx, kind, w.batchSize)
		if err != nil {
			return fmt.Errorf("list pending %s bills: %w", kind.String(), err)
		}
		if len(pending) == 0 {
			continue
		}

		slog.InfoContext(ctx, "Processing pending bills",
			"kind", kind.String(), "count", len(pending))

		for _, bill := range pending {
			if err := w.exportBill(ctx, bill); err != nil {
				slog.ErrorContext(ctx, "Failed to export pending bill",
					"id", bill.ID, "kind", kind.String(), "error", err)
			}
		}
	}
	return nil
}

// StartupSyncCheck drains pending rows left over from missed messages or
// worker downtime. It uses a larger batch than the periodic sweep.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed := 0, 0
	for _, kind := range []core.BillKind{core.Water, core.Electricity} {
		pending, err := w.storage.ListPendingSync(ctx, kind, w.batchSize*5)
		if err != nil {
			return fmt.Errorf("list pending %s bills for startup check: %w", kind.String(), err)
		}
		for _, bill := range pending {
			if err := w.exportBill(ctx, bill); err != nil {
				slog.ErrorContext(ctx, "Failed to export bill during startup",
					"id", bill.ID, "kind", kind.String(), "error", err)
				failed++
				continue
			}
			synced++
		}
	}

	if synced == 0 && failed == 0 {
		slog.InfoContext(ctx, "No pending bills found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) exportBill(ctx context.Context, bill core.Bill) error {
	ref, err := w.writer.Upsert(ctx, bill)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, bill.Kind, bill.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"id", bill.ID, "error", markErr)
		}
		return fmt.Errorf("upsert bill row: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, bill.Kind, bill.ID); err != nil {
		// The export itself succeeded, so only log the bookkeeping failure.
		slog.ErrorContext(ctx, "Failed to mark bill as synced",
			"id", bill.ID, "error", err)
	}

	slog.InfoContext(ctx, "Bill synced to sheet",
		"id", bill.ID,
		"kind", bill.Kind.String(),
		"month", bill.Month,
		"row_ref", ref)
	return nil
}
