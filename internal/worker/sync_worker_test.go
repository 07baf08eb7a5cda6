package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meterlog/internal/amqp"
	"meterlog/internal/core"
	"meterlog/internal/sheets/memory"
	"meterlog/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "meterlog.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertBill(t *testing.T, repo *storage.SQLiteRepository, kind core.BillKind, month string) core.Bill {
	t.Helper()
	b, err := repo.Insert(context.Background(), core.Bill{
		UserID: "u1", Kind: kind, Month: month,
		PreviousReading: 100, CurrentReading: 150, Consumption: 50, Rate: 2, Amount: 100,
	})
	if err != nil {
		t.Fatalf("insert bill: %v", err)
	}
	return b
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sheet := memory.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	bill := insertBill(t, repo, core.Water, "2024-03")

	if err := w.HandleSyncMessage(ctx, amqp.NewBillSyncMessage(bill.ID, core.Water)); err != nil {
		t.Fatalf("handle sync message: %v", err)
	}

	rows := sheet.Rows(core.Water)
	if len(rows) != 1 || rows[0].ID != bill.ID {
		t.Fatalf("expected exported row for %s, got %+v", bill.ID, rows)
	}

	pending, err := repo.ListPendingSync(ctx, core.Water, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending bills after sync, got %d", len(pending))
	}
}

func TestHandleSyncMessageMissingBill(t *testing.T) {
	repo := newTestRepo(t)
	sheet := memory.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	err := w.HandleSyncMessage(context.Background(), amqp.NewBillSyncMessage("nope", core.Water))
	if err == nil {
		t.Fatal("expected error for unknown bill id")
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sheet := memory.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	bill := insertBill(t, repo, core.Electricity, "2024-04")
	if err := w.HandleSyncMessage(ctx, amqp.NewBillSyncMessage(bill.ID, core.Electricity)); err != nil {
		t.Fatalf("handle sync message: %v", err)
	}

	msg := amqp.NewBillDeleteMessage(bill.ID, core.Electricity, bill.Month)
	if err := w.HandleDeleteMessage(ctx, msg); err != nil {
		t.Fatalf("handle delete message: %v", err)
	}
	if rows := sheet.Rows(core.Electricity); len(rows) != 0 {
		t.Fatalf("expected row removed, got %+v", rows)
	}
}

func TestHandleDeleteMessageWithoutDeleter(t *testing.T) {
	repo := newTestRepo(t)
	w := NewSyncWorker(repo, memory.New(), nil, 10)

	msg := amqp.NewBillDeleteMessage("any", core.Water, "2024-01")
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected nil-deleter delete to be a no-op, got %v", err)
	}
}

func TestStartupSyncCheckDrainsBothKinds(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sheet := memory.New()
	w := NewSyncWorker(repo, sheet, sheet, 2)

	insertBill(t, repo, core.Water, "2024-01")
	insertBill(t, repo, core.Water, "2024-02")
	insertBill(t, repo, core.Electricity, "2024-01")

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup sync check: %v", err)
	}

	if got := len(sheet.Rows(core.Water)); got != 2 {
		t.Fatalf("expected 2 water rows exported, got %d", got)
	}
	if got := len(sheet.Rows(core.Electricity)); got != 1 {
		t.Fatalf("expected 1 electricity row exported, got %d", got)
	}

	for _, kind := range []core.BillKind{core.Water, core.Electricity} {
		pending, err := repo.ListPendingSync(ctx, kind, 10)
		if err != nil {
			t.Fatalf("list pending %s: %v", kind.String(), err)
		}
		if len(pending) != 0 {
			t.Fatalf("expected no pending %s bills, got %d", kind.String(), len(pending))
		}
	}
}

type failingWriter struct{}

func (failingWriter) Upsert(context.Context, core.Bill) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportFailureMarksSyncError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	w := NewSyncWorker(repo, failingWriter{}, nil, 10)

	insertBill(t, repo, core.Water, "2024-05")

	if err := w.ProcessPendingBills(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	// Failed rows move to the error state and leave the pending queue.
	pending, err := repo.ListPendingSync(ctx, core.Water, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected failed bill out of pending queue, got %d", len(pending))
	}
}
