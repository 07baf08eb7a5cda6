package memory

import (
	"context"
	"testing"

	"meterlog/internal/core"
)

func TestUpsertReplacesExistingRow(t *testing.T) {
	ctx := context.Background()
	c := New()

	bill := core.Bill{
		ID: "b1", UserID: "u1", Kind: core.Water, Month: "2024-01",
		PreviousReading: 10, CurrentReading: 20, Consumption: 10, Rate: 2, Amount: 20,
	}
	if _, err := c.Upsert(ctx, bill); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	bill.CurrentReading = 25
	bill.Consumption = 15
	if _, err := c.Upsert(ctx, bill); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows := c.Rows(core.Water)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Consumption != 15 {
		t.Fatalf("expected updated consumption 15, got %v", rows[0].Consumption)
	}
}

func TestUpsertRejectsInvalidBill(t *testing.T) {
	c := New()
	_, err := c.Upsert(context.Background(), core.Bill{Kind: core.Water, Month: "bad"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDeleteUnknownRowIsNoop(t *testing.T) {
	c := New()
	if err := c.Delete(context.Background(), core.Electricity, "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
