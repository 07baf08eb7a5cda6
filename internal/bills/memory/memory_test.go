package memory

import (
	"context"
	"testing"

	"meterlog/internal/bills"
	"meterlog/internal/core"
)

func TestCRUDAndOwnershipScoping(t *testing.T) {
	ctx := context.Background()
	s := New()

	a1, err := s.Insert(ctx, core.Bill{UserID: "alice", Kind: core.Water, Month: "2024-01", Consumption: 10, Rate: 2, Amount: 20})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a1.ID == "" || a1.CreatedAt.IsZero() {
		t.Fatalf("insert did not assign id/createdAt: %+v", a1)
	}
	if _, err := s.Insert(ctx, core.Bill{UserID: "bob", Kind: core.Water, Month: "2024-01", Consumption: 99}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.List(ctx, "alice", core.Water, "month", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != a1.ID {
		t.Fatalf("list not scoped to owner: %+v", got)
	}

	a1.CurrentReading = 160
	a1.UserID = "mallory" // must not transfer ownership
	if err := s.Update(ctx, a1); err != nil {
		t.Fatalf("update: %v", err)
	}
	back, err := s.Get(ctx, core.Water, a1.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if back.UserID != "alice" {
		t.Fatalf("update changed owner to %q", back.UserID)
	}
	if back.CurrentReading != 160 {
		t.Fatalf("update lost field change: %+v", back)
	}

	if err := s.Delete(ctx, core.Water, a1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, core.Water, a1.ID); err != bills.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, m := range []string{"2024-03", "2024-01", "2024-02"} {
		if _, err := s.Insert(ctx, core.Bill{UserID: "u", Kind: core.Electricity, Month: m}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	asc, err := s.List(ctx, "u", core.Electricity, "month", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if asc[0].Month != "2024-01" || asc[2].Month != "2024-03" {
		t.Fatalf("ascending order wrong: %+v", asc)
	}

	desc, err := s.List(ctx, "u", core.Electricity, "month", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if desc[0].Month != "2024-03" {
		t.Fatalf("descending order wrong: %+v", desc)
	}

	if _, err := s.List(ctx, "u", core.Electricity, "user_id", false); err == nil {
		t.Fatalf("expected error for unsortable column")
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, bills.User{Email: "a@example.com", FullName: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, bills.User{Email: "A@Example.com"}); err != bills.ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	byEmail, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("get by email: %v %+v", err, byEmail)
	}
	if _, err := s.GetUserByID(ctx, "nope"); err != bills.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
