package allowliststore

import (
	"context"
	"testing"

	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpsertAndContains(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()
	admin := primitive.NewObjectID()

	added, err := s.Upsert(ctx, "Friend@Example.COM", admin)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !added {
		t.Error("first Upsert should report a new row")
	}

	added, err = s.Upsert(ctx, "friend@example.com", admin)
	if err != nil {
		t.Fatalf("Upsert (repeat): %v", err)
	}
	if added {
		t.Error("repeat Upsert should not report a new row")
	}

	ok, err := s.Contains(ctx, "FRIEND@example.com")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Error("Contains = false for allowlisted email")
	}

	ok, err = s.Contains(ctx, "stranger@example.com")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Error("Contains = true for unknown email")
	}

	if _, err := s.Upsert(ctx, "   ", admin); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestRemoveAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()
	admin := primitive.NewObjectID()

	for _, e := range []string{"b@example.com", "a@example.com", "c@example.com"} {
		if _, err := s.Upsert(ctx, e, admin); err != nil {
			t.Fatalf("Upsert %s: %v", e, err)
		}
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d rows, want 3", len(entries))
	}
	if entries[0].Email != "a@example.com" || entries[2].Email != "c@example.com" {
		t.Errorf("List not sorted by email: %v", entries)
	}

	removed, err := s.Remove(ctx, "B@example.com")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Error("Remove should report a deleted row")
	}
	removed, err = s.Remove(ctx, "b@example.com")
	if err != nil {
		t.Fatalf("Remove (repeat): %v", err)
	}
	if removed {
		t.Error("second Remove should report nothing deleted")
	}
}
