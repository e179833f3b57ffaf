package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Create(ctx, models.User{Name: "  Ada Lovelace ", Email: "Ada@Example.COM"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Name != "Ada Lovelace" {
		t.Errorf("name not trimmed: %q", u.Name)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.Role != "USER" {
		t.Errorf("default role = %q, want USER", u.Role)
	}

	got, err := s.GetByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetByEmail returned wrong user")
	}

	if _, err := s.Create(ctx, models.User{Name: "Dup", Email: "ada@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate email err = %v, want ErrDuplicateEmail", err)
	}

	if _, err := s.Create(ctx, models.User{Name: "Bad", Email: "bad@example.com", Role: "SUPERUSER"}); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestUpsertOAuth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	first, err := s.UpsertOAuth(ctx, "Grace Hopper", "grace@example.com", "https://img.example.com/a.png")
	if err != nil {
		t.Fatalf("UpsertOAuth (insert): %v", err)
	}
	if first.Role != "USER" {
		t.Errorf("new user role = %q, want USER", first.Role)
	}
	if first.ImageURL != "https://img.example.com/a.png" {
		t.Errorf("image URL not stored: %q", first.ImageURL)
	}

	second, err := s.UpsertOAuth(ctx, "Grace B. Hopper", "Grace@Example.com", "")
	if err != nil {
		t.Fatalf("UpsertOAuth (update): %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat sign-in created a second user")
	}
	if second.Name != "Grace B. Hopper" {
		t.Errorf("name not refreshed: %q", second.Name)
	}
	if second.ImageURL != first.ImageURL {
		t.Errorf("empty image URL overwrote stored avatar")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on re-sign-in")
	}
}

func TestDismissHero(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Create(ctx, models.User{Name: "Hero", Email: "hero@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.DismissHero(ctx, u.ID); err != nil {
		t.Fatalf("DismissHero: %v", err)
	}
	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.HeroDismissedAt == nil {
		t.Fatal("hero_dismissed_at not set")
	}
	stamp := *got.HeroDismissedAt

	// Second dismissal keeps the first timestamp.
	if err := s.DismissHero(ctx, u.ID); err != nil {
		t.Fatalf("DismissHero (repeat): %v", err)
	}
	got, err = s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.HeroDismissedAt.Equal(stamp) {
		t.Errorf("repeat dismissal moved the timestamp")
	}
}

func TestSessionFetcher(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	u, err := s.Create(ctx, models.User{Name: "Fetch", Email: "fetch@example.com", Role: "ADMIN"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fetch := s.SessionFetcher()

	su, err := fetch(ctx, u.ID.Hex())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if su == nil || su.Email != "fetch@example.com" || su.Role != "ADMIN" {
		t.Errorf("fetched session user = %+v", su)
	}

	if su, err := fetch(ctx, primitive.NewObjectID().Hex()); err != nil || su != nil {
		t.Errorf("missing user: got (%+v, %v), want (nil, nil)", su, err)
	}
	if su, err := fetch(ctx, "not-a-hex-id"); err != nil || su != nil {
		t.Errorf("malformed id: got (%+v, %v), want (nil, nil)", su, err)
	}
}

func TestGetByIDMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)

	_, err := s.GetByID(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("err = %v, want mongo.ErrNoDocuments", err)
	}
}
