package notifyprefstore

import (
	"context"
	"testing"

	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpsertAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()
	group := primitive.NewObjectID()
	user := primitive.NewObjectID()

	// Unsaved preferences read as both switches off.
	p, err := s.Get(ctx, group, user)
	if err != nil {
		t.Fatalf("Get (defaults): %v", err)
	}
	if p.Instant || p.Weekly {
		t.Errorf("defaults = %+v, want both off", p)
	}

	p, err = s.Upsert(ctx, group, user, true, false)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !p.Instant || p.Weekly {
		t.Errorf("saved prefs = %+v", p)
	}

	p2, err := s.Upsert(ctx, group, user, false, true)
	if err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}
	if p2.ID != p.ID {
		t.Error("second Upsert created a new row")
	}
	if p2.Instant || !p2.Weekly {
		t.Errorf("updated prefs = %+v", p2)
	}
}

func TestInstantRecipients(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	s := New(db)
	ctx := context.Background()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com", "USER")
	g := fx.CreateGroup(ctx, "Pings", owner.ID)
	m1 := fx.CreateUser(ctx, "Instant Fan", "fan@example.com", "USER")
	m2 := fx.CreateUser(ctx, "Quiet", "quiet@example.com", "USER")

	fx.CreatePreference(ctx, g.ID, owner.ID, true, false)
	fx.CreatePreference(ctx, g.ID, m1.ID, true, true)
	fx.CreatePreference(ctx, g.ID, m2.ID, false, true)

	// The actor of the triggering write is excluded even when opted in.
	recips, err := s.InstantRecipients(ctx, g.ID, owner.ID)
	if err != nil {
		t.Fatalf("InstantRecipients: %v", err)
	}
	if len(recips) != 1 {
		t.Fatalf("got %d recipients, want 1", len(recips))
	}
	if recips[0].Email != "fan@example.com" || recips[0].Name != "Instant Fan" {
		t.Errorf("recipient = %+v", recips[0])
	}
}

func TestWeeklySubscriptions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	s := New(db)
	ctx := context.Background()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com", "USER")
	g1 := fx.CreateGroup(ctx, "One", owner.ID)
	g2 := fx.CreateGroup(ctx, "Two", owner.ID)
	reader := fx.CreateUser(ctx, "Reader", "reader@example.com", "USER")

	fx.CreatePreference(ctx, g1.ID, reader.ID, false, true)
	fx.CreatePreference(ctx, g2.ID, reader.ID, false, true)
	fx.CreatePreference(ctx, g1.ID, owner.ID, true, false)

	subs, err := s.WeeklySubscriptions(ctx)
	if err != nil {
		t.Fatalf("WeeklySubscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
	for _, sub := range subs {
		if sub.Email != "reader@example.com" {
			t.Errorf("subscription email = %q", sub.Email)
		}
		if sub.GroupID != g1.ID && sub.GroupID != g2.ID {
			t.Errorf("unexpected group %v", sub.GroupID)
		}
	}
}
