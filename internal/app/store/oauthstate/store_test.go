package oauthstate

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSaveAndRedeem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	if err := s.Save(ctx, "state-abc", "/circles/family"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ret, valid, err := s.Redeem(ctx, "state-abc")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !valid {
		t.Fatal("fresh state should be valid")
	}
	if ret != "/circles/family" {
		t.Errorf("return URL = %q", ret)
	}

	// One-time use: a second redeem fails.
	_, valid, err = s.Redeem(ctx, "state-abc")
	if err != nil {
		t.Fatalf("Redeem (repeat): %v", err)
	}
	if valid {
		t.Error("state token redeemed twice")
	}
}

func TestRedeemUnknownAndExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	_, valid, err := s.Redeem(ctx, "never-saved")
	if err != nil || valid {
		t.Errorf("unknown state = (valid=%v, %v), want invalid", valid, err)
	}

	if err := s.Save(ctx, "stale", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err = db.Collection("oauth_states").UpdateOne(ctx,
		bson.M{"state": "stale"},
		bson.M{"$set": bson.M{"expires_at": time.Now().Add(-time.Minute)}})
	if err != nil {
		t.Fatalf("backdate state: %v", err)
	}

	_, valid, err = s.Redeem(ctx, "stale")
	if err != nil || valid {
		t.Errorf("expired state = (valid=%v, %v), want invalid", valid, err)
	}
}
