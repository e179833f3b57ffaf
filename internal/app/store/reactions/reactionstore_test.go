package reactionstore

import (
	"context"
	"testing"

	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSetReplacesInPlace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()
	entry := primitive.NewObjectID()
	user := primitive.NewObjectID()

	r, err := s.Set(ctx, entry, user, "like")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.Reaction != "LIKE" {
		t.Errorf("reaction = %q, want LIKE", r.Reaction)
	}

	r2, err := s.Set(ctx, entry, user, "DISLIKE")
	if err != nil {
		t.Fatalf("Set (replace): %v", err)
	}
	if r2.Reaction != "DISLIKE" {
		t.Errorf("reaction = %q, want DISLIKE", r2.Reaction)
	}
	if r2.ID != r.ID {
		t.Error("replacing a reaction created a second row")
	}
	if !r2.CreatedAt.Equal(r.CreatedAt) {
		t.Error("created_at changed when replacing")
	}

	if _, err := s.Set(ctx, entry, user, "MEH"); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestClearIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()
	entry := primitive.NewObjectID()
	user := primitive.NewObjectID()

	if _, err := s.Set(ctx, entry, user, "LIKE"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	removed, err := s.Clear(ctx, entry, user)
	if err != nil || !removed {
		t.Fatalf("Clear = (%v, %v)", removed, err)
	}
	removed, err = s.Clear(ctx, entry, user)
	if err != nil {
		t.Fatalf("Clear (repeat): %v", err)
	}
	if removed {
		t.Error("repeat clear should remove nothing")
	}

	got, err := s.Get(ctx, entry, user)
	if err != nil || got != nil {
		t.Errorf("Get after clear = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestCountsForEntries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx := context.Background()

	e1 := primitive.NewObjectID()
	e2 := primitive.NewObjectID()
	quiet := primitive.NewObjectID()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	u3 := primitive.NewObjectID()

	for _, set := range []struct {
		entry, user primitive.ObjectID
		kind        string
	}{
		{e1, u1, "LIKE"},
		{e1, u2, "LIKE"},
		{e1, u3, "DISLIKE"},
		{e2, u1, "DISLIKE"},
	} {
		if _, err := s.Set(ctx, set.entry, set.user, set.kind); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	counts, err := s.CountsForEntries(ctx, []primitive.ObjectID{e1, e2, quiet})
	if err != nil {
		t.Fatalf("CountsForEntries: %v", err)
	}
	if c := counts[e1]; c.Likes != 2 || c.Dislikes != 1 {
		t.Errorf("e1 counts = %+v, want 2 likes 1 dislike", c)
	}
	if c := counts[e2]; c.Likes != 0 || c.Dislikes != 1 {
		t.Errorf("e2 counts = %+v, want 0 likes 1 dislike", c)
	}
	if _, ok := counts[quiet]; ok {
		t.Error("entry with no reactions should be absent from the map")
	}

	likes, err := s.LikeCounts(ctx, []primitive.ObjectID{e1, e2})
	if err != nil {
		t.Fatalf("LikeCounts: %v", err)
	}
	if likes[e1] != 2 || likes[e2] != 0 {
		t.Errorf("likes = %v", likes)
	}

	mine, err := s.ForUser(ctx, []primitive.ObjectID{e1, e2, quiet}, u1)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if mine[e1] != "LIKE" || mine[e2] != "DISLIKE" {
		t.Errorf("ForUser = %v", mine)
	}
	if _, ok := mine[quiet]; ok {
		t.Error("unreacted entry present in ForUser map")
	}
}
