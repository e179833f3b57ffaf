package indexes_test

import (
	"testing"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/indexes"
	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// First call
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}

	// Second call should also succeed (idempotent)
	err = indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed for %s: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_CreatesExpectedIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"users":  {"uniq_users_email"},
		"groups": {"uniq_groups_slug", "uniq_groups_sharecode", "idx_groups_owner"},
		"group_memberships": {
			"uniq_membership_user_group",
			"idx_membership_group_status_role",
			"idx_membership_user_status",
		},
		"group_invites": {"uniq_invites_token", "idx_invites_group_email"},
		"watch_entries": {
			"uniq_entry_user_imdb_group",
			"uniq_entry_group_imdb",
			"idx_entries_group_createdat",
		},
		"entry_reactions":          {"uniq_reaction_entry_user"},
		"entry_comments":           {"idx_comments_entry_createdat"},
		"notification_preferences": {"uniq_prefs_group_user"},
		"allowlist_emails":         {"uniq_allowlist_email"},
		"oauth_states":             {"uniq_oauthstates_state"},
	}

	for coll, wantNames := range expected {
		names := indexNames(t, db, coll)
		for _, want := range wantNames {
			if !names[want] {
				t.Errorf("collection %s missing index %s (have %v)", coll, want, names)
			}
		}
	}
}

func TestMembershipUniqueIndex_BlocksDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	userID := primitive.NewObjectID()
	groupID := primitive.NewObjectID()
	doc := bson.M{
		"user_id":    userID,
		"group_id":   groupID,
		"role":       "EDITOR",
		"status":     "ACTIVE",
		"created_at": time.Now().UTC(),
	}

	if _, err := db.Collection("group_memberships").InsertOne(ctx, doc); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.Collection("group_memberships").InsertOne(ctx, doc); err == nil {
		t.Error("expected duplicate key error for second membership insert")
	}
}

func TestGroupEntryUniqueIndex_PartialOnGroupOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	entries := db.Collection("watch_entries")
	groupID := primitive.NewObjectID()

	// Two different members sharing the same title to the same circle:
	// the second insert must fail on the per-circle constraint.
	first := bson.M{
		"user_id":    primitive.NewObjectID(),
		"group_id":   groupID,
		"imdb_id":    "tt0111161",
		"title":      "The Shawshank Redemption",
		"created_at": time.Now().UTC(),
	}
	second := bson.M{
		"user_id":    primitive.NewObjectID(),
		"group_id":   groupID,
		"imdb_id":    "tt0111161",
		"title":      "The Shawshank Redemption",
		"created_at": time.Now().UTC(),
	}
	if _, err := entries.InsertOne(ctx, first); err != nil {
		t.Fatalf("first group entry insert failed: %v", err)
	}
	if _, err := entries.InsertOne(ctx, second); err == nil {
		t.Error("expected duplicate key error for same title in same circle")
	}

	// Personal entries (no group_id) are outside the partial constraint:
	// two different users may keep the same title privately.
	for i := 0; i < 2; i++ {
		personal := bson.M{
			"user_id":    primitive.NewObjectID(),
			"imdb_id":    "tt0111161",
			"title":      "The Shawshank Redemption",
			"created_at": time.Now().UTC(),
		}
		if _, err := entries.InsertOne(ctx, personal); err != nil {
			t.Errorf("personal entry insert %d failed: %v", i, err)
		}
	}
}

func TestReactionUniqueIndex_BlocksDoubleReact(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	entryID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	doc := bson.M{
		"entry_id":   entryID,
		"user_id":    userID,
		"reaction":   "LIKE",
		"created_at": time.Now().UTC(),
	}

	if _, err := db.Collection("entry_reactions").InsertOne(ctx, doc); err != nil {
		t.Fatalf("first reaction insert failed: %v", err)
	}
	if _, err := db.Collection("entry_reactions").InsertOne(ctx, doc); err == nil {
		t.Error("expected duplicate key error for second reaction insert")
	}
}
