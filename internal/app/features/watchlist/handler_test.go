package watchlist_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/watchd/internal/app/features/watchlist"
	"github.com/dalemusser/watchd/internal/app/store/comments"
	"github.com/dalemusser/watchd/internal/app/store/entries"
	"github.com/dalemusser/watchd/internal/app/store/groups"
	"github.com/dalemusser/watchd/internal/app/store/reactions"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/imdb"
	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// omdbStub answers by-id lookups for a fixed set of titles.
func omdbStub(t *testing.T) *httptest.Server {
	t.Helper()
	titles := map[string]string{
		"tt0111161": `{"Response":"True","imdbID":"tt0111161","Title":"The Shawshank Redemption","Year":"1994","Type":"movie","Poster":"https://img.example/shawshank.jpg"}`,
		"tt0903747": `{"Response":"True","imdbID":"tt0903747","Title":"Breaking Bad","Year":"2008-2013","Type":"series","Poster":"N/A"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if body, ok := titles[r.URL.Query().Get("i")]; ok {
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHandler(t *testing.T, db *mongo.Database) *watchlist.Handler {
	srv := omdbStub(t)
	return &watchlist.Handler{
		DB:        db,
		Log:       zap.NewNop(),
		Entries:   entrystore.New(db),
		Reactions: reactionstore.New(db),
		Comments:  commentstore.New(db),
		Groups:    groupstore.New(db),
		Users:     userstore.New(db),
		Titles:    imdb.New("test-key", nil, zap.NewNop()).WithBaseURL(srv.URL + "/"),
	}
}

func asUser(r *http.Request, u models.User) *http.Request {
	return testutil.WithUser(r, testutil.UserFor(u.ID, u.Name, u.Email, u.Role))
}

func upsert(t *testing.T, h *watchlist.Handler, u models.User, body map[string]any) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, "POST", "/watchlist", body)
	req = asUser(req, u)
	rec := testutil.NewRecorder()
	h.HandleUpsert(rec, req)
	return rec
}

func TestUpsertPersonalEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")

	rec := upsert(t, h, alice, map[string]any{"imdb_id": "tt0111161", "review": "a classic", "liked": true})
	rec.AssertStatus(t, http.StatusCreated)

	var first models.WatchEntry
	testutil.DecodeJSONBody(t, rec.ResponseRecorder, &first)
	if first.Title != "The Shawshank Redemption" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Review == nil || *first.Review != "a classic" {
		t.Errorf("review = %v", first.Review)
	}

	// Re-adding the same title updates the same row.
	rec = upsert(t, h, alice, map[string]any{"imdb_id": "tt0111161", "review": "rewatched, still great", "liked": false})
	rec.AssertStatus(t, http.StatusOK)

	var second models.WatchEntry
	testutil.DecodeJSONBody(t, rec.ResponseRecorder, &second)
	if second.ID != first.ID {
		t.Errorf("new row created: %s vs %s", second.ID.Hex(), first.ID.Hex())
	}
	if second.Liked {
		t.Error("liked not updated")
	}
	if second.Review == nil || *second.Review != "rewatched, still great" {
		t.Errorf("review = %v", second.Review)
	}
}

func TestUpsertUnknownTitle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")

	rec := upsert(t, h, alice, map[string]any{"imdb_id": "tt9999999"})
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "Title not found")
}

func TestUpsertLookupDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	h := newHandler(t, db)
	h.Titles = imdb.New("test-key", nil, zap.NewNop()).WithBaseURL(srv.URL + "/")

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")

	rec := upsert(t, h, alice, map[string]any{"imdb_id": "tt0111161"})
	rec.AssertStatus(t, http.StatusBadGateway)

	// No partial entry is left behind.
	rows, _, err := h.Entries.PersonalFeed(ctx, alice.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("entries after failed lookup = %d", len(rows))
	}
}

func TestUpsertCircleScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	bob := fx.CreateUser(ctx, "Bob", "bob@example.com", "USER")
	viewer := fx.CreateUser(ctx, "Vera", "vera@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)
	fx.CreateMembership(ctx, bob.ID, g.ID, "EDITOR")
	fx.CreateMembership(ctx, viewer.ID, g.ID, "VIEWER")

	// Viewers cannot share into the circle.
	rec := upsert(t, h, viewer, map[string]any{"imdb_id": "tt0111161", "circle_id": g.ID.Hex()})
	rec.AssertStatus(t, http.StatusForbidden)

	// An editor shares the title.
	rec = upsert(t, h, bob, map[string]any{"imdb_id": "tt0111161", "circle_id": g.ID.Hex(), "review": "great"})
	rec.AssertStatus(t, http.StatusCreated)

	// Another member sharing the same title gets a conflict naming Bob.
	rec = upsert(t, h, alice, map[string]any{"imdb_id": "tt0111161", "circle_id": g.ID.Hex()})
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "Bob")
	rec.AssertContains(t, "React or comment")

	// Bob can still update his own share in place.
	rec = upsert(t, h, bob, map[string]any{"imdb_id": "tt0111161", "circle_id": g.ID.Hex(), "liked": true})
	rec.AssertStatus(t, http.StatusOK)

	// The same title in Alice's personal feed is a separate entry.
	rec = upsert(t, h, alice, map[string]any{"imdb_id": "tt0111161"})
	rec.AssertStatus(t, http.StatusCreated)
}

func TestUpsertNonMemberCircle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	mallory := fx.CreateUser(ctx, "Mallory", "mallory@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)

	rec := upsert(t, h, mallory, map[string]any{"imdb_id": "tt0111161", "circle_id": g.ID.Hex()})
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestDeleteEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)
	fx.CreateEntry(ctx, alice.ID, nil, "tt0111161", "The Shawshank Redemption")
	fx.CreateEntry(ctx, alice.ID, &g.ID, "tt0111161", "The Shawshank Redemption")

	del := func(u models.User, target string) *testutil.ResponseRecorder {
		req := testutil.NewRequest("DELETE", target)
		req = testutil.WithChiURLParam(req, "imdbID", "tt0111161")
		req = asUser(req, u)
		rec := testutil.NewRecorder()
		h.HandleDelete(rec, req)
		return rec
	}

	// Personal delete leaves the circle share alone.
	rec := del(alice, "/watchlist/tt0111161")
	rec.AssertStatus(t, http.StatusNoContent)

	rec = del(alice, "/watchlist/tt0111161")
	rec.AssertStatus(t, http.StatusNotFound)

	rec = del(alice, "/watchlist/tt0111161?circle="+g.ID.Hex())
	rec.AssertStatus(t, http.StatusNoContent)
}

func TestReactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	vera := fx.CreateUser(ctx, "Vera", "vera@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)
	fx.CreateMembership(ctx, vera.ID, g.ID, "VIEWER")
	entry := fx.CreateEntry(ctx, alice.ID, &g.ID, "tt0111161", "The Shawshank Redemption")

	react := func(u models.User, kind string) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(t, "POST", "/watchlist/entries/"+entry.ID.Hex()+"/reaction",
			map[string]string{"reaction": kind})
		req = testutil.WithChiURLParam(req, "entryID", entry.ID.Hex())
		req = asUser(req, u)
		rec := testutil.NewRecorder()
		h.HandleSetReaction(rec, req)
		return rec
	}

	// A viewer may react, and switching kinds replaces the old reaction.
	react(vera, "LIKE").AssertStatus(t, http.StatusOK)
	react(vera, "DISLIKE").AssertStatus(t, http.StatusOK)

	counts, err := h.Reactions.CountsForEntries(ctx, []primitive.ObjectID{entry.ID})
	if err != nil {
		t.Fatal(err)
	}
	if c := counts[entry.ID]; c.Likes != 0 || c.Dislikes != 1 {
		t.Errorf("counts = %+v", c)
	}

	react(vera, "MEH").AssertStatus(t, http.StatusBadRequest)

	// Clearing is idempotent.
	clear := func() *testutil.ResponseRecorder {
		req := testutil.NewRequest("DELETE", "/watchlist/entries/"+entry.ID.Hex()+"/reaction")
		req = testutil.WithChiURLParam(req, "entryID", entry.ID.Hex())
		req = asUser(req, vera)
		rec := testutil.NewRecorder()
		h.HandleClearReaction(rec, req)
		return rec
	}
	clear().AssertStatus(t, http.StatusNoContent)
	clear().AssertStatus(t, http.StatusNoContent)
}

func TestPersonalEntryAccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	bob := fx.CreateUser(ctx, "Bob", "bob@example.com", "USER")
	entry := fx.CreateEntry(ctx, alice.ID, nil, "tt0111161", "The Shawshank Redemption")

	req := testutil.NewJSONRequest(t, "POST", "/watchlist/entries/"+entry.ID.Hex()+"/reaction",
		map[string]string{"reaction": "LIKE"})
	req = testutil.WithChiURLParam(req, "entryID", entry.ID.Hex())
	req = asUser(req, bob)
	rec := testutil.NewRecorder()
	h.HandleSetReaction(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "belongs to someone else")
}

func TestComments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	vera := fx.CreateUser(ctx, "Vera", "vera@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)
	fx.CreateMembership(ctx, vera.ID, g.ID, "VIEWER")
	entry := fx.CreateEntry(ctx, alice.ID, &g.ID, "tt0111161", "The Shawshank Redemption")

	add := func(u models.User, body string) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(t, "POST", "/watchlist/entries/"+entry.ID.Hex()+"/comments",
			map[string]string{"body": body})
		req = testutil.WithChiURLParam(req, "entryID", entry.ID.Hex())
		req = asUser(req, u)
		rec := testutil.NewRecorder()
		h.HandleAddComment(rec, req)
		return rec
	}

	add(vera, "  ").AssertStatus(t, http.StatusBadRequest)
	add(vera, strings.Repeat("x", 501)).AssertStatus(t, http.StatusBadRequest)

	rec := add(vera, "loved this one")
	rec.AssertStatus(t, http.StatusCreated)
	var comment models.Comment
	testutil.DecodeJSONBody(t, rec.ResponseRecorder, &comment)

	add(alice, "agreed").AssertStatus(t, http.StatusCreated)

	// Listed in creation order, with author names attached.
	lreq := testutil.NewRequest("GET", "/watchlist/entries/"+entry.ID.Hex()+"/comments")
	lreq = testutil.WithChiURLParam(lreq, "entryID", entry.ID.Hex())
	lreq = asUser(lreq, alice)
	lrec := testutil.NewRecorder()
	h.HandleListComments(lrec, lreq)
	lrec.AssertStatus(t, http.StatusOK)

	var listed struct {
		Comments []struct {
			Body   string `json:"body"`
			Author string `json:"author"`
		} `json:"comments"`
	}
	testutil.DecodeJSONBody(t, lrec.ResponseRecorder, &listed)
	if len(listed.Comments) != 2 {
		t.Fatalf("comments = %d", len(listed.Comments))
	}
	if listed.Comments[0].Body != "loved this one" || listed.Comments[0].Author != "Vera" {
		t.Errorf("first comment = %+v", listed.Comments[0])
	}

	// Only the author can edit.
	edit := func(u models.User, body string) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(t, "PATCH", "/watchlist/comments/"+comment.ID.Hex(),
			map[string]string{"body": body})
		req = testutil.WithChiURLParam(req, "commentID", comment.ID.Hex())
		req = asUser(req, u)
		rec := testutil.NewRecorder()
		h.HandleEditComment(rec, req)
		return rec
	}
	edit(alice, "hijacked").AssertStatus(t, http.StatusForbidden)
	edit(vera, "loved it even more").AssertStatus(t, http.StatusOK)

	dreq := testutil.NewRequest("DELETE", "/watchlist/comments/"+comment.ID.Hex())
	dreq = testutil.WithChiURLParam(dreq, "commentID", comment.ID.Hex())
	dreq = asUser(dreq, vera)
	drec := testutil.NewRecorder()
	h.HandleDeleteComment(drec, dreq)
	drec.AssertStatus(t, http.StatusNoContent)
}

func TestCircleFeedDecoration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx := context.Background()
	h := newHandler(t, db)

	alice := fx.CreateUser(ctx, "Alice", "alice@example.com", "USER")
	bob := fx.CreateUser(ctx, "Bob", "bob@example.com", "USER")
	g := fx.CreateGroup(ctx, "Family", alice.ID)
	fx.CreateMembership(ctx, bob.ID, g.ID, "EDITOR")
	entry := fx.CreateEntry(ctx, bob.ID, &g.ID, "tt0111161", "The Shawshank Redemption")
	fx.CreateReaction(ctx, entry.ID, alice.ID, "LIKE")
	fx.CreateReaction(ctx, entry.ID, bob.ID, "LIKE")
	fx.CreateComment(ctx, entry.ID, alice.ID, "nice pick")

	req := testutil.NewRequest("GET", "/watchlist/circles/"+g.ID.Hex())
	req = testutil.WithChiURLParam(req, "circleID", g.ID.Hex())
	req = asUser(req, alice)
	rec := testutil.NewRecorder()
	h.HandleCircleFeed(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Entries []struct {
			Title        string `json:"title"`
			SharedBy     string `json:"shared_by"`
			Likes        int    `json:"likes"`
			Dislikes     int    `json:"dislikes"`
			MyReaction   string `json:"my_reaction"`
			CommentCount int    `json:"comment_count"`
		} `json:"entries"`
		HasNext bool `json:"has_next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d", len(resp.Entries))
	}
	card := resp.Entries[0]
	if card.SharedBy != "Bob" {
		t.Errorf("shared_by = %q", card.SharedBy)
	}
	if card.Likes != 2 || card.Dislikes != 0 {
		t.Errorf("likes/dislikes = %d/%d", card.Likes, card.Dislikes)
	}
	if card.MyReaction != "LIKE" {
		t.Errorf("my_reaction = %q", card.MyReaction)
	}
	if card.CommentCount != 1 {
		t.Errorf("comment_count = %d", card.CommentCount)
	}
	if resp.HasNext {
		t.Error("has_next set on a single-page feed")
	}

	// Non-members cannot read the circle feed.
	outsider := fx.CreateUser(ctx, "Mallory", "mallory@example.com", "USER")
	req = testutil.NewRequest("GET", "/watchlist/circles/"+g.ID.Hex())
	req = testutil.WithChiURLParam(req, "circleID", g.ID.Hex())
	req = asUser(req, outsider)
	rec = testutil.NewRecorder()
	h.HandleCircleFeed(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)
}
