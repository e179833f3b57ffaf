package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/dalemusser/watchd/internal/app/system/tokens"
	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given name, email, and account role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, "ADMIN")
}

// CreateGroup creates a test circle owned by ownerID, including the
// backing OWNER membership row.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, ownerID primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Slug:      tokens.SlugWithSuffix(tokens.Slugify(name)),
		ShareCode: tokens.NewShareCode(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, group); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	f.CreateMembership(ctx, ownerID, group.ID, "OWNER")

	return group
}

// CreateMembership creates an ACTIVE membership linking a user to a circle.
func (f *Fixtures) CreateMembership(ctx context.Context, userID, groupID primitive.ObjectID, role string) models.GroupMembership {
	f.t.Helper()

	now := time.Now().UTC()
	membership := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		Status:    "ACTIVE",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, membership); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}

	return membership
}

// CreateInvite creates a pending invite for email into groupID.
func (f *Fixtures) CreateInvite(ctx context.Context, groupID, createdBy primitive.ObjectID, email, role string, expiresAt time.Time) models.GroupInvite {
	f.t.Helper()

	invite := models.GroupInvite{
		ID:          primitive.NewObjectID(),
		GroupID:     groupID,
		Email:       email,
		Token:       tokens.NewInviteToken(),
		InviteRole:  role,
		ExpiresAt:   expiresAt,
		CreatedByID: createdBy,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := f.db.Collection("group_invites").InsertOne(ctx, invite); err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}

	return invite
}

// CreateEntry creates a watch entry for userID. Pass nil groupID for a
// personal entry.
func (f *Fixtures) CreateEntry(ctx context.Context, userID primitive.ObjectID, groupID *primitive.ObjectID, imdbID, title string) models.WatchEntry {
	f.t.Helper()

	now := time.Now().UTC()
	entry := models.WatchEntry{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		GroupID:   groupID,
		IMDbID:    imdbID,
		Title:     title,
		Year:      "2001",
		Type:      "movie",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("watch_entries").InsertOne(ctx, entry); err != nil {
		f.t.Fatalf("failed to create test entry: %v", err)
	}

	return entry
}

// CreateReaction creates a reaction ("LIKE" or "DISLIKE") on an entry.
func (f *Fixtures) CreateReaction(ctx context.Context, entryID, userID primitive.ObjectID, kind string) models.Reaction {
	f.t.Helper()

	now := time.Now().UTC()
	reaction := models.Reaction{
		ID:        primitive.NewObjectID(),
		EntryID:   entryID,
		UserID:    userID,
		Reaction:  kind,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("entry_reactions").InsertOne(ctx, reaction); err != nil {
		f.t.Fatalf("failed to create test reaction: %v", err)
	}

	return reaction
}

// CreateComment creates a comment on an entry.
func (f *Fixtures) CreateComment(ctx context.Context, entryID, userID primitive.ObjectID, body string) models.Comment {
	f.t.Helper()

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		EntryID:   entryID,
		UserID:    userID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("entry_comments").InsertOne(ctx, comment); err != nil {
		f.t.Fatalf("failed to create test comment: %v", err)
	}

	return comment
}

// CreatePreference creates a notification preference row.
func (f *Fixtures) CreatePreference(ctx context.Context, groupID, userID primitive.ObjectID, instant, weekly bool) models.NotificationPreference {
	f.t.Helper()

	now := time.Now().UTC()
	pref := models.NotificationPreference{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Instant:   instant,
		Weekly:    weekly,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("notification_preferences").InsertOne(ctx, pref); err != nil {
		f.t.Fatalf("failed to create test notification preference: %v", err)
	}

	return pref
}

// CreateAllowlistEmail adds an email to the sign-in allowlist.
func (f *Fixtures) CreateAllowlistEmail(ctx context.Context, email string, createdBy primitive.ObjectID) models.AllowlistEntry {
	f.t.Helper()

	entry := models.AllowlistEntry{
		ID:          primitive.NewObjectID(),
		Email:       email,
		CreatedByID: createdBy,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := f.db.Collection("allowlist_emails").InsertOne(ctx, entry); err != nil {
		f.t.Fatalf("failed to create test allowlist entry: %v", err)
	}

	return entry
}
