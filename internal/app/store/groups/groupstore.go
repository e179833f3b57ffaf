package groupstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/tokens"
	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// suffixAttempts bounds the random-suffix retries before falling back to a
// time-salted slug that cannot collide in practice.
const suffixAttempts = 5

type Store struct {
	groups      *mongo.Collection
	memberships *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		groups:      db.Collection("groups"),
		memberships: db.Collection("group_memberships"),
	}
}

var errEmptyName = errors.New("circle name is required")

// Create inserts a circle and its creator's OWNER membership. Callers that
// need the pair to be atomic run this inside a session via txn.WithTransaction.
// Slug collisions retry with a random suffix, then a time-salted fallback.
func (s *Store) Create(ctx context.Context, name string, ownerID primitive.ObjectID) (models.Group, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Group{}, errEmptyName
	}

	base := tokens.Slugify(name)
	now := time.Now().UTC()

	g := models.Group{
		Name:      name,
		NameCI:    text.Fold(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var insertErr error
	for attempt := 0; attempt <= suffixAttempts+1; attempt++ {
		switch {
		case attempt == 0:
			g.Slug = base
		case attempt <= suffixAttempts:
			g.Slug = tokens.SlugWithSuffix(base)
		default:
			g.Slug = tokens.SlugTimeFallback(base, now)
		}
		g.ID = primitive.NewObjectID()
		g.ShareCode = tokens.NewShareCode()

		if _, insertErr = s.groups.InsertOne(ctx, g); insertErr == nil {
			break
		}
		if !wafflemongo.IsDup(insertErr) {
			return models.Group{}, insertErr
		}
	}
	if insertErr != nil {
		return models.Group{}, fmt.Errorf("allocating circle slug: %w", insertErr)
	}

	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   g.ID,
		UserID:    ownerID,
		Role:      "OWNER",
		Status:    "ACTIVE",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.memberships.InsertOne(ctx, m); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// GetByID loads a circle by ObjectID. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetBySlug loads a circle by its URL slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var g models.Group
	if err := s.groups.FindOne(ctx, bson.M{"slug": slug}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByShareCode loads a circle by its public share code.
func (s *Store) GetByShareCode(ctx context.Context, code string) (*models.Group, error) {
	var g models.Group
	if err := s.groups.FindOne(ctx, bson.M{"share_code": code}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Rename updates a circle's display name. The slug is stable once issued so
// links and bookmarks keep working.
func (s *Store) Rename(ctx context.Context, id primitive.ObjectID, name string) (bool, error) {
	name = normalize.Name(name)
	if name == "" {
		return false, errEmptyName
	}
	res, err := s.groups.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"name":       name,
			"name_ci":    text.Fold(name),
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
