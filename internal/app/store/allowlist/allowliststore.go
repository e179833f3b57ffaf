package allowliststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the sign-in allowlist. Non-admin users may only establish
// a session when their email appears here; invites seed it as a side
// effect so invited people can sign in.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("allowlist_emails")}
}

var errEmptyEmail = errors.New("email is required")

// Upsert adds an email to the allowlist. Returns true when a new row was
// created, false when the email was already present.
func (s *Store) Upsert(ctx context.Context, email string, createdBy primitive.ObjectID) (bool, error) {
	email = normalize.Email(email)
	if email == "" {
		return false, errEmptyEmail
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$setOnInsert": bson.M{
			"_id":           primitive.NewObjectID(),
			"email":         email,
			"created_by_id": createdBy,
			"created_at":    time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// Contains reports whether the email is on the allowlist.
func (s *Store) Contains(ctx context.Context, email string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes an email from the allowlist. Returns false if it was not present.
func (s *Store) Remove(ctx context.Context, email string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// List returns all allowlist rows ordered by email.
func (s *Store) List(ctx context.Context) ([]models.AllowlistEntry, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AllowlistEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
