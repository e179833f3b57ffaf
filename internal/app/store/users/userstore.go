package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "USER"|"ADMIN"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = "USER"
	}
	switch u.Role {
	case "USER", "ADMIN":
	default:
		return models.User{}, errBadRole
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpsertOAuth records a sign-in from the identity provider. An existing user
// keyed by email gets a refreshed name and avatar; a first-time user is
// created with role USER. The resulting document is returned either way.
func (s *Store) UpsertOAuth(ctx context.Context, name, email, imageURL string) (models.User, error) {
	name = normalize.Name(name)
	email = normalize.Email(email)
	now := time.Now().UTC()

	set := bson.M{
		"name":       name,
		"name_ci":    text.Fold(name),
		"updated_at": now,
	}
	if imageURL != "" {
		set["image_url"] = imageURL
	}

	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"email":      email,
				"role":       "USER",
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			// Concurrent first sign-in created the row between our lookup
			// and insert. Load the existing document and move on.
			return s.lookupExisting(ctx, email)
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) lookupExisting(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// DismissHero records that the user closed the onboarding hero panel.
// Repeat calls keep the original dismissal time.
func (s *Store) DismissHero(ctx context.Context, userID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID, "hero_dismissed_at": nil},
		bson.M{"$set": bson.M{"hero_dismissed_at": now, "updated_at": now}},
	)
	return err
}

// NamesByIDs returns display names for a batch of users, keyed by id.
// Missing users are simply absent from the map.
func (s *Store) NamesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.User
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = u.Name
	}
	return out, nil
}

// SetRole updates a user's account role. Returns false if the user does not exist.
func (s *Store) SetRole(ctx context.Context, userID primitive.ObjectID, role string) (bool, error) {
	switch role {
	case "USER", "ADMIN":
	default:
		return false, errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
