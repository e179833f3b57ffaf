package invitestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/policy/circlepolicy"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/tokens"
	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TTL is how long an invite stays acceptable after creation.
const TTL = 7 * 24 * time.Hour

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_invites")}
}

var (
	errEmptyEmail = errors.New("invite email is required")
	errBadRole    = errors.New(`invite role must be "OWNER"|"EDITOR"|"VIEWER"`)
)

// Create issues an invite with a fresh unguessable token and the standard
// expiry window. Token collisions are vanishingly rare with UUID tokens but
// a dup key retries once anyway.
func (s *Store) Create(ctx context.Context, groupID, createdBy primitive.ObjectID, email string, role circlepolicy.Role) (models.GroupInvite, error) {
	email = normalize.Email(email)
	if email == "" {
		return models.GroupInvite{}, errEmptyEmail
	}
	if !role.Valid() {
		return models.GroupInvite{}, errBadRole
	}

	now := time.Now().UTC()
	inv := models.GroupInvite{
		GroupID:     groupID,
		Email:       email,
		InviteRole:  string(role),
		ExpiresAt:   now.Add(TTL),
		CreatedByID: createdBy,
		CreatedAt:   now,
	}

	for attempt := 0; attempt < 2; attempt++ {
		inv.ID = primitive.NewObjectID()
		inv.Token = tokens.NewInviteToken()
		_, err := s.c.InsertOne(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.GroupInvite{}, err
		}
	}
	return models.GroupInvite{}, errors.New("could not allocate a unique invite token")
}

// GetByToken loads an invite by its token. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByToken(ctx context.Context, token string) (*models.GroupInvite, error) {
	var inv models.GroupInvite
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkAccepted stamps accepted_at on first acceptance. Repeat acceptances
// keep the original timestamp, so the call is idempotent.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted_at": nil},
		bson.M{"$set": bson.M{"accepted_at": time.Now().UTC()}},
	)
	return err
}

// ListPending returns a circle's unaccepted, unexpired invites, newest first.
func (s *Store) ListPending(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupInvite, error) {
	cur, err := s.c.Find(ctx,
		bson.M{
			"group_id":    groupID,
			"accepted_at": nil,
			"expires_at":  bson.M{"$gt": time.Now().UTC()},
		},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GroupInvite
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
