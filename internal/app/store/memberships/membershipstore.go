package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/policy/circlepolicy"
	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages circle memberships and the role transitions on them. The
// groups collection is held alongside so ownership transfer can keep
// Group.owner_id and the OWNER membership row in step.
type Store struct {
	memberships *mongo.Collection
	groups      *mongo.Collection
	users       *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		memberships: db.Collection("group_memberships"),
		groups:      db.Collection("groups"),
		users:       db.Collection("users"),
	}
}

var (
	// ErrNotMember is returned when the target user has no active membership in the circle.
	ErrNotMember = errors.New("user is not a member of this circle")
	// ErrTransferRequired is returned when an operation would strip a circle of its owner.
	ErrTransferRequired = errors.New("ownership must be transferred first")
	errBadRole          = errors.New(`role must be "OWNER"|"EDITOR"|"VIEWER"`)
)

// Get loads the membership row for (groupID, userID) regardless of status.
// Returns mongo.ErrNoDocuments if none exists.
func (s *Store) Get(ctx context.Context, groupID, userID primitive.ObjectID) (*models.GroupMembership, error) {
	var m models.GroupMembership
	err := s.memberships.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Grant upserts an ACTIVE membership with the given role, updating the role
// on an existing row. Used by invite acceptance, where a re-invited user
// picks up the newly granted role. OWNER grants must go through
// TransferOwnership instead so the single-owner invariant holds — and for
// the same reason an existing OWNER row is never moved off OWNER here: a
// member who was promoted after being invited can re-accept the stale
// invite without demoting themselves and leaving the circle ownerless.
func (s *Store) Grant(ctx context.Context, groupID, userID primitive.ObjectID, role circlepolicy.Role) error {
	if !role.Valid() {
		return errBadRole
	}
	if role == circlepolicy.RoleOwner {
		return ErrTransferRequired
	}
	now := time.Now().UTC()
	_, err := s.memberships.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID, "role": bson.M{"$ne": "OWNER"}},
		bson.M{
			"$set": bson.M{"role": string(role), "status": "ACTIVE", "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if wafflemongo.IsDup(err) {
		// The unique index rejected the upsert's insert arm: either the
		// caller already holds the OWNER row the filter skipped, or a
		// concurrent accept of the same invite won the race. Both mean
		// the membership is already in place.
		return nil
	}
	return err
}

// TransferOwnership makes newOwnerID the circle's OWNER: the previous owner
// (when a different user) is demoted to EDITOR, the new owner's membership
// is upserted with role OWNER, and Group.owner_id is updated. Callers run
// this inside txn.WithTransaction so no reader can observe zero or two
// owners.
func (s *Store) TransferOwnership(ctx context.Context, groupID, newOwnerID primitive.ObjectID) error {
	now := time.Now().UTC()

	_, err := s.memberships.UpdateMany(ctx,
		bson.M{
			"group_id": groupID,
			"role":     "OWNER",
			"status":   "ACTIVE",
			"user_id":  bson.M{"$ne": newOwnerID},
		},
		bson.M{"$set": bson.M{"role": "EDITOR", "updated_at": now}},
	)
	if err != nil {
		return err
	}

	_, err = s.memberships.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": newOwnerID},
		bson.M{
			"$set": bson.M{"role": "OWNER", "status": "ACTIVE", "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil && !wafflemongo.IsDup(err) {
		return err
	}

	_, err = s.groups.UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$set": bson.M{"owner_id": newOwnerID, "updated_at": now}},
	)
	return err
}

// ChangeRole updates an existing active member's role between EDITOR and
// VIEWER. The current OWNER cannot be moved off OWNER here, and promotion
// to OWNER goes through TransferOwnership.
func (s *Store) ChangeRole(ctx context.Context, groupID, targetID primitive.ObjectID, newRole circlepolicy.Role) error {
	if !newRole.Valid() {
		return errBadRole
	}
	if newRole == circlepolicy.RoleOwner {
		return ErrTransferRequired
	}

	m, err := s.Get(ctx, groupID, targetID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if m.Status != "ACTIVE" {
		return ErrNotMember
	}
	if m.Role == "OWNER" {
		return ErrTransferRequired
	}

	_, err = s.memberships.UpdateOne(ctx,
		bson.M{"_id": m.ID, "role": bson.M{"$ne": "OWNER"}},
		bson.M{"$set": bson.M{"role": string(newRole), "updated_at": time.Now().UTC()}},
	)
	return err
}

// Remove deletes a member's row. The current OWNER cannot be removed.
func (s *Store) Remove(ctx context.Context, groupID, targetID primitive.ObjectID) error {
	m, err := s.Get(ctx, groupID, targetID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if m.Role == "OWNER" {
		return ErrTransferRequired
	}
	res, err := s.memberships.DeleteOne(ctx, bson.M{"_id": m.ID, "role": bson.M{"$ne": "OWNER"}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotMember
	}
	return nil
}

// Leave deletes the caller's own membership. Owners must transfer first.
func (s *Store) Leave(ctx context.Context, groupID, userID primitive.ObjectID) error {
	return s.Remove(ctx, groupID, userID)
}

// Member is a membership row joined with user identity for member lists.
type Member struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"userId"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"`
	ImageURL string             `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Role     string             `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"created_at" json:"joinedAt"`
}

// ListByGroup returns the circle's active members with their user identity,
// owner first, then by join time.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]Member, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"group_id": groupID, "status": "ACTIVE"}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$project", Value: bson.M{
			"user_id":    1,
			"role":       1,
			"created_at": 1,
			"name":       "$user.name",
			"email":      "$user.email",
			"image_url":  "$user.image_url",
			"owner_sort": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$role", "OWNER"}}, 0, 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "owner_sort", Value: 1}, {Key: "created_at", Value: 1}}}},
	}
	cur, err := s.memberships.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Member
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CircleSummary is a circle joined with the caller's role in it.
type CircleSummary struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Slug      string             `bson:"slug" json:"slug"`
	ShareCode string             `bson:"share_code" json:"shareCode"`
	Role      string             `bson:"role" json:"role"`
}

// ListCirclesForUser returns every circle where the user holds an active
// membership, alphabetically by name.
func (s *Store) ListCirclesForUser(ctx context.Context, userID primitive.ObjectID) ([]CircleSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "status": "ACTIVE"}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "groups",
			"localField":   "group_id",
			"foreignField": "_id",
			"as":           "group",
		}}},
		{{Key: "$unwind", Value: "$group"}},
		{{Key: "$project", Value: bson.M{
			"_id":        "$group._id",
			"name":       "$group.name",
			"slug":       "$group.slug",
			"share_code": "$group.share_code",
			"role":       1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "name", Value: 1}}}},
	}
	cur, err := s.memberships.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []CircleSummary
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActive returns the number of active members in a circle.
func (s *Store) CountActive(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.memberships.CountDocuments(ctx, bson.M{"group_id": groupID, "status": "ACTIVE"})
}

// ActiveUserIDs returns the user IDs of every active member, optionally
// excluding one user (the actor of a notification-triggering write).
func (s *Store) ActiveUserIDs(ctx context.Context, groupID primitive.ObjectID, exclude *primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"group_id": groupID, "status": "ACTIVE"}
	if exclude != nil {
		filter["user_id"] = bson.M{"$ne": *exclude}
	}
	cur, err := s.memberships.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.GroupMembership
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}
