package notifyprefstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	prefs *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{prefs: db.Collection("notification_preferences")}
}

// Upsert writes a member's notification switches for one circle.
func (s *Store) Upsert(ctx context.Context, groupID, userID primitive.ObjectID, instant, weekly bool) (models.NotificationPreference, error) {
	now := time.Now().UTC()
	var p models.NotificationPreference
	err := s.prefs.FindOneAndUpdate(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{
			"$set": bson.M{"instant": instant, "weekly": weekly, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		if wafflemongo.IsDup(err) {
			// Concurrent first save from the same member. Retry as a
			// plain update against the row that won.
			err = s.prefs.FindOneAndUpdate(ctx,
				bson.M{"group_id": groupID, "user_id": userID},
				bson.M{"$set": bson.M{"instant": instant, "weekly": weekly, "updated_at": now}},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).Decode(&p)
			if err != nil {
				return models.NotificationPreference{}, err
			}
			return p, nil
		}
		return models.NotificationPreference{}, err
	}
	return p, nil
}

// Get returns a member's preference row for a circle. A member who never
// saved preferences gets the defaults: both switches off.
func (s *Store) Get(ctx context.Context, groupID, userID primitive.ObjectID) (models.NotificationPreference, error) {
	var p models.NotificationPreference
	err := s.prefs.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NotificationPreference{GroupID: groupID, UserID: userID}, nil
	}
	if err != nil {
		return models.NotificationPreference{}, err
	}
	return p, nil
}

// ForUser returns all of a user's saved preference rows keyed by circle.
// Circles with no row take the defaults.
func (s *Store) ForUser(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]models.NotificationPreference, error) {
	cur, err := s.prefs.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.NotificationPreference
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.NotificationPreference, len(rows))
	for _, p := range rows {
		out[p.GroupID] = p
	}
	return out, nil
}

// Recipient pairs a user with the email to notify.
type Recipient struct {
	UserID primitive.ObjectID `bson:"user_id"`
	Email  string             `bson:"email"`
	Name   string             `bson:"name"`
}

// InstantRecipients returns members of a circle who opted into instant
// notifications, with their email, excluding the actor of the write that
// triggered the notification.
func (s *Store) InstantRecipients(ctx context.Context, groupID, exclude primitive.ObjectID) ([]Recipient, error) {
	return s.recipients(ctx, bson.M{
		"group_id": groupID,
		"instant":  true,
		"user_id":  bson.M{"$ne": exclude},
	})
}

// WeeklyOptIn holds one weekly-digest subscription: a recipient and the
// circle they want digested.
type WeeklyOptIn struct {
	GroupID primitive.ObjectID `bson:"group_id"`
	UserID  primitive.ObjectID `bson:"user_id"`
	Email   string             `bson:"email"`
	Name    string             `bson:"name"`
}

// WeeklySubscriptions returns every (user, circle) pair opted into the
// weekly digest across all circles, with recipient emails resolved.
func (s *Store) WeeklySubscriptions(ctx context.Context) ([]WeeklyOptIn, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"weekly": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$project", Value: bson.M{
			"group_id": 1,
			"user_id":  1,
			"email":    "$user.email",
			"name":     "$user.name",
		}}},
	}
	cur, err := s.prefs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []WeeklyOptIn
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) recipients(ctx context.Context, match bson.M) ([]Recipient, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$project", Value: bson.M{
			"user_id": 1,
			"email":   "$user.email",
			"name":    "$user.name",
		}}},
	}
	cur, err := s.prefs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Recipient
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
