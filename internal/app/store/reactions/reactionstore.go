package reactionstore

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

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("entry_reactions")}
}

var errBadKind = errors.New(`reaction must be "LIKE"|"DISLIKE"`)

// Set upserts the user's reaction on an entry. Setting a different kind
// replaces the previous one; setting the same kind again is a no-op.
func (s *Store) Set(ctx context.Context, entryID, userID primitive.ObjectID, kind string) (models.Reaction, error) {
	kind = normalize.Reaction(kind)
	switch kind {
	case "LIKE", "DISLIKE":
	default:
		return models.Reaction{}, errBadKind
	}

	now := time.Now().UTC()
	var r models.Reaction
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"entry_id": entryID, "user_id": userID},
		bson.M{
			"$set": bson.M{"reaction": kind, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&r)
	if err != nil {
		if wafflemongo.IsDup(err) {
			// Concurrent first reaction from the same user. The winner's
			// row exists now, so apply ours as a plain update.
			err = s.c.FindOneAndUpdate(ctx,
				bson.M{"entry_id": entryID, "user_id": userID},
				bson.M{"$set": bson.M{"reaction": kind, "updated_at": now}},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).Decode(&r)
			if err != nil {
				return models.Reaction{}, err
			}
			return r, nil
		}
		return models.Reaction{}, err
	}
	return r, nil
}

// Clear removes the user's reaction. Removing an absent reaction is fine.
func (s *Store) Clear(ctx context.Context, entryID, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"entry_id": entryID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Get returns the user's reaction on an entry, or nil when there is none.
func (s *Store) Get(ctx context.Context, entryID, userID primitive.ObjectID) (*models.Reaction, error) {
	var r models.Reaction
	err := s.c.FindOne(ctx, bson.M{"entry_id": entryID, "user_id": userID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Counts holds the reaction tallies for one entry.
type Counts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// CountsForEntries tallies likes and dislikes for a batch of entries in one
// aggregation, keyed by entry ID. Entries with no reactions are absent.
func (s *Store) CountsForEntries(ctx context.Context, entryIDs []primitive.ObjectID) (map[primitive.ObjectID]Counts, error) {
	out := make(map[primitive.ObjectID]Counts, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"entry_id": bson.M{"$in": entryIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"entry": "$entry_id", "kind": "$reaction"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID struct {
			Entry primitive.ObjectID `bson:"entry"`
			Kind  string             `bson:"kind"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		c := out[row.ID.Entry]
		switch row.ID.Kind {
		case "LIKE":
			c.Likes = row.Count
		case "DISLIKE":
			c.Dislikes = row.Count
		}
		out[row.ID.Entry] = c
	}
	return out, nil
}

// ForUser returns the user's reaction kind per entry for a batch of
// entries, keyed by entry ID. Used to mark the caller's own reactions in
// feed responses.
func (s *Store) ForUser(ctx context.Context, entryIDs []primitive.ObjectID, userID primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"entry_id": bson.M{"$in": entryIDs},
		"user_id":  userID,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.Reaction
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.EntryID] = r.Reaction
	}
	return out, nil
}

// LikeCounts tallies likes per entry, used to rank digest items.
func (s *Store) LikeCounts(ctx context.Context, entryIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	counts, err := s.CountsForEntries(ctx, entryIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int, len(counts))
	for id, c := range counts {
		out[id] = c.Likes
	}
	return out, nil
}
