package commentstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/htmlsanitize"
	"github.com/dalemusser/watchd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxBodyLen caps a comment after trimming and markup stripping.
const MaxBodyLen = 500

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("entry_comments")}
}

var (
	// ErrEmptyBody is returned when a comment is blank after sanitizing.
	ErrEmptyBody = errors.New("comment body is required")
	// ErrBodyTooLong is returned when a comment exceeds MaxBodyLen characters.
	ErrBodyTooLong = errors.New("comment body is too long")
	// ErrNotAuthor is returned when someone other than the author edits or deletes.
	ErrNotAuthor = errors.New("only the author may modify this comment")
)

// cleanBody strips markup and trims, then enforces length limits.
// The length check counts runes so multibyte text is not penalized.
func cleanBody(body string) (string, error) {
	body = htmlsanitize.PlainText(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len([]rune(body)) > MaxBodyLen {
		return "", ErrBodyTooLong
	}
	return body, nil
}

// Create appends a comment to an entry.
func (s *Store) Create(ctx context.Context, entryID, userID primitive.ObjectID, body string) (models.Comment, error) {
	body, err := cleanBody(body)
	if err != nil {
		return models.Comment{}, err
	}
	now := time.Now().UTC()
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		EntryID:   entryID,
		UserID:    userID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// GetByID loads one comment. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update rewrites a comment's body. Only the author may edit; anyone else
// gets ErrNotAuthor, and a missing comment reads as mongo.ErrNoDocuments.
func (s *Store) Update(ctx context.Context, id, userID primitive.ObjectID, body string) (models.Comment, error) {
	body, err := cleanBody(body)
	if err != nil {
		return models.Comment{}, err
	}

	var c models.Comment
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"body": body, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Distinguish a missing comment from someone else's comment.
		if _, gerr := s.GetByID(ctx, id); gerr == nil {
			return models.Comment{}, ErrNotAuthor
		}
		return models.Comment{}, mongo.ErrNoDocuments
	}
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// Delete removes a comment. Only the author may delete.
func (s *Store) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, gerr := s.GetByID(ctx, id); gerr == nil {
			return ErrNotAuthor
		}
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListForEntry returns an entry's comments oldest first, the order a
// conversation reads in.
func (s *Store) ListForEntry(ctx context.Context, entryID primitive.ObjectID) ([]models.Comment, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"entry_id": entryID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Comment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountsForEntries returns the comment count per entry for a batch of
// entries. Entries without comments are absent from the map.
func (s *Store) CountsForEntries(ctx context.Context, entryIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	out := make(map[primitive.ObjectID]int, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"entry_id": bson.M{"$in": entryIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$entry_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}
