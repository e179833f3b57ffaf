package entrystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/paging"
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
	return &Store{c: db.Collection("watch_entries")}
}

var (
	// ErrAlreadyShared is returned when another member already has an entry
	// for the same title in the same circle. Callers look up the sharer via
	// GroupSharer to name them in the message.
	ErrAlreadyShared = errors.New("title already shared to this circle by another member")
	// ErrConflict is returned when the retry-as-update after a duplicate-key
	// race still cannot land the write.
	ErrConflict = errors.New("conflicting concurrent write on this entry")
	errNoIMDbID = errors.New("imdb id is required")
)

// scopeFilter matches exactly one entry slot: this user's entry for this
// title in this scope. A nil groupID matches the personal feed.
func scopeFilter(userID primitive.ObjectID, imdbID string, groupID *primitive.ObjectID) bson.M {
	f := bson.M{"user_id": userID, "imdb_id": imdbID, "group_id": nil}
	if groupID != nil {
		f["group_id"] = *groupID
	}
	return f
}

// GroupSharer returns another member's entry for (groupID, imdbID), or nil
// when no one else has shared the title there.
func (s *Store) GroupSharer(ctx context.Context, groupID primitive.ObjectID, imdbID string, exclude primitive.ObjectID) (*models.WatchEntry, error) {
	var e models.WatchEntry
	err := s.c.FindOne(ctx, bson.M{
		"group_id": groupID,
		"imdb_id":  imdbID,
		"user_id":  bson.M{"$ne": exclude},
	}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert writes the caller's entry for a title in a scope. An existing
// entry for (user, title, scope) is updated in place; otherwise a new one
// is inserted. Access checks and title resolution happen before this call.
//
// A duplicate-key race on insert resolves itself: if the colliding row is
// another member's share the caller gets ErrAlreadyShared, and if it is the
// caller's own concurrent insert the write retries as an update exactly
// once before surfacing ErrConflict.
func (s *Store) Upsert(ctx context.Context, e models.WatchEntry) (models.WatchEntry, bool, error) {
	e.IMDbID = normalize.IMDbID(e.IMDbID)
	if e.IMDbID == "" {
		return models.WatchEntry{}, false, errNoIMDbID
	}

	if e.GroupID != nil {
		other, err := s.GroupSharer(ctx, *e.GroupID, e.IMDbID, e.UserID)
		if err != nil {
			return models.WatchEntry{}, false, err
		}
		if other != nil {
			return models.WatchEntry{}, false, ErrAlreadyShared
		}
	}

	if updated, found, err := s.updateInPlace(ctx, e); err != nil || found {
		return updated, false, err
	}

	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	e.CreatedAt = now
	e.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, e)
	if err == nil {
		return e, true, nil
	}
	if !wafflemongo.IsDup(err) {
		return models.WatchEntry{}, false, err
	}

	// Lost a race. Either another member shared the title into the circle
	// first, or our own earlier attempt landed. Re-resolve to an update.
	if e.GroupID != nil {
		other, gerr := s.GroupSharer(ctx, *e.GroupID, e.IMDbID, e.UserID)
		if gerr != nil {
			return models.WatchEntry{}, false, gerr
		}
		if other != nil {
			return models.WatchEntry{}, false, ErrAlreadyShared
		}
	}
	if updated, found, uerr := s.updateInPlace(ctx, e); uerr != nil || found {
		return updated, false, uerr
	}
	return models.WatchEntry{}, false, ErrConflict
}

func (s *Store) updateInPlace(ctx context.Context, e models.WatchEntry) (models.WatchEntry, bool, error) {
	set := bson.M{
		"title":      e.Title,
		"year":       e.Year,
		"type":       e.Type,
		"poster_url": e.PosterURL,
		"review":     e.Review,
		"liked":      e.Liked,
		"updated_at": time.Now().UTC(),
	}
	var updated models.WatchEntry
	err := s.c.FindOneAndUpdate(ctx,
		scopeFilter(e.UserID, e.IMDbID, e.GroupID),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.WatchEntry{}, false, nil
	}
	if err != nil {
		return models.WatchEntry{}, false, err
	}
	return updated, true, nil
}

// Delete removes the caller's own entry for (imdbID, scope). Returns false
// when no matching row exists. Other members' entries are never touched
// because user_id is part of the filter.
func (s *Store) Delete(ctx context.Context, userID primitive.ObjectID, imdbID string, groupID *primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, scopeFilter(userID, normalize.IMDbID(imdbID), groupID))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// GetByID loads one entry. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.WatchEntry, error) {
	var e models.WatchEntry
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// PersonalFeed returns a page of the user's personal entries, newest first.
// start is the 1-based index from paging.ParseStart; hasNext reports
// whether another page follows.
func (s *Store) PersonalFeed(ctx context.Context, userID primitive.ObjectID, start int) ([]models.WatchEntry, bool, error) {
	return s.feed(ctx, bson.M{"user_id": userID, "group_id": nil}, start)
}

// GroupFeed returns a page of a circle's entries, newest first.
func (s *Store) GroupFeed(ctx context.Context, groupID primitive.ObjectID, start int) ([]models.WatchEntry, bool, error) {
	return s.feed(ctx, bson.M{"group_id": groupID}, start)
}

func (s *Store) feed(ctx context.Context, filter bson.M, start int) ([]models.WatchEntry, bool, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(paging.Skip(start)).
		SetLimit(paging.LimitPlusOne()))
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var rows []models.WatchEntry
	if err := cur.All(ctx, &rows); err != nil {
		return nil, false, err
	}
	rows, hasNext := paging.Trim(rows)
	return rows, hasNext, nil
}

// GroupEntriesSince returns a circle's entries created after the cutoff,
// oldest first. Used by the weekly digest builder.
func (s *Store) GroupEntriesSince(ctx context.Context, groupID primitive.ObjectID, since time.Time) ([]models.WatchEntry, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"group_id": groupID, "created_at": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.WatchEntry
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
