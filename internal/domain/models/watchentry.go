// internal/domain/models/watchentry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WatchEntry is a logged title, scoped either to its owner's personal
// feed (group_id absent) or to exactly one circle (group_id set).
//
// Uniqueness (enforced by indexes, see system/indexes):
//   - one entry per (user_id, imdb_id, group_id) — re-adding updates in place
//   - one entry per (group_id, imdb_id) across all users when group_id is set
type WatchEntry struct {
	ID      primitive.ObjectID  `bson:"_id" json:"id"`
	UserID  primitive.ObjectID  `bson:"user_id" json:"user_id"`
	GroupID *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`

	IMDbID    string `bson:"imdb_id" json:"imdb_id"`
	Title     string `bson:"title" json:"title"`
	Year      string `bson:"year,omitempty" json:"year,omitempty"`
	Type      string `bson:"type" json:"type"` // movie | series | episode
	PosterURL string `bson:"poster_url,omitempty" json:"poster_url,omitempty"`

	Review *string `bson:"review,omitempty" json:"review,omitempty"`
	Liked  bool    `bson:"liked" json:"liked"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Reaction is one user's like/dislike on one entry. At most one
// document per (entry_id, user_id); setting a new kind replaces the old.
type Reaction struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID  primitive.ObjectID `bson:"entry_id" json:"entry_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Reaction string             `bson:"reaction" json:"reaction"` // LIKE | DISLIKE

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Comment is an append-style note on an entry, ordered by creation time.
// Editable and deletable only by its author.
type Comment struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID primitive.ObjectID `bson:"entry_id" json:"entry_id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	Body    string             `bson:"body" json:"body"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
