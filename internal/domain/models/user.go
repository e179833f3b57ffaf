// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a signed-in person.
//
// NOTE:
//   - Circle membership is not embedded on User.
//     Use the group_memberships collection to discover a user's circles.
//   - Email is stored lowercased; the unique index on email relies on that.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email    string             `bson:"email" json:"email"`
	ImageURL string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Role     string             `bson:"role" json:"role"` // USER | ADMIN

	// HeroDismissedAt records when the user dismissed the intro hero panel.
	HeroDismissedAt *time.Time `bson:"hero_dismissed_at,omitempty" json:"hero_dismissed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
