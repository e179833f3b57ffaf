// internal/domain/models/notificationpreference.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationPreference holds a user's per-circle email settings.
// One document per (group_id, user_id); absent means instant=false,
// weekly=false.
type NotificationPreference struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	Instant bool               `bson:"instant" json:"instant"`
	Weekly  bool               `bson:"weekly" json:"weekly"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AllowlistEntry gates sign-in for non-admin users. Invite targets are
// upserted here as a side effect of inviting, so they can authenticate.
type AllowlistEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"` // lowercased
	CreatedByID primitive.ObjectID `bson:"created_by_id,omitempty" json:"created_by_id,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
