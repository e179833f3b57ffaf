// internal/domain/models/groupinvite.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupInvite is a single-use, time-boxed credential granting a role in
// a circle. Accepted invites are kept (accepted_at set) for audit; an
// invite whose expires_at is in the past is permanently unusable.
type GroupInvite struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID     primitive.ObjectID `bson:"group_id" json:"group_id"`
	Email       string             `bson:"email" json:"email"` // lowercased target
	Token       string             `bson:"token" json:"-"`
	InviteRole  string             `bson:"invite_role" json:"invite_role"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
	AcceptedAt  *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	CreatedByID primitive.ObjectID `bson:"created_by_id" json:"created_by_id"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
