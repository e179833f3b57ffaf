// Package circlepolicy holds the role model for circle membership and the
// capability predicates handlers consult before mutating anything.
//
// Authorization rules:
//   - Owners hold every capability; each circle has exactly one
//   - Editors can add titles, react, comment, and manage members
//   - Viewers can react and comment but cannot add titles or manage members
//   - Only the current owner can hand the OWNER role to someone else
package circlepolicy

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Role is a circle membership role.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// ParseRole maps a canonicalized role string to a Role. The second
// return is false for anything outside the enum.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner:
		return RoleOwner, true
	case RoleEditor:
		return RoleEditor, true
	case RoleViewer:
		return RoleViewer, true
	}
	return "", false
}

// Valid reports whether r is one of the three circle roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// CanManageMembers reports whether the role may invite, remove, and
// change the roles of other members.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleEditor
}

// CanMutateEntries reports whether the role may add or remove shared
// titles. Viewers are read-only for entries but can still react and
// comment.
func (r Role) CanMutateEntries() bool {
	return r == RoleOwner || r == RoleEditor
}

// CanGrantOwner reports whether the role may assign OWNER to someone
// else (ownership transfer).
func (r Role) CanGrantOwner() bool {
	return r == RoleOwner
}

// ActiveRole returns the caller's role in the group according to the
// authoritative group_memberships collection. found=false means no
// ACTIVE membership exists.
func ActiveRole(ctx context.Context, db *mongo.Database, groupID, userID primitive.ObjectID) (Role, bool, error) {
	var doc struct {
		Role Role `bson:"role"`
	}
	err := db.Collection("group_memberships").FindOne(ctx, bson.M{
		"group_id": groupID,
		"user_id":  userID,
		"status":   "ACTIVE",
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Role, true, nil
}

// IsActiveMember reports whether the user has any ACTIVE membership in
// the group, regardless of role.
func IsActiveMember(ctx context.Context, db *mongo.Database, groupID, userID primitive.ObjectID) (bool, error) {
	n, err := db.Collection("group_memberships").CountDocuments(ctx, bson.M{
		"group_id": groupID,
		"user_id":  userID,
		"status":   "ACTIVE",
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
