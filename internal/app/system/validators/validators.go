// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Core collections this app uses
	ensure("users", usersSchema())
	ensure("groups", groupsSchema())
	ensure("watch_entries", watchEntriesSchema())

	// Membership and invitation collections
	ensure("group_memberships", groupMembershipsSchema())
	ensure("group_invites", groupInvitesSchema())

	// Social and notification collections
	ensure("entry_reactions", entryReactionsSchema())
	ensure("entry_comments", entryCommentsSchema())
	ensure("notification_preferences", notificationPreferencesSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("allowlist_emails", nil)
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "role"},
			"properties": bson.M{
				"name":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci": bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"email":   bson.M{"bsonType": "string", "minLength": 3},
				"image_url": bson.M{"bsonType": bson.A{"string", "null"}},
				"role":      bson.M{"enum": bson.A{"USER", "ADMIN"}},
				"hero_dismissed_at": bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "slug", "share_code", "owner_id"},
			"properties": bson.M{
				"name":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"slug":       bson.M{"bsonType": "string", "minLength": 1},
				"share_code": bson.M{"bsonType": "string", "minLength": 1},
				"owner_id":   bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func groupMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "group_id", "role", "status"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"group_id":   bson.M{"bsonType": "objectId"},
				"role":       bson.M{"enum": bson.A{"OWNER", "EDITOR", "VIEWER"}},
				"status":     bson.M{"enum": bson.A{"ACTIVE"}},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func groupInvitesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "email", "token", "invite_role", "expires_at"},
			"properties": bson.M{
				"group_id":    bson.M{"bsonType": "objectId"},
				"email":       bson.M{"bsonType": "string", "minLength": 3},
				"token":       bson.M{"bsonType": "string", "minLength": 1},
				"invite_role": bson.M{"enum": bson.A{"OWNER", "EDITOR", "VIEWER"}},
				"expires_at":  bson.M{"bsonType": "date"},
				"accepted_at": bson.M{"bsonType": bson.A{"date", "null"}},
				"created_by_id": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func watchEntriesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "imdb_id", "title"},
			"properties": bson.M{
				"user_id":  bson.M{"bsonType": "objectId"},
				"group_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"imdb_id":  bson.M{"bsonType": "string", "minLength": 2},
				"title":    bson.M{"bsonType": "string", "minLength": 1},
				"year":     bson.M{"bsonType": "string"},
				"type":     bson.M{"enum": bson.A{"movie", "series"}},
				"poster_url": bson.M{"bsonType": "string"},
				"review":     bson.M{"bsonType": bson.A{"string", "null"}},
				"liked":      bson.M{"bsonType": "bool"},
			},
		},
	}
}

func entryReactionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"entry_id", "user_id", "reaction"},
			"properties": bson.M{
				"entry_id": bson.M{"bsonType": "objectId"},
				"user_id":  bson.M{"bsonType": "objectId"},
				"reaction": bson.M{"enum": bson.A{"LIKE", "DISLIKE"}},
			},
		},
	}
}

func entryCommentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"entry_id", "user_id", "body"},
			"properties": bson.M{
				"entry_id": bson.M{"bsonType": "objectId"},
				"user_id":  bson.M{"bsonType": "objectId"},
				"body":     bson.M{"bsonType": "string", "minLength": 1, "maxLength": 500},
			},
		},
	}
}

func notificationPreferencesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "user_id", "instant", "weekly"},
			"properties": bson.M{
				"group_id": bson.M{"bsonType": "objectId"},
				"user_id":  bson.M{"bsonType": "objectId"},
				"instant":  bson.M{"bsonType": "bool"},
				"weekly":   bson.M{"bsonType": "bool"},
			},
		},
	}
}
