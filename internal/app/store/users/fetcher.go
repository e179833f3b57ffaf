package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/watchd/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SessionFetcher adapts the store to the session middleware so that name,
// email, and role changes land on the next request instead of waiting for
// the cookie to be reissued. A deleted user resolves to nil, which drops
// the session.
func (s *Store) SessionFetcher() auth.UserFetcher {
	return func(ctx context.Context, userID string) (*auth.SessionUser, error) {
		id, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			return nil, nil
		}
		u, err := s.GetByID(ctx, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &auth.SessionUser{
			ID:    u.ID.Hex(),
			Name:  u.Name,
			Email: u.Email,
			Role:  u.Role,
		}, nil
	}
}
