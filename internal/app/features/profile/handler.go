// internal/app/features/profile/handler.go
package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log   *zap.Logger
	Users *userstore.Store
}

// HandleMe handles GET /me: the signed-in user's account record.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		apierr.Render(w, r, apierr.Unauthenticated("Account no longer exists."))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, u)
}

// HandleDismissHero handles POST /me/hero-dismiss. The first dismissal
// timestamp is kept on repeat calls.
func (h *Handler) HandleDismissHero(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.DismissHero(ctx, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
