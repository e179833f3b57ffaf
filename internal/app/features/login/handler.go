// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/watchd/internal/app/store/allowlist"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/dalemusser/watchd/internal/app/system/inputval"
	"github.com/dalemusser/watchd/internal/app/system/limits"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/ratelimit"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler implements the dev email login: a passwordless sign-in for
// local development and smoke environments. Disabled unless DevLogin is
// set; production sign-in goes through Google OAuth.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Users      *userstore.Store
	Allowlist  *allowliststore.Store
	Limiter    *ratelimit.LoginLimiter

	DevLogin    bool
	AdminEmails []string
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

// HandleLogin handles POST /login. The allowlist gate matches the OAuth
// callback: configured admins, allowlisted emails, and existing accounts.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.DevLogin {
		apierr.Render(w, r, apierr.NotFound("Not found."))
		return
	}

	var req loginRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if res := inputval.Validate(&req); res.HasErrors() {
		apierr.Render(w, r, apierr.Validation(res.First()))
		return
	}
	email := normalize.Email(req.Email)

	if h.Limiter != nil {
		if allowed, reason := h.Limiter.Check(r, email); !allowed {
			apierr.Render(w, r, apierr.Validation(reason))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	allowed, err := h.authorize(ctx, email)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !allowed {
		apierr.Render(w, r, apierr.Forbidden("This email has not been invited."))
		return
	}

	name := email[:strings.Index(email, "@")]
	u, err := h.Users.UpsertOAuth(ctx, name, email, "")
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if h.isAdminEmail(email) && u.Role != "ADMIN" {
		if _, err := h.Users.SetRole(ctx, u.ID, "ADMIN"); err == nil {
			u.Role = "ADMIN"
		}
	}

	su := &auth.SessionUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", email))
		apierr.Render(w, r, err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}

	h.Log.Info("dev login", zap.String("user_id", u.ID.Hex()), zap.String("email", email))
	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"id":    u.ID.Hex(),
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	})
}

func (h *Handler) authorize(ctx context.Context, email string) (bool, error) {
	if h.isAdminEmail(email) {
		return true, nil
	}
	onList, err := h.Allowlist.Contains(ctx, email)
	if err != nil {
		return false, err
	}
	if onList {
		return true, nil
	}
	_, err = h.Users.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (h *Handler) isAdminEmail(email string) bool {
	for _, e := range h.AdminEmails {
		if normalize.Email(e) == email {
			return true
		}
	}
	return false
}
