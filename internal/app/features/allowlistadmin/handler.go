package allowlistadmin

import (
	"context"
	"net/http"

	"github.com/dalemusser/watchd/internal/app/store/allowlist"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"github.com/dalemusser/watchd/internal/app/system/inputval"
	"github.com/dalemusser/watchd/internal/app/system/limits"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler manages the sign-in allowlist. Admin only; invite creation
// also seeds this list as a side effect.
type Handler struct {
	Log       *zap.Logger
	Allowlist *allowliststore.Store
}

// HandleList handles GET /admin/allowlist.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Allowlist.List(ctx)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"emails": list})
}

type addRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

// HandleAdd handles POST /admin/allowlist. Re-adding an existing email
// is a no-op, not an error.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
		return
	}

	var req addRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if res := inputval.Validate(&req); res.HasErrors() {
		apierr.Render(w, r, apierr.Validation(res.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	added, err := h.Allowlist.Upsert(ctx, req.Email, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	apierr.WriteJSON(w, status, map[string]any{"email": normalize.Email(req.Email), "added": added})
}

type removeRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

// HandleRemove handles DELETE /admin/allowlist.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if res := inputval.Validate(&req); res.HasErrors() {
		apierr.Render(w, r, apierr.Validation(res.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	removed, err := h.Allowlist.Remove(ctx, normalize.Email(req.Email))
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !removed {
		apierr.Render(w, r, apierr.NotFound("Email is not on the allowlist."))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
