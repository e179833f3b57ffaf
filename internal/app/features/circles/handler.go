package circles

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/watchd/internal/app/notify"
	"github.com/dalemusser/watchd/internal/app/policy/circlepolicy"
	"github.com/dalemusser/watchd/internal/app/store/allowlist"
	"github.com/dalemusser/watchd/internal/app/store/groups"
	"github.com/dalemusser/watchd/internal/app/store/invites"
	"github.com/dalemusser/watchd/internal/app/store/memberships"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"github.com/dalemusser/watchd/internal/app/system/inputval"
	"github.com/dalemusser/watchd/internal/app/system/limits"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/ratelimit"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"github.com/dalemusser/watchd/internal/app/system/txn"
	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Invites     *invitestore.Store
	Allowlist   *allowliststore.Store
	Users       *userstore.Store
	Notifier    *notify.Notifier

	// InviteLimiter throttles invite creation per inviter.
	InviteLimiter *ratelimit.Limiter
}

type circleResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ShareCode string `json:"shareCode"`
	Role      string `json:"role,omitempty"`
}

// requireUser pulls the signed-in user or renders 401.
func requireUser(w http.ResponseWriter, r *http.Request) (name string, userID primitive.ObjectID, ok bool) {
	_, name, userID, ok = authz.UserCtx(r)
	if !ok {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
	}
	return name, userID, ok
}

// circleID parses the {circleID} URL parameter. A malformed id reads the
// same as a missing circle.
func circleID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "circleID"))
	if err != nil {
		return primitive.NilObjectID, apierr.NotFound("Circle not found.")
	}
	return id, nil
}

type createCircleRequest struct {
	Name string `json:"name" validate:"required,min=2,max=60" label:"Circle name"`
}

// HandleCreate handles POST /circles. The circle and the creator's OWNER
// membership are written in one transaction.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createCircleRequest
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

	var g models.Group
	err := txn.WithTransaction(ctx, h.DB.Client(), func(sc context.Context) error {
		var cerr error
		g, cerr = h.Groups.Create(sc, req.Name, userID)
		return cerr
	})
	if err != nil {
		h.Log.Error("create circle failed", zap.Error(err))
		apierr.Render(w, r, err)
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, circleResponse{
		ID:        g.ID.Hex(),
		Name:      g.Name,
		Slug:      g.Slug,
		ShareCode: g.ShareCode,
		Role:      "OWNER",
	})
}

// HandleList handles GET /circles: every circle the caller belongs to.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	summaries, err := h.Memberships.ListCirclesForUser(ctx, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	out := make([]circleResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, circleResponse{
			ID:        s.ID.Hex(),
			Name:      s.Name,
			Slug:      s.Slug,
			ShareCode: s.ShareCode,
			Role:      s.Role,
		})
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"circles": out})
}

// HandleByShareCode handles GET /circles/code/{shareCode}: resolves a circle
// from its public share code. Any signed-in user holding the code gets the
// summary; the role field is only filled for members.
func (h *Handler) HandleByShareCode(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByShareCode(ctx, chi.URLParam(r, "shareCode"))
	if errors.Is(err, mongo.ErrNoDocuments) {
		apierr.Render(w, r, apierr.NotFound("Circle not found."))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	resp := circleResponse{
		ID:        g.ID.Hex(),
		Name:      g.Name,
		Slug:      g.Slug,
		ShareCode: g.ShareCode,
	}
	if role, found, rerr := circlepolicy.ActiveRole(ctx, h.DB, g.ID, userID); rerr == nil && found {
		resp.Role = string(role)
	}
	apierr.WriteJSON(w, http.StatusOK, resp)
}

// HandleMembers handles GET /circles/{circleID}/members.
func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	role, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !found || !role.CanManageMembers() {
		apierr.Render(w, r, apierr.Forbidden("Not authorized."))
		return
	}

	members, err := h.Memberships.ListByGroup(ctx, gid)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
	Role  string `json:"role"`
}

// HandleInvite handles POST /circles/{circleID}/invites. Requires an
// ACTIVE OWNER or EDITOR membership; granting OWNER requires the current
// OWNER. The target email is seeded into the sign-in allowlist so invitees
// can authenticate. The invite email is sent best-effort off the request
// path; the token in the response is the fallback share mechanism.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	actorName, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	if h.InviteLimiter != nil && !h.InviteLimiter.Allow(userID.Hex()) {
		apierr.Render(w, r, apierr.Validation("Too many invites. Try again in a little while."))
		return
	}

	var req inviteRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if res := inputval.Validate(&req); res.HasErrors() {
		apierr.Render(w, r, apierr.Validation(res.First()))
		return
	}
	roleStr := normalize.Role(req.Role)
	if roleStr == "" {
		roleStr = string(circlepolicy.RoleViewer)
	}
	role, valid := circlepolicy.ParseRole(roleStr)
	if !valid {
		apierr.Render(w, r, apierr.Validation("Role must be OWNER, EDITOR, or VIEWER."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actorRole, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !found || !actorRole.CanManageMembers() {
		apierr.Render(w, r, apierr.Forbidden("You cannot invite members to this circle."))
		return
	}
	if role == circlepolicy.RoleOwner && !actorRole.CanGrantOwner() {
		apierr.Render(w, r, apierr.Forbidden("Only the current owner can grant ownership."))
		return
	}

	g, err := h.Groups.GetByID(ctx, gid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		apierr.Render(w, r, apierr.NotFound("Circle not found."))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	// A target already in the circle gets a conflict, not a second invite.
	email := normalize.Email(req.Email)
	if existing, err := h.Users.GetByEmail(ctx, email); err == nil {
		if _, found, merr := circlepolicy.ActiveRole(ctx, h.DB, gid, existing.ID); merr != nil {
			apierr.Render(w, r, merr)
			return
		} else if found {
			apierr.Render(w, r, apierr.Conflict("That email already belongs to the circle."))
			return
		}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		apierr.Render(w, r, err)
		return
	}

	if added, err := h.Allowlist.Upsert(ctx, email, userID); err != nil {
		apierr.Render(w, r, err)
		return
	} else if added {
		h.Log.Info("allowlisted invite target", zap.String("email", email))
	}

	inv, err := h.Invites.Create(ctx, gid, userID, email, role)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	emailSent := false
	if h.Notifier != nil {
		emailSent = h.Notifier.SendInvite(*g, inv, actorName)
	}

	apierr.WriteJSON(w, http.StatusCreated, map[string]any{
		"token":     inv.Token,
		"expiresAt": inv.ExpiresAt.Format(time.RFC3339),
		"role":      inv.InviteRole,
		"emailSent": emailSent,
	})
}

// HandlePendingInvites handles GET /circles/{circleID}/invites.
func (h *Handler) HandlePendingInvites(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actorRole, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !found || !actorRole.CanManageMembers() {
		apierr.Render(w, r, apierr.Forbidden("You cannot manage this circle's invites."))
		return
	}

	pending, err := h.Invites.ListPending(ctx, gid)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"invites": pending})
}

// HandleJoin handles POST /circles/join/{token}: accept an invite. An
// OWNER-role invite runs the ownership transfer in the same transaction as
// the membership upsert.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	token := chi.URLParam(r, "token")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Invites.GetByToken(ctx, token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		apierr.Render(w, r, apierr.NotFound("Invite not found."))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if time.Now().After(inv.ExpiresAt) {
		apierr.Render(w, r, apierr.Expired("This invite has expired."))
		return
	}

	role, valid := circlepolicy.ParseRole(inv.InviteRole)
	if !valid {
		role = circlepolicy.RoleViewer
	}

	err = txn.WithTransaction(ctx, h.DB.Client(), func(sc context.Context) error {
		if role == circlepolicy.RoleOwner {
			if terr := h.Memberships.TransferOwnership(sc, inv.GroupID, userID); terr != nil {
				return terr
			}
		} else if gerr := h.Memberships.Grant(sc, inv.GroupID, userID, role); gerr != nil {
			return gerr
		}
		return h.Invites.MarkAccepted(sc, inv.ID)
	})
	if err != nil {
		h.Log.Error("invite accept failed", zap.String("token", token), zap.Error(err))
		apierr.Render(w, r, err)
		return
	}

	g, err := h.Groups.GetByID(ctx, inv.GroupID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, circleResponse{
		ID:        g.ID.Hex(),
		Name:      g.Name,
		Slug:      g.Slug,
		ShareCode: g.ShareCode,
		Role:      string(role),
	})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// HandleChangeRole handles PATCH /circles/{circleID}/members/{userID}.
// Promotion to OWNER is the transfer protocol; demoting the current OWNER
// any other way is rejected.
func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Render(w, r, apierr.NotFound("Member not found."))
		return
	}

	var req changeRoleRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	newRole, valid := circlepolicy.ParseRole(normalize.Role(req.Role))
	if !valid {
		apierr.Render(w, r, apierr.Validation("Role must be OWNER, EDITOR, or VIEWER."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actorRole, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, actorID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !found || !actorRole.CanManageMembers() {
		apierr.Render(w, r, apierr.Forbidden("You cannot manage members of this circle."))
		return
	}

	if newRole == circlepolicy.RoleOwner {
		if !actorRole.CanGrantOwner() {
			apierr.Render(w, r, apierr.Forbidden("Only the current owner can transfer ownership."))
			return
		}
		if m, gerr := h.Memberships.Get(ctx, gid, targetID); gerr != nil || m.Status != "ACTIVE" {
			apierr.Render(w, r, apierr.NotFound("Member not found."))
			return
		}
		err = txn.WithTransaction(ctx, h.DB.Client(), func(sc context.Context) error {
			return h.Memberships.TransferOwnership(sc, gid, targetID)
		})
		if err != nil {
			h.Log.Error("ownership transfer failed", zap.Error(err))
			apierr.Render(w, r, err)
			return
		}
		apierr.WriteJSON(w, http.StatusOK, map[string]string{"role": "OWNER"})
		return
	}

	switch err := h.Memberships.ChangeRole(ctx, gid, targetID, newRole); {
	case errors.Is(err, membershipstore.ErrNotMember):
		apierr.Render(w, r, apierr.NotFound("Member not found."))
	case errors.Is(err, membershipstore.ErrTransferRequired):
		apierr.Render(w, r, apierr.TransferRequired("Transfer ownership before changing this role."))
	case err != nil:
		apierr.Render(w, r, err)
	default:
		apierr.WriteJSON(w, http.StatusOK, map[string]string{"role": string(newRole)})
	}
}

// HandleRemoveMember handles DELETE /circles/{circleID}/members/{userID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	_, actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierr.Render(w, r, apierr.NotFound("Member not found."))
		return
	}
	if targetID == actorID {
		apierr.Render(w, r, apierr.Validation("Use the leave flow to remove yourself."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actorRole, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, actorID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !found || !actorRole.CanManageMembers() {
		apierr.Render(w, r, apierr.Forbidden("You cannot manage members of this circle."))
		return
	}

	switch err := h.Memberships.Remove(ctx, gid, targetID); {
	case errors.Is(err, membershipstore.ErrNotMember):
		apierr.Render(w, r, apierr.NotFound("Member not found."))
	case errors.Is(err, membershipstore.ErrTransferRequired):
		apierr.Render(w, r, apierr.TransferRequired("Transfer ownership before removing this member."))
	case err != nil:
		apierr.Render(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleLeave handles POST /circles/{circleID}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := circleID(r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	switch err := h.Memberships.Leave(ctx, gid, userID); {
	case errors.Is(err, membershipstore.ErrNotMember):
		apierr.Render(w, r, apierr.NotFound("You are not a member of this circle."))
	case errors.Is(err, membershipstore.ErrTransferRequired):
		apierr.Render(w, r, apierr.TransferRequired("Owners need to transfer ownership before leaving."))
	case err != nil:
		apierr.Render(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
