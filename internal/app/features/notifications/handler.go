package notifications

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dalemusser/watchd/internal/app/notify"
	"github.com/dalemusser/watchd/internal/app/policy/circlepolicy"
	"github.com/dalemusser/watchd/internal/app/store/memberships"
	"github.com/dalemusser/watchd/internal/app/store/notifyprefs"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"github.com/dalemusser/watchd/internal/app/system/limits"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	Prefs       *notifyprefstore.Store
	Memberships *membershipstore.Store
	Digest      *notify.DigestBuilder

	// CronSecret authorizes the external scheduler that triggers the
	// weekly digest run. Empty disables the endpoint.
	CronSecret string
}

type prefsResponse struct {
	Instant bool `json:"instant"`
	Weekly  bool `json:"weekly"`
}

func (h *Handler) circleMember(w http.ResponseWriter, r *http.Request) (gid, userID primitive.ObjectID, ok bool) {
	_, _, userID, signedIn := authz.UserCtx(r)
	if !signedIn {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
		return gid, userID, false
	}
	gid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "circleID"))
	if err != nil {
		apierr.Render(w, r, apierr.NotFound("Circle not found."))
		return gid, userID, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	member, err := circlepolicy.IsActiveMember(ctx, h.DB, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return gid, userID, false
	}
	if !member {
		apierr.Render(w, r, apierr.Forbidden("You are not a member of this circle."))
		return gid, userID, false
	}
	return gid, userID, true
}

type circlePrefs struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ShareCode string `json:"shareCode"`
	Instant   bool   `json:"instant"`
	Weekly    bool   `json:"weekly"`
}

// HandleList handles GET /notifications: every circle the caller belongs
// to with its preference flags, defaults off where nothing was saved.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, _, userID, signedIn := authz.UserCtx(r)
	if !signedIn {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	circles, err := h.Memberships.ListCirclesForUser(ctx, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	prefs, err := h.Prefs.ForUser(ctx, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	out := make([]circlePrefs, 0, len(circles))
	for _, c := range circles {
		p := prefs[c.ID]
		out = append(out, circlePrefs{
			ID:        c.ID.Hex(),
			Name:      c.Name,
			Slug:      c.Slug,
			ShareCode: c.ShareCode,
			Instant:   p.Instant,
			Weekly:    p.Weekly,
		})
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"circles": out})
}

// HandleGet handles GET /notifications/circles/{circleID}. Members who
// never saved preferences read both flags as off.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	gid, userID, ok := h.circleMember(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Prefs.Get(ctx, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, prefsResponse{Instant: p.Instant, Weekly: p.Weekly})
}

// HandleUpdate handles POST /notifications/circles/{circleID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	gid, userID, ok := h.circleMember(w, r)
	if !ok {
		return
	}

	var req prefsResponse
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Prefs.Upsert(ctx, gid, userID, req.Instant, req.Weekly)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, prefsResponse{Instant: p.Instant, Weekly: p.Weekly})
}

// HandleRunDigest handles POST /notifications/digest. Meant for the
// external scheduler, authorized by the shared cron secret instead of a
// session.
func (h *Handler) HandleRunDigest(w http.ResponseWriter, r *http.Request) {
	if h.CronSecret == "" || !h.cronAuthorized(r) {
		apierr.Render(w, r, apierr.Unauthenticated("Invalid scheduler credential."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	sent, err := h.Digest.Run(ctx)
	if err != nil {
		h.Log.Error("weekly digest run failed", zap.Error(err))
		apierr.Render(w, r, err)
		return
	}
	h.Log.Info("weekly digest run complete", zap.Int("sent", sent))
	apierr.WriteJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func (h *Handler) cronAuthorized(r *http.Request) bool {
	supplied := r.Header.Get("x-cron-secret")
	if supplied == "" {
		supplied = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.CronSecret)) == 1
}
