// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dalemusser/watchd/internal/app/store/allowlist"
	"github.com/dalemusser/watchd/internal/app/store/oauthstate"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles Google OAuth authentication. Sign-in is gated by the
// allowlist: an email gets a session only if it is allowlisted, already
// holds an account, or is a configured admin.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	StateStore *oauthstate.Store
	Users      *userstore.Store
	Allowlist  *allowliststore.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://watchd.example.com/auth/google/callback"

	// AdminEmails are promoted to ADMIN on sign-in. Lowercased at
	// construction.
	AdminEmails []string
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	stateStore *oauthstate.Store,
	users *userstore.Store,
	allowlist *allowliststore.Store,
	clientID, clientSecret, baseURL string,
	adminEmails []string,
	logger *zap.Logger,
) *Handler {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if n := normalize.Email(e); n != "" {
			normalized = append(normalized, n)
		}
	}
	return &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		StateStore:   stateStore,
		Users:        users,
		Allowlist:    allowlist,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		AdminEmails:  normalized,
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

func (h *Handler) isAdminEmail(email string) bool {
	for _, e := range h.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, state, returnURL); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("redirect_url", url),
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, fetches user info, applies the allowlist gate,           |
| upserts the account, and issues the session.                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Redeem(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to redeem OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}
	if !googleUser.EmailVerified {
		h.Log.Warn("Google account email not verified", zap.String("email", googleUser.Email))
		http.Redirect(w, r, "/login?error=email_unverified", http.StatusSeeOther)
		return
	}

	email := normalize.Email(googleUser.Email)

	allowed, err := h.authorize(ctxTimeout, email)
	if err != nil {
		h.Log.Error("allowlist check failed", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !allowed {
		h.Log.Info("sign-in refused: email not allowlisted", zap.String("email", email))
		http.Redirect(w, r, "/login?error=not_invited", http.StatusSeeOther)
		return
	}

	u, err := h.Users.UpsertOAuth(ctxTimeout, googleUser.Name, email, googleUser.Picture)
	if err != nil {
		h.Log.Error("user upsert failed", zap.Error(err), zap.String("email", email))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if h.isAdminEmail(email) && u.Role != "ADMIN" {
		if _, err := h.Users.SetRole(ctxTimeout, u.ID, "ADMIN"); err != nil {
			h.Log.Warn("admin promotion failed", zap.Error(err), zap.String("email", email))
		} else {
			u.Role = "ADMIN"
		}
	}

	h.createSessionAndRedirect(w, r, u, returnURL)
}

// authorize is the sign-in gate: configured admins and allowlisted
// emails get in; existing accounts stay signed in even if removed from
// the allowlist later.
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
	if _, err := h.Users.GetByEmail(ctx, email); err == nil {
		return true, nil
	}
	return false, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session creation                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) createSessionAndRedirect(w http.ResponseWriter, r *http.Request, u models.User, returnURL string) {
	su := &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid during login", zap.Error(err))
		} else {
			h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
			http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
			return
		}
	}

	h.Log.Info("user logged in via Google OAuth",
		zap.String("user_id", u.ID.Hex()),
		zap.String("email", u.Email))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/"), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
