package authgoogle_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/watchd/internal/app/features/authgoogle"
	"github.com/dalemusser/watchd/internal/app/store/allowlist"
	"github.com/dalemusser/watchd/internal/app/store/oauthstate"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/dalemusser/watchd/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T, db *mongo.Database, clientID string) *authgoogle.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "watchd_session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return authgoogle.NewHandler(
		sm,
		oauthstate.New(db),
		userstore.New(db),
		allowliststore.New(db),
		clientID, "secret", "https://watchd.test",
		[]string{"Admin@Example.com"},
		zap.NewNop(),
	)
}

func TestServeLoginRedirectsToGoogle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(t, db, "client-id")

	req := testutil.NewRequest("GET", "/auth/google?return=/circles")
	rec := testutil.NewRecorder()
	h.ServeLogin(rec, req)

	rec.AssertStatus(t, http.StatusTemporaryRedirect)
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Fatalf("redirect location = %q", loc)
	}

	u, err := url.Parse(loc)
	if err != nil {
		t.Fatal(err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("no state parameter in redirect")
	}

	// The state is stored server-side with the return URL.
	returnURL, valid, err := oauthstate.New(db).Redeem(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Error("state not stored")
	}
	if returnURL != "/circles" {
		t.Errorf("return URL = %q", returnURL)
	}
}

func TestServeLoginUnconfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(t, db, "")

	req := testutil.NewRequest("GET", "/auth/google")
	rec := testutil.NewRecorder()
	h.ServeLogin(rec, req)

	rec.AssertStatus(t, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "google_not_configured") {
		t.Errorf("redirect location = %q", loc)
	}
}

func TestServeCallbackRejectsBadState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(t, db, "client-id")

	for _, target := range []string{
		"/auth/google/callback",                 // missing state
		"/auth/google/callback?state=unknown",   // never issued
		"/auth/google/callback?error=denied",    // provider error
	} {
		req := testutil.NewRequest("GET", target)
		rec := testutil.NewRecorder()
		h.ServeCallback(rec, req)

		rec.AssertStatus(t, http.StatusSeeOther)
		if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/login?error=") {
			t.Errorf("%s: redirect location = %q", target, loc)
		}
	}
}

func TestServeCallbackStateSingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(t, db, "client-id")
	states := oauthstate.New(db)

	ctx := context.Background()
	if err := states.Save(ctx, "one-shot", "/"); err != nil {
		t.Fatal(err)
	}
	if _, valid, err := states.Redeem(ctx, "one-shot"); err != nil || !valid {
		t.Fatalf("first redeem: valid=%v err=%v", valid, err)
	}

	// The consumed state no longer authorizes a callback.
	req := testutil.NewRequest("GET", "/auth/google/callback?state=one-shot&code=abc")
	rec := testutil.NewRecorder()
	h.ServeCallback(rec, req)

	rec.AssertStatus(t, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "invalid_state") {
		t.Errorf("redirect location = %q", loc)
	}
}
