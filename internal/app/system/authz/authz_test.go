package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestUserCtx_ValidUser(t *testing.T) {
	id := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   id,
		Name: "Sam Marshall",
		Role: "user",
	})

	role, name, userID, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true for valid user")
	}
	if role != "USER" {
		t.Errorf("role = %q, want USER (uppercased)", role)
	}
	if name != "Sam Marshall" {
		t.Errorf("name = %q", name)
	}
	if userID.Hex() != id {
		t.Errorf("userID = %s, want %s", userID.Hex(), id)
	}
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	role, name, userID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false when no user in context")
	}
	if role != "" || name != "" {
		t.Errorf("expected empty role/name, got %q/%q", role, name)
	}
	if !userID.IsZero() {
		t.Errorf("expected NilObjectID, got %s", userID.Hex())
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   "not-an-objectid",
		Role: "USER",
	})

	_, _, _, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false for malformed user ID (fail closed)")
	}
}

func TestIsAdmin_True(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "ADMIN",
	})

	if !authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return true for admin user")
	}
}

func TestIsAdmin_False_User(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   testUserID(),
		Role: "USER",
	})

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false for regular user")
	}
}

func TestIsAdmin_False_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	if authz.IsAdmin(req) {
		t.Error("expected IsAdmin to return false when not signed in")
	}
}
