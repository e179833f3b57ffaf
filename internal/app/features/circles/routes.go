package circles

import (
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the circle management endpoints. Everything here requires
// a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/", h.HandleCreate)
		pr.Get("/", h.HandleList)
		pr.Post("/join/{token}", h.HandleJoin)
		pr.Get("/code/{shareCode}", h.HandleByShareCode)

		pr.Get("/{circleID}/members", h.HandleMembers)
		pr.Patch("/{circleID}/members/{userID}", h.HandleChangeRole)
		pr.Delete("/{circleID}/members/{userID}", h.HandleRemoveMember)
		pr.Post("/{circleID}/leave", h.HandleLeave)

		pr.Post("/{circleID}/invites", h.HandleInvite)
		pr.Get("/{circleID}/invites", h.HandlePendingInvites)
	})

	return r
}
