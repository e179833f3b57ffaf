package notifications

import (
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts notification preference endpoints plus the scheduler
// hook for the weekly digest.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.HandleList)
		pr.Get("/circles/{circleID}", h.HandleGet)
		pr.Post("/circles/{circleID}", h.HandleUpdate)
	})

	// Authorized by the cron secret, not a session.
	r.Post("/digest", h.HandleRunDigest)

	return r
}
