package allowlistadmin

import (
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the allowlist admin endpoints, restricted to ADMIN
// accounts.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("ADMIN"))

		pr.Get("/", h.HandleList)
		pr.Post("/", h.HandleAdd)
		pr.Delete("/", h.HandleRemove)
	})

	return r
}
