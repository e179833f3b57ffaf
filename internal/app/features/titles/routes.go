package titles

import (
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the catalog proxy behind sign-in.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.HandleSearch)
		pr.Get("/{imdbID}", h.HandleGet)
	})

	return r
}
