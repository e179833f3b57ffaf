package watchlist

import (
	"github.com/dalemusser/watchd/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the feed, entry, reaction, and comment endpoints.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.HandleFeed)
		pr.Post("/", h.HandleUpsert)
		pr.Delete("/{imdbID}", h.HandleDelete)

		pr.Get("/circles/{circleID}", h.HandleCircleFeed)

		pr.Post("/entries/{entryID}/reaction", h.HandleSetReaction)
		pr.Delete("/entries/{entryID}/reaction", h.HandleClearReaction)
		pr.Get("/entries/{entryID}/comments", h.HandleListComments)
		pr.Post("/entries/{entryID}/comments", h.HandleAddComment)

		pr.Patch("/comments/{commentID}", h.HandleEditComment)
		pr.Delete("/comments/{commentID}", h.HandleDeleteComment)
	})

	return r
}
