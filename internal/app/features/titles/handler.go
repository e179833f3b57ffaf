package titles

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/imdb"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler proxies title search and lookup to the catalog client, keeping
// the API key server-side.
type Handler struct {
	Log    *zap.Logger
	Titles *imdb.Client
}

// HandleSearch handles GET /titles?q=...&type=movie|series.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		apierr.Render(w, r, apierr.Validation("Search query must be at least two characters."))
		return
	}
	typ := r.URL.Query().Get("type")
	if typ != "" && typ != "movie" && typ != "series" {
		apierr.Render(w, r, apierr.Validation("Type must be movie or series."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	results, err := h.Titles.Search(ctx, query, typ)
	if errors.Is(err, imdb.ErrUnavailable) {
		apierr.Render(w, r, apierr.Dependency("Title lookup is unavailable right now.", err))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleGet handles GET /titles/{imdbID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	imdbID := normalize.IMDbID(chi.URLParam(r, "imdbID"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	title, err := h.Titles.GetByID(ctx, imdbID)
	if errors.Is(err, imdb.ErrUnavailable) {
		apierr.Render(w, r, apierr.Dependency("Title lookup is unavailable right now.", err))
		return
	}
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if title == nil {
		apierr.Render(w, r, apierr.NotFound("Title not found."))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, title)
}
