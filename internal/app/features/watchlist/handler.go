package watchlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/watchd/internal/app/notify"
	"github.com/dalemusser/watchd/internal/app/policy/circlepolicy"
	"github.com/dalemusser/watchd/internal/app/store/comments"
	"github.com/dalemusser/watchd/internal/app/store/entries"
	"github.com/dalemusser/watchd/internal/app/store/groups"
	"github.com/dalemusser/watchd/internal/app/store/reactions"
	"github.com/dalemusser/watchd/internal/app/store/users"
	"github.com/dalemusser/watchd/internal/app/system/apierr"
	"github.com/dalemusser/watchd/internal/app/system/authz"
	"github.com/dalemusser/watchd/internal/app/system/htmlsanitize"
	"github.com/dalemusser/watchd/internal/app/system/imdb"
	"github.com/dalemusser/watchd/internal/app/system/inputval"
	"github.com/dalemusser/watchd/internal/app/system/limits"
	"github.com/dalemusser/watchd/internal/app/system/normalize"
	"github.com/dalemusser/watchd/internal/app/system/paging"
	"github.com/dalemusser/watchd/internal/app/system/timeouts"
	"github.com/dalemusser/watchd/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB        *mongo.Database
	Log       *zap.Logger
	Entries   *entrystore.Store
	Reactions *reactionstore.Store
	Comments  *commentstore.Store
	Groups    *groupstore.Store
	Users     *userstore.Store
	Titles    *imdb.Client
	Notifier  *notify.Notifier
}

// entryCard is a feed row: the entry plus its social decoration.
type entryCard struct {
	models.WatchEntry
	SharedBy     string `json:"shared_by,omitempty"`
	Likes        int    `json:"likes"`
	Dislikes     int    `json:"dislikes"`
	MyReaction   string `json:"my_reaction,omitempty"`
	CommentCount int    `json:"comment_count"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (name string, userID primitive.ObjectID, ok bool) {
	_, name, userID, ok = authz.UserCtx(r)
	if !ok {
		apierr.Render(w, r, apierr.Unauthenticated("Sign in required."))
	}
	return name, userID, ok
}

// entryAccess is the shared gate for reactions and comments. Circle
// entries are open to any ACTIVE member; personal entries only to the
// user who logged them.
func (h *Handler) entryAccess(ctx context.Context, e *models.WatchEntry, userID primitive.ObjectID) error {
	if e.GroupID != nil {
		member, err := circlepolicy.IsActiveMember(ctx, h.DB, *e.GroupID, userID)
		if err != nil {
			return err
		}
		if !member {
			return apierr.Forbidden("You are not a member of this circle.")
		}
		return nil
	}
	if e.UserID != userID {
		return apierr.Forbidden("This entry belongs to someone else.")
	}
	return nil
}

func (h *Handler) loadEntry(ctx context.Context, r *http.Request) (*models.WatchEntry, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "entryID"))
	if err != nil {
		return nil, apierr.NotFound("Entry not found.")
	}
	e, err := h.Entries.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apierr.NotFound("Entry not found.")
	}
	return e, err
}

// HandleFeed handles GET /watchlist: the caller's personal feed.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, hasNext, err := h.Entries.PersonalFeed(ctx, userID, paging.ParseStart(r))
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	cards, err := h.decorate(ctx, rows, userID, false)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"entries": cards, "has_next": hasNext})
}

// HandleCircleFeed handles GET /watchlist/circles/{circleID}. Any ACTIVE
// member may read the circle feed.
func (h *Handler) HandleCircleFeed(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	gid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "circleID"))
	if err != nil {
		apierr.Render(w, r, apierr.NotFound("Circle not found."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	member, err := circlepolicy.IsActiveMember(ctx, h.DB, gid, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !member {
		apierr.Render(w, r, apierr.Forbidden("You are not a member of this circle."))
		return
	}

	rows, hasNext, err := h.Entries.GroupFeed(ctx, gid, paging.ParseStart(r))
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	cards, err := h.decorate(ctx, rows, userID, true)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"entries": cards, "has_next": hasNext})
}

// decorate joins reaction counts, the caller's own reaction, comment
// counts, and (for circle feeds) sharer names onto a page of entries.
func (h *Handler) decorate(ctx context.Context, rows []models.WatchEntry, userID primitive.ObjectID, withSharers bool) ([]entryCard, error) {
	ids := make([]primitive.ObjectID, 0, len(rows))
	userIDs := make([]primitive.ObjectID, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.ID)
		userIDs = append(userIDs, e.UserID)
	}

	counts, err := h.Reactions.CountsForEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	mine, err := h.Reactions.ForUser(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	commentCounts, err := h.Comments.CountsForEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	var names map[primitive.ObjectID]string
	if withSharers {
		if names, err = h.Users.NamesByIDs(ctx, userIDs); err != nil {
			return nil, err
		}
	}

	cards := make([]entryCard, 0, len(rows))
	for _, e := range rows {
		c := entryCard{
			WatchEntry:   e,
			Likes:        counts[e.ID].Likes,
			Dislikes:     counts[e.ID].Dislikes,
			MyReaction:   mine[e.ID],
			CommentCount: commentCounts[e.ID],
		}
		if withSharers {
			c.SharedBy = names[e.UserID]
		}
		cards = append(cards, c)
	}
	return cards, nil
}

type upsertRequest struct {
	IMDbID   string  `json:"imdb_id" validate:"required,imdbid" label:"Title"`
	CircleID string  `json:"circle_id"`
	Review   *string `json:"review"`
	Liked    bool    `json:"liked"`
}

// HandleUpsert handles POST /watchlist. Re-adding a title in the same
// scope updates the existing entry in place. Sharing into a circle
// requires an EDITOR or OWNER membership and notifies opted-in members.
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	actorName, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req upsertRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if res := inputval.Validate(&req); res.HasErrors() {
		apierr.Render(w, r, apierr.Validation(res.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	var group *models.Group
	var groupID *primitive.ObjectID
	if req.CircleID != "" {
		gid, err := primitive.ObjectIDFromHex(req.CircleID)
		if err != nil {
			apierr.Render(w, r, apierr.NotFound("Circle not found."))
			return
		}
		role, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, userID)
		if err != nil {
			apierr.Render(w, r, err)
			return
		}
		if !found {
			apierr.Render(w, r, apierr.Forbidden("You are not a member of this circle."))
			return
		}
		if !role.CanMutateEntries() {
			apierr.Render(w, r, apierr.Forbidden("Viewers cannot add entries to this circle."))
			return
		}
		group, err = h.Groups.GetByID(ctx, gid)
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.Render(w, r, apierr.NotFound("Circle not found."))
			return
		}
		if err != nil {
			apierr.Render(w, r, err)
			return
		}
		groupID = &gid
	}

	// Resolve the metadata snapshot before any write. An unreachable
	// catalog aborts the whole operation.
	title, err := h.Titles.GetByID(ctx, normalize.IMDbID(req.IMDbID))
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

	entry := models.WatchEntry{
		UserID:    userID,
		GroupID:   groupID,
		IMDbID:    title.IMDbID,
		Title:     title.Title,
		Year:      title.Year,
		Type:      title.Type,
		PosterURL: title.PosterURL,
		Liked:     req.Liked,
	}
	if req.Review != nil {
		clean := htmlsanitize.PlainText(*req.Review)
		entry.Review = &clean
	}

	saved, created, err := h.Entries.Upsert(ctx, entry)
	switch {
	case errors.Is(err, entrystore.ErrAlreadyShared):
		apierr.Render(w, r, apierr.Conflict(h.sharerConflict(ctx, *groupID, title.IMDbID, userID)))
		return
	case errors.Is(err, entrystore.ErrConflict):
		apierr.Render(w, r, apierr.Conflict("Someone else is updating this entry. Try again."))
		return
	case err != nil:
		apierr.Render(w, r, err)
		return
	}

	if created && group != nil && h.Notifier != nil {
		h.Notifier.EntryShared(*group, saved, actorName)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	apierr.WriteJSON(w, status, saved)
}

// sharerConflict names the member who already holds the circle's card
// for this title.
func (h *Handler) sharerConflict(ctx context.Context, groupID primitive.ObjectID, imdbID string, exclude primitive.ObjectID) string {
	sharer, err := h.Entries.GroupSharer(ctx, groupID, imdbID, exclude)
	if err != nil || sharer == nil {
		return "Another member already shared this title to the circle. React or comment on the existing card."
	}
	names, err := h.Users.NamesByIDs(ctx, []primitive.ObjectID{sharer.UserID})
	if err != nil || names[sharer.UserID] == "" {
		return "Another member already shared this title to the circle. React or comment on the existing card."
	}
	return fmt.Sprintf("%s already shared this title to the circle. React or comment on the existing card.", names[sharer.UserID])
}

// HandleDelete handles DELETE /watchlist/{imdbID}. The optional circle
// query parameter selects the circle scope; without it the personal
// entry is deleted. Users only ever delete their own entries.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	imdbID := normalize.IMDbID(chi.URLParam(r, "imdbID"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var groupID *primitive.ObjectID
	if raw := r.URL.Query().Get("circle"); raw != "" {
		gid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			apierr.Render(w, r, apierr.NotFound("Circle not found."))
			return
		}
		role, found, err := circlepolicy.ActiveRole(ctx, h.DB, gid, userID)
		if err != nil {
			apierr.Render(w, r, err)
			return
		}
		if !found {
			apierr.Render(w, r, apierr.Forbidden("You are not a member of this circle."))
			return
		}
		if !role.CanMutateEntries() {
			apierr.Render(w, r, apierr.Forbidden("Viewers cannot remove entries from this circle."))
			return
		}
		groupID = &gid
	}

	deleted, err := h.Entries.Delete(ctx, userID, imdbID, groupID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if !deleted {
		apierr.Render(w, r, apierr.NotFound("Entry not found."))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Reaction string `json:"reaction"`
}

// HandleSetReaction handles POST /watchlist/entries/{entryID}/reaction.
func (h *Handler) HandleSetReaction(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req reactionRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}
	kind := normalize.Reaction(req.Reaction)
	if kind != "LIKE" && kind != "DISLIKE" {
		apierr.Render(w, r, apierr.Validation("Reaction must be LIKE or DISLIKE."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entry, err := h.loadEntry(ctx, r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if err := h.entryAccess(ctx, entry, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}

	reaction, err := h.Reactions.Set(ctx, entry.ID, userID, kind)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, reaction)
}

// HandleClearReaction handles DELETE /watchlist/entries/{entryID}/reaction.
// Clearing a reaction that does not exist is a no-op.
func (h *Handler) HandleClearReaction(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entry, err := h.loadEntry(ctx, r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if err := h.entryAccess(ctx, entry, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}
	if _, err := h.Reactions.Clear(ctx, entry.ID, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListComments handles GET /watchlist/entries/{entryID}/comments.
func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entry, err := h.loadEntry(ctx, r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if err := h.entryAccess(ctx, entry, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}

	list, err := h.Comments.ListForEntry(ctx, entry.ID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	authors := make([]primitive.ObjectID, 0, len(list))
	for _, c := range list {
		authors = append(authors, c.UserID)
	}
	names, err := h.Users.NamesByIDs(ctx, authors)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	type commentView struct {
		models.Comment
		Author string `json:"author"`
	}
	out := make([]commentView, 0, len(list))
	for _, c := range list {
		out = append(out, commentView{Comment: c, Author: names[c.UserID]})
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"comments": out})
}

type commentRequest struct {
	Body string `json:"body"`
}

// HandleAddComment handles POST /watchlist/entries/{entryID}/comments.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	entry, err := h.loadEntry(ctx, r)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}
	if err := h.entryAccess(ctx, entry, userID); err != nil {
		apierr.Render(w, r, err)
		return
	}

	c, err := h.Comments.Create(ctx, entry.ID, userID, req.Body)
	if err != nil {
		apierr.Render(w, r, commentErr(err))
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, c)
}

// HandleEditComment handles PATCH /watchlist/comments/{commentID}.
// Author-only; the author must still hold access to the entry's scope.
func (h *Handler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := apierr.DecodeJSON(r, &req, limits.MaxJSONBody); err != nil {
		apierr.Render(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	comment, err := h.loadComment(ctx, r, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	updated, err := h.Comments.Update(ctx, comment.ID, userID, req.Body)
	if err != nil {
		apierr.Render(w, r, commentErr(err))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, updated)
}

// HandleDeleteComment handles DELETE /watchlist/comments/{commentID}.
func (h *Handler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	comment, err := h.loadComment(ctx, r, userID)
	if err != nil {
		apierr.Render(w, r, err)
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID, userID); err != nil {
		apierr.Render(w, r, commentErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadComment resolves {commentID} and runs the entry access check for
// the caller against the comment's entry.
func (h *Handler) loadComment(ctx context.Context, r *http.Request, userID primitive.ObjectID) (*models.Comment, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "commentID"))
	if err != nil {
		return nil, apierr.NotFound("Comment not found.")
	}
	comment, err := h.Comments.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apierr.NotFound("Comment not found.")
	}
	if err != nil {
		return nil, err
	}
	entry, err := h.Entries.GetByID(ctx, comment.EntryID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apierr.NotFound("Entry not found.")
	}
	if err != nil {
		return nil, err
	}
	if err := h.entryAccess(ctx, entry, userID); err != nil {
		return nil, err
	}
	return comment, nil
}

// commentErr maps comment store sentinels onto API errors.
func commentErr(err error) error {
	switch {
	case errors.Is(err, commentstore.ErrEmptyBody):
		return apierr.Validation("Comment cannot be empty.")
	case errors.Is(err, commentstore.ErrBodyTooLong):
		return apierr.Validation(fmt.Sprintf("Comments are limited to %d characters.", commentstore.MaxBodyLen))
	case errors.Is(err, commentstore.ErrNotAuthor):
		return apierr.Forbidden("Only the author can change this comment.")
	case errors.Is(err, mongo.ErrNoDocuments):
		return apierr.NotFound("Comment not found.")
	default:
		return err
	}
}
