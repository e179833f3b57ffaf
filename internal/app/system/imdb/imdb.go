// internal/app/system/imdb/imdb.go
package imdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cacheTTL is how long a resolved title stays cached. Title metadata is
// effectively immutable, so a day is conservative.
const cacheTTL = 24 * time.Hour

// ErrUnavailable is returned when OMDb cannot be reached or answers with a
// server error. Callers surface it as a dependency failure.
var ErrUnavailable = errors.New("title lookup service unavailable")

// Title is one resolved title from the lookup service.
type Title struct {
	IMDbID    string `json:"imdbId"`
	Title     string `json:"title"`
	Year      string `json:"year,omitempty"`
	Type      string `json:"type"` // movie | series | episode
	PosterURL string `json:"posterUrl,omitempty"`
	Plot      string `json:"plot,omitempty"`
}

// Client looks titles up against OMDb, with a Redis read-through cache on
// by-id lookups. A nil cache disables caching without changing behavior.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *redis.Client
	log     *zap.Logger
}

func New(apiKey string, cache *redis.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://www.omdbapi.com/",
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		log:     log,
	}
}

// WithBaseURL points the client at an alternate OMDb-compatible endpoint.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type omdbItem struct {
	ImdbID string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
	Plot   string `json:"Plot"`
}

type omdbSearchResponse struct {
	Search   []omdbItem `json:"Search"`
	Response string     `json:"Response"`
	Error    string     `json:"Error"`
}

type omdbTitleResponse struct {
	omdbItem
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// normalizeType folds OMDb's occasional oddities ("game", empty) to movie.
func normalizeType(t string) string {
	switch t {
	case "movie", "series", "episode":
		return t
	}
	return "movie"
}

func (it omdbItem) toTitle() Title {
	poster := it.Poster
	if poster == "N/A" {
		poster = ""
	}
	return Title{
		IMDbID:    it.ImdbID,
		Title:     it.Title,
		Year:      it.Year,
		Type:      normalizeType(it.Type),
		PosterURL: poster,
		Plot:      it.Plot,
	}
}

// Search queries OMDb by free text. typ may be "movie", "series", or empty
// for both. An unknown query returns an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query, typ string) ([]Title, error) {
	params := url.Values{"apikey": {c.apiKey}, "s": {query}}
	if typ == "movie" || typ == "series" {
		params.Set("type", typ)
	}

	var out omdbSearchResponse
	if err := c.get(ctx, params, &out); err != nil {
		return nil, err
	}
	if out.Response == "False" {
		return []Title{}, nil
	}
	titles := make([]Title, 0, len(out.Search))
	for _, it := range out.Search {
		titles = append(titles, it.toTitle())
	}
	return titles, nil
}

// GetByID resolves one title by IMDb id. Returns nil when OMDb does not
// know the id. Results are cached; cache trouble is logged and ignored.
func (c *Client) GetByID(ctx context.Context, imdbID string) (*Title, error) {
	key := "omdb:title:" + imdbID

	if c.cache != nil {
		raw, err := c.cache.Get(ctx, key).Result()
		if err == nil {
			var t Title
			if jerr := json.Unmarshal([]byte(raw), &t); jerr == nil {
				return &t, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.log.Warn("title cache read failed", zap.String("imdb_id", imdbID), zap.Error(err))
		}
	}

	params := url.Values{"apikey": {c.apiKey}, "i": {imdbID}, "plot": {"short"}}
	var out omdbTitleResponse
	if err := c.get(ctx, params, &out); err != nil {
		return nil, err
	}
	if out.Response == "False" {
		return nil, nil
	}
	t := out.omdbItem.toTitle()

	if c.cache != nil {
		if raw, err := json.Marshal(t); err == nil {
			if err := c.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
				c.log.Warn("title cache write failed", zap.String("imdb_id", imdbID), zap.Error(err))
			}
		}
	}
	return &t, nil
}

func (c *Client) get(ctx context.Context, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("omdb request failed", zap.Error(err))
		return ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("omdb returned non-200", zap.Int("status", resp.StatusCode))
		return ErrUnavailable
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding omdb response: %w", err)
	}
	return nil
}
