// Package umbraco is a typed client for the CMS and membership backend.
// Every response is decoded against an explicit schema so malformed
// upstream payloads fail with a *models.DecodeError instead of leaking
// zero values into view-state.
package umbraco

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/storage"
)

type contextKey int

const cookieKey contextKey = iota

// WithCookie returns a context carrying the caller's Cookie header, which
// the client forwards so the backend sees the member's session.
func WithCookie(ctx context.Context, cookie string) context.Context {
	return context.WithValue(ctx, cookieKey, cookie)
}

// CookieFromContext returns the Cookie header stored by WithCookie.
func CookieFromContext(ctx context.Context) string {
	c, _ := ctx.Value(cookieKey).(string)
	return c
}

// ContentCache is the subset of *storage.Cache the client uses for public
// workout content.
type ContentCache interface {
	Get(ctx context.Context, key string) (storage.CacheEntry, bool, error)
	Put(ctx context.Context, key string, e storage.CacheEntry) error
}

// Client calls the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      ContentCache
}

// Options tune the underlying HTTP client.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// New creates a Client for baseURL. An empty baseURL yields a client whose
// calls fail with ErrNotConfigured.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // dev backends use self-signed certs
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SetCache enables caching of workout content reads.
func (c *Client) SetCache(cache ContentCache) {
	c.cache = cache
}

// BaseURL returns the configured backend base URL without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient exposes the underlying client for the forwarding proxy.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	u := c.baseURL + path
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie := CookieFromContext(ctx); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (c *Client) getCached(ctx context.Context, op, path string) ([]byte, error) {
	if c.cache != nil {
		if e, ok, err := c.cache.Get(ctx, path); err == nil && ok {
			return e.Body, nil
		}
	}
	data, err := c.do(ctx, op, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.Put(ctx, path, storage.CacheEntry{Body: data, ContentType: "application/json"})
	}
	return data, nil
}

// ListSchedule returns the sessions dated within [from, to] (YYYY-MM-DD).
func (c *Client) ListSchedule(ctx context.Context, from, to string) ([]models.ScheduledSession, error) {
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)

	const op = "list schedule"
	body, err := c.do(ctx, op, http.MethodGet, PathSchedule, params, nil)
	if err != nil {
		return nil, err
	}
	items, err := models.DecodeList[models.ScheduleItem](op, body)
	if err != nil {
		return nil, err
	}
	sessions := make([]models.ScheduledSession, len(items))
	for i, it := range items {
		sessions[i] = it.Session()
	}
	return sessions, nil
}

// CreateSchedule creates a session and returns the backend's canonical copy.
func (c *Client) CreateSchedule(ctx context.Context, req models.CreateScheduleRequest) (models.ScheduledSession, error) {
	const op = "create schedule"
	if err := models.Validate(op, req); err != nil {
		return models.ScheduledSession{}, err
	}
	body, err := c.do(ctx, op, http.MethodPost, PathSchedule, nil, req)
	if err != nil {
		return models.ScheduledSession{}, err
	}
	item, err := models.Decode[models.ScheduleItem](op, body)
	if err != nil {
		return models.ScheduledSession{}, err
	}
	return item.Session(), nil
}

// DeleteSchedule removes a session by key. 204 and 200 both count as success.
func (c *Client) DeleteSchedule(ctx context.Context, key string) error {
	_, err := c.do(ctx, "delete schedule", http.MethodDelete, ScheduleItemPath(key), nil, nil)
	return err
}

// ListFavorites returns the member's favorited workouts.
func (c *Client) ListFavorites(ctx context.Context) ([]models.Favorite, error) {
	const op = "list favorites"
	body, err := c.do(ctx, op, http.MethodGet, PathFavorites, nil, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeList[models.Favorite](op, body)
}

// FavoriteIDs returns only the ids of favorited workouts.
func (c *Client) FavoriteIDs(ctx context.Context) ([]string, error) {
	const op = "favorite ids"
	body, err := c.do(ctx, op, http.MethodGet, PathFavoriteIDs, nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := models.DecodeList[models.FlexID](op, body)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id != "" {
			ids = append(ids, string(id))
		}
	}
	return ids, nil
}

// AddFavorite marks a workout as favorite.
func (c *Client) AddFavorite(ctx context.Context, id string) error {
	_, err := c.do(ctx, "add favorite", http.MethodPost, FavoritePath(id), nil, nil)
	return err
}

// RemoveFavorite unmarks a workout.
func (c *Client) RemoveFavorite(ctx context.Context, id string) error {
	_, err := c.do(ctx, "remove favorite", http.MethodDelete, FavoritePath(id), nil, nil)
	return err
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (c *Client) ToggleFavorite(ctx context.Context, id string) (models.FavoriteToggle, error) {
	const op = "toggle favorite"
	body, err := c.do(ctx, op, http.MethodPost, FavoriteTogglePath(id), nil, nil)
	if err != nil {
		return models.FavoriteToggle{}, err
	}
	return models.Decode[models.FavoriteToggle](op, body)
}

// GetPersonalization returns the member's saved onboarding answers.
func (c *Client) GetPersonalization(ctx context.Context) (models.Personalization, error) {
	const op = "get personalization"
	body, err := c.do(ctx, op, http.MethodGet, PathPersonalization, nil, nil)
	if err != nil {
		return models.Personalization{}, err
	}
	return models.Decode[models.Personalization](op, body)
}

// PutPersonalization saves the member's onboarding answers.
func (c *Client) PutPersonalization(ctx context.Context, p models.Personalization) error {
	const op = "put personalization"
	if err := models.Validate(op, p); err != nil {
		return err
	}
	_, err := c.do(ctx, op, http.MethodPut, PathPersonalization, nil, p)
	return err
}

// Me returns the signed-in member, or an HTTPError (401) when signed out.
func (c *Client) Me(ctx context.Context) (models.Member, error) {
	const op = "get member"
	body, err := c.do(ctx, op, http.MethodGet, PathMembersMe, nil, nil)
	if err != nil {
		return models.Member{}, err
	}
	return models.Decode[models.Member](op, body)
}

// ListWorkouts returns the published workouts.
func (c *Client) ListWorkouts(ctx context.Context) (models.WorkoutList, error) {
	const op = "list workouts"
	body, err := c.getCached(ctx, op, WorkoutListPath())
	if err != nil {
		return models.WorkoutList{}, err
	}
	return models.Decode[models.WorkoutList](op, body)
}

// GetWorkout returns a single workout with its steps.
func (c *Client) GetWorkout(ctx context.Context, slug string) (models.WorkoutItem, error) {
	const op = "get workout"
	body, err := c.getCached(ctx, op, WorkoutItemPath(slug))
	if err != nil {
		return models.WorkoutItem{}, err
	}
	return models.Decode[models.WorkoutItem](op, body)
}
