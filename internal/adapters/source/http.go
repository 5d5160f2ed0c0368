package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/coinboard/internal/domain/model"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 4 << 20
)

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// HTTP reads game data from the leaderboard REST API:
// GET {base}/game/data and GET {base}/game/activities.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP creates an HTTP source rooted at base, e.g. http://host:3001/api.
func NewHTTP(base string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchGameState implements GameSource.
func (h *HTTP) FetchGameState(ctx context.Context) (model.GameState, error) {
	var state model.GameState
	if err := h.get(ctx, "/game/data", &state); err != nil {
		return model.GameState{}, err
	}
	return state, nil
}

// FetchRecentActivity implements ActivitySource.
func (h *HTTP) FetchRecentActivity(ctx context.Context) ([]model.ActivityEvent, error) {
	var out []model.ActivityEvent
	if err := h.get(ctx, "/game/activities", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTP) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrDataUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: GET %s: status %d", ErrDataUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrDataUnavailable, path, err)
	}
	return nil
}
