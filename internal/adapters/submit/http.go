package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/coinboard/internal/domain/model"
)

const defaultTimeout = 10 * time.Second

// HTTPOption configures an HTTP submitter.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// HTTP submits to the leaderboard REST API:
// PUT {base}/game/chapters/{id}/metrics and POST {base}/game/activities.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP creates a submitter rooted at base, e.g. http://host:3001/api.
func NewHTTP(base string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubmitMetricUpdate implements Submitter.
func (h *HTTP) SubmitMetricUpdate(ctx context.Context, chapterID string, patch map[string]any) error {
	return h.send(ctx, http.MethodPut, "/game/chapters/"+url.PathEscape(chapterID)+"/metrics", patch)
}

// SubmitActivity implements Submitter.
func (h *HTTP) SubmitActivity(ctx context.Context, a model.ActivityEvent) error {
	return h.send(ctx, http.MethodPost, "/game/activities", a)
}

func (h *HTTP) send(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrSubmissionFailure, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrSubmissionFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrSubmissionFailure, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d", ErrSubmissionFailure, method, path, resp.StatusCode)
	}
	return nil
}
