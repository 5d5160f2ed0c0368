package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/coinboard/internal/app"
	"github.com/okian/coinboard/internal/domain/reconcile"
)

const maxUpdateBody = 64 << 10

// ChaptersHandler handles user edits to chapter metrics.
type ChaptersHandler struct {
	deps Dependencies
}

// NewChaptersHandler creates a new chapters handler.
func NewChaptersHandler(deps Dependencies) *ChaptersHandler {
	return &ChaptersHandler{deps: deps}
}

// updateRequest carries the raw new value. Scalars may be numbers or numeric
// strings; retention takes an object with inductions, renewals and drops.
type updateRequest struct {
	Value json.RawMessage `json:"value"`
}

// HandleUpdateMetric handles PUT /api/chapters/{chapter}/metrics/{metric}.
func (h *ChaptersHandler) HandleUpdateMetric(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_metric"
	chapter := chi.URLParam(r, "chapter")
	metric := chi.URLParam(r, "metric")

	var req updateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if len(req.Value) == 0 || string(req.Value) == "null" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing value", op, ErrBadRequest))
		return
	}

	updated, err := h.deps.UpdateMetric(r.Context(), chapter, metric, req.Value)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		writeError(w, status, code, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, reconcile.ErrUnknownChapter):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, reconcile.ErrUnknownMetric):
		return http.StatusBadRequest, "unknown_metric"
	case errors.Is(err, reconcile.ErrInvalidPatch):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBusy):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
