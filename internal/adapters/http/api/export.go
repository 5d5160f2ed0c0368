package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/coinboard/internal/export"
)

// ExportHandler serves the committed standings as a download.
type ExportHandler struct {
	deps Dependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps Dependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExport handles GET /api/export/{format} requests.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_format", fmt.Errorf("%s: %w", op, err))
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", fmt.Errorf("%s: %w", op, ErrNotReady))
		return
	}

	// Render fully first so a failure can still produce an error response.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, snap.Ranked); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(snap.PublishedAt)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
