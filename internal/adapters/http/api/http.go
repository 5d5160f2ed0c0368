// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Snapshot returns the latest committed view of the game.
	Snapshot() (repository.Snapshot, error)

	// Connection returns the live feed's connection record.
	Connection() events.Connection

	// UpdateMetric applies a user edit. ref is a chapter name or id.
	UpdateMetric(ctx context.Context, ref, metric string, raw any) (model.Chapter, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	gameHandler     *GameHandler
	chaptersHandler *ChaptersHandler
	exportHandler   *ExportHandler
	viewers         http.Handler
}

// NewServer creates a new API server with all handlers. viewers serves the
// websocket endpoint and may be nil.
func NewServer(deps Dependencies, statsProvider StatsProvider, viewers http.Handler) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		gameHandler:     NewGameHandler(deps),
		chaptersHandler: NewChaptersHandler(deps),
		exportHandler:   NewExportHandler(deps),
		viewers:         viewers,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/game", MetricsMiddleware(s.gameHandler.HandleGame, "game"))
		r.Get("/standings", MetricsMiddleware(s.gameHandler.HandleStandings, "standings"))
		r.Get("/summary", MetricsMiddleware(s.gameHandler.HandleSummary, "summary"))
		r.Get("/activities", MetricsMiddleware(s.gameHandler.HandleActivities, "activities"))
		r.Get("/countdown", MetricsMiddleware(s.gameHandler.HandleCountdown, "countdown"))
		r.Get("/connection", MetricsMiddleware(s.gameHandler.HandleConnection, "connection"))
		r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
		r.Put("/chapters/{chapter}/metrics/{metric}", MetricsMiddleware(s.chaptersHandler.HandleUpdateMetric, "update_metric"))
		r.Get("/export/{format}", MetricsMiddleware(s.exportHandler.HandleExport, "export"))
	})

	// The websocket upgrade needs the raw ResponseWriter, so it is not
	// wrapped by MetricsMiddleware.
	if s.viewers != nil {
		r.Handle("/ws", s.viewers)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
