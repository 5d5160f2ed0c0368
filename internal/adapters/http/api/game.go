package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/demo"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/ranking"
)

// GameHandler serves read-only views of the latest snapshot.
type GameHandler struct {
	deps Dependencies
}

// NewGameHandler creates a new game handler.
func NewGameHandler(deps Dependencies) *GameHandler {
	return &GameHandler{deps: deps}
}

type gameResponse struct {
	model.GameState
	CoinPulses  map[string]bool         `json:"coinPulses"`
	Achievement *model.AchievementEvent `json:"achievement,omitempty"`
	Version     uint64                  `json:"version"`
	PublishedAt time.Time               `json:"publishedAt"`
}

type summaryResponse struct {
	ranking.Summary
	DailyChallenge demo.Challenge `json:"dailyChallenge"`
}

// snapshot writes a 503 and returns false when nothing has been committed yet.
func (h *GameHandler) snapshot(w http.ResponseWriter) (repository.Snapshot, bool) {
	snap, err := h.deps.Snapshot()
	if err != nil {
		if errors.Is(err, repository.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "not_ready", ErrNotReady)
			return snap, false
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return snap, false
	}
	return snap, true
}

// HandleGame handles GET /api/game requests.
func (h *GameHandler) HandleGame(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	pulses := snap.Pulses
	if pulses == nil {
		pulses = map[string]bool{}
	}
	writeJSON(w, http.StatusOK, gameResponse{
		GameState:   snap.State,
		CoinPulses:  pulses,
		Achievement: snap.Achievement,
		Version:     snap.Version,
		PublishedAt: snap.PublishedAt,
	})
}

// HandleStandings handles GET /api/standings requests.
func (h *GameHandler) HandleStandings(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	ranked := snap.Ranked
	if ranked == nil {
		ranked = []model.Chapter{}
	}
	writeJSON(w, http.StatusOK, ranked)
}

// HandleSummary handles GET /api/summary requests.
func (h *GameHandler) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:        snap.Summary,
		DailyChallenge: demo.DailyChallenge(),
	})
}

// HandleActivities handles GET /api/activities requests. Newest first.
func (h *GameHandler) HandleActivities(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	items := snap.Activities
	if items == nil {
		items = []model.ActivityEvent{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleCountdown handles GET /api/countdown requests.
func (h *GameHandler) HandleCountdown(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Countdown)
}

// HandleConnection handles GET /api/connection requests.
func (h *GameHandler) HandleConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Connection())
}
