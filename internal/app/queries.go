package service

import (
	"github.com/okian/coinboard/internal/adapters/livesync"
	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/metrics"
)

// Snapshot returns the latest published view of the game.
func (s *Service) Snapshot() (repository.Snapshot, error) {
	return s.store.Snapshot()
}

// Connection returns the live feed's connection record. Without a feed the
// status is CLOSED.
func (s *Service) Connection() events.Connection {
	s.mu.RLock()
	f := s.feed
	s.mu.RUnlock()
	if f == nil {
		return events.Connection{Status: livesync.StatusClosed}
	}
	return f.Connection()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"inboxSize":     s.inboxSize,
		"outboxSize":    s.outboxSize,
		"submitWorkers": s.submitWorkers,
		"version":       s.store.Version(),
	}
	if s.started {
		inboxLen := s.inbox.Len()
		stats["inboxLength"] = inboxLen
		stats["outboxPending"] = s.outbox.Pending()
		if snap, err := s.store.Snapshot(); err == nil {
			stats["chapters"] = len(snap.State.Chapters)
			stats["totalCoins"] = snap.Summary.TotalCoinsGenerated
			stats["activities"] = len(snap.Activities)
		}
		metrics.UpdateQueueSize("inbox", inboxLen)
	}
	if s.feed != nil {
		stats["connection"] = s.feed.Connection().Status
	}
	return stats
}
