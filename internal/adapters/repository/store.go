// Package repository holds the published game snapshots that readers see and
// the Redis mirror of local changes.
package repository

import (
	"maps"
	"sync/atomic"
	"time"

	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/ranking"
	"github.com/okian/coinboard/pkg/metrics"
)

// Snapshot is an immutable view of the game as of one event loop step.
type Snapshot struct {
	Version     uint64
	PublishedAt time.Time

	State       model.GameState
	Ranked      []model.Chapter
	Summary     ranking.Summary
	Activities  []model.ActivityEvent
	Pulses      map[string]bool
	Achievement *model.AchievementEvent
	Countdown   model.Countdown
}

// clone deep-copies everything a reader could reach.
func (s Snapshot) clone() Snapshot {
	out := s
	out.State = s.State.Clone()
	if s.Ranked != nil {
		out.Ranked = make([]model.Chapter, len(s.Ranked))
		for i, c := range s.Ranked {
			out.Ranked[i] = c.Clone()
		}
	}
	if s.Activities != nil {
		out.Activities = append([]model.ActivityEvent(nil), s.Activities...)
	}
	out.Pulses = maps.Clone(s.Pulses)
	if s.Achievement != nil {
		a := *s.Achievement
		out.Achievement = &a
	}
	return out
}

// StateStore publishes snapshots written by the single event loop and serves
// them to any number of concurrent readers. Writers never block readers.
type StateStore struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	now     func() time.Time
}

// NewStateStore creates an empty store.
func NewStateStore(opts ...Option) *StateStore {
	s := &StateStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish stores a private copy of snap as the current snapshot and returns
// its version.
func (s *StateStore) Publish(snap Snapshot) uint64 {
	next := snap.clone()
	next.Version = s.version.Add(1)
	next.PublishedAt = s.now()
	s.current.Store(&next)

	total := 0
	for _, c := range next.State.Chapters {
		total += c.Performance.TotalCoins
	}
	metrics.UpdateTotalCoins(total)
	metrics.UpdateChapterCount(len(next.State.Chapters))
	return next.Version
}

// Snapshot returns a copy of the current snapshot. The caller owns it.
func (s *StateStore) Snapshot() (Snapshot, error) {
	p := s.current.Load()
	if p == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return p.clone(), nil
}

// Version returns the version of the current snapshot, or 0 before the first publish.
func (s *StateStore) Version() uint64 {
	if p := s.current.Load(); p != nil {
		return p.Version
	}
	return 0
}
