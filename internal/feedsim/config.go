// Package feedsim serves a synthetic live feed over websocket so the
// leaderboard's live sync channel can be exercised end to end.
package feedsim

import (
	"sync/atomic"
	"time"
)

// Config holds configuration for the feed simulator.
type Config struct {
	Addr          string        // Listen address
	Path          string        // Websocket path
	Interval      time.Duration // Time between frames
	MalformedRate float64       // Share of frames that are deliberately broken, 0..1
	LogFile       string        // Log file, in addition to stdout
	Verbose       bool          // Enable debug logging
}

// Stats counts frames by kind. Safe for concurrent use.
type Stats struct {
	MetricUpdates atomic.Int64
	Activities    atomic.Int64
	Achievements  atomic.Int64
	SyncStatuses  atomic.Int64
	Malformed     atomic.Int64
	StartTime     time.Time
}

func (s *Stats) record(k Kind) {
	switch k {
	case KindMetricUpdate:
		s.MetricUpdates.Add(1)
	case KindActivity:
		s.Activities.Add(1)
	case KindAchievement:
		s.Achievements.Add(1)
	case KindSyncStatus:
		s.SyncStatuses.Add(1)
	case KindMalformed:
		s.Malformed.Add(1)
	}
}

// Total is the number of frames sent.
func (s *Stats) Total() int64 {
	return s.MetricUpdates.Load() + s.Activities.Load() + s.Achievements.Load() +
		s.SyncStatuses.Load() + s.Malformed.Load()
}
