package events

import (
	"time"

	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/ranking"
)

// OutboundType tags a message pushed to viewers.
type OutboundType string

// Viewer message types.
const (
	OutStandings            OutboundType = "STANDINGS"
	OutActivity             OutboundType = "ACTIVITY"
	OutCoinPulse            OutboundType = "COIN_PULSE"
	OutAchievement          OutboundType = "ACHIEVEMENT_UNLOCKED"
	OutAchievementDismissed OutboundType = "ACHIEVEMENT_DISMISSED"
	OutCountdown            OutboundType = "COUNTDOWN"
	OutConnection           OutboundType = "CONNECTION"
)

// Outbound is one message for the notification sink.
type Outbound struct {
	Type    OutboundType `json:"type"`
	Payload any          `json:"payload,omitempty"`
}

// Standings is the payload of a committed ranking.
type Standings struct {
	Chapters []model.Chapter `json:"chapters"`
	Summary  ranking.Summary `json:"summary"`
}

// CoinPulse marks the start or end of a chapter's coin-gain pulse.
type CoinPulse struct {
	Chapter string `json:"chapter"`
	Active  bool   `json:"active"`
}

// Connection mirrors the live feed connection record.
type Connection struct {
	Status       string    `json:"status"`
	LastSyncTime time.Time `json:"lastSyncTime"`
}

// NewStandings builds a STANDINGS message.
func NewStandings(ranked []model.Chapter) Outbound {
	return Outbound{Type: OutStandings, Payload: Standings{Chapters: ranked, Summary: ranking.Summarize(ranked)}}
}

// NewActivity builds an ACTIVITY message.
func NewActivity(a model.ActivityEvent) Outbound {
	return Outbound{Type: OutActivity, Payload: a}
}

// NewCoinPulse builds a COIN_PULSE message.
func NewCoinPulse(chapter string, active bool) Outbound {
	return Outbound{Type: OutCoinPulse, Payload: CoinPulse{Chapter: chapter, Active: active}}
}

// NewAchievement builds an ACHIEVEMENT_UNLOCKED message.
func NewAchievement(a model.AchievementEvent) Outbound {
	return Outbound{Type: OutAchievement, Payload: a}
}

// NewAchievementDismissed builds an ACHIEVEMENT_DISMISSED message.
func NewAchievementDismissed(a model.AchievementEvent) Outbound {
	return Outbound{Type: OutAchievementDismissed, Payload: a}
}

// NewCountdown builds a COUNTDOWN message.
func NewCountdown(c model.Countdown) Outbound {
	return Outbound{Type: OutCountdown, Payload: c}
}

// NewConnection builds a CONNECTION message.
func NewConnection(c Connection) Outbound {
	return Outbound{Type: OutConnection, Payload: c}
}
