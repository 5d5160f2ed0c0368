package model

import (
	"fmt"
	"time"
)

// PerformanceSnapshot holds the derived performance of a chapter.
// TotalCoins is a cache of the scoring engine's output.
type PerformanceSnapshot struct {
	TotalCoins   int     `json:"totalCoins" yaml:"totalCoins"`
	WeeklyCoins  int     `json:"weeklyCoins" yaml:"weeklyCoins"`
	DailyAverage int     `json:"dailyAverage" yaml:"dailyAverage"`
	GrowthRate   float64 `json:"growthRate" yaml:"growthRate" validate:"gte=0"`
	Efficiency   int     `json:"efficiency" yaml:"efficiency" validate:"gte=0,lte=100"`
}

// Chapter is one competing team. Name is the identity key.
// Ranks are zero until the first ranking has been committed.
type Chapter struct {
	ID           string              `json:"id" yaml:"id" validate:"required"`
	Name         string              `json:"name" yaml:"name" validate:"required"`
	Captain      string              `json:"captain" yaml:"captain"`
	Coach        string              `json:"coach" yaml:"coach"`
	Members      int                 `json:"members" yaml:"members" validate:"gt=0"`
	Color        string              `json:"color" yaml:"color"`
	Avatar       string              `json:"avatar" yaml:"avatar"`
	CurrentRank  int                 `json:"currentRank" yaml:"currentRank" validate:"omitempty,min=1"`
	PreviousRank int                 `json:"previousRank" yaml:"previousRank" validate:"omitempty,min=1"`
	Streak       int                 `json:"streak" yaml:"streak" validate:"gte=0"`
	PowerUps     []string            `json:"powerUps" yaml:"powerUps"`
	Performance  PerformanceSnapshot `json:"performance" yaml:"performance"`
	Metrics      Metrics             `json:"metrics" yaml:"metrics"`
}

// Clone returns a deep copy of c.
func (c Chapter) Clone() Chapter {
	if c.PowerUps != nil {
		c.PowerUps = append([]string(nil), c.PowerUps...)
	}
	return c
}

// Validate checks the chapter invariants that must hold from construction on.
func (c Chapter) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("chapter %q: %w: %v", c.Name, ErrInvalidChapter, err)
	}
	return nil
}

// ActivityEvent is an immutable entry in the live activity feed.
type ActivityEvent struct {
	ID          string    `json:"id" yaml:"id"`
	ChapterName string    `json:"chapter" yaml:"chapter"`
	Action      string    `json:"action" yaml:"action"`
	Icon        string    `json:"icon" yaml:"icon"`
	Color       string    `json:"color,omitempty" yaml:"color,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// AchievementEvent is an ephemeral notification about a chapter milestone.
type AchievementEvent struct {
	ChapterName string `json:"chapter"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Points      int    `json:"points"`
}
