package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New() //nolint:gochecknoglobals // validator caches struct metadata

// DateLayout is the calendar date layout used by game metadata.
const DateLayout = "2006-01-02"

// Metadata describes the competition itself.
type Metadata struct {
	GameName    string    `json:"gameName" yaml:"gameName" validate:"required"`
	StartDate   string    `json:"startDate" yaml:"startDate"`
	EndDate     string    `json:"endDate" yaml:"endDate"`
	CurrentWeek int       `json:"currentWeek" yaml:"currentWeek" validate:"min=1"`
	TotalWeeks  int       `json:"totalWeeks" yaml:"totalWeeks" validate:"gt=0"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

// End parses EndDate as either a calendar date or an RFC 3339 timestamp.
// A calendar date ends at midnight UTC.
func (m Metadata) End() (time.Time, error) {
	if t, err := time.Parse(DateLayout, m.EndDate); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("end date %q: %w", m.EndDate, err)
	}
	return t, nil
}

// GameState is the whole competition: metadata plus chapters keyed by name.
type GameState struct {
	Metadata Metadata           `json:"metadata" yaml:"metadata"`
	Chapters map[string]Chapter `json:"chapters" yaml:"chapters"`
}

// Clone returns a deep copy of s. The copy shares nothing mutable with s.
func (s GameState) Clone() GameState {
	out := GameState{Metadata: s.Metadata}
	if s.Chapters != nil {
		out.Chapters = make(map[string]Chapter, len(s.Chapters))
		for k, c := range s.Chapters {
			out.Chapters[k] = c.Clone()
		}
	}
	return out
}

// Resolve finds a chapter by name, falling back to its stable id.
func (s GameState) Resolve(ref string) (Chapter, bool) {
	if c, ok := s.Chapters[ref]; ok {
		return c, true
	}
	for _, c := range s.Chapters {
		if c.ID == ref {
			return c, true
		}
	}
	return Chapter{}, false
}

// Validate checks metadata and every chapter, and that each chapter is
// stored under its own name.
func (s GameState) Validate() error {
	if err := validate.Struct(s.Metadata); err != nil {
		return fmt.Errorf("metadata: %w: %v", ErrInvalidState, err)
	}
	if len(s.Chapters) == 0 {
		return fmt.Errorf("no chapters: %w", ErrInvalidState)
	}
	for key, c := range s.Chapters {
		if key != c.Name {
			return fmt.Errorf("chapter %q stored under %q: %w", c.Name, key, ErrInvalidState)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
	}
	return nil
}
