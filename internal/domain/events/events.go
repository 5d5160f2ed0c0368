// Package events defines the live feed event variants and their wire envelope.
// Frames are decoded once at the boundary; downstream code switches on the
// concrete variant type.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/okian/coinboard/internal/domain/model"
)

// Type tags an envelope on the wire.
type Type string

// Inbound event types.
const (
	TypeActivity     Type = "ACTIVITY"
	TypeMetricUpdate Type = "METRIC_UPDATE"
	TypeAchievement  Type = "ACHIEVEMENT_UNLOCKED"
	TypeSyncStatus   Type = "SYNC_STATUS"
)

// Event is one decoded feed event. The set of variants is closed.
type Event interface {
	Type() Type
	isEvent()
}

// Activity is an activity produced elsewhere, for the live feed.
type Activity struct {
	Activity model.ActivityEvent
}

// MetricUpdate carries raw metric values for one chapter. ChapterID holds
// either the chapter's name or its stable id. Values stay raw until they
// reach the reconciler.
type MetricUpdate struct {
	ChapterID string
	Metrics   map[string]json.RawMessage
}

// Achievement is a milestone notification for viewers.
type Achievement struct {
	Achievement model.AchievementEvent
}

// SyncStatus reports the feed's own view of synchronization. Status is kept
// verbatim.
type SyncStatus struct {
	Status string
}

func (Activity) Type() Type     { return TypeActivity }
func (MetricUpdate) Type() Type { return TypeMetricUpdate }
func (Achievement) Type() Type  { return TypeAchievement }
func (SyncStatus) Type() Type   { return TypeSyncStatus }

func (Activity) isEvent()     {}
func (MetricUpdate) isEvent() {}
func (Achievement) isEvent()  {}
func (SyncStatus) isEvent()   {}

// envelope is the JSON shape of every feed frame.
type envelope struct {
	Type        Type                       `json:"type"`
	Activity    *model.ActivityEvent       `json:"activity,omitempty"`
	ChapterID   string                     `json:"chapterId,omitempty"`
	Metrics     map[string]json.RawMessage `json:"metrics,omitempty"`
	Achievement *model.AchievementEvent    `json:"achievement,omitempty"`
	Status      *string                    `json:"status,omitempty"`
}

// Decode parses one frame. It returns ErrMalformedEvent for frames that are
// not a well-formed envelope of a known type and ErrUnknownType for
// well-formed envelopes of any other type.
func Decode(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Type {
	case TypeActivity:
		if env.Activity == nil {
			return nil, fmt.Errorf("%w: activity missing", ErrMalformedEvent)
		}
		return Activity{Activity: *env.Activity}, nil
	case TypeMetricUpdate:
		if env.ChapterID == "" || env.Metrics == nil {
			return nil, fmt.Errorf("%w: chapterId or metrics missing", ErrMalformedEvent)
		}
		return MetricUpdate{ChapterID: env.ChapterID, Metrics: env.Metrics}, nil
	case TypeAchievement:
		if env.Achievement == nil {
			return nil, fmt.Errorf("%w: achievement missing", ErrMalformedEvent)
		}
		return Achievement{Achievement: *env.Achievement}, nil
	case TypeSyncStatus:
		if env.Status == nil {
			return nil, fmt.Errorf("%w: status missing", ErrMalformedEvent)
		}
		return SyncStatus{Status: *env.Status}, nil
	case "":
		return nil, fmt.Errorf("%w: type missing", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Encode renders an event as a feed frame.
func Encode(e Event) ([]byte, error) {
	env := envelope{Type: e.Type()}
	switch v := e.(type) {
	case Activity:
		env.Activity = &v.Activity
	case MetricUpdate:
		env.ChapterID = v.ChapterID
		env.Metrics = v.Metrics
	case Achievement:
		env.Achievement = &v.Achievement
	case SyncStatus:
		env.Status = &v.Status
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	return b, nil
}

// NewMetricUpdate builds a MetricUpdate from plain values.
func NewMetricUpdate(chapterID string, values map[string]any) (MetricUpdate, error) {
	out := MetricUpdate{ChapterID: chapterID, Metrics: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return MetricUpdate{}, fmt.Errorf("metric %s: %w", k, err)
		}
		out.Metrics[k] = b
	}
	return out, nil
}
