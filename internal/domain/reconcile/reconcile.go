// Package reconcile applies metric updates to a game state and re-derives
// every dependent field. It is the only write path for chapter metrics.
package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/scoring"
)

const activityIcon = "💰"

// PerformanceHook refreshes externally derived performance fields after a
// metrics change. It runs after total coins have been recomputed.
type PerformanceHook func(c model.Chapter) model.Chapter

// SideEffects describes what an applied update produced.
type SideEffects struct {
	Chapter   string
	Metric    model.MetricKey
	Previous  int
	Current   int
	Delta     int
	Activity  *model.ActivityEvent // set only for strictly positive deltas
	CoinPulse bool
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source used for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides the activity id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Reconciler) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(r *Reconciler) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithPerformanceHook replaces the efficiency recomputation.
func WithPerformanceHook(h PerformanceHook) Option {
	return func(r *Reconciler) {
		if h != nil {
			r.hook = h
		}
	}
}

// Reconciler applies metric updates. It holds no game state of its own.
type Reconciler struct {
	engine *scoring.Engine
	hook   PerformanceHook
	now    func() time.Time
	newID  func() string
}

// New creates a Reconciler with the default scoring engine.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		engine: scoring.NewEngine(),
		hook: func(c model.Chapter) model.Chapter {
			c.Performance.Efficiency = scoring.Efficiency(c.Metrics)
			return c
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyMetricUpdate sets one metric of one chapter and returns the new state.
// state is never modified. Scalar values are coerced leniently; retention
// takes a whole replacement record. Ranks are left alone.
func (r *Reconciler) ApplyMetricUpdate(state model.GameState, chapterName string, key model.MetricKey, raw any) (model.GameState, SideEffects, error) {
	chapter, ok := state.Chapters[chapterName]
	if !ok {
		return state, SideEffects{}, fmt.Errorf("chapter %q: %w", chapterName, ErrUnknownChapter)
	}
	key, err := model.ParseMetricKey(string(key))
	if err != nil {
		return state, SideEffects{}, err
	}

	chapter = chapter.Clone()
	fx := SideEffects{Chapter: chapterName, Metric: key}

	if key == model.MetricRetention {
		next, err := coerceRetention(raw)
		if err != nil {
			return state, SideEffects{}, err
		}
		fx.Previous = chapter.Metrics.Retention.Score
		fx.Current = next.Score
		chapter.Metrics.Retention = next
	} else {
		value := Coerce(raw)
		prev, _ := chapter.Metrics.Progress(key)
		fx.Previous = prev.Current
		fx.Current = value
		chapter.Metrics, _ = chapter.Metrics.WithProgress(key, prev.WithCurrent(value))
	}

	chapter = r.Recompute(chapter)

	fx.Delta = fx.Current - fx.Previous
	if fx.Delta > 0 {
		fx.CoinPulse = true
		fx.Activity = &model.ActivityEvent{
			ID:          r.newID(),
			ChapterName: chapterName,
			Action:      fmt.Sprintf("updated %s (+%d)", key, fx.Delta),
			Icon:        activityIcon,
			Color:       chapter.Color,
			Timestamp:   r.now().UTC(),
		}
	}

	next := state.Clone()
	next.Chapters[chapterName] = chapter
	next.Metadata.LastUpdated = r.now().UTC()
	return next, fx, nil
}

// Recompute refreshes total coins and then runs the performance hook.
func (r *Reconciler) Recompute(c model.Chapter) model.Chapter {
	c.Performance.TotalCoins = r.engine.TotalCoins(c.Metrics, c.Members)
	return r.hook(c)
}

// Normalize re-derives every derived field of every chapter. Loaders call it
// so that cached values from a data source are never trusted.
func (r *Reconciler) Normalize(state model.GameState) model.GameState {
	next := state.Clone()
	for name, c := range next.Chapters {
		c.Metrics = c.Metrics.Normalize()
		next.Chapters[name] = r.Recompute(c)
	}
	return next
}
