package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/coinboard/internal/demo"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/reconcile"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) FallbackOption {
	return func(f *Fallback) {
		if l != nil {
			f.log = l
		}
	}
}

// WithReconciler sets the reconciler used to re-derive fetched state.
func WithReconciler(r *reconcile.Reconciler) FallbackOption {
	return func(f *Fallback) {
		if r != nil {
			f.rec = r
		}
	}
}

// WithDemo replaces the demo generators.
func WithDemo(game func() model.GameState, activities func() []model.ActivityEvent) FallbackOption {
	return func(f *Fallback) {
		if game != nil {
			f.demoGame = game
		}
		if activities != nil {
			f.demoActivities = activities
		}
	}
}

// Fallback wraps a data source so that callers always get usable data. Any
// failure, including a state that does not validate, is logged and replaced
// wholesale by demo data. Fetched and demo data are never mixed.
type Fallback struct {
	games          GameSource
	activities     ActivitySource
	rec            *reconcile.Reconciler
	log            logger.Logger
	demoGame       func() model.GameState
	demoActivities func() []model.ActivityEvent
}

// WithFallback wraps the given sources. Either may be nil, in which case demo
// data is served for it.
func WithFallback(games GameSource, activities ActivitySource, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		games:      games,
		activities: activities,
		rec:        reconcile.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("source")
	}
	if f.demoGame == nil {
		f.demoGame = func() model.GameState { return demo.GameState(demo.WithReconciler(f.rec)) }
	}
	if f.demoActivities == nil {
		f.demoActivities = func() []model.ActivityEvent { return demo.Activities() }
	}
	return f
}

// FetchGameState returns the fetched state with every derived field
// recomputed, or demo data. It never returns an error.
func (f *Fallback) FetchGameState(ctx context.Context) (model.GameState, error) {
	state, err := f.fetchGame(ctx)
	if err != nil {
		f.log.Warn(ctx, "game state unavailable, using demo data", logger.Error(err))
		metrics.RecordSourceFallback("game")
		return f.demoGame(), nil
	}
	return state, nil
}

func (f *Fallback) fetchGame(ctx context.Context) (model.GameState, error) {
	if f.games == nil {
		return model.GameState{}, fmt.Errorf("%w: no game source configured", ErrDataUnavailable)
	}
	state, err := f.games.FetchGameState(ctx)
	if err != nil {
		return model.GameState{}, err
	}
	state = f.rec.Normalize(state)
	if err := state.Validate(); err != nil {
		return model.GameState{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return state, nil
}

// FetchRecentActivity returns the fetched activities, or the demo seed. It
// never returns an error.
func (f *Fallback) FetchRecentActivity(ctx context.Context) ([]model.ActivityEvent, error) {
	if f.activities == nil {
		metrics.RecordSourceFallback("activities")
		return f.demoActivities(), nil
	}
	out, err := f.activities.FetchRecentActivity(ctx)
	if err != nil {
		if !errors.Is(err, ErrDataUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		f.log.Warn(ctx, "activities unavailable, using demo data", logger.Error(err))
		metrics.RecordSourceFallback("activities")
		return f.demoActivities(), nil
	}
	return out, nil
}
