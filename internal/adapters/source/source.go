// Package source loads the initial game state and activity feed from an
// external data source, falling back to demo data when none is available.
package source

import (
	"context"

	"github.com/okian/coinboard/internal/domain/model"
)

// GameSource fetches the initial game state.
type GameSource interface {
	FetchGameState(ctx context.Context) (model.GameState, error)
}

// ActivitySource fetches the initial activity feed, newest first.
type ActivitySource interface {
	FetchRecentActivity(ctx context.Context) ([]model.ActivityEvent, error)
}

// Source is a data source that provides both.
type Source interface {
	GameSource
	ActivitySource
}
