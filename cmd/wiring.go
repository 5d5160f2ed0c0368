package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/adapters/source"
	"github.com/okian/coinboard/internal/adapters/submit"
	app "github.com/okian/coinboard/internal/app"
	"github.com/okian/coinboard/internal/config"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

// buildSource returns the configured data source. A nil source means the
// service runs on demo data. The returned func releases its resources.
func buildSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	switch cfg.Source {
	case config.SourceHTTP:
		return source.NewHTTP(cfg.SourceURL), func() {}, nil
	case config.SourceFile:
		return source.NewFile(cfg.SeedFile), func() {}, nil
	case config.SourcePostgres:
		db, err := source.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres source: %w", err)
		}
		return source.NewPostgres(db, source.WithActivityLimit(cfg.ActivityWindow)), func() { _ = db.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// buildSubmitter combines every configured submission target. An unreachable
// Redis is logged and skipped so the board still runs.
func buildSubmitter(ctx context.Context, cfg *config.Config, log logger.Logger) (submit.Submitter, func()) {
	var (
		targets []submit.Submitter
		closers []func()
	)
	if cfg.SubmitURL != "" {
		targets = append(targets, submit.NewHTTP(cfg.SubmitURL))
	}
	if cfg.RedisAddr != "" {
		client, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn(ctx, "redis mirror disabled", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			mirror := repository.NewRedisMirror(client, repository.WithActivityLimit(cfg.ActivityWindow))
			targets = append(targets, mirror)
			closers = append(closers, func() { _ = mirror.Close() })
		}
	}
	return submit.Combine(targets...), func() {
		for _, c := range closers {
			c()
		}
	}
}

// greeting brings a new viewer up to date with the latest snapshot.
func greeting(svc *app.Service) []events.Outbound {
	out := []events.Outbound{events.NewConnection(svc.Connection())}
	snap, err := svc.Snapshot()
	if err != nil {
		return out
	}
	out = append(out, events.NewStandings(snap.Ranked), events.NewCountdown(snap.Countdown))
	if snap.Achievement != nil {
		out = append(out, events.NewAchievement(*snap.Achievement))
	}
	return out
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
