package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/coinboard/internal/adapters/http/api"
	"github.com/okian/coinboard/internal/adapters/http/ws"
	"github.com/okian/coinboard/internal/adapters/livesync"
	app "github.com/okian/coinboard/internal/app"
	"github.com/okian/coinboard/internal/config"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithService("coinboard")); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	src, closeSource, err := buildSource(ctx, cfg)
	if err != nil {
		log.Warn(ctx, "data source unavailable; using demo data", logger.String("source", cfg.Source), logger.Error(err))
		src, closeSource = nil, func() {}
	}
	defer closeSource()

	submitter, closeSubmitter := buildSubmitter(ctx, cfg, log)
	defer closeSubmitter()

	// Viewers joining late get the current picture first. The greeting only
	// runs once the HTTP server accepts connections, after svc is set.
	var svc *app.Service
	hub := ws.NewHub(
		ws.WithLogger(log.Named("viewers")),
		ws.WithGreeting(func() []events.Outbound { return greeting(svc) }),
	)
	defer hub.Close()

	svc = app.New(
		app.WithLogger(log),
		app.WithSource(src),
		app.WithSubmitter(submitter),
		app.WithSink(hub),
		app.WithInboxSize(cfg.InboxSize),
		app.WithOutbox(cfg.OutboxSize, cfg.SubmitWorkers),
		app.WithActivityWindow(cfg.ActivityWindow),
		app.WithTimings(cfg.CoinPulse(), cfg.AchievementDismiss(), cfg.CountdownTick()),
	)

	if cfg.FeedURL != "" {
		feed := livesync.New(cfg.FeedURL, svc.HandleFeedEvent,
			livesync.WithReconnectDelay(cfg.ReconnectDelay()),
			livesync.WithStatusObserver(svc.HandleConnection),
			livesync.WithLogger(log.Named("livesync")),
		)
		svc.AttachFeed(feed)
	}

	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, systemMetricsInterval)

	apiServer := api.NewServer(svc, svc, hub)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(ctx, apiServer),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
