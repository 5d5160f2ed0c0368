package feedsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/coinboard/internal/adapters/http/ws"
	"github.com/okian/coinboard/pkg/logger"
)

// Defaults for the simulator.
const (
	DefaultAddr          = ":9090"
	DefaultPath          = "/feed"
	DefaultInterval      = 2 * time.Second
	DefaultMalformedRate = 0.05

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Simulator broadcasts generated frames to every connected feed client.
type Simulator struct {
	cfg   Config
	gen   *Generator
	hub   *ws.Hub
	stats *Stats
	log   logger.Logger
}

// New creates a simulator. Zero config fields take the defaults.
func New(cfg Config, opts ...GeneratorOption) *Simulator {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	log := logger.Get().Named("feedsim")
	return &Simulator{
		cfg:   cfg,
		gen:   NewGenerator(cfg.MalformedRate, opts...),
		hub:   ws.NewHub(ws.WithLogger(log)),
		stats: &Stats{StartTime: time.Now()},
		log:   log,
	}
}

// Handler returns the HTTP handler serving the feed.
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(s.cfg.Path, s.hub)
	return r
}

// Stats returns the live frame counters.
func (s *Simulator) Stats() *Stats {
	return s.stats
}

// Clients returns the number of connected feed clients.
func (s *Simulator) Clients() int {
	return s.hub.Count()
}

// Tick generates one frame and broadcasts it.
func (s *Simulator) Tick(ctx context.Context) error {
	f, err := s.gen.Next()
	if err != nil {
		return err
	}
	s.hub.Broadcast(ctx, f.Data)
	s.stats.record(f.Kind)
	s.log.Debug(ctx, "frame sent", logger.String("kind", string(f.Kind)), logger.Int("clients", s.hub.Count()))
	return nil
}

// Broadcast runs Tick on every interval until ctx is done.
func (s *Simulator) Broadcast(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Warn(ctx, "frame generation failed", logger.Error(err))
			}
		}
	}
}

// Run serves the feed on cfg.Addr until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	sim := New(cfg)
	lis, err := net.Listen("tcp", sim.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", sim.cfg.Addr, err)
	}
	srv := &http.Server{Handler: sim.Handler(), ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go sim.Broadcast(ctx)

	sim.log.Info(ctx, "feed simulator listening",
		logger.String("addr", lis.Addr().String()),
		logger.String("path", sim.cfg.Path),
		logger.Duration("interval", sim.cfg.Interval),
		logger.Float64("malformedRate", sim.cfg.MalformedRate))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sim.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	st := sim.stats
	sim.log.Info(shutdownCtx, "feed simulator stopped",
		logger.Int("frames", int(st.Total())),
		logger.Int("metricUpdates", int(st.MetricUpdates.Load())),
		logger.Int("activities", int(st.Activities.Load())),
		logger.Int("achievements", int(st.Achievements.Load())),
		logger.Int("syncStatuses", int(st.SyncStatuses.Load())),
		logger.Int("malformed", int(st.Malformed.Load())),
		logger.Duration("uptime", time.Since(st.StartTime)))
	return nil
}
