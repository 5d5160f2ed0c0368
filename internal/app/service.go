// Package service owns the live game: a single event loop applies feed
// events, user edits and timer callbacks in arrival order, commits rankings
// and publishes snapshots for readers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/okian/coinboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/coinboard/internal/adapters/mq/worker"
	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/adapters/source"
	"github.com/okian/coinboard/internal/adapters/submit"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/internal/domain/feed"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/reconcile"
	"github.com/okian/coinboard/pkg/logger"
)

// Default timings and sizes.
const (
	DefaultCoinPulse          = time.Second
	DefaultAchievementDismiss = 3 * time.Second
	DefaultCountdownTick      = time.Minute

	defaultInboxSize     = 1024
	defaultOutboxSize    = 256
	defaultSubmitWorkers = 2
	stopTimeout          = 10 * time.Second
)

// Sink receives every message meant for viewers. Publish must not block.
type Sink interface {
	Publish(ctx context.Context, msg events.Outbound)
}

// Feed is the live sync connection as the service uses it.
type Feed interface {
	Connect(ctx context.Context) error
	Close() error
	Connection() events.Connection
}

type nopSink struct{}

func (nopSink) Publish(context.Context, events.Outbound) {}

// Service implements the API dependencies for the leaderboard.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	source    source.Source
	submitter submit.Submitter
	sink      Sink
	feed      Feed
	rec       *reconcile.Reconciler
	store     *repository.StateStore

	// Configuration
	inboxSize          int
	outboxSize         int
	submitWorkers      int
	activityWindow     int
	coinPulse          time.Duration
	achievementDismiss time.Duration
	countdownTick      time.Duration
	now                func() time.Time

	// Runtime
	inbox   *eventqueue.InMemoryQueue[command]
	loop    *workerpool.Worker[command]
	outbox  *submit.Outbox
	ticker  *time.Ticker
	cancel  context.CancelFunc
	loopCtx context.Context
	started bool

	// Loop-owned game state. Only commands running on the loop touch it.
	game           model.GameState
	window         *feed.Window
	pulses         map[string]bool
	pulseSeq       map[string]uint64
	pulseTimers    map[string]*time.Timer
	achievement    *model.AchievementEvent
	achievementSeq uint64
	dismissTimer   *time.Timer
	countdown      model.Countdown
	ranked         []model.Chapter

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where the initial game comes from. It is wrapped with a
// demo fallback.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithSubmitter sets where local edits are sent.
func WithSubmitter(sub submit.Submitter) Option {
	return func(s *Service) {
		if sub != nil {
			s.submitter = sub
		}
	}
}

// WithSink sets the viewer notification sink.
func WithSink(sink Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithReconciler replaces the reconciler.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithStore replaces the snapshot store.
func WithStore(st *repository.StateStore) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithInboxSize bounds the event loop's command queue.
func WithInboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// WithOutbox sizes the submission outbox.
func WithOutbox(size, workers int) Option {
	return func(s *Service) {
		if size > 0 {
			s.outboxSize = size
		}
		if workers > 0 {
			s.submitWorkers = workers
		}
	}
}

// WithActivityWindow sets how many recent activities are kept.
func WithActivityWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.activityWindow = n
		}
	}
}

// WithTimings sets the coin pulse, achievement display and countdown tick
// durations. Non-positive values keep the defaults.
func WithTimings(coinPulse, achievementDismiss, countdownTick time.Duration) Option {
	return func(s *Service) {
		if coinPulse > 0 {
			s.coinPulse = coinPulse
		}
		if achievementDismiss > 0 {
			s.achievementDismiss = achievementDismiss
		}
		if countdownTick > 0 {
			s.countdownTick = countdownTick
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		submitter:          submit.Nop{},
		sink:               nopSink{},
		inboxSize:          defaultInboxSize,
		outboxSize:         defaultOutboxSize,
		submitWorkers:      defaultSubmitWorkers,
		activityWindow:     feed.DefaultCapacity,
		coinPulse:          DefaultCoinPulse,
		achievementDismiss: DefaultAchievementDismiss,
		countdownTick:      DefaultCountdownTick,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rec == nil {
		s.rec = reconcile.New(reconcile.WithClock(s.now))
	}
	if s.store == nil {
		s.store = repository.NewStateStore(repository.WithClock(s.now))
	}
	return s
}

// AttachFeed sets the live feed. It must be called before Start. The feed's
// handler is expected to be HandleFeedEvent.
func (s *Service) AttachFeed(f Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = f
}

// Start loads the initial game, publishes the first snapshot and starts the
// event loop, the outbox, the countdown ticker and the live feed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting leaderboard service...")

	loader := source.WithFallback(s.source, s.source,
		source.WithLogger(s.logger), source.WithReconciler(s.rec))
	game, err := loader.FetchGameState(ctx)
	if err != nil {
		return fmt.Errorf("load game: %w", err)
	}
	seed, err := loader.FetchRecentActivity(ctx)
	if err != nil {
		return fmt.Errorf("load activities: %w", err)
	}

	s.game = game
	s.window = feed.NewWindow(feed.WithCapacity(s.activityWindow))
	s.window.Seed(seed)
	s.pulses = map[string]bool{}
	s.pulseSeq = map[string]uint64{}
	s.pulseTimers = map[string]*time.Timer{}
	s.achievement = nil
	s.updateCountdown(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.loopCtx, s.cancel = loopCtx, cancel

	s.outbox = submit.NewOutbox(s.submitter,
		submit.WithOutboxCapacity(s.outboxSize),
		submit.WithWorkers(s.submitWorkers),
		submit.WithOutboxLogger(s.logger),
	)
	s.outbox.Start(loopCtx)

	s.commit(loopCtx)

	s.inbox = eventqueue.NewInMemoryQueue[command](
		eventqueue.WithCapacity(s.inboxSize),
		eventqueue.WithName("inbox"),
	)
	s.loop = workerpool.New[command](s.inbox, s.handle,
		workerpool.WithName("event-loop"),
		workerpool.WithLogger(s.logger),
	)
	go s.loop.Run(loopCtx)

	s.ticker = time.NewTicker(s.countdownTick)
	go s.tick(loopCtx, s.ticker)

	if s.feed != nil {
		go func() {
			if err := s.feed.Connect(loopCtx); err != nil {
				s.logger.Warn(loopCtx, "live feed not connected yet", logger.Error(err))
			}
		}()
	}

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("game", game.Metadata.GameName),
		logger.Int("chapters", len(game.Chapters)),
		logger.Int("inboxSize", s.inboxSize),
		logger.Int("submitWorkers", s.submitWorkers),
	)
	return nil
}

// Stop closes the feed for good, stops every timer, drains the event loop
// and the outbox.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping leaderboard service...")

	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			s.logger.Warn(ctx, "error closing live feed", logger.Error(err))
		}
	}
	s.ticker.Stop()

	_ = s.inbox.Close()
	select {
	case <-s.loop.Done():
	case <-ctx.Done():
		s.loop.Stop()
	}
	s.stopTimers()

	if err := s.outbox.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "error draining outbox", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// stopTimers runs after the loop has exited, so loop-owned fields are safe.
func (s *Service) stopTimers() {
	for _, t := range s.pulseTimers {
		t.Stop()
	}
	if s.dismissTimer != nil {
		s.dismissTimer.Stop()
	}
}

func (s *Service) tick(ctx context.Context, t *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.post(ctx, "countdown", s.onCountdownTick)
		}
	}
}
