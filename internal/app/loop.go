package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	eventqueue "github.com/okian/coinboard/internal/adapters/mq/queue"
	"github.com/okian/coinboard/internal/adapters/repository"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/ranking"
	"github.com/okian/coinboard/internal/domain/reconcile"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

// Update origins, used as metric labels.
const (
	originLocal = "local"
	originFeed  = "feed"
)

// command is one unit of work for the event loop. done, when set, receives
// the result.
type command struct {
	name string
	run  func(ctx context.Context) error
	done chan error
}

func (s *Service) handle(ctx context.Context, cmd command) error {
	start := time.Now()
	err := cmd.run(ctx)
	metrics.RecordLoopCommandLatency(float64(time.Since(start).Microseconds()) / 1000)
	if cmd.done != nil {
		cmd.done <- err
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.name, err)
	}
	return nil
}

// post queues fn without waiting for its result. A full inbox blocks the
// caller until there is room, ctx ends or the loop stops. It reports whether
// the command was queued.
func (s *Service) post(ctx context.Context, name string, fn func(context.Context) error) bool {
	inbox := s.currentInbox()
	if inbox == nil {
		return false
	}
	if err := inbox.EnqueueWait(ctx, command{name: name, run: fn}); err != nil {
		s.logger.Warn(ctx, "event loop rejected command", logger.String("command", name), logger.Error(err))
		return false
	}
	return true
}

// do queues fn and waits for its result. A full inbox is rejected with
// ErrBusy instead of blocking.
func (s *Service) do(ctx context.Context, name string, fn func(context.Context) error) error {
	inbox := s.currentInbox()
	if inbox == nil {
		return ErrNotStarted
	}
	done := make(chan error, 1)
	if err := inbox.Enqueue(ctx, command{name: name, run: fn, done: done}); err != nil {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) currentInbox() *eventqueue.InMemoryQueue[command] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.inbox == nil {
		return nil
	}
	return s.inbox
}

// HandleFeedEvent routes one decoded feed event into the event loop. It is
// the live sync channel's handler.
func (s *Service) HandleFeedEvent(ctx context.Context, e events.Event) {
	var ok bool
	switch ev := e.(type) {
	case events.MetricUpdate:
		ok = s.post(ctx, "feed-metric-update", func(ctx context.Context) error {
			return s.applyFeedUpdate(ctx, ev)
		})
	case events.Activity:
		ok = s.post(ctx, "feed-activity", func(ctx context.Context) error {
			s.addActivity(ctx, ev.Activity)
			s.publishSnapshot()
			return nil
		})
	case events.Achievement:
		ok = s.post(ctx, "feed-achievement", func(ctx context.Context) error {
			s.showAchievement(ctx, ev.Achievement)
			return nil
		})
	default:
		return
	}
	if !ok {
		metrics.RecordFeedDrop("inbox_closed")
	}
}

// HandleConnection forwards connection changes to viewers. It is the live
// sync channel's status observer.
func (s *Service) HandleConnection(c events.Connection) {
	s.sink.Publish(context.Background(), events.NewConnection(c))
}

// UpdateMetric applies a local edit through the reconciliation path, commits
// a ranking and sends the edit to the submitters. ref is a chapter name or
// id. It returns the updated chapter.
func (s *Service) UpdateMetric(ctx context.Context, ref, metric string, raw any) (model.Chapter, error) {
	var out model.Chapter
	err := s.do(ctx, "local-metric-update", func(ctx context.Context) error {
		c, ok := s.game.Resolve(ref)
		if !ok {
			metrics.RecordReconcileError("unknown_chapter")
			return fmt.Errorf("chapter %q: %w", ref, reconcile.ErrUnknownChapter)
		}
		key, err := model.ParseMetricKey(metric)
		if err != nil {
			metrics.RecordReconcileError("unknown_metric")
			return err
		}
		fx, err := s.apply(ctx, c.Name, key, raw, originLocal)
		if err != nil {
			return err
		}
		s.commit(ctx)
		out = s.game.Chapters[c.Name].Clone()
		s.submitLocal(ctx, out, key, fx)
		return nil
	})
	return out, err
}

// apply runs one reconciliation and its side effects. Ranks are not touched.
func (s *Service) apply(ctx context.Context, name string, key model.MetricKey, raw any, origin string) (reconcile.SideEffects, error) {
	next, fx, err := s.rec.ApplyMetricUpdate(s.game, name, key, raw)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrUnknownChapter):
			metrics.RecordReconcileError("unknown_chapter")
		case errors.Is(err, reconcile.ErrUnknownMetric):
			metrics.RecordReconcileError("unknown_metric")
		default:
			metrics.RecordReconcileError("invalid_value")
		}
		return reconcile.SideEffects{}, err
	}
	s.game = next
	metrics.RecordReconciliation(string(key), origin)

	if fx.Activity != nil {
		s.addActivity(ctx, *fx.Activity)
		metrics.RecordActivityEmitted()
	}
	if fx.CoinPulse {
		s.startPulse(ctx, name)
	}
	return fx, nil
}

// submitLocal sends a local edit and its activity to the outbox.
func (s *Service) submitLocal(ctx context.Context, c model.Chapter, key model.MetricKey, fx reconcile.SideEffects) {
	var value any = fx.Current
	if key == model.MetricRetention {
		value = c.Metrics.Retention
	}
	if fx.Activity != nil {
		_ = s.outbox.SubmitActivity(ctx, *fx.Activity)
	}
	_ = s.outbox.SubmitMetricUpdate(ctx, c.ID, map[string]any{string(key): value})
}

// applyFeedUpdate applies every metric of a feed update as one batch and then
// commits a single ranking. Bad entries are skipped.
func (s *Service) applyFeedUpdate(ctx context.Context, ev events.MetricUpdate) error {
	c, ok := s.game.Resolve(ev.ChapterID)
	if !ok {
		metrics.RecordReconcileError("unknown_chapter")
		return fmt.Errorf("feed update for chapter %q: %w", ev.ChapterID, reconcile.ErrUnknownChapter)
	}

	keys := make([]string, 0, len(ev.Metrics))
	for k := range ev.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := 0
	for _, k := range keys {
		key, err := model.ParseMetricKey(k)
		if err != nil {
			metrics.RecordReconcileError("unknown_metric")
			s.logger.Warn(ctx, "skipping feed metric", logger.String("chapter", c.Name), logger.Error(err))
			continue
		}
		if _, err := s.apply(ctx, c.Name, key, ev.Metrics[k], originFeed); err != nil {
			s.logger.Warn(ctx, "skipping feed metric", logger.String("chapter", c.Name), logger.Error(err))
			continue
		}
		applied++
	}
	if applied > 0 {
		s.commit(ctx)
	}
	return nil
}

// addActivity pushes a into the window and tells viewers when it is new.
func (s *Service) addActivity(ctx context.Context, a model.ActivityEvent) {
	if s.window.Push(a) {
		s.sink.Publish(ctx, events.NewActivity(a))
	}
}

// startPulse marks the chapter's coin pulse and (re)arms its clear timer.
func (s *Service) startPulse(ctx context.Context, name string) {
	s.pulses[name] = true
	s.pulseSeq[name]++
	seq := s.pulseSeq[name]
	if t := s.pulseTimers[name]; t != nil {
		t.Stop()
	}
	s.pulseTimers[name] = time.AfterFunc(s.coinPulse, func() {
		s.post(s.loopCtx, "clear-pulse", func(ctx context.Context) error {
			if s.pulseSeq[name] != seq {
				return nil
			}
			delete(s.pulses, name)
			delete(s.pulseTimers, name)
			s.sink.Publish(ctx, events.NewCoinPulse(name, false))
			s.publishSnapshot()
			return nil
		})
	})
	s.sink.Publish(ctx, events.NewCoinPulse(name, true))
}

// showAchievement displays a, replacing any achievement on screen. Only the
// latest one is dismissed by its timer.
func (s *Service) showAchievement(ctx context.Context, a model.AchievementEvent) {
	if s.dismissTimer != nil {
		s.dismissTimer.Stop()
	}
	s.achievement = &a
	s.achievementSeq++
	seq := s.achievementSeq
	s.dismissTimer = time.AfterFunc(s.achievementDismiss, func() {
		s.post(s.loopCtx, "dismiss-achievement", func(ctx context.Context) error {
			if s.achievementSeq != seq || s.achievement == nil {
				return nil
			}
			shown := *s.achievement
			s.achievement = nil
			s.dismissTimer = nil
			s.sink.Publish(ctx, events.NewAchievementDismissed(shown))
			s.publishSnapshot()
			return nil
		})
	})
	metrics.RecordAchievementShown()
	s.sink.Publish(ctx, events.NewAchievement(a))
	s.publishSnapshot()
}

func (s *Service) onCountdownTick(ctx context.Context) error {
	s.updateCountdown(ctx)
	s.sink.Publish(ctx, events.NewCountdown(s.countdown))
	s.commit(ctx)
	return nil
}

func (s *Service) updateCountdown(ctx context.Context) {
	end, err := s.game.Metadata.End()
	if err != nil {
		s.logger.Debug(ctx, "no usable end date for countdown", logger.Error(err))
		s.countdown = model.Countdown{}
		return
	}
	s.countdown = model.CountdownUntil(end, s.now())
}

// commit runs one ranking cycle, tells viewers and mirrors, and publishes a
// snapshot.
func (s *Service) commit(ctx context.Context) {
	s.game, s.ranked = ranking.Rank(s.game)
	metrics.RecordRankingCycle(ranking.Changed(s.ranked))
	s.sink.Publish(ctx, events.NewStandings(s.ranked))
	_ = s.outbox.PublishStandings(ctx, s.ranked)
	s.publishSnapshot()
}

func (s *Service) publishSnapshot() {
	s.store.Publish(repository.Snapshot{
		State:       s.game,
		Ranked:      s.ranked,
		Summary:     ranking.Summarize(s.ranked),
		Activities:  s.window.Items(),
		Pulses:      s.pulses,
		Achievement: s.achievement,
		Countdown:   s.countdown,
	})
}
