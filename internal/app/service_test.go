package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/coinboard/internal/app"
	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/internal/domain/reconcile"
	"github.com/okian/coinboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func chapter(id, name string, referrals int) model.Chapter {
	return model.Chapter{
		ID: id, Name: name, Members: 20, Color: "#EF4444",
		Metrics: model.Metrics{
			Referrals:    model.NewProgress(referrals, 60),
			Visitors:     model.NewProgress(10, 30),
			Attendance:   model.NewProgress(95, 95),
			Testimonials: model.NewProgress(10, 60),
			Trainings:    model.NewProgress(10, 90),
			Retention:    model.NewRetention(2, 3, 1),
		},
	}
}

type fixedSource struct{}

func (fixedSource) FetchGameState(context.Context) (model.GameState, error) {
	return model.GameState{
		Metadata: model.Metadata{GameName: "Test Games", EndDate: "2025-08-01", CurrentWeek: 1, TotalWeeks: 6},
		Chapters: map[string]model.Chapter{
			"ALPHA": chapter("CH001", "ALPHA", 10),
			"BETA":  chapter("CH002", "BETA", 20),
		},
	}, nil
}

func (fixedSource) FetchRecentActivity(context.Context) ([]model.ActivityEvent, error) {
	return []model.ActivityEvent{{ID: "seed", ChapterName: "BETA", Action: "joined", Icon: "🎯"}}, nil
}

type sink struct {
	mu   sync.Mutex
	msgs []events.Outbound
}

func (s *sink) Publish(_ context.Context, m events.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func (s *sink) count(t events.OutboundType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Type == t {
			n++
		}
	}
	return n
}

func (s *sink) last(t events.OutboundType) (events.Outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Type == t {
			return s.msgs[i], true
		}
	}
	return events.Outbound{}, false
}

type submitted struct {
	chapterID string
	patch     map[string]any
}

type submitter struct {
	mu      sync.Mutex
	metrics []submitted
	acts    []model.ActivityEvent
}

func (s *submitter) SubmitMetricUpdate(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, submitted{id, patch})
	return nil
}

func (s *submitter) SubmitActivity(_ context.Context, a model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acts = append(s.acts, a)
	return nil
}

func (s *submitter) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics), len(s.acts)
}

type fakeFeed struct {
	mu        sync.Mutex
	connected int
	closed    int
}

func (f *fakeFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected++
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFeed) Connection() events.Connection {
	return events.Connection{Status: "OPEN"}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newService(out *sink, sub *submitter, tick time.Duration) *service.Service {
	now := func() time.Time { return time.Date(2025, 7, 30, 12, 0, 0, 0, time.UTC) }
	return service.New(
		service.WithSource(fixedSource{}),
		service.WithSink(out),
		service.WithSubmitter(sub),
		service.WithTimings(30*time.Millisecond, 60*time.Millisecond, tick),
		service.WithClock(now),
		service.WithReconciler(reconcile.New(reconcile.WithClock(now))),
		service.WithLogger(logger.Nop()),
	)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		out := &sink{}
		feed := &fakeFeed{}
		svc := newService(out, &submitter{}, time.Hour)
		svc.AttachFeed(feed)
		ctx := context.Background()

		Convey("When it is not started", func() {
			_, err := svc.UpdateMetric(ctx, "ALPHA", "visitors", 12)

			Convey("Then edits are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the first ranking is committed and published", func() {
				snap, err := svc.Snapshot()
				So(err, ShouldBeNil)
				So(snap.Ranked[0].Name, ShouldEqual, "BETA")
				So(snap.State.Chapters["BETA"].CurrentRank, ShouldEqual, 1)
				So(snap.State.Chapters["ALPHA"].CurrentRank, ShouldEqual, 2)
				So(snap.Activities[0].ID, ShouldEqual, "seed")
				So(snap.Countdown, ShouldResemble, model.Countdown{Days: 1, Hours: 12})
				So(out.count(events.OutStandings), ShouldEqual, 1)
				So(svc.GetStats()["started"], ShouldEqual, true)
			})

			Convey("Then the feed is connected and later closed", func() {
				So(waitFor(func() bool {
					feed.mu.Lock()
					defer feed.mu.Unlock()
					return feed.connected == 1
				}), ShouldBeTrue)
				So(svc.Connection().Status, ShouldEqual, "OPEN")
				svc.Stop()
				feed.mu.Lock()
				So(feed.closed, ShouldEqual, 1)
				feed.mu.Unlock()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_LocalEdits(t *testing.T) {
	Convey("Given a started service", t, func() {
		out := &sink{}
		sub := &submitter{}
		svc := newService(out, sub, time.Hour)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a metric is raised locally", func() {
			c, err := svc.UpdateMetric(ctx, "ALPHA", "visitors", "15")

			Convey("Then the chapter is recomputed and side effects follow", func() {
				So(err, ShouldBeNil)
				So(c.Metrics.Visitors.Current, ShouldEqual, 15)
				So(c.Metrics.Visitors.Achievement, ShouldEqual, 50)

				snap, _ := svc.Snapshot()
				So(snap.Activities[0].Action, ShouldEqual, "updated visitors (+5)")
				So(snap.Pulses["ALPHA"], ShouldBeTrue)
				So(out.count(events.OutActivity), ShouldEqual, 1)
				So(out.count(events.OutStandings), ShouldEqual, 2)
			})

			Convey("Then the edit and its activity are submitted", func() {
				So(waitFor(func() bool {
					m, a := sub.counts()
					return m == 1 && a == 1
				}), ShouldBeTrue)
				sub.mu.Lock()
				So(sub.metrics[0].chapterID, ShouldEqual, "CH001")
				So(sub.metrics[0].patch, ShouldResemble, map[string]any{"visitors": 15})
				sub.mu.Unlock()
			})

			Convey("Then the coin pulse clears on its own", func() {
				So(waitFor(func() bool {
					snap, _ := svc.Snapshot()
					return !snap.Pulses["ALPHA"]
				}), ShouldBeTrue)
				last, _ := out.last(events.OutCoinPulse)
				So(last.Payload, ShouldResemble, events.CoinPulse{Chapter: "ALPHA", Active: false})
			})

			Convey("And the same value is applied again", func() {
				_, err := svc.UpdateMetric(ctx, "ALPHA", "visitors", 15)

				Convey("Then no new activity is emitted but the edit is still submitted", func() {
					So(err, ShouldBeNil)
					So(out.count(events.OutActivity), ShouldEqual, 1)
					So(waitFor(func() bool {
						m, a := sub.counts()
						return m == 2 && a == 1
					}), ShouldBeTrue)
				})
			})
		})

		Convey("When a chapter is addressed by id", func() {
			c, err := svc.UpdateMetric(ctx, "CH002", "retention", map[string]any{"inductions": 5, "renewals": 3, "drops": 0})

			Convey("Then the retention record is replaced", func() {
				So(err, ShouldBeNil)
				So(c.Name, ShouldEqual, "BETA")
				So(c.Metrics.Retention, ShouldResemble, model.NewRetention(5, 3, 0))
			})
		})

		Convey("When the chapter or metric is unknown", func() {
			_, errChapter := svc.UpdateMetric(ctx, "GHOST", "visitors", 1)
			_, errMetric := svc.UpdateMetric(ctx, "ALPHA", "coins", 1)

			Convey("Then the edit is rejected without changes", func() {
				So(errors.Is(errChapter, reconcile.ErrUnknownChapter), ShouldBeTrue)
				So(errors.Is(errMetric, reconcile.ErrUnknownMetric), ShouldBeTrue)
				snap, _ := svc.Snapshot()
				So(snap.State.Chapters["ALPHA"].Metrics.Visitors.Current, ShouldEqual, 10)
				So(out.count(events.OutStandings), ShouldEqual, 1)
			})
		})
	})
}

func TestService_FeedEvents(t *testing.T) {
	Convey("Given a started service", t, func() {
		out := &sink{}
		sub := &submitter{}
		svc := newService(out, sub, time.Hour)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a feed update lifts the second chapter past the first", func() {
			svc.HandleFeedEvent(ctx, events.MetricUpdate{
				ChapterID: "CH001",
				Metrics: map[string]json.RawMessage{
					"referrals": json.RawMessage(`40`),
					"bogus":     json.RawMessage(`1`),
				},
			})

			Convey("Then ranks swap and previous ranks are kept", func() {
				So(waitFor(func() bool {
					snap, _ := svc.Snapshot()
					return snap.State.Chapters["ALPHA"].CurrentRank == 1
				}), ShouldBeTrue)
				snap, _ := svc.Snapshot()
				So(snap.State.Chapters["ALPHA"].PreviousRank, ShouldEqual, 2)
				So(snap.State.Chapters["BETA"].CurrentRank, ShouldEqual, 2)
				So(snap.State.Chapters["BETA"].PreviousRank, ShouldEqual, 1)
				So(snap.Summary.TopPerformer, ShouldEqual, "ALPHA")

				Convey("And the next write starts a new ranking cycle", func() {
					_, err := svc.UpdateMetric(ctx, "ALPHA", "visitors", 11)
					So(err, ShouldBeNil)
					snap, _ := svc.Snapshot()
					So(snap.State.Chapters["ALPHA"].CurrentRank, ShouldEqual, 1)
					So(snap.State.Chapters["ALPHA"].PreviousRank, ShouldEqual, 1)
					So(snap.State.Chapters["BETA"].PreviousRank, ShouldEqual, 2)
				})
			})

			Convey("Then nothing is echoed back to the submitters", func() {
				time.Sleep(50 * time.Millisecond)
				m, a := sub.counts()
				So(m, ShouldEqual, 0)
				So(a, ShouldEqual, 0)
			})
		})

		Convey("When the same activity arrives twice", func() {
			a := model.ActivityEvent{ID: "remote-1", ChapterName: "BETA", Action: "won", Icon: "🏆"}
			svc.HandleFeedEvent(ctx, events.Activity{Activity: a})
			svc.HandleFeedEvent(ctx, events.Activity{Activity: a})

			Convey("Then it is kept once, newest first", func() {
				So(waitFor(func() bool {
					snap, _ := svc.Snapshot()
					return len(snap.Activities) == 2
				}), ShouldBeTrue)
				snap, _ := svc.Snapshot()
				So(snap.Activities[0].ID, ShouldEqual, "remote-1")
				So(out.count(events.OutActivity), ShouldEqual, 1)
			})
		})

		Convey("When two achievements arrive back to back", func() {
			first := model.AchievementEvent{ChapterName: "ALPHA", Icon: "🎯", Title: "First", Points: 50}
			second := model.AchievementEvent{ChapterName: "BETA", Icon: "🏆", Title: "Second", Points: 100}
			svc.HandleFeedEvent(ctx, events.Achievement{Achievement: first})
			svc.HandleFeedEvent(ctx, events.Achievement{Achievement: second})

			Convey("Then only the latest is shown and dismissed once", func() {
				So(waitFor(func() bool {
					snap, _ := svc.Snapshot()
					return snap.Achievement != nil && snap.Achievement.Title == "Second"
				}), ShouldBeTrue)
				So(waitFor(func() bool { return out.count(events.OutAchievementDismissed) == 1 }), ShouldBeTrue)
				time.Sleep(100 * time.Millisecond)
				So(out.count(events.OutAchievementDismissed), ShouldEqual, 1)
				last, _ := out.last(events.OutAchievementDismissed)
				So(last.Payload, ShouldResemble, second)
				snap, _ := svc.Snapshot()
				So(snap.Achievement, ShouldBeNil)
			})
		})
	})
}

func TestService_Countdown(t *testing.T) {
	Convey("Given a service with a fast countdown tick", t, func() {
		out := &sink{}
		svc := newService(out, &submitter{}, 20*time.Millisecond)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then each tick publishes the countdown and commits a ranking", func() {
			So(waitFor(func() bool { return out.count(events.OutCountdown) >= 2 }), ShouldBeTrue)
			So(out.count(events.OutStandings), ShouldBeGreaterThanOrEqualTo, 3)
			last, _ := out.last(events.OutCountdown)
			So(last.Payload, ShouldResemble, model.Countdown{Days: 1, Hours: 12})
		})
	})
}

// slowSink holds the event loop whenever a coin pulse starts.
type slowSink struct {
	sink
	hold time.Duration
}

func (s *slowSink) Publish(ctx context.Context, m events.Outbound) {
	if p, ok := m.Payload.(events.CoinPulse); ok && p.Active {
		time.Sleep(s.hold)
	}
	s.sink.Publish(ctx, m)
}

func TestService_FullInbox(t *testing.T) {
	Convey("Given a started service with a one-slot inbox and a slow sink", t, func() {
		out := &slowSink{hold: 50 * time.Millisecond}
		now := func() time.Time { return time.Date(2025, 7, 30, 12, 0, 0, 0, time.UTC) }
		svc := service.New(
			service.WithSource(fixedSource{}),
			service.WithSink(out),
			service.WithSubmitter(&submitter{}),
			service.WithInboxSize(1),
			service.WithTimings(5*time.Millisecond, 20*time.Millisecond, time.Hour),
			service.WithClock(now),
			service.WithReconciler(reconcile.New(reconcile.WithClock(now))),
			service.WithLogger(logger.Nop()),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When an edit starts a pulse while feed events keep arriving", func() {
			edited := make(chan error, 1)
			go func() {
				_, err := svc.UpdateMetric(ctx, "ALPHA", "visitors", 15)
				edited <- err
			}()
			time.Sleep(10 * time.Millisecond)
			for i := 1; i <= 3; i++ {
				svc.HandleFeedEvent(ctx, events.Activity{Activity: model.ActivityEvent{
					ID: fmt.Sprintf("feed-%d", i), ChapterName: "BETA", Action: "joined", Icon: "🎉",
				}})
			}
			svc.HandleFeedEvent(ctx, events.Achievement{Achievement: model.AchievementEvent{
				ChapterName: "BETA", Icon: "🏆", Title: "Streak", Points: 50,
			}})
			So(<-edited, ShouldBeNil)

			Convey("Then every feed event is applied and both timers still fire", func() {
				So(waitFor(func() bool {
					snap, err := svc.Snapshot()
					return err == nil && !snap.Pulses["ALPHA"] && snap.Achievement == nil &&
						out.count(events.OutAchievementDismissed) == 1
				}), ShouldBeTrue)

				snap, err := svc.Snapshot()
				So(err, ShouldBeNil)
				ids := map[string]bool{}
				for _, a := range snap.Activities {
					ids[a.ID] = true
				}
				So(ids["feed-1"], ShouldBeTrue)
				So(ids["feed-2"], ShouldBeTrue)
				So(ids["feed-3"], ShouldBeTrue)
			})
		})
	})
}
