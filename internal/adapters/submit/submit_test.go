package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/pkg/logger"
)

type request struct {
	method string
	path   string
	body   string
}

type recorder struct {
	mu      sync.Mutex
	metrics []string
	acts    []string
	err     error
	block   chan struct{}
}

func (r *recorder) SubmitMetricUpdate(_ context.Context, chapterID string, _ map[string]any) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, chapterID)
	return r.err
}

func (r *recorder) SubmitActivity(_ context.Context, a model.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acts = append(r.acts, a.ID)
	return r.err
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metrics), len(r.acts)
}

func TestHTTPSubmitter(t *testing.T) {
	Convey("Given an API accepting submissions", t, func() {
		var (
			mu   sync.Mutex
			seen []request
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			seen = append(seen, request{r.Method, r.URL.Path, string(b)})
			mu.Unlock()
			if r.URL.Path == "/api/game/chapters/broken/metrics" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()
		s := NewHTTP(srv.URL+"/api", WithHTTPClient(srv.Client()))
		ctx := context.Background()

		Convey("When a metric patch is submitted", func() {
			err := s.SubmitMetricUpdate(ctx, "CH001", map[string]any{"visitors": 12})

			Convey("Then it is PUT to the chapter's metrics", func() {
				So(err, ShouldBeNil)
				So(seen[0].method, ShouldEqual, http.MethodPut)
				So(seen[0].path, ShouldEqual, "/api/game/chapters/CH001/metrics")
				So(seen[0].body, ShouldEqual, `{"visitors":12}`)
			})
		})

		Convey("When an activity is submitted", func() {
			a := model.ActivityEvent{ID: "a1", ChapterName: "EPIC", Action: "updated visitors (+2)", Icon: "💰"}
			err := s.SubmitActivity(ctx, a)

			Convey("Then it is POSTed as JSON", func() {
				So(err, ShouldBeNil)
				So(seen[0].method, ShouldEqual, http.MethodPost)
				So(seen[0].path, ShouldEqual, "/api/game/activities")
				var got model.ActivityEvent
				So(json.Unmarshal([]byte(seen[0].body), &got), ShouldBeNil)
				So(got.ChapterName, ShouldEqual, "EPIC")
			})
		})

		Convey("When the API rejects a submission", func() {
			err := s.SubmitMetricUpdate(ctx, "broken", map[string]any{"visitors": 1})

			Convey("Then SubmissionFailure is returned", func() {
				So(errors.Is(err, ErrSubmissionFailure), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable API", t, func() {
		s := NewHTTP("http://127.0.0.1:1")

		Convey("Then SubmissionFailure is returned", func() {
			err := s.SubmitActivity(context.Background(), model.ActivityEvent{ID: "x"})
			So(errors.Is(err, ErrSubmissionFailure), ShouldBeTrue)
		})
	})
}

func TestCombine(t *testing.T) {
	Convey("Given several submitters", t, func() {
		ok := &recorder{}
		bad := &recorder{err: errors.New("down")}

		Convey("Then Combine with none is a no-op", func() {
			s := Combine(nil)
			So(s, ShouldHaveSameTypeAs, Nop{})
			So(s.SubmitActivity(context.Background(), model.ActivityEvent{}), ShouldBeNil)
		})

		Convey("Then Combine with one returns it unchanged", func() {
			So(Combine(ok, nil), ShouldEqual, ok)
		})

		Convey("Then Multi reaches everyone and joins errors", func() {
			s := Combine(bad, ok)
			err := s.SubmitMetricUpdate(context.Background(), "CH001", map[string]any{"visitors": 1})
			So(err, ShouldNotBeNil)
			m, _ := ok.counts()
			So(m, ShouldEqual, 1)
		})
	})
}

func TestOutbox(t *testing.T) {
	Convey("Given an outbox in front of a recorder", t, func() {
		rec := &recorder{}
		ob := NewOutbox(rec, WithWorkers(2), WithOutboxCapacity(8), WithOutboxLogger(logger.Nop()))
		ctx := context.Background()
		ob.Start(ctx)

		Convey("When submissions are queued and the outbox drains", func() {
			So(ob.SubmitMetricUpdate(ctx, "CH001", map[string]any{"visitors": 3}), ShouldBeNil)
			So(ob.SubmitActivity(ctx, model.ActivityEvent{ID: "a1"}), ShouldBeNil)
			So(ob.Shutdown(ctx), ShouldBeNil)

			Convey("Then every submission reached the target", func() {
				m, a := rec.counts()
				So(m, ShouldEqual, 1)
				So(a, ShouldEqual, 1)
			})
		})

		Convey("When submitting after shutdown", func() {
			So(ob.Shutdown(ctx), ShouldBeNil)
			err := ob.SubmitActivity(ctx, model.ActivityEvent{ID: "late"})

			Convey("Then the submission is dropped with SubmissionFailure", func() {
				So(errors.Is(err, ErrSubmissionFailure), ShouldBeTrue)
			})
		})
	})

	Convey("Given a stalled target and a tiny outbox", t, func() {
		rec := &recorder{block: make(chan struct{})}
		ob := NewOutbox(rec, WithWorkers(1), WithOutboxCapacity(1), WithOutboxLogger(logger.Nop()))
		ctx := context.Background()
		ob.Start(ctx)

		Convey("When more submissions arrive than fit", func() {
			var errs int
			for i := 0; i < 5; i++ {
				if err := ob.SubmitMetricUpdate(ctx, "CH001", map[string]any{"visitors": i}); err != nil {
					errs++
				}
			}
			close(rec.block)
			shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			So(ob.Shutdown(shutdownCtx), ShouldBeNil)

			Convey("Then the caller never blocks and the excess is dropped", func() {
				So(errs, ShouldBeGreaterThanOrEqualTo, 3)
			})
		})
	})
}

type standingsRecorder struct {
	recorder
	ranked [][]model.Chapter
}

func (r *standingsRecorder) PublishStandings(_ context.Context, ranked []model.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranked = append(r.ranked, ranked)
	return nil
}

func TestOutboxStandings(t *testing.T) {
	Convey("Given an outbox whose target publishes standings", t, func() {
		rec := &standingsRecorder{}
		ob := NewOutbox(Combine(rec, &recorder{}), WithOutboxLogger(logger.Nop()))
		ctx := context.Background()
		ob.Start(ctx)

		Convey("When a ranking is published", func() {
			So(ob.PublishStandings(ctx, []model.Chapter{{Name: "EPIC"}}), ShouldBeNil)
			So(ob.PublishStandings(ctx, nil), ShouldBeNil)
			So(ob.Shutdown(ctx), ShouldBeNil)

			Convey("Then it reaches the publishing member only once", func() {
				rec.mu.Lock()
				defer rec.mu.Unlock()
				So(len(rec.ranked), ShouldEqual, 1)
				So(rec.ranked[0][0].Name, ShouldEqual, "EPIC")
			})
		})
	})

	Convey("Given an outbox whose target cannot publish standings", t, func() {
		ob := NewOutbox(&recorder{}, WithOutboxLogger(logger.Nop()))

		Convey("Then publishing is a no-op", func() {
			So(ob.PublishStandings(context.Background(), []model.Chapter{{Name: "EPIC"}}), ShouldBeNil)
			So(ob.Pending(), ShouldEqual, 0)
		})
	})
}
