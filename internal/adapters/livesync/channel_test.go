package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/logger"
)

type fakeConn struct {
	frames   chan []byte
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.frames:
		return 1, b, nil
	case <-c.done:
		if c.closeErr != nil {
			return 0, nil, c.closeErr
		}
		return 0, nil, errors.New("connection reset")
	}
}

// closeFromServer ends the connection the way a peer sending a close frame
// with code does.
func (c *fakeConn) closeFromServer(code int) {
	c.once.Do(func() {
		c.closeErr = &websocket.CloseError{Code: code, Text: "bye"}
		close(c.done)
	})
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	fail  bool
	conns []*fakeConn
}

func (d *fakeDialer) DialContext(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type fakeTimer struct {
	s       *fakeScheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fireAll runs every timer ever created, including stopped ones, the way a
// racing runtime timer might.
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*fakeTimer(nil), s.timers...)
	for _, t := range timers {
		t.fired = true
	}
	s.mu.Unlock()
	for _, t := range timers {
		t.f()
	}
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

func TestChannel(t *testing.T) {
	Convey("Given a channel over a fake transport", t, func() {
		dialer := &fakeDialer{}
		sched := &fakeScheduler{}
		received := make(chan events.Event, 16)
		var (
			mu       sync.Mutex
			statuses []string
		)
		ch := New("ws://feed", func(_ context.Context, e events.Event) { received <- e },
			WithDialer(dialer),
			WithScheduler(sched),
			WithLogger(logger.Nop()),
			WithStatusObserver(func(c events.Connection) {
				mu.Lock()
				statuses = append(statuses, c.Status)
				mu.Unlock()
			}),
		)
		ctx := context.Background()
		defer func() { _ = ch.Close() }()

		So(ch.Connect(ctx), ShouldBeNil)

		Convey("Then it is OPEN and connecting again is a no-op", func() {
			So(ch.Connection().Status, ShouldEqual, StatusOpen)
			So(ch.Connect(ctx), ShouldBeNil)
			So(ch.Connect(ctx), ShouldBeNil)
			So(dialer.count(), ShouldEqual, 1)
			mu.Lock()
			So(statuses, ShouldResemble, []string{StatusConnecting, StatusOpen})
			mu.Unlock()
		})

		Convey("When a malformed frame arrives between valid ones", func() {
			before := ch.Connection()
			conn := dialer.last()
			conn.frames <- []byte(`{"type":"ACTIVITY","activity":{"id":"a1","chapter":"EPIC","action":"x","icon":"💰","timestamp":"2025-07-01T10:00:00Z"}}`)
			conn.frames <- []byte(`{"type":`)
			conn.frames <- []byte(`{"type":"SOMETHING_NEW"}`)
			conn.frames <- []byte(`{"type":"METRIC_UPDATE","chapterId":"EPIC","metrics":{"visitors":3}}`)

			Convey("Then it is dropped and later frames are still handled", func() {
				first := <-received
				second := <-received
				So(first, ShouldHaveSameTypeAs, events.Activity{})
				So(second, ShouldHaveSameTypeAs, events.MetricUpdate{})
				So(ch.Connection(), ShouldResemble, before)
				So(len(received), ShouldEqual, 0)
			})
		})

		Convey("When a SYNC_STATUS frame arrives", func() {
			dialer.last().frames <- []byte(`{"type":"SYNC_STATUS","status":"syncing"}`)

			Convey("Then the status is stored verbatim and not forwarded", func() {
				So(waitFor(func() bool { return ch.Connection().Status == "syncing" }), ShouldBeTrue)
				So(ch.Connection().LastSyncTime.IsZero(), ShouldBeFalse)
				So(len(received), ShouldEqual, 0)
				So(ch.Connect(ctx), ShouldBeNil)
				So(dialer.count(), ShouldEqual, 1)
			})
		})

		Convey("When the connection drops", func() {
			_ = dialer.last().Close()

			Convey("Then it goes CLOSED with exactly one reconnect pending", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(statuses) == 4
				}), ShouldBeTrue)
				So(ch.Connection().Status, ShouldEqual, StatusClosed)
				So(sched.pending(), ShouldEqual, 1)
				mu.Lock()
				So(statuses[2:], ShouldResemble, []string{StatusError, StatusClosed})
				mu.Unlock()

				Convey("And the timer reconnects", func() {
					sched.fireAll()
					So(ch.Connection().Status, ShouldEqual, StatusOpen)
					So(dialer.count(), ShouldEqual, 2)
					So(sched.pending(), ShouldEqual, 0)
				})
			})
		})

		Convey("When the server closes the connection normally", func() {
			dialer.last().closeFromServer(websocket.CloseNormalClosure)

			Convey("Then it goes straight to CLOSED and still reconnects", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(statuses) == 3
				}), ShouldBeTrue)
				So(ch.Connection().Status, ShouldEqual, StatusClosed)
				So(sched.pending(), ShouldEqual, 1)
				mu.Lock()
				So(statuses[2:], ShouldResemble, []string{StatusClosed})
				mu.Unlock()
			})
		})

		Convey("When the server goes away", func() {
			dialer.last().closeFromServer(websocket.CloseGoingAway)

			Convey("Then no ERROR is reported", func() {
				So(waitFor(func() bool { return ch.Connection().Status == StatusClosed }), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				So(statuses, ShouldNotContain, StatusError)
				mu.Unlock()
			})
		})

		Convey("When the server closes with an error code", func() {
			dialer.last().closeFromServer(websocket.CloseInternalServerErr)

			Convey("Then ERROR is reported before CLOSED", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(statuses) == 4
				}), ShouldBeTrue)
				mu.Lock()
				So(statuses[2:], ShouldResemble, []string{StatusError, StatusClosed})
				mu.Unlock()
			})
		})

		Convey("When the channel is closed on purpose", func() {
			So(ch.Close(), ShouldBeNil)

			Convey("Then nothing reconnects", func() {
				So(ch.Connection().Status, ShouldEqual, StatusClosed)
				So(sched.pending(), ShouldEqual, 0)
				So(errors.Is(ch.Connect(ctx), ErrClosed), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				So(sched.pending(), ShouldEqual, 0)
				So(dialer.count(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a feed that refuses connections", t, func() {
		dialer := &fakeDialer{fail: true}
		sched := &fakeScheduler{}
		ch := New("ws://feed", nil, WithDialer(dialer), WithScheduler(sched), WithLogger(logger.Nop()))
		ctx := context.Background()

		Convey("When CLOSED transitions happen in rapid succession", func() {
			for i := 0; i < 5; i++ {
				err := ch.Connect(ctx)
				So(errors.Is(err, ErrTransportFailure), ShouldBeTrue)
			}

			Convey("Then at most one reconnect timer is ever pending", func() {
				So(sched.pending(), ShouldEqual, 1)
				So(ch.Connection().Status, ShouldEqual, StatusClosed)

				Convey("And stale timers that still fire are ignored", func() {
					sched.fireAll()
					So(dialer.count(), ShouldEqual, 6)
					So(sched.pending(), ShouldEqual, 1)
				})
			})
		})

		Convey("When closed while a reconnect is pending", func() {
			_ = ch.Connect(ctx)
			So(ch.Pending(), ShouldBeTrue)
			So(ch.Close(), ShouldBeNil)

			Convey("Then the timer is cancelled", func() {
				So(ch.Pending(), ShouldBeFalse)
				So(sched.pending(), ShouldEqual, 0)
			})
		})
	})
}
