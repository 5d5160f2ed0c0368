// Package livesync keeps a connection to the live event feed open, decodes
// its frames and reconnects after a fixed delay when the connection drops.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

// DefaultReconnectDelay is the pause between a drop and the next dial.
const DefaultReconnectDelay = 5 * time.Second

// Connection statuses set by the channel itself. SYNC_STATUS frames may set
// any other value.
const (
	StatusConnecting = "CONNECTING"
	StatusOpen       = "OPEN"
	StatusClosed     = "CLOSED"
	StatusError      = "ERROR"
)

// state is the transport state, tracked apart from the reported status so a
// SYNC_STATUS frame cannot confuse reconnect decisions.
type state int

const (
	stateClosed state = iota
	stateConnecting
	stateOpen
)

// Handler receives every decoded event except SYNC_STATUS, in arrival order.
type Handler func(ctx context.Context, e events.Event)

// StatusObserver is told about every change of the connection record. It
// runs on the goroutine that made the change and must not block.
type StatusObserver func(c events.Connection)

// Option configures a Channel.
type Option func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Channel) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithScheduler replaces the timer source used for reconnects.
func WithScheduler(s Scheduler) Option {
	return func(c *Channel) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithReconnectDelay sets the reconnect delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithStatusObserver registers an observer for connection changes.
func WithStatusObserver(o StatusObserver) Option {
	return func(c *Channel) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock sets the time source for lastSyncTime.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		if now != nil {
			c.now = now
		}
	}
}

// Channel is the live sync connection. At most one reconnect timer is
// pending at any time, and none after Close.
type Channel struct {
	url      string
	handler  Handler
	dialer   Dialer
	sched    Scheduler
	delay    time.Duration
	observer StatusObserver
	log      logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	state  state
	record events.Connection
	conn   Conn
	timer  Timer
	gen    uint64
	closed bool
}

// New creates a channel for url. Nothing is dialled until Connect.
func New(url string, handler Handler, opts ...Option) *Channel {
	c := &Channel{
		url:     url,
		handler: handler,
		sched:   clock{},
		delay:   DefaultReconnectDelay,
		now:     time.Now,
		ctx:     context.Background(),
		record:  events.Connection{Status: StatusClosed},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer()
	}
	if c.log == nil {
		c.log = logger.Get()
	}
	c.log = c.log.Named("livesync")
	return c
}

// Connect dials the feed unless a connection is open or being opened. A
// failed dial schedules a reconnect and returns ErrTransportFailure. ctx
// bounds the dial and is used for later reconnects and event handling.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.ctx = ctx
	c.gen++
	gen := c.gen
	c.state = stateConnecting
	c.setStatusLocked(StatusConnecting, false)
	c.mu.Unlock()
	c.notify()

	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, c.url)
	metrics.RecordDialLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		err = fmt.Errorf("%w: dial %s: %v", ErrTransportFailure, c.url, err)
		c.log.Warn(ctx, "feed dial failed", logger.Error(err))
		c.handleClose(gen, err)
		return err
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = stateOpen
	c.setStatusLocked(StatusOpen, true)
	c.mu.Unlock()
	c.notify()

	c.log.Info(ctx, "feed connected", logger.String("url", c.url))
	go c.readLoop(ctx, gen, conn)
	return nil
}

func (c *Channel) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info(ctx, "feed closed by server", logger.Error(err))
				c.handleClose(gen, nil)
				return
			}
			c.handleClose(gen, fmt.Errorf("%w: read: %v", ErrTransportFailure, err))
			return
		}
		if !c.current(gen) {
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

// dispatch decodes one frame. Malformed frames are dropped without touching
// the connection record.
func (c *Channel) dispatch(ctx context.Context, data []byte) {
	ev, err := events.Decode(data)
	switch {
	case errors.Is(err, events.ErrUnknownType):
		metrics.RecordFeedDrop("unknown_type")
		c.log.Debug(ctx, "ignoring feed event", logger.Error(err))
		return
	case err != nil:
		metrics.RecordFeedDrop("malformed")
		c.log.Warn(ctx, "dropping malformed feed event", logger.Error(err))
		return
	}
	metrics.RecordFeedEvent(string(ev.Type()))

	if s, ok := ev.(events.SyncStatus); ok {
		c.mu.Lock()
		c.setStatusLocked(s.Status, true)
		c.mu.Unlock()
		c.notify()
		return
	}
	if c.handler != nil {
		c.handler(ctx, ev)
	}
}

// handleClose moves the connection of generation gen to CLOSED and, unless
// the channel was closed on purpose, schedules one reconnect. A non-nil
// cause reports ERROR first.
func (c *Channel) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = stateClosed
	var changes []events.Connection
	if cause != nil {
		c.setStatusLocked(StatusError, false)
		changes = append(changes, c.record)
	}
	c.setStatusLocked(StatusClosed, false)
	changes = append(changes, c.record)
	if !c.closed {
		c.scheduleLocked()
	}
	ctx := c.ctx
	c.mu.Unlock()

	c.notify(changes...)
	if cause != nil {
		c.log.Warn(ctx, "feed connection lost", logger.Error(cause), logger.Duration("retry_in", c.delay))
	}
}

// scheduleLocked replaces any pending reconnect with a new one.
func (c *Channel) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	var t Timer
	t = c.sched.AfterFunc(c.delay, func() { c.reconnect(t) })
	c.timer = t
	metrics.RecordReconnectScheduled()
}

func (c *Channel) reconnect(t Timer) {
	c.mu.Lock()
	if c.timer != t {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ctx := c.ctx
	c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_ = c.Connect(ctx)
}

// Close shuts the channel down for good: the pending reconnect is cancelled,
// the connection is closed and no reconnect will follow.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = stateClosed
	c.setStatusLocked(StatusClosed, false)
	c.mu.Unlock()
	c.notify()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Connection returns the current connection record.
func (c *Channel) Connection() events.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// Pending reports whether a reconnect is scheduled.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Channel) setStatusLocked(status string, synced bool) {
	c.record.Status = status
	if synced {
		c.record.LastSyncTime = c.now().UTC()
	}
	switch status {
	case StatusConnecting:
		metrics.UpdateConnectionStatus(metrics.ConnectionConnecting)
	case StatusOpen:
		metrics.UpdateConnectionStatus(metrics.ConnectionOpen)
	case StatusClosed:
		metrics.UpdateConnectionStatus(metrics.ConnectionClosed)
	case StatusError:
		metrics.UpdateConnectionStatus(metrics.ConnectionError)
	default:
		metrics.UpdateConnectionStatus(metrics.ConnectionOther)
	}
}

// notify reports changes to the observer, or the current record when none
// are given. It must not be called with mu held.
func (c *Channel) notify(changes ...events.Connection) {
	if c.observer == nil {
		return
	}
	if len(changes) == 0 {
		changes = []events.Connection{c.Connection()}
	}
	for _, rec := range changes {
		c.observer(rec)
	}
}
