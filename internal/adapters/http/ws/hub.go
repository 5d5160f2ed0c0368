// Package ws broadcasts outbound leaderboard messages to connected viewers
// over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/coinboard/internal/domain/events"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4 * 1024
	defaultSendBuffer = 64
)

// Greeting returns the messages a viewer receives right after connecting.
type Greeting func() []events.Outbound

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets how many messages may wait per viewer before it is
// dropped as too slow.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithGreeting sets the messages sent to every new viewer.
func WithGreeting(g Greeting) Option {
	return func(h *Hub) {
		h.greeting = g
	}
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans every published message out to all viewers. Slow viewers are
// disconnected instead of blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	closed   bool
	upgrader websocket.Upgrader

	sendBuffer int
	greeting   Greeting
	log        logger.Logger
}

// NewHub creates a hub with no viewers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		sendBuffer: defaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get()
	}
	return h
}

// Publish implements the service's notification sink. It never blocks.
func (h *Hub) Publish(ctx context.Context, msg events.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(ctx, "failed to encode viewer message", logger.String("type", string(msg.Type)), logger.Error(err))
		return
	}
	h.Broadcast(ctx, data)
}

// Broadcast queues one text frame for every viewer. Viewers whose buffer is
// full are disconnected.
func (h *Hub) Broadcast(ctx context.Context, data []byte) {
	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
			metrics.RecordViewerMessage()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn(ctx, "dropping slow viewer", logger.String("viewer", c.id))
		metrics.RecordViewerDrop()
		h.remove(c)
	}
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}
	if h.greeting != nil {
		for _, msg := range h.greeting() {
			if data, err := json.Marshal(msg); err == nil && len(c.send) < cap(c.send) {
				c.send <- data
			}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateViewersConnected(n)
	h.log.Debug(r.Context(), "viewer connected", logger.String("viewer", c.id))

	go h.writePump(c)
	go h.readPump(c)
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// remove unregisters c once and closes its send channel, which ends the
// write pump.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateViewersConnected(n)
}

// readPump discards viewer input and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug(context.Background(), "viewer read failed", logger.String("viewer", c.id), logger.Error(err))
			}
			return
		}
	}
}

// writePump sends one frame per message and pings on idle.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
