package livesync

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// Conn is an open feed connection.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens feed connections.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WebsocketDialer dials the feed with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer returns a dialer with a bounded handshake.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{Dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

// DialContext implements Dialer.
func (d *WebsocketDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
