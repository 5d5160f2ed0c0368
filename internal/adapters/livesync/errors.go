package livesync

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrTransportFailure reports a failed dial or a dropped connection.
	// The channel recovers from it by reconnecting.
	ErrTransportFailure = errors.New("transport failure")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("channel closed")
)
