package service

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrNotStarted is returned by operations that need a running service.
	ErrNotStarted = errors.New("service not started")
	// ErrBusy is returned when the event loop cannot accept more work.
	ErrBusy = errors.New("event loop busy")
)
