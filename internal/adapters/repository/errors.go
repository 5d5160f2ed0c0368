package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNoSnapshot = errors.New("no snapshot published")
	ErrMirror     = errors.New("redis mirror write failed")
)
