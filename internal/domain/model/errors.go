package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidChapter = errors.New("invalid chapter")
	ErrInvalidState   = errors.New("invalid game state")
	ErrUnknownMetric  = errors.New("unknown metric")
)
