package events

import "errors"

// Sentinel kinds for event decoding errors.
var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownType    = errors.New("unknown event type")
)
