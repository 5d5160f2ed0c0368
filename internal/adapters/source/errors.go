package source

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrDataUnavailable reports that the initial fetch failed or returned
	// data that cannot be used.
	ErrDataUnavailable = errors.New("data unavailable")
)
