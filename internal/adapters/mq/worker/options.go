// Package worker runs handlers over queued items: a single worker for the
// ordered event loop and pools for independent jobs.
package worker

import (
	"github.com/okian/coinboard/pkg/logger"
)

// Option applies a configuration option to a Worker or Pool.
type Option func(*options)

type options struct {
	name   string
	logger logger.Logger
}

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
