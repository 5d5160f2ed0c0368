package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/coinboard/pkg/logger"
)

const poolShutdownTimeout = 30 * time.Second

// Handler processes one item. Errors are logged and do not stop the worker.
type Handler[T any] func(ctx context.Context, item T) error

// Source is where workers receive items from.
type Source[T any] interface {
	Dequeue() <-chan T
}

// Worker processes items from a source one at a time, in arrival order.
type Worker[T any] struct {
	source  Source[T]
	handler Handler[T]
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New[T any](source Source[T], handler Handler[T], opts ...Option) *Worker[T] {
	o := options{name: "worker"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}

	return &Worker[T]{
		source:   source,
		handler:  handler,
		name:     o.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   o.logger.Named(o.name),
	}
}

// Run processes items until ctx is canceled, Stop is called, or the source
// is closed and drained.
func (w *Worker[T]) Run(ctx context.Context) {
	defer close(w.done)

	items := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			w.process(ctx, item)
		}
	}
}

func (w *Worker[T]) process(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "handler panicked", logger.Any("panic", r))
		}
	}()
	if err := w.handler(ctx, item); err != nil {
		w.logger.Error(ctx, "error processing item", logger.Error(err))
	}
}

// Stop signals the worker to return without draining.
func (w *Worker[T]) Stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// Done is closed once Run has returned.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// Shutdown stops the worker and waits for it to return.
func (w *Worker[T]) Shutdown(ctx context.Context) error {
	w.Stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool runs several workers over the same source. Items are handled
// concurrently and without ordering guarantees.
type Pool[T any] struct {
	workers []*Worker[T]
	source  Source[T]
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; at least one is created.
func NewPool[T any](workerCount int, source Source[T], handler Handler[T], opts ...Option) *Pool[T] {
	o := options{name: "worker-pool"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	workerCount = max(workerCount, 1)

	p := &Pool[T]{
		workers: make([]*Worker[T], workerCount),
		source:  source,
		logger:  o.logger.Named(o.name),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = New(source, handler,
			WithName(o.name+"-"+strconv.Itoa(i)),
			WithLogger(o.logger),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the source when it supports closing, lets workers drain it,
// and waits for them up to the context deadline.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.Stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
