package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/coinboard/internal/adapters/mq/queue"
	"github.com/okian/coinboard/internal/adapters/mq/worker"
	"github.com/okian/coinboard/internal/domain/model"
	"github.com/okian/coinboard/pkg/logger"
	"github.com/okian/coinboard/pkg/metrics"
)

const (
	outboxName        = "outbox"
	defaultJobTimeout = 15 * time.Second

	kindMetric    = "metric"
	kindActivity  = "activity"
	kindStandings = "standings"
)

// job is one pending submission: a metric patch, an activity or standings.
type job struct {
	chapterID string
	patch     map[string]any
	activity  *model.ActivityEvent
	standings []model.Chapter
}

func (j job) kind() string {
	switch {
	case j.activity != nil:
		return kindActivity
	case j.standings != nil:
		return kindStandings
	default:
		return kindMetric
	}
}

// OutboxOption configures an Outbox.
type OutboxOption func(*outboxOptions)

type outboxOptions struct {
	capacity int
	workers  int
	timeout  time.Duration
	logger   logger.Logger
}

// WithOutboxCapacity bounds the number of pending submissions.
func WithOutboxCapacity(n int) OutboxOption {
	return func(o *outboxOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithWorkers sets the number of concurrent senders.
func WithWorkers(n int) OutboxOption {
	return func(o *outboxOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithJobTimeout bounds a single submission.
func WithJobTimeout(d time.Duration) OutboxOption {
	return func(o *outboxOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOutboxLogger sets the logger.
func WithOutboxLogger(l logger.Logger) OutboxOption {
	return func(o *outboxOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Outbox queues submissions and sends them from a worker pool so a slow
// collaborator never blocks the caller. Failed or dropped submissions are
// logged and counted, never retried.
type Outbox struct {
	target  Submitter
	queue   *queue.InMemoryQueue[job]
	pool    *worker.Pool[job]
	timeout time.Duration
	log     logger.Logger
}

// NewOutbox creates an outbox in front of target. Call Start before use.
func NewOutbox(target Submitter, opts ...OutboxOption) *Outbox {
	o := outboxOptions{capacity: 256, workers: 2, timeout: defaultJobTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	if target == nil {
		target = Nop{}
	}

	ob := &Outbox{
		target:  target,
		queue:   queue.NewInMemoryQueue[job](queue.WithCapacity(o.capacity), queue.WithName(outboxName)),
		timeout: o.timeout,
		log:     o.logger.Named(outboxName),
	}
	ob.pool = worker.NewPool[job](o.workers, ob.queue, ob.send,
		worker.WithName(outboxName), worker.WithLogger(o.logger))
	return ob
}

// Start launches the senders.
func (o *Outbox) Start(ctx context.Context) {
	o.pool.Start(ctx)
}

// SubmitMetricUpdate queues a metric patch. It only fails when the outbox is
// full or closed.
func (o *Outbox) SubmitMetricUpdate(ctx context.Context, chapterID string, patch map[string]any) error {
	return o.enqueue(ctx, job{chapterID: chapterID, patch: patch})
}

// SubmitActivity queues an activity.
func (o *Outbox) SubmitActivity(ctx context.Context, a model.ActivityEvent) error {
	return o.enqueue(ctx, job{activity: &a})
}

// PublishStandings queues a ranking for targets that publish standings. It is
// a no-op for targets that do not.
func (o *Outbox) PublishStandings(ctx context.Context, ranked []model.Chapter) error {
	if _, ok := o.target.(StandingsPublisher); !ok || len(ranked) == 0 {
		return nil
	}
	return o.enqueue(ctx, job{standings: ranked})
}

func (o *Outbox) enqueue(ctx context.Context, j job) error {
	if err := o.queue.Enqueue(ctx, j); err != nil {
		metrics.RecordSubmissionFailure(j.kind())
		o.log.Warn(ctx, "submission dropped", logger.String("kind", j.kind()), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrSubmissionFailure, err)
	}
	return nil
}

func (o *Outbox) send(ctx context.Context, j job) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	var err error
	switch j.kind() {
	case kindActivity:
		err = o.target.SubmitActivity(ctx, *j.activity)
	case kindStandings:
		err = o.target.(StandingsPublisher).PublishStandings(ctx, j.standings)
	default:
		err = o.target.SubmitMetricUpdate(ctx, j.chapterID, j.patch)
	}
	if err != nil {
		metrics.RecordSubmissionFailure(j.kind())
		if !errors.Is(err, ErrSubmissionFailure) {
			err = fmt.Errorf("%w: %w", ErrSubmissionFailure, err)
		}
		return fmt.Errorf("%s submission: %w", j.kind(), err)
	}
	metrics.RecordSubmission(j.kind())
	return nil
}

// Pending returns the number of queued submissions.
func (o *Outbox) Pending() int {
	return o.queue.Len()
}

// Shutdown stops accepting submissions and drains the queue.
func (o *Outbox) Shutdown(ctx context.Context) error {
	return o.pool.Shutdown(ctx)
}
