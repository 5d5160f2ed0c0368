package queue

// Option applies a configuration option to an InMemoryQueue.
type Option func(*options)

type options struct {
	capacity int
	name     string
}

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithName sets the label the queue reports its metrics under.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
