// Package feed keeps the bounded, most-recent-first live activity window.
package feed

import (
	"sync"

	"github.com/okian/coinboard/internal/domain/model"
)

// DefaultCapacity is the number of activities kept when none is configured.
const DefaultCapacity = 10

// Option applies a configuration option to the Window.
type Option func(*Window)

// WithCapacity sets the maximum number of activities kept.
// Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// Window holds the latest activities, newest first. Activities that carry an
// id are recorded at most once while they remain in the window.
type Window struct {
	mu       sync.RWMutex
	items    []model.ActivityEvent
	seen     map[string]struct{}
	capacity int
}

// NewWindow creates an empty window.
func NewWindow(opts ...Option) *Window {
	w := &Window{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(w)
	}
	w.items = make([]model.ActivityEvent, 0, w.capacity)
	w.seen = make(map[string]struct{}, w.capacity)
	return w
}

// Push prepends a and evicts the oldest entry beyond capacity.
// It returns false when an activity with the same id is already present.
func (w *Window) Push(a model.ActivityEvent) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if a.ID != "" {
		if _, dup := w.seen[a.ID]; dup {
			return false
		}
		w.seen[a.ID] = struct{}{}
	}

	if len(w.items) == w.capacity {
		w.evictOldest()
	}
	w.items = append(w.items, model.ActivityEvent{})
	copy(w.items[1:], w.items)
	w.items[0] = a
	return true
}

// Seed replaces the window with activities given newest first.
func (w *Window) Seed(activities []model.ActivityEvent) {
	w.mu.Lock()
	w.items = w.items[:0]
	clear(w.seen)
	w.mu.Unlock()

	for i := min(len(activities), w.capacity) - 1; i >= 0; i-- {
		w.Push(activities[i])
	}
}

// Items returns a copy of the window, newest first.
func (w *Window) Items() []model.ActivityEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.ActivityEvent, len(w.items))
	copy(out, w.items)
	return out
}

// Len returns the number of activities held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Capacity returns the configured maximum.
func (w *Window) Capacity() int {
	return w.capacity
}

// evictOldest drops the tail entry. Must be called with w.mu held.
func (w *Window) evictOldest() {
	last := w.items[len(w.items)-1]
	if last.ID != "" {
		delete(w.seen, last.ID)
	}
	w.items = w.items[:len(w.items)-1]
}
