package repository

import "time"

// Option applies a configuration option to the StateStore.
type Option func(*StateStore)

// WithClock overrides the publish timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *StateStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MirrorOption applies a configuration option to the RedisMirror.
type MirrorOption func(*RedisMirror)

// WithKeyPrefix sets the prefix of every key the mirror writes.
func WithKeyPrefix(prefix string) MirrorOption {
	return func(m *RedisMirror) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithActivityLimit sets how many activities the mirror keeps.
func WithActivityLimit(n int) MirrorOption {
	return func(m *RedisMirror) {
		if n > 0 {
			m.activityLimit = n
		}
	}
}
