package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/coinboard/internal/domain/model"
)

const (
	defaultKeyPrefix     = "coinboard"
	defaultActivityLimit = 10
	redisPingTimeout     = 5 * time.Second
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// RedisMirror copies locally applied changes into Redis so other consumers
// can read them: metric patches per chapter (hash), the recent activity list
// and the standings sorted set.
type RedisMirror struct {
	client        *redis.Client
	prefix        string
	activityLimit int
}

// NewRedisMirror creates a mirror over an existing client.
func NewRedisMirror(client *redis.Client, opts ...MirrorOption) *RedisMirror {
	m := &RedisMirror{
		client:        client,
		prefix:        defaultKeyPrefix,
		activityLimit: defaultActivityLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MetricsKey is the hash holding a chapter's mirrored metrics.
func (m *RedisMirror) MetricsKey(chapterID string) string {
	return m.prefix + ":chapter:" + chapterID + ":metrics"
}

// ActivitiesKey is the list holding recent activities, newest first.
func (m *RedisMirror) ActivitiesKey() string {
	return m.prefix + ":activities"
}

// StandingsKey is the sorted set of chapter names scored by total coins.
func (m *RedisMirror) StandingsKey() string {
	return m.prefix + ":standings"
}

// SubmitMetricUpdate writes each patched metric as a JSON hash field.
func (m *RedisMirror) SubmitMetricUpdate(ctx context.Context, chapterID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	values := make([]any, 0, len(patch)*2)
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrMirror, k, err)
		}
		values = append(values, k, string(b))
	}
	if err := m.client.HSet(ctx, m.MetricsKey(chapterID), values...).Err(); err != nil {
		return fmt.Errorf("%w: hset: %v", ErrMirror, err)
	}
	return nil
}

// SubmitActivity prepends the activity and trims the list to its limit.
func (m *RedisMirror) SubmitActivity(ctx context.Context, a model.ActivityEvent) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: encode activity: %v", ErrMirror, err)
	}
	key := m.ActivitiesKey()
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, string(b))
		pipe.LTrim(ctx, key, 0, int64(m.activityLimit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: activity: %v", ErrMirror, err)
	}
	return nil
}

// PublishStandings records every chapter's total coins in the standings set.
func (m *RedisMirror) PublishStandings(ctx context.Context, ranked []model.Chapter) error {
	if len(ranked) == 0 {
		return nil
	}
	members := make([]*redis.Z, 0, len(ranked))
	for _, c := range ranked {
		members = append(members, &redis.Z{Score: float64(c.Performance.TotalCoins), Member: c.Name})
	}
	if err := m.client.ZAdd(ctx, m.StandingsKey(), members...).Err(); err != nil {
		return fmt.Errorf("%w: zadd: %v", ErrMirror, err)
	}
	return nil
}

// Close closes the underlying client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
