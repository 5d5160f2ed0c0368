// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and COINBOARD_ env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Source kinds accepted by the Source field.
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
	SourceFile     = "file"
	SourceDemo     = "demo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// FeedURL is the websocket URL of the live feed. Empty disables live sync.
	FeedURL string `koanf:"feed_url" validate:"omitempty,url"`

	// ReconnectDelayMS is the pause before redialling a closed feed.
	ReconnectDelayMS int `koanf:"reconnect_delay_ms" validate:"gt=0"`

	// ActivityWindow caps the number of recent activities kept.
	ActivityWindow int `koanf:"activity_window" validate:"gt=0"`

	// CoinPulseMS is how long a coin pulse stays active.
	CoinPulseMS int `koanf:"coin_pulse_ms" validate:"gt=0"`

	// AchievementDismissMS is how long an achievement notification is shown.
	AchievementDismissMS int `koanf:"achievement_dismiss_ms" validate:"gt=0"`

	// CountdownTickMS is the countdown refresh and ranking cycle interval.
	CountdownTickMS int `koanf:"countdown_tick_ms" validate:"gt=0"`

	// InboxSize bounds the event loop's command queue.
	InboxSize int `koanf:"inbox_size" validate:"gt=0"`

	// OutboxSize bounds the queue of pending submissions.
	OutboxSize int `koanf:"outbox_size" validate:"gt=0"`

	// SubmitWorkers sets the number of submission workers.
	SubmitWorkers int `koanf:"submit_workers" validate:"gt=0"`

	// Source selects where the initial game state comes from.
	Source string `koanf:"source" validate:"oneof=http postgres file demo"`

	// SourceURL is the API base for the http source, e.g. http://host/api.
	SourceURL string `koanf:"source_url" validate:"required_if=Source http,omitempty,url"`

	// PostgresDSN is the connection string for the postgres source.
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=Source postgres"`

	// SeedFile is the YAML file read by the file source.
	SeedFile string `koanf:"seed_file" validate:"required_if=Source file"`

	// SubmitURL is the API base that receives local edits. Empty disables it.
	SubmitURL string `koanf:"submit_url" validate:"omitempty,url"`

	// RedisAddr enables the Redis mirror when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		ReconnectDelayMS:     5_000,
		ActivityWindow:       10,
		CoinPulseMS:          1_000,
		AchievementDismissMS: 3_000,
		CountdownTickMS:      60_000,
		InboxSize:            1_024,
		OutboxSize:           256,
		SubmitWorkers:        2,
		Source:               SourceDemo,
	}
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return wrap(ErrInvalidConfig, err)
	}
	return nil
}

// ReconnectDelay returns ReconnectDelayMS as a duration.
func (c *Config) ReconnectDelay() time.Duration { return ms(c.ReconnectDelayMS) }

// CoinPulse returns CoinPulseMS as a duration.
func (c *Config) CoinPulse() time.Duration { return ms(c.CoinPulseMS) }

// AchievementDismiss returns AchievementDismissMS as a duration.
func (c *Config) AchievementDismiss() time.Duration { return ms(c.AchievementDismissMS) }

// CountdownTick returns CountdownTickMS as a duration.
func (c *Config) CountdownTick() time.Duration { return ms(c.CountdownTickMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
