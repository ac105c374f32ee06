// Package config defines process configuration and its loading layers.
//
// Conventions:
//   - Keys are flat and snake_case; env vars are the key upper-cased with a
//     KILLFEED_ prefix.
//   - Durations are stored as integer milliseconds (or seconds where the key
//     says so) and exposed through accessor methods.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// LogPath is the game log to follow.
	LogPath string `koanf:"log_path"`
	// Player is the character whose kills and deaths are reported. Empty
	// adopts whichever character logs in.
	Player string `koanf:"player"`
	// DataDir holds the local store and the persisted client id.
	DataDir string `koanf:"data_dir"`

	APIBaseURL    string `koanf:"api_base_url"`
	APIKey        string `koanf:"api_key"`
	ClientID      string `koanf:"client_id"`
	ClientVersion string `koanf:"client_version"`

	RequestTimeoutMS int `koanf:"request_timeout_ms"`
	PollIntervalMS   int `koanf:"poll_interval_ms"`
	RetryDelayMS     int `koanf:"retry_delay_ms"`

	BulkStaggerMS        int `koanf:"bulk_stagger_ms"`
	BulkMaxAttempts      int `koanf:"bulk_max_attempts"`
	BulkInitialBackoffMS int `koanf:"bulk_initial_backoff_ms"`
	BulkMaxBackoffMS     int `koanf:"bulk_max_backoff_ms"`

	// StatusAddr is the status server listen address. Empty disables it.
	StatusAddr string `koanf:"status_addr"`

	WebhookURL        string `koanf:"webhook_url"`
	ChatTemplate      string `koanf:"chat_template"`
	KeypressCommand   string `koanf:"keypress_command"`
	ClipEndpoint      string `koanf:"clip_endpoint"`
	ClipWindowSeconds int    `koanf:"clip_window_seconds"`
	ProfileBaseURL    string `koanf:"profile_base_url"`

	MailboxSize int `koanf:"mailbox_size"`

	// Metric names are <namespace>_<subsystem>_<name>.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsLatencyBucketsMS overrides the latency histogram buckets.
	MetricsLatencyBucketsMS []float64 `koanf:"metrics_latency_buckets_ms"`
}

// Version is stamped at build time with -ldflags.
var Version = "0.1.0"

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		DataDir:              defaultDataDir(),
		ClientVersion:        Version,
		RequestTimeoutMS:     10_000,
		PollIntervalMS:       100,
		RetryDelayMS:         1_000,
		BulkStaggerMS:        500,
		BulkMaxAttempts:      5,
		BulkInitialBackoffMS: 1_000,
		BulkMaxBackoffMS:     30_000,
		StatusAddr:           "127.0.0.1:9310",
		ClipWindowSeconds:    10,
		ProfileBaseURL:       "https://robertsspaceindustries.com/citizens",
		MailboxSize:          1024,
		MetricsNamespace:     "killfeed",
		MetricsSubsystem:     "pipeline",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "killfeed")
	}
	return ".killfeed"
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) RequestTimeout() time.Duration     { return ms(c.RequestTimeoutMS) }
func (c *Config) PollInterval() time.Duration       { return ms(c.PollIntervalMS) }
func (c *Config) RetryDelay() time.Duration         { return ms(c.RetryDelayMS) }
func (c *Config) BulkStagger() time.Duration        { return ms(c.BulkStaggerMS) }
func (c *Config) BulkInitialBackoff() time.Duration { return ms(c.BulkInitialBackoffMS) }
func (c *Config) BulkMaxBackoff() time.Duration     { return ms(c.BulkMaxBackoffMS) }
func (c *Config) ClipWindow() time.Duration         { return time.Duration(c.ClipWindowSeconds) * time.Second }

// StorePath is the local store file.
func (c *Config) StorePath() string { return filepath.Join(c.DataDir, "local_store.json") }
