package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "KILLFEED_"
	envConfig    = "KILLFEED_CONFIG"
	envDotFile   = "KILLFEED_ENV_FILE"
	clientIDFile = "client_id"
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML or TOML by extension) from path, or KILLFEED_CONFIG
//  3. env (prefix KILLFEED_), after loading a .env file if one exists
//
// Command-line flags are applied on top by the caller.
func Load(ctx context.Context, path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// KILLFEED_LOG_PATH -> log_path; underscores are kept to match the flat tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return tomlParser{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported config file type %q", ErrLoadConfig, filepath.Ext(path))
	}
}

// loadDotEnv reads KILLFEED_ENV_FILE (default ./.env) into the process
// environment. Variables already set win.
func loadDotEnv() error {
	path := os.Getenv(envDotFile)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("%w: env file %s: %v", ErrLoadConfig, path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: env file %s: %v", ErrLoadConfig, path, err)
	}
	return nil
}

// Validate checks the settings needed to run the pipeline.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.LogPath) == "" {
		problems = append(problems, "log_path must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir must be set")
	}
	if u, err := url.Parse(c.APIBaseURL); strings.TrimSpace(c.APIBaseURL) == "" || err != nil || u.Host == "" {
		problems = append(problems, "api_base_url must be an absolute URL")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		problems = append(problems, "log_format must be text or json")
	}
	for name, v := range map[string]int{
		"request_timeout_ms":      c.RequestTimeoutMS,
		"poll_interval_ms":        c.PollIntervalMS,
		"retry_delay_ms":          c.RetryDelayMS,
		"bulk_stagger_ms":         c.BulkStaggerMS,
		"bulk_max_attempts":       c.BulkMaxAttempts,
		"bulk_initial_backoff_ms": c.BulkInitialBackoffMS,
		"bulk_max_backoff_ms":     c.BulkMaxBackoffMS,
		"mailbox_size":            c.MailboxSize,
	} {
		if v <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if c.BulkMaxBackoffMS < c.BulkInitialBackoffMS {
		problems = append(problems, "bulk_max_backoff_ms must not be below bulk_initial_backoff_ms")
	}
	if c.ClipWindowSeconds < 0 {
		problems = append(problems, "clip_window_seconds must not be negative")
	}
	if !metricName.MatchString(c.MetricsNamespace) {
		problems = append(problems, "metrics_namespace must be a valid metric name")
	}
	if c.MetricsSubsystem != "" && !metricName.MatchString(c.MetricsSubsystem) {
		problems = append(problems, "metrics_subsystem must be a valid metric name")
	}
	for i, b := range c.MetricsLatencyBucketsMS {
		if b <= 0 || (i > 0 && b <= c.MetricsLatencyBucketsMS[i-1]) {
			problems = append(problems, "metrics_latency_buckets_ms must be positive and increasing")
			break
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// EnsureClientID fills ClientID from <data_dir>/client_id, generating and
// persisting a new one on first run.
func (c *Config) EnsureClientID() error {
	if strings.TrimSpace(c.ClientID) != "" {
		return nil
	}
	path := filepath.Join(c.DataDir, clientIDFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil && strings.TrimSpace(string(data)) != "":
		c.ClientID = strings.TrimSpace(string(data))
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read client id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write client id: %w", err)
	}
	c.ClientID = id
	return nil
}
