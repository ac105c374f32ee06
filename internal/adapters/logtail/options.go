package logtail

import (
	"time"

	"github.com/okian/killfeed/pkg/logger"
)

// Option applies a configuration option to the Tailer.
type Option func(*Tailer)

// WithPollInterval sets how long to wait after reaching the end of the file.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithRetryDelay sets the wait after an I/O failure.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.retryDelay = d
		}
	}
}

// WithLogger sets the tailer logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tailer) {
		if l != nil {
			t.log = l
		}
	}
}

// WithoutBackfill starts streaming at the current end of the file.
func WithoutBackfill() Option {
	return func(t *Tailer) {
		t.skipBackfill = true
	}
}
