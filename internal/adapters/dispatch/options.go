package dispatch

import (
	"time"

	"github.com/okian/killfeed/internal/domain/dedupe"
	"github.com/okian/killfeed/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithStagger sets the minimum gap between bulk submissions.
func WithStagger(gap time.Duration) Option {
	return func(d *Dispatcher) {
		if gap > 0 {
			d.stagger = gap
		}
	}
}

// WithMaxAttempts caps bulk attempts per event, first try included.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoff sets the bulk retry backoff bounds.
func WithBackoff(initial, max time.Duration) Option {
	return func(d *Dispatcher) {
		if initial > 0 {
			d.initialBackoff = initial
		}
		if max > 0 {
			d.maxBackoff = max
		}
	}
}

// WithDeduper replaces the in-flight key tracker.
func WithDeduper(dd dedupe.Deduper) Option {
	return func(d *Dispatcher) {
		if dd != nil {
			d.inflight = dd
		}
	}
}
