package repository

import (
	"time"

	"github.com/okian/killfeed/pkg/logger"
)

// Option applies a configuration option to the JSONStore.
type Option func(*JSONStore)

// WithLogger sets the logger used for load and write failures.
func WithLogger(l logger.Logger) Option {
	return func(s *JSONStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *JSONStore) {
		if now != nil {
			s.now = now
		}
	}
}
