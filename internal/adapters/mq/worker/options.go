package worker

import (
	"time"

	"github.com/okian/killfeed/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name for identification and logging.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWorkers sets how many tasks run concurrently.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBacklog sets how many tasks may wait before new ones are dropped.
func WithBacklog(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.backlog = n
		}
	}
}

// WithTaskTimeout bounds each task's context.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.taskTimeout = d
		}
	}
}
