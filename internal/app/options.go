package service

import (
	"github.com/okian/killfeed/internal/adapters/dispatch"
	"github.com/okian/killfeed/internal/adapters/hooks"
	"github.com/okian/killfeed/internal/adapters/http/feed"
	"github.com/okian/killfeed/internal/adapters/logtail"
	"github.com/okian/killfeed/internal/adapters/mq/worker"
	"github.com/okian/killfeed/internal/adapters/profile"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIdentity sets the character whose events are tracked. Empty adopts the
// first character that logs in.
func WithIdentity(name string) Option {
	return func(s *Service) {
		s.identity = name
	}
}

// WithLibrary replaces the default pattern library.
func WithLibrary(lib *patterns.Library) Option {
	return func(s *Service) {
		if lib != nil {
			s.lib = lib
		}
	}
}

// WithMailboxSize sets the capacity of each consumer mailbox.
func WithMailboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

// WithDispatchOptions forwards options to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(s *Service) {
		s.dispatchOpts = append(s.dispatchOpts, opts...)
	}
}

// WithTailerOptions forwards options to the log tailer.
func WithTailerOptions(opts ...logtail.Option) Option {
	return func(s *Service) {
		s.tailerOpts = append(s.tailerOpts, opts...)
	}
}

// WithHooks sets the side effects fired for accepted live events.
func WithHooks(f *hooks.Fanout) Option {
	return func(s *Service) {
		s.hooks = f
	}
}

// WithFeed publishes session updates to a live display hub.
func WithFeed(h *feed.Hub) Option {
	return func(s *Service) {
		s.feed = h
	}
}

// WithProfiles enables opponent profile lookups run on pool.
func WithProfiles(c *profile.Cache, pool *worker.Pool) Option {
	return func(s *Service) {
		s.profiles = c
		s.pool = pool
	}
}
