package patterns

import "github.com/okian/killfeed/pkg/logger"

// Option applies a configuration option to the Library.
type Option func(*Library)

// WithLogger sets the logger used for unknown game mode warnings.
func WithLogger(l logger.Logger) Option {
	return func(lib *Library) {
		if l != nil {
			lib.log = l
		}
	}
}

// WithModeTable replaces the built-in mode table.
func WithModeTable(t ModeTable) Option {
	return func(lib *Library) {
		if len(t) > 0 {
			lib.modes = t
		}
	}
}
