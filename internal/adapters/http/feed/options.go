package feed

import "github.com/okian/killfeed/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithHistory sets how many recent messages new clients receive first.
// Zero disables replay.
func WithHistory(n int) Option {
	return func(h *Hub) {
		if n >= 0 {
			h.maxHist = n
		}
	}
}
