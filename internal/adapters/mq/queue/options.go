package queue

type options struct {
	capacity int
}

// Option applies a configuration option to a Mailbox.
type Option func(*options)

// WithCapacity sets how many messages may wait in the mailbox.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}
