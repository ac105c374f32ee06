// Package queue provides the mailboxes producers use to hand work to the
// single consumer goroutine.
//
// A Mailbox never closes its data channel. Close signals Done instead, so a
// producer blocked on a full mailbox is released rather than panicking.
package queue

import (
	"context"
	"sync"

	"github.com/okian/killfeed/pkg/metrics"
)

const defaultCapacity = 1024

// Mailbox is a bounded, typed message channel with an explicit close.
type Mailbox[T any] struct {
	name string
	ch   chan T
	done chan struct{}
	once sync.Once
}

// NewMailbox creates a mailbox. name labels error metrics.
func NewMailbox[T any](name string, opts ...Option) *Mailbox[T] {
	o := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mailbox[T]{
		name: name,
		ch:   make(chan T, o.capacity),
		done: make(chan struct{}),
	}
}

// Post delivers v, waiting for space. It returns false when ctx ends or the
// mailbox is closed first.
func (m *Mailbox[T]) Post(ctx context.Context, v T) bool {
	select {
	case <-m.done:
		metrics.RecordErrorByComponent(m.name, "closed")
		return false
	default:
	}
	select {
	case m.ch <- v:
		return true
	case <-m.done:
		metrics.RecordErrorByComponent(m.name, "closed")
		return false
	case <-ctx.Done():
		metrics.RecordErrorByComponent(m.name, "context_cancelled")
		return false
	}
}

// TryPost delivers v only if there is room right now.
func (m *Mailbox[T]) TryPost(v T) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.ch <- v:
		return true
	default:
		metrics.RecordErrorByComponent(m.name, "full")
		return false
	}
}

// Receive returns the channel the consumer reads from.
func (m *Mailbox[T]) Receive() <-chan T { return m.ch }

// Done is closed by Close.
func (m *Mailbox[T]) Done() <-chan struct{} { return m.done }

// Len returns the number of queued messages.
func (m *Mailbox[T]) Len() int { return len(m.ch) }

// Cap returns the mailbox capacity.
func (m *Mailbox[T]) Cap() int { return cap(m.ch) }

// Close stops accepting messages. Queued messages stay readable.
func (m *Mailbox[T]) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// IsClosed reports whether Close was called.
func (m *Mailbox[T]) IsClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
