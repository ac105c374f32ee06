// Package dedupe tracks keys that have work in flight.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records keys so the same key is never worked on twice at once.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is held and records it if
	// not. Returns true if id was already held.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id once its work has finished.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty Deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size returns how many keys are held.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
