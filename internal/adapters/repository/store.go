// Package repository defines the local event store interface and errors.
package repository

import (
	"context"

	"github.com/okian/killfeed/internal/domain/model"
)

// Store is the session's record of which events have been seen and sent.
// It is the only authority on whether a key was already processed.
type Store interface {
	// Upsert inserts e unless its key exists. Returns the stored record and
	// true when it was newly created; an existing record is left untouched.
	Upsert(ctx context.Context, e model.Event) (model.Record, bool, error)

	// Get returns the record for key.
	Get(ctx context.Context, key string) (model.Record, bool)

	// Contains reports whether key is stored, sent or not.
	Contains(ctx context.Context, key string) bool

	// MarkSent flags key as delivered. The bool is true only on the
	// false -> true transition. Returns ErrNotFound for unknown keys.
	MarkSent(ctx context.Context, key string, meta model.SentMeta) (model.Record, bool, error)

	// SetClipURL attaches a clip link. Returns ErrNotFound for unknown keys.
	SetClipURL(ctx context.Context, key, url string) error

	// Remove deletes key. Removing an unknown key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear drops every record.
	Clear(ctx context.Context) error

	// Records returns a snapshot ordered by event timestamp.
	Records(ctx context.Context) []model.Record

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	Close() error
}
