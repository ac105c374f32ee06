package repository

import "errors"

// Sentinel kinds for local store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrCorruptStore = errors.New("local store is corrupt")
	ErrPersist      = errors.New("failed to persist local store")
	ErrClosed       = errors.New("local store closed")
)
