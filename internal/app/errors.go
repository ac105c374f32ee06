package service

import "errors"

var (
	// ErrUnknownToken is returned when a rescan confirmation does not match
	// the pending preview.
	ErrUnknownToken = errors.New("unknown or expired rescan token")
	// ErrStopped is returned when the consumer is no longer accepting work.
	ErrStopped = errors.New("service stopped")
)
