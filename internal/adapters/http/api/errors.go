package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrServe      = errors.New("status server failed")
	ErrBadRequest = errors.New("bad request")
)
