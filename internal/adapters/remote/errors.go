package remote

import "errors"

// Sentinel kinds for remote API errors.
var (
	ErrUnauthorized = errors.New("api key rejected")
	ErrUnavailable  = errors.New("api unavailable")
	ErrInvalidURL   = errors.New("invalid api base url")
)
