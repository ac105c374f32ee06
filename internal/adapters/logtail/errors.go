package logtail

import "errors"

// ErrFileUnavailable wraps open, stat and read failures on the tailed path.
// The tailer retries these; they never stop it.
var ErrFileUnavailable = errors.New("log file unavailable")
