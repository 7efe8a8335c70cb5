package clipstore

import "errors"

// Sentinel kinds for clip store errors.
var (
	ErrNotFound    = errors.New("clip not found")
	ErrUnavailable = errors.New("clip store unavailable")
)
