package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrDuplicateEvent = errors.New("duplicate event id")
	ErrUnavailable    = errors.New("ledger unavailable")
)
