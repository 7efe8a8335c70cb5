package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrUnknownGenre    = errors.New("unknown genre")
	ErrUnknownKind     = errors.New("unknown engagement kind")
	ErrDurationTooLong = errors.New("clip duration out of range")
	ErrMissingClipID   = errors.New("missing clip id")
	ErrMissingEventID  = errors.New("missing event id")
)
