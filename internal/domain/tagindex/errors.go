package tagindex

import "errors"

// Sentinel kinds for index errors.
var (
	ErrUnknownTag = errors.New("unknown tag")
)
