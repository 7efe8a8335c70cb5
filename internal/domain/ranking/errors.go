package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrInvalidPage = errors.New("invalid page or page size")
)
