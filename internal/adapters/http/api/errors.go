// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"

	"github.com/soundscene/pulse/internal/adapters/clipstore"
	"github.com/soundscene/pulse/internal/adapters/ledger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// isUnavailable reports whether err is a transient storage fault worth a 503.
func isUnavailable(err error) bool {
	return errors.Is(err, clipstore.ErrUnavailable) || errors.Is(err, ledger.ErrUnavailable)
}
