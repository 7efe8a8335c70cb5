// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// RebuildHandler triggers the counter recompute from the engagement
// ledger.
type RebuildHandler struct {
	deps Dependencies
}

// NewRebuildHandler creates a new rebuild handler.
func NewRebuildHandler(deps Dependencies) *RebuildHandler {
	return &RebuildHandler{deps: deps}
}

// HandleRebuild handles POST /rebuild requests.
func (h *RebuildHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if err := h.deps.Rebuild(r.Context()); err != nil {
		if isUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "rebuilt"})
}
