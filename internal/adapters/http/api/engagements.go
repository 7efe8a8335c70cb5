// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/soundscene/pulse/internal/app"
)

// EngagementsHandler handles engagement intake requests.
type EngagementsHandler struct {
	deps Dependencies
}

// NewEngagementsHandler creates a new engagements handler.
func NewEngagementsHandler(deps Dependencies) *EngagementsHandler {
	return &EngagementsHandler{deps: deps}
}

// HandlePostEngagement handles POST /engagements requests.
func (h *EngagementsHandler) HandlePostEngagement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	err = h.deps.RecordEngagement(r.Context(), &ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: ev.EventID})
	case errors.Is(err, service.ErrDuplicateEvent):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, EventID: ev.EventID})
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	}
}
