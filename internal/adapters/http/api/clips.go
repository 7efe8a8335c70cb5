// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soundscene/pulse/internal/adapters/clipstore"
)

// ClipsHandler handles clip metadata registration, removal and score
// lookups.
type ClipsHandler struct {
	deps Dependencies
}

// NewClipsHandler creates a new clips handler.
func NewClipsHandler(deps Dependencies) *ClipsHandler {
	return &ClipsHandler{deps: deps}
}

// HandlePostClip handles POST /clips requests.
func (h *ClipsHandler) HandlePostClip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req clipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	clip, err := req.toClip()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := h.deps.RegisterClip(r.Context(), &clip); err != nil {
		if isUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "registered"})
}

// HandleClipPath routes /clips/{id} and /clips/{id}/score requests.
func (h *ClipsHandler) HandleClipPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/clips/")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(rest, "/score"):
		h.handleGetScore(w, r, strings.TrimSuffix(rest, "/score"))
	case r.Method == http.MethodDelete && rest != "" && !strings.Contains(rest, "/"):
		h.handleDelete(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

func (h *ClipsHandler) handleGetScore(w http.ResponseWriter, r *http.Request, clipID string) {
	if clipID == "" || strings.Contains(clipID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	ranked, err := h.deps.ClipScore(r.Context(), clipID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, scoreResponse{
			ClipID:     ranked.Clip.ID,
			Score:      ranked.Score,
			ComputedAt: time.Now().UTC().Format(time.RFC3339),
		})
	case errors.Is(err, clipstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func (h *ClipsHandler) handleDelete(w http.ResponseWriter, r *http.Request, clipID string) {
	err := h.deps.RemoveClip(r.Context(), clipID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ackResponse{Status: "removed"})
	case errors.Is(err, clipstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
