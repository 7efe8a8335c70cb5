// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/internal/domain/ranking"
	"github.com/soundscene/pulse/internal/domain/tagindex"
)

// Paging defaults for GET /trending.
const (
	defaultPage     = 1
	defaultPageSize = 20
)

// TrendingHandler handles trending feed requests.
type TrendingHandler struct {
	deps Dependencies
}

// NewTrendingHandler creates a new trending handler.
func NewTrendingHandler(deps Dependencies) *TrendingHandler {
	return &TrendingHandler{deps: deps}
}

// HandleGetTrending handles GET /trending?genre=&tag=&page=&page_size=
// requests.
func (h *TrendingHandler) HandleGetTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()

	var genre model.Genre
	if raw := q.Get("genre"); raw != "" {
		parsed, err := model.ParseGenre(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_genre", err)
			return
		}
		genre = parsed
	}

	page, err := queryInt(q.Get("page"), defaultPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page", ranking.ErrInvalidPage)
		return
	}
	pageSize, err := queryInt(q.Get("page_size"), defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page", ranking.ErrInvalidPage)
		return
	}

	tag := q.Get("tag")
	ranked, err := h.deps.GetTrending(r.Context(), genre, tag, page, pageSize)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, trendingResponse{
			Items:    toItems(ranked),
			Page:     page,
			PageSize: pageSize,
		})
	case errors.Is(err, ranking.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "invalid_page", err)
	case errors.Is(err, tagindex.ErrUnknownTag):
		// An unknown tag is an empty result, not a fault.
		writeJSON(w, http.StatusOK, trendingResponse{
			Items:    []trendingItem{},
			Page:     page,
			PageSize: pageSize,
			Code:     "unknown_tag",
		})
	case isUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
