// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/internal/domain/ranking"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecordEngagement(ctx context.Context, ev *model.EngagementEvent) error
	GetTrending(ctx context.Context, genre model.Genre, tag string, page, pageSize int) ([]ranking.Ranked, error)
	ClipScore(ctx context.Context, clipID string) (ranking.Ranked, error)
	RegisterClip(ctx context.Context, clip *model.Clip) error
	RemoveClip(ctx context.Context, clipID string) error
	Rebuild(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	engagementsHandler *EngagementsHandler
	trendingHandler    *TrendingHandler
	clipsHandler       *ClipsHandler
	rebuildHandler     *RebuildHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		engagementsHandler: NewEngagementsHandler(deps),
		trendingHandler:    NewTrendingHandler(deps),
		clipsHandler:       NewClipsHandler(deps),
		rebuildHandler:     NewRebuildHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/engagements", MetricsMiddleware(s.engagementsHandler.HandlePostEngagement, "engagements"))
	mux.HandleFunc("/trending", MetricsMiddleware(s.trendingHandler.HandleGetTrending, "trending"))
	mux.HandleFunc("/clips", MetricsMiddleware(s.clipsHandler.HandlePostClip, "clips"))
	mux.HandleFunc("/clips/", MetricsMiddleware(s.clipsHandler.HandleClipPath, "clips"))
	mux.HandleFunc("/rebuild", MetricsMiddleware(s.rebuildHandler.HandleRebuild, "rebuild"))
}

// engagementRequest mirrors the wire schema for POST /engagements.
type engagementRequest struct {
	EventID string `json:"event_id"`
	ClipID  string `json:"clip_id"`
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind"`
	TS      string `json:"ts"`
}

func (e engagementRequest) toEvent() (model.EngagementEvent, error) {
	if strings.TrimSpace(e.ClipID) == "" {
		return model.EngagementEvent{}, errors.New("missing clip_id")
	}
	if strings.TrimSpace(e.ActorID) == "" {
		return model.EngagementEvent{}, errors.New("missing actor_id")
	}
	kind, err := model.ParseEngagementKind(e.Kind)
	if err != nil {
		return model.EngagementEvent{}, err
	}

	var ts time.Time
	if strings.TrimSpace(e.TS) != "" {
		ts, err = time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return model.EngagementEvent{}, errors.New("invalid ts; must be RFC3339")
		}
	}

	return model.EngagementEvent{
		EventID: strings.TrimSpace(e.EventID),
		ClipID:  strings.TrimSpace(e.ClipID),
		ActorID: strings.TrimSpace(e.ActorID),
		Kind:    kind,
		TS:      ts,
	}, nil
}

// clipRequest mirrors the wire schema for POST /clips.
type clipRequest struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Title      string   `json:"title"`
	DurationMS int64    `json:"duration_ms"`
	Genre      string   `json:"genre"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

func (c clipRequest) toClip() (model.Clip, error) {
	genre, err := model.ParseGenre(c.Genre)
	if err != nil {
		return model.Clip{}, err
	}

	var createdAt time.Time
	if strings.TrimSpace(c.CreatedAt) != "" {
		createdAt, err = time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			return model.Clip{}, errors.New("invalid created_at; must be RFC3339")
		}
	}

	return model.Clip{
		ID:        strings.TrimSpace(c.ID),
		OwnerID:   strings.TrimSpace(c.OwnerID),
		Title:     c.Title,
		Duration:  time.Duration(c.DurationMS) * time.Millisecond,
		Genre:     genre,
		Tags:      c.Tags,
		CreatedAt: createdAt,
	}, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id,omitempty"`
}

// trendingItem is one ranked clip in a trending page.
type trendingItem struct {
	ClipID    string   `json:"clip_id"`
	Title     string   `json:"title"`
	OwnerID   string   `json:"owner_id"`
	Genre     string   `json:"genre"`
	Tags      []string `json:"tags"`
	Likes     int64    `json:"likes"`
	Comments  int64    `json:"comments"`
	Shares    int64    `json:"shares"`
	CreatedAt string   `json:"created_at"`
	Score     float64  `json:"score"`
}

type trendingResponse struct {
	Items    []trendingItem `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Code     string         `json:"code,omitempty"`
}

type scoreResponse struct {
	ClipID     string  `json:"clip_id"`
	Score      float64 `json:"score"`
	ComputedAt string  `json:"computed_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toItems(ranked []ranking.Ranked) []trendingItem {
	items := make([]trendingItem, len(ranked))
	for i, r := range ranked {
		items[i] = trendingItem{
			ClipID:    r.Clip.ID,
			Title:     r.Clip.Title,
			OwnerID:   r.Clip.OwnerID,
			Genre:     string(r.Clip.Genre),
			Tags:      r.Clip.NormalizedTags(),
			Likes:     r.Clip.LikeCount,
			Comments:  r.Clip.CommentCount,
			Shares:    r.Clip.ShareCount,
			CreatedAt: r.Clip.CreatedAt.UTC().Format(time.RFC3339),
			Score:     r.Score,
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
