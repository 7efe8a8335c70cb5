// Package ranking computes time-decayed trending scores and produces
// ordered, paginated result sets.
package ranking

import (
	"math"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

// Default gravity-model parameters. With these, a clip with 10 likes and an
// age of one hour scores 10 / (1+2)^1.5.
const (
	defaultLikeWeight    = 1.0
	defaultCommentWeight = 2.0
	defaultShareWeight   = 3.0
	defaultGravity       = 1.5
	defaultAgeOffsetH    = 2.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights sets the per-kind engagement weights. Non-positive values
// leave the corresponding default in place.
func WithWeights(like, comment, share float64) Option {
	return func(e *Engine) {
		if like > 0 {
			e.likeWeight = like
		}
		if comment > 0 {
			e.commentWeight = comment
		}
		if share > 0 {
			e.shareWeight = share
		}
	}
}

// WithGravity sets the time-decay exponent.
func WithGravity(g float64) Option {
	return func(e *Engine) {
		if g > 0 {
			e.gravity = g
		}
	}
}

// WithAgeOffset sets the additive age offset, in hours, that dampens the
// decay on very fresh clips.
func WithAgeOffset(hours float64) Option {
	return func(e *Engine) {
		if hours > 0 {
			e.ageOffsetH = hours
		}
	}
}

// Ranked pairs a clip with its computed trending score.
type Ranked struct {
	Clip  model.Clip
	Score float64
}

// Engine scores clips with a gravity model: weighted engagement divided by
// a power of age. Score is monotonically increasing in every engagement
// counter and monotonically decreasing in age.
type Engine struct {
	likeWeight    float64
	commentWeight float64
	shareWeight   float64
	gravity       float64
	ageOffsetH    float64
}

// New constructs an Engine with default parameters.
func New(opts ...Option) *Engine {
	e := &Engine{
		likeWeight:    defaultLikeWeight,
		commentWeight: defaultCommentWeight,
		shareWeight:   defaultShareWeight,
		gravity:       defaultGravity,
		ageOffsetH:    defaultAgeOffsetH,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the trending score of a clip at the given instant:
//
//	(likes*wl + comments*wc + shares*ws) / (ageHours + offset)^gravity
//
// Clips from the future are clamped to zero age rather than amplified.
func (e *Engine) Score(clip *model.Clip, now time.Time) float64 {
	ageHours := now.Sub(clip.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	engagement := float64(clip.LikeCount)*e.likeWeight +
		float64(clip.CommentCount)*e.commentWeight +
		float64(clip.ShareCount)*e.shareWeight
	return engagement / math.Pow(ageHours+e.ageOffsetH, e.gravity)
}

// Rank orders candidates by score descending and returns the requested page.
// The order is a deterministic total order (score desc, created_at desc,
// clip id asc), so re-querying with unchanged inputs yields the same page
// boundaries. Returns ErrInvalidPage when page or pageSize is below one; a
// page past the end of the candidate set yields an empty, non-nil slice.
func (e *Engine) Rank(candidates []model.Clip, now time.Time, page, pageSize int) ([]Ranked, error) {
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidPage
	}

	ranked := make([]Ranked, 0, len(candidates))
	for i := range candidates {
		if candidates[i].Deleted() {
			continue
		}
		ranked = append(ranked, Ranked{
			Clip:  candidates[i],
			Score: e.Score(&candidates[i], now),
		})
	}
	sortRanked(ranked)

	lo := (page - 1) * pageSize
	if lo >= len(ranked) {
		return []Ranked{}, nil
	}
	hi := lo + pageSize
	if hi > len(ranked) {
		hi = len(ranked)
	}
	return ranked[lo:hi], nil
}
