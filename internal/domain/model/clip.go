// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
	"time"
)

// MaxClipDuration is the hard cap on clip length.
const MaxClipDuration = 120 * time.Second

// Genre is a closed enumeration of clip genres. Free-form genre strings are
// rejected at entry; see Genre.Validate.
type Genre string

const (
	GenreMusic        Genre = "music"
	GenreComedy       Genre = "comedy"
	GenreNews         Genre = "news"
	GenreSports       Genre = "sports"
	GenreEducation    Genre = "education"
	GenreStorytelling Genre = "storytelling"
	GenreTechnology   Genre = "technology"
	GenreOther        Genre = "other"
)

// Genres lists every valid genre value.
func Genres() []Genre {
	return []Genre{
		GenreMusic,
		GenreComedy,
		GenreNews,
		GenreSports,
		GenreEducation,
		GenreStorytelling,
		GenreTechnology,
		GenreOther,
	}
}

// ParseGenre normalizes and validates a genre string.
func ParseGenre(s string) (Genre, error) {
	g := Genre(strings.ToLower(strings.TrimSpace(s)))
	if err := g.Validate(); err != nil {
		return "", err
	}
	return g, nil
}

// Validate reports whether the genre is part of the closed enumeration.
func (g Genre) Validate() error {
	switch g {
	case GenreMusic, GenreComedy, GenreNews, GenreSports,
		GenreEducation, GenreStorytelling, GenreTechnology, GenreOther:
		return nil
	}
	return ErrUnknownGenre
}

// Clip is an uploaded audio item's metadata as seen by the ranking core.
// The core reads clips and mutates engagement counters; durability and
// soft deletion are owned by the upload service.
type Clip struct {
	ID           string
	OwnerID      string
	Title        string
	Duration     time.Duration
	Tags         []string
	Genre        Genre
	CreatedAt    time.Time
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
	DeletedAt    *time.Time
}

// Validate checks the invariants enforced at entry.
func (c *Clip) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrMissingClipID
	}
	if c.Duration <= 0 || c.Duration > MaxClipDuration {
		return ErrDurationTooLong
	}
	if err := c.Genre.Validate(); err != nil {
		return err
	}
	return nil
}

// Deleted reports whether the clip has been soft-deleted upstream.
func (c *Clip) Deleted() bool {
	return c.DeletedAt != nil
}

// NormalizedTags returns the clip's tag set lowercased, deduplicated and
// sorted. Index and store implementations operate on this form.
func (c *Clip) NormalizedTags() []string {
	seen := make(map[string]struct{}, len(c.Tags))
	out := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TrendingScore is a derived popularity value for one clip. It is recomputed
// from counters and recency, never mutated directly by a user action.
type TrendingScore struct {
	ClipID     string
	Value      float64
	ComputedAt time.Time
}
