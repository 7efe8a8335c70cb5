// Package scorecache caches computed trending pages. Pages are cached under
// an explicit TTL: readers may observe results up to one TTL window stale,
// which is an accepted trade documented on the service's GetTrending.
package scorecache

import (
	"context"
	"fmt"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/internal/domain/ranking"
)

// Key identifies one cached trending page.
type Key struct {
	Genre    model.Genre
	Tag      string
	Page     int
	PageSize int
}

// String renders the key for backends that need a flat form.
func (k Key) String() string {
	return fmt.Sprintf("trending:%s:%s:%d:%d", k.Genre, k.Tag, k.Page, k.PageSize)
}

// Cache stores trending pages under a TTL.
type Cache interface {
	// Get returns a cached page and true, or false when absent or expired.
	Get(ctx context.Context, key Key) ([]ranking.Ranked, bool)

	// Set stores a page under the configured TTL.
	Set(ctx context.Context, key Key, page []ranking.Ranked)

	// Invalidate drops every cached page. Used after counter rebuilds.
	Invalidate(ctx context.Context)

	// Close releases backend resources.
	Close() error
}

// defaultTTL bounds staleness when no TTL is configured.
const defaultTTL = 5 * time.Second
