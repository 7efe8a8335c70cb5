// Package clipstore persists clip metadata and engagement counters.
package clipstore

import (
	"context"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

// Store provides read/write access to clip records. Counter mutation is an
// atomic increment applied by the storage layer; implementations must never
// read-modify-write counts, so concurrent engagement on one clip loses no
// updates.
type Store interface {
	// Put inserts or replaces a clip's metadata. Counters of an existing
	// clip are preserved.
	Put(ctx context.Context, clip *model.Clip) error

	// Get returns one clip. Returns ErrNotFound for unknown or deleted ids.
	Get(ctx context.Context, id string) (model.Clip, error)

	// GetMany returns the clips for the given ids, skipping unknown and
	// deleted ones.
	GetMany(ctx context.Context, ids []string) ([]model.Clip, error)

	// List returns every live clip, for index rebuilds and unfiltered
	// trending queries.
	List(ctx context.Context) ([]model.Clip, error)

	// Increment atomically bumps the counter for the given engagement kind.
	Increment(ctx context.Context, clipID string, kind model.EngagementKind) error

	// SetCounts overwrites a clip's counters. Used only by the
	// recompute-from-ledger path.
	SetCounts(ctx context.Context, clipID string, likes, comments, shares int64) error

	// MarkDeleted records the upstream soft delete so the clip stops
	// surfacing in queries.
	MarkDeleted(ctx context.Context, clipID string, at time.Time) error

	// Count returns the number of live clips.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
