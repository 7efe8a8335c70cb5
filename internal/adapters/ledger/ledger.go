// Package ledger records individual engagement events. The ledger is
// append-only and is the source of truth for counts: clip counters can be
// rebuilt from it at any time via Replay.
package ledger

import (
	"context"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

// Counts aggregates per-kind event totals for one clip.
type Counts struct {
	Likes    int64
	Comments int64
	Shares   int64
}

// Ledger provides append and replay access to the engagement event log.
type Ledger interface {
	// Append records one immutable event. Appending the same EventID twice
	// returns ErrDuplicateEvent.
	Append(ctx context.Context, ev *model.EngagementEvent) error

	// CountsFor aggregates event totals for a clip.
	CountsFor(ctx context.Context, clipID string) (Counts, error)

	// Replay streams events with TS at or after since, in append order,
	// through fn. A non-nil error from fn stops the replay.
	Replay(ctx context.Context, since time.Time, fn func(ev *model.EngagementEvent) error) error

	// Len returns the number of recorded events.
	Len(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
