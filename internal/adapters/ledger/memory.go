package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

// MemoryLedger implements Ledger in process memory, in append order.
type MemoryLedger struct {
	mu     sync.RWMutex
	events []model.EngagementEvent
	seen   map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

// Append records one immutable event.
func (l *MemoryLedger) Append(ctx context.Context, ev *model.EngagementEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[ev.EventID]; ok {
		return ErrDuplicateEvent
	}
	l.seen[ev.EventID] = struct{}{}
	l.events = append(l.events, *ev)
	return nil
}

// CountsFor aggregates event totals for a clip.
func (l *MemoryLedger) CountsFor(ctx context.Context, clipID string) (Counts, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var c Counts
	for i := range l.events {
		if l.events[i].ClipID != clipID {
			continue
		}
		switch l.events[i].Kind {
		case model.KindLike:
			c.Likes++
		case model.KindComment:
			c.Comments++
		case model.KindShare:
			c.Shares++
		}
	}
	return c, nil
}

// Replay streams events with TS at or after since, in append order.
func (l *MemoryLedger) Replay(ctx context.Context, since time.Time, fn func(ev *model.EngagementEvent) error) error {
	l.mu.RLock()
	snapshot := make([]model.EngagementEvent, len(l.events))
	copy(snapshot, l.events)
	l.mu.RUnlock()

	for i := range snapshot {
		if snapshot[i].TS.Before(since) {
			continue
		}
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of recorded events.
func (l *MemoryLedger) Len(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events), nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}
