package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soundscene/pulse/internal/domain/model"
)

func ledgers(t *testing.T) map[string]Ledger {
	t.Helper()

	sqlite, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite ledger: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"sqlite": sqlite,
	}
}

func event(id, clipID string, kind model.EngagementKind, ts time.Time) *model.EngagementEvent {
	return &model.EngagementEvent{
		EventID: id,
		ClipID:  clipID,
		ActorID: "actor-1",
		Kind:    kind,
		TS:      ts,
	}
}

func TestLedger_AppendAndCounts(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for name, led := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			seed := []*model.EngagementEvent{
				event("ev-1", "c1", model.KindLike, base),
				event("ev-2", "c1", model.KindLike, base.Add(time.Minute)),
				event("ev-3", "c1", model.KindComment, base.Add(2*time.Minute)),
				event("ev-4", "c2", model.KindShare, base.Add(3*time.Minute)),
			}
			for _, ev := range seed {
				if err := led.Append(ctx, ev); err != nil {
					t.Fatalf("append %s: %v", ev.EventID, err)
				}
			}

			counts, err := led.CountsFor(ctx, "c1")
			if err != nil {
				t.Fatalf("counts: %v", err)
			}
			if counts.Likes != 2 || counts.Comments != 1 || counts.Shares != 0 {
				t.Errorf("unexpected counts for c1: %+v", counts)
			}

			counts, err = led.CountsFor(ctx, "c2")
			if err != nil {
				t.Fatalf("counts: %v", err)
			}
			if counts.Shares != 1 {
				t.Errorf("unexpected counts for c2: %+v", counts)
			}

			n, err := led.Len(ctx)
			if err != nil {
				t.Fatalf("len: %v", err)
			}
			if n != 4 {
				t.Errorf("expected 4 events, got %d", n)
			}
		})
	}
}

func TestLedger_DuplicateEventID(t *testing.T) {
	ctx := context.Background()
	ts := time.Now()

	for name, led := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			if err := led.Append(ctx, event("ev-1", "c1", model.KindLike, ts)); err != nil {
				t.Fatalf("append: %v", err)
			}
			err := led.Append(ctx, event("ev-1", "c9", model.KindShare, ts))
			if !errors.Is(err, ErrDuplicateEvent) {
				t.Errorf("expected ErrDuplicateEvent, got %v", err)
			}
		})
	}
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	ts := time.Now()

	for name, led := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			const goroutines = 8
			const perGoroutine = 25

			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						ev := event(fmt.Sprintf("ev-%d-%d", g, i), "c1", model.KindLike, ts)
						if err := led.Append(ctx, ev); err != nil {
							t.Errorf("append %s: %v", ev.EventID, err)
							return
						}
					}
				}(g)
			}
			wg.Wait()

			n, err := led.Len(ctx)
			if err != nil {
				t.Fatalf("len: %v", err)
			}
			if want := goroutines * perGoroutine; n != want {
				t.Errorf("lost events: expected %d, got %d", want, n)
			}
		})
	}
}

func TestLedger_Replay(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for name, led := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			for i, kind := range []model.EngagementKind{model.KindLike, model.KindComment, model.KindShare} {
				ev := event("ev-"+string(kind), "c1", kind, base.Add(time.Duration(i)*time.Hour))
				if err := led.Append(ctx, ev); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			assertReplay := func(since time.Time, want int) {
				got := 0
				err := led.Replay(ctx, since, func(ev *model.EngagementEvent) error {
					got++
					return nil
				})
				if err != nil {
					t.Fatalf("replay: %v", err)
				}
				if got != want {
					t.Errorf("replay since %v: expected %d events, got %d", since, want, got)
				}
			}

			assertReplay(time.Time{}, 3)
			assertReplay(base.Add(time.Hour), 2)
			assertReplay(base.Add(3*time.Hour), 0)

			// A failing callback stops the replay.
			stop := errors.New("stop")
			calls := 0
			err := led.Replay(ctx, time.Time{}, func(ev *model.EngagementEvent) error {
				calls++
				return stop
			})
			if !errors.Is(err, stop) {
				t.Errorf("expected callback error, got %v", err)
			}
			if calls != 1 {
				t.Errorf("expected replay to stop after first event, got %d calls", calls)
			}
		})
	}
}
