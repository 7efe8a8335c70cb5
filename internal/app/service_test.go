package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/soundscene/pulse/internal/adapters/clipstore"
	service "github.com/soundscene/pulse/internal/app"
	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/internal/domain/ranking"
	"github.com/soundscene/pulse/internal/domain/tagindex"
	"github.com/soundscene/pulse/pkg/logger"
	"github.com/soundscene/pulse/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithCacheTTL(50 * time.Millisecond),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func clip(id string, genre model.Genre, age time.Duration, tags ...string) *model.Clip {
	return &model.Clip{
		ID:        id,
		OwnerID:   "owner-" + id,
		Title:     "clip " + id,
		Duration:  30 * time.Second,
		Genre:     genre,
		Tags:      tags,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

// waitForScore polls until the clip's like count reaches want, giving
// the async workers time to drain the queue.
func waitForCounts(t *testing.T, svc *service.Service, clipID string, wantLikes int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ranked, err := svc.ClipScore(context.Background(), clipID)
		if err == nil && ranked.Clip.LikeCount >= wantLikes {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("clip %s never reached %d likes", clipID, wantLikes)
}

// counterValue reads a counter's current total from the exposition registry.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t)

		Convey("Stats report the started state", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)
		})

		Convey("Stop is idempotent", func() {
			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})

	Convey("Given a service that never started", t, func() {
		svc := service.New()

		Convey("Operations fail with ErrNotStarted", func() {
			_, err := svc.GetTrending(context.Background(), "", "", 1, 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Rebuild(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestRegisterAndRemoveClip(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := startService(t)

		Convey("When registering a valid clip", func() {
			c := clip("c1", model.GenreMusic, time.Hour, "jazz")
			So(svc.RegisterClip(ctx, c), ShouldBeNil)

			Convey("Then its score is queryable", func() {
				ranked, err := svc.ClipScore(ctx, "c1")
				So(err, ShouldBeNil)
				So(ranked.Clip.ID, ShouldEqual, "c1")
				So(ranked.Score, ShouldEqual, 0)
			})

			Convey("And removing it hides it from scoring", func() {
				So(svc.RemoveClip(ctx, "c1"), ShouldBeNil)
				_, err := svc.ClipScore(ctx, "c1")
				So(errors.Is(err, clipstore.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When registering a clip that is too long", func() {
			c := clip("c2", model.GenreMusic, time.Hour)
			c.Duration = 3 * time.Minute
			So(errors.Is(svc.RegisterClip(ctx, c), model.ErrDurationTooLong), ShouldBeTrue)
		})

		Convey("When registering a clip with an unknown genre", func() {
			c := clip("c3", model.Genre("opera"), time.Hour)
			So(errors.Is(svc.RegisterClip(ctx, c), model.ErrUnknownGenre), ShouldBeTrue)
		})

		Convey("When removing a clip that does not exist", func() {
			err := svc.RemoveClip(ctx, "ghost")
			So(errors.Is(err, clipstore.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestRecordEngagement(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one clip", t, func() {
		svc := startService(t)
		So(svc.RegisterClip(ctx, clip("c1", model.GenreComedy, time.Hour)), ShouldBeNil)

		Convey("When recording likes", func() {
			for i := 0; i < 5; i++ {
				ev := &model.EngagementEvent{
					EventID: fmt.Sprintf("ev-%d", i),
					ClipID:  "c1",
					ActorID: "a1",
					Kind:    model.KindLike,
				}
				So(svc.RecordEngagement(ctx, ev), ShouldBeNil)
			}

			Convey("Then the counters catch up", func() {
				waitForCounts(t, svc, "c1", 5)
				ranked, err := svc.ClipScore(ctx, "c1")
				So(err, ShouldBeNil)
				So(ranked.Score, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When replaying the same event id", func() {
			ev := &model.EngagementEvent{EventID: "dup-1", ClipID: "c1", ActorID: "a1", Kind: model.KindShare}
			So(svc.RecordEngagement(ctx, ev), ShouldBeNil)

			again := &model.EngagementEvent{EventID: "dup-1", ClipID: "c1", ActorID: "a1", Kind: model.KindShare}
			err := svc.RecordEngagement(ctx, again)
			So(errors.Is(err, service.ErrDuplicateEvent), ShouldBeTrue)
		})

		Convey("When the event id is missing", func() {
			ev := &model.EngagementEvent{ClipID: "c1", ActorID: "a1", Kind: model.KindLike}
			So(svc.RecordEngagement(ctx, ev), ShouldBeNil)
			So(ev.EventID, ShouldNotBeEmpty)
		})

		Convey("When the kind is invalid", func() {
			ev := &model.EngagementEvent{EventID: "bad-1", ClipID: "c1", ActorID: "a1", Kind: "boost"}
			So(errors.Is(svc.RecordEngagement(ctx, ev), model.ErrUnknownKind), ShouldBeTrue)
		})
	})
}

func TestGetTrending(t *testing.T) {
	ctx := context.Background()

	Convey("Given clips across genres and tags", t, func() {
		svc := startService(t)

		old := clip("old", model.GenreMusic, 48*time.Hour, "jazz")
		old.LikeCount = 100
		fresh := clip("fresh", model.GenreMusic, time.Hour, "jazz", "live")
		fresh.LikeCount = 100
		news := clip("news", model.GenreNews, time.Hour, "politics")
		news.LikeCount = 10
		So(svc.RegisterClip(ctx, old), ShouldBeNil)
		So(svc.RegisterClip(ctx, fresh), ShouldBeNil)
		So(svc.RegisterClip(ctx, news), ShouldBeNil)

		Convey("Unfiltered trending orders by decayed score", func() {
			page, err := svc.GetTrending(ctx, "", "", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 3)
			So(page[0].Clip.ID, ShouldEqual, "fresh")
			So(page[1].Clip.ID, ShouldEqual, "news")
			So(page[2].Clip.ID, ShouldEqual, "old")
		})

		Convey("A genre filter narrows the candidates", func() {
			page, err := svc.GetTrending(ctx, model.GenreNews, "", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
			So(page[0].Clip.ID, ShouldEqual, "news")
		})

		Convey("A tag filter narrows the candidates", func() {
			page, err := svc.GetTrending(ctx, "", "live", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
			So(page[0].Clip.ID, ShouldEqual, "fresh")
		})

		Convey("Tag and genre combine as an intersection", func() {
			page, err := svc.GetTrending(ctx, model.GenreNews, "jazz", 1, 10)
			So(err, ShouldBeNil)
			So(page, ShouldBeEmpty)
		})

		Convey("An unknown tag yields an empty page by default", func() {
			page, err := svc.GetTrending(ctx, "", "nope", 1, 10)
			So(err, ShouldBeNil)
			So(page, ShouldBeEmpty)
		})

		Convey("Invalid paging is rejected", func() {
			_, err := svc.GetTrending(ctx, "", "", 0, 10)
			So(errors.Is(err, ranking.ErrInvalidPage), ShouldBeTrue)
			_, err = svc.GetTrending(ctx, "", "", 1, 0)
			So(errors.Is(err, ranking.ErrInvalidPage), ShouldBeTrue)
		})

		Convey("Pages past the end come back empty, not nil", func() {
			page, err := svc.GetTrending(ctx, "", "", 99, 10)
			So(err, ShouldBeNil)
			So(page, ShouldNotBeNil)
			So(page, ShouldBeEmpty)
		})

		Convey("An oversized page size is clamped", func() {
			svc2 := startService(t, service.WithMaxPageSize(2))
			So(svc2.RegisterClip(ctx, clip("a", model.GenreMusic, time.Hour)), ShouldBeNil)
			So(svc2.RegisterClip(ctx, clip("b", model.GenreMusic, time.Hour)), ShouldBeNil)
			So(svc2.RegisterClip(ctx, clip("c", model.GenreMusic, time.Hour)), ShouldBeNil)

			page, err := svc2.GetTrending(ctx, "", "", 1, 500)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 2)
		})

		Convey("Removed clips drop out of the feed", func() {
			So(svc.RemoveClip(ctx, "fresh"), ShouldBeNil)
			page, err := svc.GetTrending(ctx, "", "jazz", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
			So(page[0].Clip.ID, ShouldEqual, "old")
		})
	})

	Convey("Given strict tag mode", t, func() {
		svc := startService(t, service.WithStrictTags(true))
		So(svc.RegisterClip(ctx, clip("c1", model.GenreMusic, time.Hour, "jazz")), ShouldBeNil)

		Convey("A known tag resolves", func() {
			page, err := svc.GetTrending(ctx, "", "jazz", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
		})

		Convey("An unknown tag is reported", func() {
			_, err := svc.GetTrending(ctx, "", "nope", 1, 10)
			So(errors.Is(err, tagindex.ErrUnknownTag), ShouldBeTrue)
		})
	})
}

func TestShutdownDrainsAcceptedEvents(t *testing.T) {
	Convey("Given buffered events and a cancelled start context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		t.Cleanup(svc.Stop)

		bg := context.Background()
		So(svc.RegisterClip(bg, clip("c1", model.GenreMusic, time.Hour)), ShouldBeNil)
		for i := 0; i < 20; i++ {
			ev := &model.EngagementEvent{
				EventID: fmt.Sprintf("drain-%d", i),
				ClipID:  "c1",
				ActorID: "a1",
				Kind:    model.KindLike,
			}
			So(svc.RecordEngagement(bg, ev), ShouldBeNil)
		}
		cancel()

		Convey("Then the workers still apply every accepted event", func() {
			waitForCounts(t, svc, "c1", 20)
		})
	})
}

func TestTrendingCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cached trending page", t, func() {
		svc := startService(t, service.WithCacheTTL(time.Minute))
		c := clip("c1", model.GenreMusic, time.Hour, "jazz")
		c.LikeCount = 10
		So(svc.RegisterClip(ctx, c), ShouldBeNil)

		first, err := svc.GetTrending(ctx, "", "", 1, 10)
		So(err, ShouldBeNil)
		So(len(first), ShouldEqual, 1)

		Convey("The cached page survives counter drift until invalidation", func() {
			// Served from cache: same score even though time moved on.
			second, err := svc.GetTrending(ctx, "", "", 1, 10)
			So(err, ShouldBeNil)
			So(second[0].Score, ShouldEqual, first[0].Score)
		})

		Convey("Registering a clip invalidates cached pages", func() {
			So(svc.RegisterClip(ctx, clip("c2", model.GenreMusic, time.Hour)), ShouldBeNil)
			page, err := svc.GetTrending(ctx, "", "", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 2)
		})

		Convey("Each lookup records exactly one hit or miss", func() {
			hits0 := counterValue(t, "pulse_trending_score_cache_hits_total")
			misses0 := counterValue(t, "pulse_trending_score_cache_misses_total")

			_, err := svc.GetTrending(ctx, "", "", 1, 10)
			So(err, ShouldBeNil)
			So(counterValue(t, "pulse_trending_score_cache_hits_total")-hits0, ShouldEqual, 1)
			So(counterValue(t, "pulse_trending_score_cache_misses_total")-misses0, ShouldEqual, 0)

			So(svc.RegisterClip(ctx, clip("c3", model.GenreMusic, time.Hour)), ShouldBeNil)
			_, err = svc.GetTrending(ctx, "", "", 1, 10)
			So(err, ShouldBeNil)
			So(counterValue(t, "pulse_trending_score_cache_misses_total")-misses0, ShouldEqual, 1)
		})
	})
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()

	Convey("Given ledgered engagement and drifted counters", t, func() {
		svc := startService(t)
		So(svc.RegisterClip(ctx, clip("c1", model.GenreMusic, time.Hour)), ShouldBeNil)

		for i := 0; i < 3; i++ {
			ev := &model.EngagementEvent{
				EventID: fmt.Sprintf("like-%d", i),
				ClipID:  "c1",
				ActorID: "a1",
				Kind:    model.KindLike,
			}
			So(svc.RecordEngagement(ctx, ev), ShouldBeNil)
		}
		ev := &model.EngagementEvent{EventID: "share-0", ClipID: "c1", ActorID: "a1", Kind: model.KindShare}
		So(svc.RecordEngagement(ctx, ev), ShouldBeNil)
		waitForCounts(t, svc, "c1", 3)

		Convey("When the ledger is replayed", func() {
			// A clip registered with seeded counters but no ledger
			// events is drift by definition.
			drifted := clip("c2", model.GenreMusic, time.Hour)
			drifted.LikeCount = 999
			So(svc.RegisterClip(ctx, drifted), ShouldBeNil)

			So(svc.Rebuild(ctx), ShouldBeNil)

			ranked, err := svc.ClipScore(ctx, "c1")
			So(err, ShouldBeNil)
			So(ranked.Clip.LikeCount, ShouldEqual, 3)
			So(ranked.Clip.ShareCount, ShouldEqual, 1)

			reset, err := svc.ClipScore(ctx, "c2")
			So(err, ShouldBeNil)
			So(reset.Clip.LikeCount, ShouldEqual, 0)
		})
	})
}

func TestSQLiteBackedService(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service on SQLite", t, func() {
		path := t.TempDir() + "/pulse.db"
		svc := startService(t, service.WithDBPath(path))

		So(svc.RegisterClip(ctx, clip("c1", model.GenreSports, time.Hour, "match")), ShouldBeNil)
		ev := &model.EngagementEvent{EventID: "ev-1", ClipID: "c1", ActorID: "a1", Kind: model.KindLike}
		So(svc.RecordEngagement(ctx, ev), ShouldBeNil)
		waitForCounts(t, svc, "c1", 1)

		Convey("The trending feed serves from disk-backed state", func() {
			page, err := svc.GetTrending(ctx, model.GenreSports, "match", 1, 10)
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
			So(page[0].Clip.LikeCount, ShouldEqual, 1)
		})
	})
}
