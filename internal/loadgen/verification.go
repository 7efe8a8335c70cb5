package loadgen

import (
	"context"
	"fmt"

	"github.com/soundscene/pulse/pkg/logger"
)

// verifyTrending sanity-checks the returned trending page: non-empty,
// scores non-increasing, no clip listed twice.
func verifyTrending(ctx context.Context, page *trendingPage, verbose bool) error {
	log := logger.Get()

	if len(page.Items) == 0 {
		return fmt.Errorf("empty trending page")
	}

	seen := make(map[string]struct{}, len(page.Items))
	for i, item := range page.Items {
		if _, dup := seen[item.ClipID]; dup {
			return fmt.Errorf("clip %s listed twice", item.ClipID)
		}
		seen[item.ClipID] = struct{}{}

		if i > 0 && item.Score > page.Items[i-1].Score {
			return fmt.Errorf("page not ordered: entry %d outranks entry %d", i, i-1)
		}
	}

	top := 10
	if len(page.Items) < top {
		top = len(page.Items)
	}
	log.Info(ctx, "top trending clips", logger.Int("shown", top))
	for i := 0; i < top; i++ {
		log.Info(ctx, "trending entry",
			logger.Int("rank", i+1),
			logger.String("clipID", page.Items[i].ClipID),
			logger.Float64("score", page.Items[i].Score))
	}

	if verbose {
		sum := 0.0
		for _, item := range page.Items {
			sum += item.Score
		}
		log.Info(ctx, "score statistics",
			logger.Float64("average", sum/float64(len(page.Items))),
			logger.Float64("maximum", page.Items[0].Score),
			logger.Float64("minimum", page.Items[len(page.Items)-1].Score))
	}

	log.Info(ctx, "trending verification completed")
	return nil
}
