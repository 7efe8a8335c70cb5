package loadgen

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/soundscene/pulse/pkg/logger"
)

// Generation vocabulary.
var (
	genres = []string{"music", "comedy", "news", "sports", "education", "storytelling", "technology", "other"}
	tags   = []string{"jazz", "standup", "politics", "football", "history", "truecrime", "ai", "indie", "interview", "live"}
)

// Engagement mix: likes are most common, shares rarest.
const (
	likeCut    = 70
	commentCut = 90
	mixDivisor = 100
)

// Clip age spread in hours; skewed young so fresh clips dominate.
const maxAgeHours = 72

func randInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generateClips creates clip payloads with unique ids and a spread of
// genres, tags and ages.
func generateClips(ctx context.Context, cfg *Config) []clipPayload {
	logger.Get().Info(ctx, "generating clips", logger.Int("numClips", cfg.NumClips))

	clips := make([]clipPayload, cfg.NumClips)
	for i := range clips {
		id := uuid.New().String()

		// 1-3 tags per clip
		n := 1 + int(randInt(3))
		clipTags := make([]string, 0, n)
		for len(clipTags) < n {
			tag := tags[randInt(int64(len(tags)))]
			if !contains(clipTags, tag) {
				clipTags = append(clipTags, tag)
			}
		}

		age := time.Duration(randInt(maxAgeHours*60)) * time.Minute
		clips[i] = clipPayload{
			ID:         id,
			OwnerID:    "owner-" + uuid.New().String()[:8],
			Title:      "clip " + id[:8],
			DurationMS: 5_000 + randInt(115_000),
			Genre:      genres[randInt(int64(len(genres)))],
			Tags:       clipTags,
			CreatedAt:  time.Now().UTC().Add(-age).Format(time.RFC3339),
		}
	}
	return clips
}

// generateEvents creates engagement events concentrated on a small set
// of "hot" clips so the trending page has a clear ordering.
func generateEvents(ctx context.Context, cfg *Config, clips []clipPayload, stats *Stats) []eventPayload {
	logger.Get().Info(ctx, "generating engagement events", logger.Int("numEvents", cfg.NumEvents))

	hot := len(clips) / 10
	if hot < 1 {
		hot = 1
	}

	events := make([]eventPayload, cfg.NumEvents)
	for i := range events {
		// Half the traffic lands on the hot tenth of clips.
		var clip clipPayload
		if randInt(2) == 0 {
			clip = clips[randInt(int64(hot))]
		} else {
			clip = clips[randInt(int64(len(clips)))]
		}

		var kind string
		switch mix := randInt(mixDivisor); {
		case mix < likeCut:
			kind = "like"
		case mix < commentCut:
			kind = "comment"
		default:
			kind = "share"
		}

		events[i] = eventPayload{
			EventID: uuid.New().String(),
			ClipID:  clip.ID,
			ActorID: "actor-" + uuid.New().String()[:8],
			Kind:    kind,
			TS:      time.Now().UTC().Format(time.RFC3339),
		}
	}

	stats.EventsGenerated = len(events)
	return events
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
