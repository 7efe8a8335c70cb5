package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/soundscene/pulse/pkg/logger"
)

// drainDelay gives the service time to work through the intake queue
// before the trending page is read back.
const drainDelay = 5 * time.Second

// Run executes a complete load run: register clips, pour engagement at
// the service, then read the trending page back and sanity-check it.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("clips", cfg.NumClips),
		logger.Int("events", cfg.NumEvents),
		logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)

	if err := checkServiceHealth(ctx, cfg, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	clips := generateClips(ctx, cfg)
	if err := registerClips(ctx, cfg, client, clips, stats); err != nil {
		return fmt.Errorf("clip registration failed: %w", err)
	}

	events := generateEvents(ctx, cfg, clips, stats)
	if err := submitEvents(ctx, cfg, client, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	log.Info(ctx, "waiting for the intake queue to drain")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(drainDelay):
	}

	pageSize := 50
	if cfg.NumClips < pageSize {
		pageSize = cfg.NumClips
	}
	page, err := fetchTrending(ctx, cfg, client, pageSize, stats)
	if err != nil {
		return fmt.Errorf("trending retrieval failed: %w", err)
	}

	if err := verifyTrending(ctx, page, cfg.Verbose); err != nil {
		return fmt.Errorf("trending verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	log.Info(ctx, "load run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config, client *httpClient) error {
	resp, err := client.get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * 100
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("clipsRegistered", stats.ClipsRegistered),
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("trendingEntries", stats.TrendingEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
