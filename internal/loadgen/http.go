package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundscene/pulse/pkg/logger"
)

// httpClient wraps http.Client with a timeout.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.client.Do(req)
}

func (c *httpClient) post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func drainBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return body
}

// registerClips registers every clip, sequential on purpose: clip count
// is small compared to event count.
func registerClips(ctx context.Context, cfg *Config, client *httpClient, clips []clipPayload, stats *Stats) error {
	url := cfg.BaseURL + "/clips"
	for i := range clips {
		resp, err := client.post(ctx, url, clips[i])
		if err != nil {
			return fmt.Errorf("register clip %s: %w", clips[i].ID, err)
		}
		body := drainBody(resp)
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("register clip %s: HTTP %d: %s", clips[i].ID, resp.StatusCode, body)
		}
	}
	stats.ClipsRegistered = len(clips)
	logger.Get().Info(ctx, "clips registered", logger.Int("count", len(clips)))
	return nil
}

// submitEvents submits events concurrently over a worker pool.
func submitEvents(ctx context.Context, cfg *Config, client *httpClient, events []eventPayload, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting events",
		logger.Int("events", len(events)),
		logger.Int("workers", cfg.Workers))

	url := cfg.BaseURL + "/engagements"

	var successful, duplicate, failed, submitted int64

	eventChan := make(chan eventPayload, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddInt64(&submitted, 1)
				switch submitSingleEvent(ctx, client, url, event) {
				case "success":
					atomic.AddInt64(&successful, 1)
				case "duplicate":
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				if cfg.Verbose {
					total := atomic.LoadInt64(&submitted)
					if total%1000 == 0 {
						log.Info(ctx, "submission progress",
							logger.Int64("submitted", total),
							logger.Int("of", len(events)))
					}
				}
			}
		}()
	}

	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()

	wg.Wait()

	stats.EventsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EventsSuccessful = int(atomic.LoadInt64(&successful))
	stats.EventsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.EventsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "event submission completed",
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed))

	return nil
}

func submitSingleEvent(ctx context.Context, client *httpClient, url string, event eventPayload) string {
	resp, err := client.post(ctx, url, event)
	if err != nil {
		return "failed"
	}
	body := drainBody(resp)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return "success"
	case http.StatusOK:
		var ack ackResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate"
	default:
		return "failed"
	}
}

// fetchTrending retrieves the first trending page.
func fetchTrending(ctx context.Context, cfg *Config, client *httpClient, pageSize int, stats *Stats) (*trendingPage, error) {
	url := fmt.Sprintf("%s/trending?page=1&page_size=%d", cfg.BaseURL, pageSize)

	resp, err := client.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	body := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch trending: HTTP %d: %s", resp.StatusCode, body)
	}

	var page trendingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse trending page: %w", err)
	}
	stats.TrendingEntries = len(page.Items)
	return &page, nil
}
