package scorecache

import (
	"context"
	"sync"
	"time"

	"github.com/soundscene/pulse/internal/domain/ranking"
)

// MemoryCache implements Cache with an in-process TTL map. A janitor
// goroutine sweeps expired pages so abandoned keys do not accumulate.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	ttl     time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

type memoryEntry struct {
	page      []ranking.Ranked
	expiresAt time.Time
}

// MemoryOption applies a configuration option to the MemoryCache.
type MemoryOption func(*MemoryCache)

// WithTTL sets the page TTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewMemoryCache creates a memory cache and starts its janitor.
func NewMemoryCache(ctx context.Context, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[Key]memoryEntry),
		ttl:      defaultTTL,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startJanitor(ctx)
	return c
}

func (c *MemoryCache) startJanitor(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *MemoryCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Get returns a cached page when present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, key Key) ([]ranking.Ranked, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.page, true
}

// Set stores a page under the TTL.
func (c *MemoryCache) Set(ctx context.Context, key Key, page []ranking.Ranked) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{page: page, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops every cached page.
func (c *MemoryCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]memoryEntry)
}

// Close stops the janitor.
func (c *MemoryCache) Close() error {
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.wg.Wait()
	return nil
}
