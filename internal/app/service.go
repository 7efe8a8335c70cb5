// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundscene/pulse/internal/adapters/clipstore"
	"github.com/soundscene/pulse/internal/adapters/ledger"
	eventqueue "github.com/soundscene/pulse/internal/adapters/mq/queue"
	"github.com/soundscene/pulse/internal/adapters/mq/stream"
	workerpool "github.com/soundscene/pulse/internal/adapters/mq/worker"
	"github.com/soundscene/pulse/internal/adapters/scorecache"
	"github.com/soundscene/pulse/internal/domain/dedupe"
	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/internal/domain/ranking"
	"github.com/soundscene/pulse/internal/domain/tagindex"
	"github.com/soundscene/pulse/pkg/logger"
	"github.com/soundscene/pulse/pkg/metrics"
)

// Service wires the clip store, engagement ledger, tag index, ranking
// engine, score cache and the async intake pipeline behind one API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   clipstore.Store
	events  ledger.Ledger
	index   *tagindex.Index
	engine  *ranking.Engine
	cache   scorecache.Cache
	queue   *eventqueue.InMemoryQueue
	deduper dedupe.Deduper
	pool    *workerpool.Pool

	// Optional Kafka intake
	consumer     *stream.Consumer
	consumerStop context.CancelFunc
	consumerDone chan struct{}

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	maxPageSize  int
	strictTags   bool
	dbPath       string
	cacheBackend string
	cacheTTL     time.Duration
	redisAddr    string
	kafkaBrokers string
	kafkaTopic   string
	kafkaGroup   string
	rankingOpts  []ranking.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of engagement workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the intake queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the event-id dedupe set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxPageSize caps the page size a trending query may ask for.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithStrictTags makes queries on unknown tags fail instead of
// returning an empty set.
func WithStrictTags(strict bool) Option {
	return func(s *Service) {
		s.strictTags = strict
	}
}

// WithDBPath selects SQLite persistence for clips and the ledger.
// Empty keeps both in memory.
func WithDBPath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithCacheBackend selects the trending page cache: "memory" or "redis".
func WithCacheBackend(backend, redisAddr string) Option {
	return func(s *Service) {
		if backend != "" {
			s.cacheBackend = backend
		}
		s.redisAddr = redisAddr
	}
}

// WithCacheTTL bounds trending page staleness.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithKafkaSource enables the Kafka intake when brokers is non-empty.
func WithKafkaSource(brokers, groupID, topic string) Option {
	return func(s *Service) {
		s.kafkaBrokers = brokers
		s.kafkaGroup = groupID
		s.kafkaTopic = topic
	}
}

// WithRankingOptions forwards options to the ranking engine.
func WithRankingOptions(opts ...ranking.Option) Option {
	return func(s *Service) {
		s.rankingOpts = append(s.rankingOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    100_000,
		dedupeSize:   500_000,
		maxPageSize:  100,
		cacheBackend: "memory",
		cacheTTL:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting trending service...")

	if err := s.openStores(ctx); err != nil {
		return err
	}
	if err := s.openCache(ctx); err != nil {
		return err
	}

	s.engine = ranking.New(s.rankingOpts...)
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.events, s.store)
	// The pool outlives the caller's context: events already accepted for
	// processing must drain through Stop's queue close, not die with a
	// cancelled signal context.
	s.pool.Start(context.WithoutCancel(ctx))

	if err := s.reindexLocked(ctx); err != nil {
		return err
	}

	if s.kafkaBrokers != "" {
		s.startConsumer(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "trending service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("cache", s.cacheBackend),
		logger.Bool("kafka", s.kafkaBrokers != ""),
	)

	return nil
}

func (s *Service) openStores(ctx context.Context) error {
	if s.dbPath == "" {
		s.store = clipstore.NewMemoryStore()
		s.events = ledger.NewMemoryLedger()
		s.logger.Info(ctx, "using in-memory stores")
		return nil
	}

	store, err := clipstore.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open clip store: %w", err)
	}
	lg, err := ledger.Open(s.dbPath)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open ledger: %w", err)
	}
	s.store = store
	s.events = lg
	s.logger.Info(ctx, "using sqlite stores", logger.String("path", s.dbPath))
	return nil
}

func (s *Service) openCache(ctx context.Context) error {
	if s.cacheBackend == "redis" {
		cache, err := scorecache.OpenRedis(ctx, s.redisAddr,
			scorecache.WithRedisTTL(s.cacheTTL))
		if err != nil {
			return fmt.Errorf("open redis cache: %w", err)
		}
		s.cache = cache
		return nil
	}
	s.cache = scorecache.NewMemoryCache(ctx, scorecache.WithTTL(s.cacheTTL))
	return nil
}

// reindexLocked rebuilds the tag index from the clip store. Caller
// holds s.mu.
func (s *Service) reindexLocked(ctx context.Context) error {
	clips, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	s.index = tagindex.New(s.indexOptions()...)
	for i := range clips {
		s.index.AddClip(ctx, &clips[i])
	}
	metrics.UpdateClipsTotal(len(clips))
	metrics.UpdateIndexSize(s.index.Size(ctx))
	return nil
}

func (s *Service) indexOptions() []tagindex.Option {
	if s.strictTags {
		return []tagindex.Option{tagindex.WithStrictTags()}
	}
	return nil
}

func (s *Service) startConsumer(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	s.consumer = stream.NewConsumer(s.kafkaBrokers, s.kafkaGroup, s.kafkaTopic, streamSink{s})
	s.consumerStop = cancel
	s.consumerDone = make(chan struct{})
	go func() {
		defer close(s.consumerDone)
		if err := s.consumer.Run(cctx); err != nil {
			s.logger.Error(cctx, "kafka consumer stopped",
				logger.Error(err))
		}
	}()
}

// streamSink routes Kafka events through the same dedupe and queue as
// HTTP intake. Duplicates count as delivered so the offset commits.
type streamSink struct {
	s *Service
}

func (k streamSink) Enqueue(ctx context.Context, e model.EngagementEvent) bool {
	err := k.s.RecordEngagement(ctx, &e)
	return err == nil || errors.Is(err, ErrDuplicateEvent)
}

// Stop gracefully shuts down the service. The lock is released before
// the consumer drains; its in-flight events go through RecordEngagement,
// which must not block on shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping trending service...")

	if s.consumerStop != nil {
		s.consumerStop()
		<-s.consumerDone
	}

	// Closing the queue ends delivery, so the pool drains and exits.
	_ = s.queue.Close()
	s.pool.Stop()

	_ = s.cache.Close()
	_ = s.events.Close()
	_ = s.store.Close()

	s.logger.Info(ctx, "trending service stopped")
}

// RecordEngagement validates an event and submits it for asynchronous
// processing. A missing event id gets a generated one; a zero timestamp
// becomes now. Returns ErrDuplicateEvent for an already-seen id and
// ErrQueueFull on backpressure.
func (s *Service) RecordEngagement(ctx context.Context, ev *model.EngagementEvent) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if err := ev.Validate(); err != nil {
		metrics.RecordEventRejected()
		return err
	}

	if s.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event",
			logger.String("eventID", ev.EventID),
			logger.String("clipID", ev.ClipID),
		)
		return ErrDuplicateEvent
	}

	if !s.queue.Enqueue(ctx, *ev) {
		// Let the producer retry the same id later.
		s.deduper.Unrecord(ctx, ev.EventID)
		metrics.RecordEventRejected()
		return ErrQueueFull
	}

	return nil
}

// GetTrending returns one ordered page of trending clips, optionally
// filtered by genre and tag. Pages may be served from the score cache
// and be stale up to its TTL.
func (s *Service) GetTrending(ctx context.Context, genre model.Genre, tag string, page, pageSize int) ([]ranking.Ranked, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	if page < 1 || pageSize < 1 {
		return nil, ranking.ErrInvalidPage
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	key := scorecache.Key{Genre: genre, Tag: tag, Page: page, PageSize: pageSize}
	if cached, ok := s.cache.Get(ctx, key); ok {
		metrics.RecordCacheHit()
		return cached, nil
	}
	metrics.RecordCacheMiss()

	ids, err := s.tagIndex().Query(ctx, tag, genre)
	if err != nil {
		return nil, err
	}

	clips, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ranked, err := s.engine.Rank(clips, time.Now(), page, pageSize)
	if err != nil {
		return nil, err
	}
	metrics.RecordRankLatency(float64(time.Since(start).Milliseconds()))

	s.cache.Set(ctx, key, ranked)
	return ranked, nil
}

// ClipScore returns the current trending score for one clip.
func (s *Service) ClipScore(ctx context.Context, clipID string) (ranking.Ranked, error) {
	if !s.isStarted() {
		return ranking.Ranked{}, ErrNotStarted
	}

	clip, err := s.store.Get(ctx, clipID)
	if err != nil {
		return ranking.Ranked{}, err
	}
	if clip.Deleted() {
		return ranking.Ranked{}, clipstore.ErrNotFound
	}

	return ranking.Ranked{
		Clip:  clip,
		Score: s.engine.Score(&clip, time.Now()),
	}, nil
}

// RegisterClip validates and stores clip metadata and indexes it.
// Counters of an existing clip are preserved.
func (s *Service) RegisterClip(ctx context.Context, clip *model.Clip) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if clip.CreatedAt.IsZero() {
		clip.CreatedAt = time.Now().UTC()
	}
	if err := clip.Validate(); err != nil {
		return err
	}

	if err := s.store.Put(ctx, clip); err != nil {
		return err
	}
	idx := s.tagIndex()
	idx.AddClip(ctx, clip)
	s.cache.Invalidate(ctx)

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateClipsTotal(n)
	}
	metrics.UpdateIndexSize(idx.Size(ctx))
	return nil
}

// RemoveClip soft-deletes a clip and drops it from the index. Deleted
// clips never rank.
func (s *Service) RemoveClip(ctx context.Context, clipID string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if err := s.store.MarkDeleted(ctx, clipID, time.Now().UTC()); err != nil {
		return err
	}
	idx := s.tagIndex()
	idx.RemoveClip(ctx, clipID)
	s.cache.Invalidate(ctx)
	metrics.UpdateIndexSize(idx.Size(ctx))
	return nil
}

// Rebuild recomputes every clip's counters from the engagement ledger,
// re-indexes, and drops cached pages. This is the recovery path when
// counters are suspected to have drifted.
func (s *Service) Rebuild(ctx context.Context) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	totals := make(map[string]ledger.Counts)
	err := s.events.Replay(ctx, time.Time{}, func(ev *model.EngagementEvent) error {
		c := totals[ev.ClipID]
		switch ev.Kind {
		case model.KindLike:
			c.Likes++
		case model.KindComment:
			c.Comments++
		case model.KindShare:
			c.Shares++
		}
		totals[ev.ClipID] = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay ledger: %w", err)
	}

	// Every clip gets the ledger-derived counts; clips with no events
	// reset to zero.
	clips, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list clips: %w", err)
	}
	for i := range clips {
		c := totals[clips[i].ID]
		if err := s.store.SetCounts(ctx, clips[i].ID, c.Likes, c.Comments, c.Shares); err != nil {
			return fmt.Errorf("set counts for %s: %w", clips[i].ID, err)
		}
	}

	if err := s.reindexLocked(ctx); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)

	elapsed := float64(time.Since(start).Milliseconds())
	metrics.RecordRebuild(elapsed)
	s.logger.Info(ctx, "counters rebuilt from ledger",
		logger.Int("clips", len(totals)),
		logger.Float64("elapsedMs", elapsed),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"cache":       s.cacheBackend,
		"strictTags":  s.strictTags,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["indexedClips"] = s.index.Size(ctx)
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalClips"] = n
		}
		if n, err := s.events.Len(ctx); err == nil {
			stats["ledgerEvents"] = n
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateIndexSize(s.index.Size(ctx))
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// tagIndex returns the current index pointer. Rebuild swaps it under
// the write lock; a reader holding the old pointer just sees a stale
// snapshot.
func (s *Service) tagIndex() *tagindex.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}
