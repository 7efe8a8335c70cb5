// Package worker applies queued engagement events to the ledger and the
// clip counters.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/soundscene/pulse/internal/adapters/ledger"
	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/pkg/logger"
	"github.com/soundscene/pulse/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Event is what workers read off the queue.
type Event = model.EngagementEvent

// Appender records events durably.
type Appender interface {
	Append(ctx context.Context, ev *model.EngagementEvent) error
}

// Incrementer applies the atomic counter bump for one event.
type Incrementer interface {
	Increment(ctx context.Context, clipID string, kind model.EngagementKind) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker consumes events until its context is cancelled or the queue closes.
type Worker struct {
	queue    Queue
	appender Appender
	counters Incrementer
	name     string

	done chan struct{}
	log  logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a worker.
func New(q Queue, appender Appender, counters Incrementer, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		appender: appender,
		counters: counters,
		name:     "worker",
		done:     make(chan struct{}),
		log:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes events until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, &ev); err != nil {
				w.log.Error(ctx, "event processing failed",
					logger.String("eventID", ev.EventID),
					logger.Error(err),
				)
			}
		}
	}
}

// process appends the event to the ledger, then applies the counter bump.
// A duplicate ledger entry means the event was already applied once; the
// increment is skipped so the counter cannot drift upward on redelivery.
func (w *Worker) process(ctx context.Context, ev *Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.appender.Append(ctx, ev); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			metrics.RecordEventDuplicate()
			return nil
		}
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ledger_append")
		return fmt.Errorf("append event %s: %w", ev.EventID, err)
	}
	metrics.RecordLedgerAppend()

	incStart := time.Now()
	err := w.counters.Increment(ctx, ev.ClipID, ev.Kind)
	metrics.RecordCounterIncrementLatency(float64(time.Since(incStart).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "counter_increment")
		return fmt.Errorf("increment %s for clip %s: %w", ev.Kind, ev.ClipID, err)
	}

	metrics.RecordEventProcessed()
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
	log     logger.Logger
}

// NewPool creates a pool with workerCount workers.
func NewPool(workerCount int, q Queue, appender Appender, counters Incrementer) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		log:     logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(q, appender, counters, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop waits for the workers to finish draining, bounded per worker.
func (p *Pool) Stop() {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.log.Warn(context.Background(), "worker shutdown timed out",
				logger.Int("worker", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}
