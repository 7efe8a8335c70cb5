// Package stream consumes externally produced engagement events from Kafka
// and feeds them into the intake queue. The source is optional; the service
// runs it only when brokers are configured.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soundscene/pulse/internal/domain/model"
	"github.com/soundscene/pulse/pkg/logger"
	"github.com/soundscene/pulse/pkg/metrics"
)

const fetchRetryDelay = time.Second

// Sink is where decoded events go; the intake queue satisfies it.
type Sink interface {
	Enqueue(ctx context.Context, e model.EngagementEvent) bool
}

// message mirrors the wire schema produced by the engagement services.
type message struct {
	EventID string `json:"event_id"`
	ClipID  string `json:"clip_id"`
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind"`
	TS      string `json:"ts"`
}

// Consumer reads engagement events from a Kafka topic within a consumer
// group and enqueues them for the worker pool. Delivery is at-least-once;
// the ledger's duplicate detection absorbs redelivery.
type Consumer struct {
	reader *kafka.Reader
	sink   Sink
	log    logger.Logger
}

// NewConsumer creates a consumer for the given brokers, group and topic.
func NewConsumer(brokers, groupID, topic string, sink Sink) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        strings.Split(brokers, ","),
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
		sink: sink,
		log:  logger.Named("stream"),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()

	c.log.Info(ctx, "stream consumer started",
		logger.String("topic", c.reader.Config().Topic),
		logger.String("group", c.reader.Config().GroupID),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info(ctx, "stream consumer stopping")
				return nil
			}
			c.log.Warn(ctx, "fetch failed", logger.Error(err))
			metrics.RecordErrorByComponent("stream", "fetch")
			select {
			case <-time.After(fetchRetryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if ev, ok := c.decode(ctx, m.Value); ok {
			// Backpressure from the queue leaves the message uncommitted
			// so the group redelivers it.
			if !c.sink.Enqueue(ctx, ev) {
				c.log.Warn(ctx, "queue backpressure; leaving message uncommitted",
					logger.String("eventID", ev.EventID))
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.Warn(ctx, "commit failed", logger.Error(err))
			metrics.RecordErrorByComponent("stream", "commit")
		}
	}
}

// decode parses and validates one message. Malformed payloads are dropped
// after logging; they would never become valid on redelivery.
func (c *Consumer) decode(ctx context.Context, raw []byte) (model.EngagementEvent, bool) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn(ctx, "malformed stream payload", logger.Error(err))
		metrics.RecordEventRejected()
		return model.EngagementEvent{}, false
	}

	kind, err := model.ParseEngagementKind(msg.Kind)
	if err != nil {
		c.log.Warn(ctx, "stream payload with unknown kind", logger.String("kind", msg.Kind))
		metrics.RecordEventRejected()
		return model.EngagementEvent{}, false
	}

	ts, err := time.Parse(time.RFC3339, msg.TS)
	if err != nil {
		ts = time.Now().UTC()
	}

	ev := model.EngagementEvent{
		EventID: msg.EventID,
		ClipID:  msg.ClipID,
		ActorID: msg.ActorID,
		Kind:    kind,
		TS:      ts,
	}
	if err := ev.Validate(); err != nil {
		c.log.Warn(ctx, "invalid stream event", logger.Error(err))
		metrics.RecordEventRejected()
		return model.EngagementEvent{}, false
	}
	return ev, true
}
