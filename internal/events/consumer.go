// internal/events/consumer.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/observability"
)

// Handler processes one decoded event. Returning an error leaves the
// message uncommitted so it is redelivered.
type Handler func(ctx context.Context, envelope *Envelope) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic in a consumer group, deduplicates redeliveries and
// hands each first-seen event to the handler. Messages are committed only
// after the handler succeeds, giving at-least-once processing.
type Consumer struct {
	reader  messageReader
	topic   string
	dedupe  Deduplicator
	handler Handler
	logger  logger.Logger
	obs     *observability.Observability
}

// NewConsumer creates a group consumer for the given topic.
func NewConsumer(brokers []string, groupID, topic string, dedupe Deduplicator, handler Handler, log logger.Logger, obs *observability.Observability) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return &Consumer{
		reader:  reader,
		topic:   topic,
		dedupe:  dedupe,
		handler: handler,
		logger:  log.WithFields(map[string]interface{}{"component": "event_consumer", "topic": topic}),
		obs:     obs,
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := c.process(ctx, msg); err != nil {
			// leave uncommitted; the group redelivers after rebalance
			c.logger.WithError(err).Error("Failed to process event, will retry", nil)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithError(err).Error("Failed to commit offset", nil)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	var envelope Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// malformed messages are logged and dropped, never retried
		c.logger.WithError(err).Error("Dropping malformed event", map[string]interface{}{
			"offset": msg.Offset,
		})
		c.obs.RecordEventProcessed(ctx, c.topic, "malformed")
		return nil
	}

	first, err := c.dedupe.FirstDelivery(ctx, envelope.DedupeKey())
	if err != nil {
		return err
	}
	if !first {
		c.logger.Debug("Skipping duplicate event", map[string]interface{}{
			"event_type":   envelope.EventType,
			"emergency_id": envelope.EmergencyID,
		})
		c.obs.RecordEventProcessed(ctx, c.topic, "duplicate")
		return nil
	}

	if err := c.handler(ctx, &envelope); err != nil {
		c.obs.RecordEventProcessed(ctx, c.topic, "error")
		if relErr := c.dedupe.Release(ctx, envelope.DedupeKey()); relErr != nil {
			c.logger.WithError(relErr).Error("Failed to release dedupe claim", nil)
		}
		return err
	}

	c.obs.RecordEventProcessed(ctx, c.topic, "ok")
	return nil
}

// Close shuts down the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
