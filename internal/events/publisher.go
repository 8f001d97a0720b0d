// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/metrics"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher delivers lifecycle and escalation events to Kafka. Events are
// published after the database commit, keyed by emergency ID so every event
// for one emergency lands on the same partition in order. Delivery is
// at-least-once: a publish failure after commit is logged and surfaced, and
// consumers deduplicate on the envelope's event ID.
type Publisher struct {
	emergencyWriter  messageWriter
	escalationWriter messageWriter
	logger           logger.Logger
}

// NewPublisher constructs a Publisher with one keyed writer per topic.
func NewPublisher(brokers []string, log logger.Logger) *Publisher {
	return &Publisher{
		emergencyWriter:  newWriter(brokers, TopicEmergencyEvents),
		escalationWriter: newWriter(brokers, TopicEscalationEvents),
		logger:           log.WithFields(map[string]interface{}{"component": "event_publisher"}),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// PublishEmergencyEvent emits a lifecycle event for an emergency transition.
func (p *Publisher) PublishEmergencyEvent(ctx context.Context, eventType EventType, emergency *models.Emergency) error {
	return p.publish(ctx, p.emergencyWriter, TopicEmergencyEvents, NewEmergencyEnvelope(eventType, emergency))
}

// PublishAcknowledgment emits a CONTACT_ACKNOWLEDGED event.
func (p *Publisher) PublishAcknowledgment(ctx context.Context, emergency *models.Emergency, ack *models.Acknowledgment, firstAck bool) error {
	envelope := NewEmergencyEnvelope(EventContactAcknowledged, emergency)
	envelope.Payload = AcknowledgmentPayload{
		ContactID:      ack.ContactID,
		ContactName:    ack.ContactName,
		AcknowledgedAt: ack.AcknowledgedAt,
		Location:       ack.Location,
		Message:        ack.Message,
		FirstAck:       firstAck,
	}
	return p.publish(ctx, p.emergencyWriter, TopicEmergencyEvents, envelope)
}

// PublishEscalation emits an ESCALATION_TRIGGERED event for the given tier.
func (p *Publisher) PublishEscalation(ctx context.Context, emergency *models.Emergency, tier int) error {
	envelope := NewEmergencyEnvelope(EventEscalationTriggered, emergency)
	envelope.Payload = EscalationPayload{
		UserID:        emergency.UserID,
		EmergencyType: emergency.EmergencyType,
		Location:      emergency.Location,
		Tier:          tier,
		EscalatedAt:   envelope.Timestamp,
	}
	return p.publish(ctx, p.escalationWriter, TopicEscalationEvents, envelope)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic string, envelope *Envelope) error {
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.EmergencyID.String()),
		Value: value,
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventPublishFailures.WithLabelValues(topic).Inc()
		p.logger.WithError(err).Error("Failed to publish event", map[string]interface{}{
			"topic":        topic,
			"event_type":   envelope.EventType,
			"emergency_id": envelope.EmergencyID,
		})
		return fmt.Errorf("failed to publish %s event: %w", envelope.EventType, err)
	}

	metrics.EventsPublished.WithLabelValues(topic).Inc()
	p.logger.Debug("Published event", map[string]interface{}{
		"topic":        topic,
		"event_type":   envelope.EventType,
		"emergency_id": envelope.EmergencyID,
	})
	return nil
}

// Close flushes and closes both topic writers.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range []messageWriter{p.emergencyWriter, p.escalationWriter} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
