// internal/events/publisher_test.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func testEmergency() *models.Emergency {
	return &models.Emergency{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		EmergencyType: models.EmergencyTypeMedical,
		Status:        models.StatusActive,
		Location:      models.Location{Latitude: 12.97, Longitude: 77.59},
		TriggeredBy:   "MANUAL",
		Version:       2,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestPublisher_KeyedByEmergencyID(t *testing.T) {
	writer := &capturingWriter{}
	p := &Publisher{
		emergencyWriter:  writer,
		escalationWriter: &capturingWriter{},
		logger:           logger.NewNoOpLogger(),
	}

	emergency := testEmergency()
	err := p.PublishEmergencyEvent(context.Background(), EventEmergencyActivated, emergency)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	assert.Equal(t, emergency.ID.String(), string(writer.messages[0].Key))

	var envelope Envelope
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &envelope))
	assert.Equal(t, EventEmergencyActivated, envelope.EventType)
	assert.Equal(t, emergency.ID, envelope.EmergencyID)
	assert.Equal(t, int64(2), envelope.TransitionVersion)
}

func TestPublisher_EscalationTopic(t *testing.T) {
	escalationWriter := &capturingWriter{}
	p := &Publisher{
		emergencyWriter:  &capturingWriter{},
		escalationWriter: escalationWriter,
		logger:           logger.NewNoOpLogger(),
	}

	emergency := testEmergency()
	err := p.PublishEscalation(context.Background(), emergency, 2)
	require.NoError(t, err)
	require.Len(t, escalationWriter.messages, 1)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(escalationWriter.messages[0].Value, &envelope))
	assert.Equal(t, EventEscalationTriggered, envelope.EventType)

	payload, err := json.Marshal(envelope.Payload)
	require.NoError(t, err)
	var escalation EscalationPayload
	require.NoError(t, json.Unmarshal(payload, &escalation))
	assert.Equal(t, 2, escalation.Tier)
}

func TestPublisher_WriteFailureSurfaces(t *testing.T) {
	writer := &capturingWriter{err: errors.New("broker unreachable")}
	p := &Publisher{
		emergencyWriter:  writer,
		escalationWriter: &capturingWriter{},
		logger:           logger.NewNoOpLogger(),
	}

	err := p.PublishEmergencyEvent(context.Background(), EventEmergencyActivated, testEmergency())
	assert.Error(t, err)
}

func TestEnvelope_DedupeKeyStableAcrossRedelivery(t *testing.T) {
	envelope := NewEmergencyEnvelope(EventEmergencyResolved, testEmergency())

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	var redelivered Envelope
	require.NoError(t, json.Unmarshal(raw, &redelivered))

	assert.Equal(t, envelope.DedupeKey(), redelivered.DedupeKey())
}
