// internal/events/events.go
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// Topics carrying emergency lifecycle and escalation events.
const (
	TopicEmergencyEvents  = "emergency-events"
	TopicEscalationEvents = "escalation-events"
)

// EventType identifies a lifecycle or escalation event.
type EventType string

const (
	EventEmergencyActivated  EventType = "EMERGENCY_ACTIVATED"
	EventEmergencyCancelled  EventType = "EMERGENCY_CANCELLED"
	EventEmergencyResolved   EventType = "EMERGENCY_RESOLVED"
	EventContactAcknowledged EventType = "CONTACT_ACKNOWLEDGED"
	EventEscalationTriggered EventType = "ESCALATION_TRIGGERED"
)

// Envelope is the wire format for every published event. EventID is unique
// per emitted event; under at-least-once delivery a redelivered message
// carries the same EventID, so consumers deduplicate on it.
type Envelope struct {
	EventID           uuid.UUID   `json:"event_id"`
	EventType         EventType   `json:"event_type"`
	EmergencyID       uuid.UUID   `json:"emergency_id"`
	TransitionVersion int64       `json:"transition_version"`
	Timestamp         time.Time   `json:"timestamp"`
	Payload           interface{} `json:"payload,omitempty"`
}

// DedupeKey identifies this event for consumer-side deduplication.
func (e *Envelope) DedupeKey() string {
	return fmt.Sprintf("event:%s:%s", e.EventType, e.EventID)
}

// EmergencyPayload carries the emergency snapshot at the time of the event.
type EmergencyPayload struct {
	UserID           uuid.UUID              `json:"user_id"`
	EmergencyType    models.EmergencyType   `json:"emergency_type"`
	Status           models.EmergencyStatus `json:"status"`
	Location         models.Location        `json:"location"`
	InitialMessage   *string                `json:"initial_message,omitempty"`
	AutoTriggered    bool                   `json:"auto_triggered"`
	TriggeredBy      string                 `json:"triggered_by"`
	CountdownSeconds int                    `json:"countdown_seconds"`
	CreatedAt        time.Time              `json:"created_at"`
}

// AcknowledgmentPayload carries the acknowledging contact's details.
type AcknowledgmentPayload struct {
	ContactID      uuid.UUID        `json:"contact_id"`
	ContactName    string           `json:"contact_name"`
	AcknowledgedAt time.Time        `json:"acknowledged_at"`
	Location       *models.Location `json:"location,omitempty"`
	Message        *string          `json:"message,omitempty"`
	FirstAck       bool             `json:"first_ack"`
}

// EscalationPayload carries the tier reached when no contact acknowledged
// within the window.
type EscalationPayload struct {
	UserID        uuid.UUID            `json:"user_id"`
	EmergencyType models.EmergencyType `json:"emergency_type"`
	Location      models.Location      `json:"location"`
	Tier          int                  `json:"tier"`
	EscalatedAt   time.Time            `json:"escalated_at"`
}

// NewEmergencyEnvelope builds an envelope for a lifecycle event from the
// emergency's current row.
func NewEmergencyEnvelope(eventType EventType, emergency *models.Emergency) *Envelope {
	return &Envelope{
		EventID:           uuid.New(),
		EventType:         eventType,
		EmergencyID:       emergency.ID,
		TransitionVersion: emergency.Version,
		Timestamp:         time.Now().UTC(),
		Payload: EmergencyPayload{
			UserID:           emergency.UserID,
			EmergencyType:    emergency.EmergencyType,
			Status:           emergency.Status,
			Location:         emergency.Location,
			InitialMessage:   emergency.InitialMessage,
			AutoTriggered:    emergency.AutoTriggered,
			TriggeredBy:      emergency.TriggeredBy,
			CountdownSeconds: emergency.CountdownSeconds,
			CreatedAt:        emergency.CreatedAt,
		},
	}
}
