// internal/engine/interfaces.go
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// EmergencyStore is the persistence surface the engine needs for
// emergencies. The database row is the source of truth for status; all
// in-memory timers are derived state.
type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Emergency, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.EmergencyStatus, notes *string) (*models.Emergency, bool, error)
	ListPending(ctx context.Context) ([]models.Emergency, error)
	ListWithFilters(ctx context.Context, filters models.HistoryFilters) ([]models.Emergency, int, error)
}

// AcknowledgmentStore persists contact acknowledgments.
type AcknowledgmentStore interface {
	Insert(ctx context.Context, ack *models.Acknowledgment) (bool, error)
	GetByContact(ctx context.Context, emergencyID, contactID uuid.UUID) (*models.Acknowledgment, error)
	ListByEmergency(ctx context.Context, emergencyID uuid.UUID) ([]models.Acknowledgment, error)
	CountByEmergency(ctx context.Context, emergencyID uuid.UUID) (int, error)
}

// EscalationStore persists escalation monitor state across restarts.
type EscalationStore interface {
	Upsert(ctx context.Context, state *models.EscalationState) error
	Get(ctx context.Context, emergencyID uuid.UUID) (*models.EscalationState, error)
	MarkStopped(ctx context.Context, emergencyID uuid.UUID) error
	ListActive(ctx context.Context) ([]models.EscalationState, error)
}

// Publisher emits lifecycle and escalation events after the corresponding
// database commit.
type Publisher interface {
	PublishEmergencyEvent(ctx context.Context, eventType events.EventType, emergency *models.Emergency) error
	PublishAcknowledgment(ctx context.Context, emergency *models.Emergency, ack *models.Acknowledgment, firstAck bool) error
	PublishEscalation(ctx context.Context, emergency *models.Emergency, tier int) error
}
