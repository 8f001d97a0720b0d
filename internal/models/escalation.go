package models

import (
	"time"

	"github.com/google/uuid"
)

// EscalationState is the persisted view of a running escalation monitor.
// Owned exclusively by the monitor; read by the reconciliation sweep on
// restart so a crash never re-notifies tier 1 twice.
type EscalationState struct {
	EmergencyID  uuid.UUID `json:"emergency_id" db:"emergency_id"`
	CurrentTier  int       `json:"current_tier" db:"current_tier"`
	TierDeadline time.Time `json:"tier_deadline" db:"tier_deadline"`
	Stopped      bool      `json:"stopped" db:"stopped"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
