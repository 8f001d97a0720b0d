package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Acknowledgment represents a contact's confirmed response to an active
// emergency. Unique per (emergency_id, contact_id); a second acknowledgment
// from the same contact is a no-op, not an error.
type Acknowledgment struct {
	ID             uuid.UUID `json:"id" db:"id"`
	EmergencyID    uuid.UUID `json:"emergency_id" db:"emergency_id"`
	ContactID      uuid.UUID `json:"contact_id" db:"contact_id"`
	ContactName    string    `json:"contact_name" db:"contact_name"`
	AcknowledgedAt time.Time `json:"acknowledged_at" db:"acknowledged_at"`
	Location       *Location `json:"location,omitempty" db:"location"`
	Message        *string   `json:"message,omitempty" db:"message"`
}

// AcknowledgeRequest represents a request to acknowledge an emergency
type AcknowledgeRequest struct {
	ContactID   uuid.UUID `json:"contact_id"`
	ContactName string    `json:"contact_name"`
	Location    *Location `json:"location,omitempty"`
	Message     *string   `json:"message,omitempty"`
}

// Validate validates the acknowledgment data
func (a *Acknowledgment) Validate() error {
	if a.EmergencyID == uuid.Nil {
		return errors.New("emergency_id is required")
	}

	if a.ContactID == uuid.Nil {
		return errors.New("contact_id is required")
	}

	if a.ContactName == "" {
		return errors.New("contact_name is required")
	}

	if a.Location != nil {
		if a.Location.Latitude < -90 || a.Location.Latitude > 90 {
			return errors.New("invalid latitude: must be between -90 and 90")
		}
		if a.Location.Longitude < -180 || a.Location.Longitude > 180 {
			return errors.New("invalid longitude: must be between -180 and 180")
		}
	}

	return nil
}
