package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EmergencyType represents the type of emergency
type EmergencyType string

const (
	EmergencyTypeMedical EmergencyType = "MEDICAL"
	EmergencyTypeFire    EmergencyType = "FIRE"
	EmergencyTypeSafety  EmergencyType = "SAFETY"
	EmergencyTypeFall    EmergencyType = "FALL"
	EmergencyTypeOther   EmergencyType = "OTHER"
)

// EmergencyStatus represents the current status of an emergency
type EmergencyStatus string

const (
	StatusPending   EmergencyStatus = "PENDING"   // Countdown active
	StatusActive    EmergencyStatus = "ACTIVE"    // Emergency confirmed
	StatusCancelled EmergencyStatus = "CANCELLED" // User cancelled during countdown
	StatusResolved  EmergencyStatus = "RESOLVED"  // Emergency resolved
)

// Location represents a geographic location. It is opaque to the engine
// beyond well-formedness.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters
}

// Value implements driver.Valuer for Location (PostgreSQL JSONB)
func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for Location (PostgreSQL JSONB)
func (l *Location) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan Location: invalid type")
	}

	return json.Unmarshal(bytes, l)
}

// Emergency represents an emergency alert. Status only moves forward along
// PENDING -> {ACTIVE | CANCELLED}, ACTIVE -> RESOLVED; CANCELLED and
// RESOLVED are terminal. Version increments on every successful status
// transition and rides on every published event.
type Emergency struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	EmergencyType    EmergencyType   `json:"emergency_type" db:"emergency_type"`
	Status           EmergencyStatus `json:"status" db:"status"`
	Location         Location        `json:"location" db:"location"`
	InitialMessage   *string         `json:"initial_message,omitempty" db:"initial_message"`
	AutoTriggered    bool            `json:"auto_triggered" db:"auto_triggered"`
	TriggeredBy      string          `json:"triggered_by" db:"triggered_by"` // user, device:<id>
	CountdownSeconds int             `json:"countdown_seconds" db:"countdown_seconds"`
	Version          int64           `json:"version" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	ActivatedAt      *time.Time      `json:"activated_at,omitempty" db:"activated_at"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes  *string         `json:"resolution_notes,omitempty" db:"resolution_notes"`
}

// CountdownDeadline returns the instant at which the countdown expires.
func (e *Emergency) CountdownDeadline() time.Time {
	return e.CreatedAt.Add(time.Duration(e.CountdownSeconds) * time.Second)
}

// IsActive returns true if the emergency is currently active
func (e *Emergency) IsActive() bool {
	return e.Status == StatusActive
}

// IsPending returns true if the emergency is in countdown phase
func (e *Emergency) IsPending() bool {
	return e.Status == StatusPending
}

// IsTerminal returns true once no further transitions or timers may fire.
func (e *Emergency) IsTerminal() bool {
	return e.Status == StatusCancelled || e.Status == StatusResolved
}

// Validate validates the emergency data
func (e *Emergency) Validate() error {
	if e.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}

	switch e.EmergencyType {
	case EmergencyTypeMedical, EmergencyTypeFire, EmergencyTypeSafety,
		EmergencyTypeFall, EmergencyTypeOther:
	default:
		return errors.New("invalid emergency_type")
	}

	switch e.Status {
	case StatusPending, StatusActive, StatusCancelled, StatusResolved:
	default:
		return errors.New("invalid status")
	}

	if e.Location.Latitude < -90 || e.Location.Latitude > 90 {
		return errors.New("invalid latitude: must be between -90 and 90")
	}
	if e.Location.Longitude < -180 || e.Location.Longitude > 180 {
		return errors.New("invalid longitude: must be between -180 and 180")
	}

	if e.CountdownSeconds <= 0 {
		return errors.New("countdown_seconds must be positive")
	}

	return nil
}

// CreateEmergencyRequest represents a request to create a new emergency
type CreateEmergencyRequest struct {
	UserID           uuid.UUID     `json:"user_id"`
	EmergencyType    EmergencyType `json:"emergency_type"`
	Location         Location      `json:"location"`
	InitialMessage   *string       `json:"initial_message,omitempty"`
	CountdownSeconds *int          `json:"countdown_seconds,omitempty"` // Optional override
}

// AutoTriggerRequest represents a device-originated trigger.
type AutoTriggerRequest struct {
	UserID        uuid.UUID     `json:"user_id"`
	EmergencyType EmergencyType `json:"emergency_type"`
	Location      Location      `json:"location"`
	Confidence    *float64      `json:"confidence,omitempty"`
}

// CancelRequest asks to cancel a pending emergency.
type CancelRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason,omitempty"`
}

// ResolveRequest asks to resolve an emergency.
type ResolveRequest struct {
	UserID          uuid.UUID `json:"user_id"`
	ResolutionNotes *string   `json:"resolution_notes,omitempty"`
}

// EmergencyResponse represents the API response for an emergency
type EmergencyResponse struct {
	Emergency       Emergency        `json:"emergency"`
	Acknowledgments []Acknowledgment `json:"acknowledgments,omitempty"`
}

// EmergencyListResponse represents a paginated list of emergencies
type EmergencyListResponse struct {
	Emergencies []Emergency `json:"emergencies"`
	Total       int         `json:"total"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
}

// HistoryFilters represents filters for emergency history queries
type HistoryFilters struct {
	UserID    uuid.UUID
	Status    *EmergencyStatus
	Type      *EmergencyType
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}
