// internal/store/acknowledgment_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// nullLocation scans a nullable JSONB location column into *models.Location.
type nullLocation struct {
	Location *models.Location
}

func (n *nullLocation) Scan(value interface{}) error {
	if value == nil {
		n.Location = nil
		return nil
	}
	var loc models.Location
	if err := loc.Scan(value); err != nil {
		return err
	}
	n.Location = &loc
	return nil
}

// AcknowledgmentStore handles database operations for contact
// acknowledgments. Idempotency rests on the unique (emergency_id,
// contact_id) constraint, not on read-before-write.
type AcknowledgmentStore struct {
	db *sql.DB
}

// NewAcknowledgmentStore creates a new AcknowledgmentStore
func NewAcknowledgmentStore(db *sql.DB) *AcknowledgmentStore {
	return &AcknowledgmentStore{db: db}
}

// Insert records an acknowledgment. Returns false when this contact has
// already acknowledged the emergency (ON CONFLICT DO NOTHING swallowed the
// insert).
func (s *AcknowledgmentStore) Insert(ctx context.Context, ack *models.Acknowledgment) (bool, error) {
	query := `
		INSERT INTO emergency_acknowledgments (
			id, emergency_id, contact_id, contact_name, acknowledged_at, location, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (emergency_id, contact_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		ack.ID,
		ack.EmergencyID,
		ack.ContactID,
		ack.ContactName,
		ack.AcknowledgedAt,
		ack.Location,
		ack.Message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert acknowledgment: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return inserted > 0, nil
}

// GetByContact returns the existing acknowledgment for a contact, or nil.
func (s *AcknowledgmentStore) GetByContact(ctx context.Context, emergencyID, contactID uuid.UUID) (*models.Acknowledgment, error) {
	query := `
		SELECT id, emergency_id, contact_id, contact_name, acknowledged_at, location, message
		FROM emergency_acknowledgments
		WHERE emergency_id = $1 AND contact_id = $2
	`

	var ack models.Acknowledgment
	var loc nullLocation
	err := s.db.QueryRowContext(ctx, query, emergencyID, contactID).Scan(
		&ack.ID,
		&ack.EmergencyID,
		&ack.ContactID,
		&ack.ContactName,
		&ack.AcknowledgedAt,
		&loc,
		&ack.Message,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get acknowledgment: %w", err)
	}
	ack.Location = loc.Location

	return &ack, nil
}

// ListByEmergency returns all acknowledgments for an emergency, oldest first.
func (s *AcknowledgmentStore) ListByEmergency(ctx context.Context, emergencyID uuid.UUID) ([]models.Acknowledgment, error) {
	query := `
		SELECT id, emergency_id, contact_id, contact_name, acknowledged_at, location, message
		FROM emergency_acknowledgments
		WHERE emergency_id = $1
		ORDER BY acknowledged_at
	`

	rows, err := s.db.QueryContext(ctx, query, emergencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acknowledgments: %w", err)
	}
	defer rows.Close()

	var acks []models.Acknowledgment
	for rows.Next() {
		var ack models.Acknowledgment
		var loc nullLocation
		if err := rows.Scan(
			&ack.ID,
			&ack.EmergencyID,
			&ack.ContactID,
			&ack.ContactName,
			&ack.AcknowledgedAt,
			&loc,
			&ack.Message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgment: %w", err)
		}
		ack.Location = loc.Location
		acks = append(acks, ack)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating acknowledgments: %w", err)
	}

	return acks, nil
}

// CountByEmergency returns the number of acknowledgments recorded for an
// emergency. The escalation monitor consults this at each tier deadline.
func (s *AcknowledgmentStore) CountByEmergency(ctx context.Context, emergencyID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emergency_acknowledgments WHERE emergency_id = $1`,
		emergencyID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count acknowledgments: %w", err)
	}
	return count, nil
}
