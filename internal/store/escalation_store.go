// internal/store/escalation_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// EscalationStore persists the escalation monitor's tier and deadline so a
// restarted process can resume monitoring where it left off.
type EscalationStore struct {
	db *sql.DB
}

// NewEscalationStore creates a new EscalationStore
func NewEscalationStore(db *sql.DB) *EscalationStore {
	return &EscalationStore{db: db}
}

// Upsert writes the current tier and next deadline for an emergency.
func (s *EscalationStore) Upsert(ctx context.Context, state *models.EscalationState) error {
	query := `
		INSERT INTO escalation_states (emergency_id, current_tier, tier_deadline, stopped, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (emergency_id) DO UPDATE SET
			current_tier = EXCLUDED.current_tier,
			tier_deadline = EXCLUDED.tier_deadline,
			stopped = EXCLUDED.stopped,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		state.EmergencyID,
		state.CurrentTier,
		state.TierDeadline,
		state.Stopped,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert escalation state: %w", err)
	}

	return nil
}

// Get returns the escalation state for an emergency, or nil when none exists.
func (s *EscalationStore) Get(ctx context.Context, emergencyID uuid.UUID) (*models.EscalationState, error) {
	query := `
		SELECT emergency_id, current_tier, tier_deadline, stopped, updated_at
		FROM escalation_states
		WHERE emergency_id = $1
	`

	var state models.EscalationState
	err := s.db.QueryRowContext(ctx, query, emergencyID).Scan(
		&state.EmergencyID,
		&state.CurrentTier,
		&state.TierDeadline,
		&state.Stopped,
		&state.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get escalation state: %w", err)
	}

	return &state, nil
}

// MarkStopped flags the monitor as stopped; the sweep skips stopped states.
func (s *EscalationStore) MarkStopped(ctx context.Context, emergencyID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE escalation_states SET stopped = TRUE, updated_at = $1 WHERE emergency_id = $2`,
		time.Now().UTC(), emergencyID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark escalation stopped: %w", err)
	}
	return nil
}

// ListActive returns every escalation state that has not been stopped; the
// reconciliation sweep rebuilds monitors from these after a restart.
func (s *EscalationStore) ListActive(ctx context.Context) ([]models.EscalationState, error) {
	query := `
		SELECT emergency_id, current_tier, tier_deadline, stopped, updated_at
		FROM escalation_states
		WHERE stopped = FALSE
		ORDER BY tier_deadline
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation states: %w", err)
	}
	defer rows.Close()

	var states []models.EscalationState
	for rows.Next() {
		var state models.EscalationState
		if err := rows.Scan(
			&state.EmergencyID,
			&state.CurrentTier,
			&state.TierDeadline,
			&state.Stopped,
			&state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan escalation state: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation states: %w", err)
	}

	return states, nil
}
