// internal/store/emergency_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

var (
	ErrEmergencyNotFound = errors.New("emergency not found")
)

const emergencyColumns = `id, user_id, emergency_type, status, location, initial_message,
       auto_triggered, triggered_by, countdown_seconds, version, created_at,
       activated_at, cancelled_at, resolved_at, resolution_notes`

// EmergencyStore handles database operations for emergencies. It is the
// source of truth for status; every transition goes through the CAS in
// TransitionStatus.
type EmergencyStore struct {
	db *sql.DB
}

// NewEmergencyStore creates a new EmergencyStore
func NewEmergencyStore(db *sql.DB) *EmergencyStore {
	return &EmergencyStore{db: db}
}

// Create inserts a new emergency in PENDING status.
func (s *EmergencyStore) Create(ctx context.Context, emergency *models.Emergency) error {
	query := `
		INSERT INTO emergencies (
			id, user_id, emergency_type, status, location, initial_message,
			auto_triggered, triggered_by, countdown_seconds, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		emergency.ID,
		emergency.UserID,
		emergency.EmergencyType,
		emergency.Status,
		emergency.Location,
		emergency.InitialMessage,
		emergency.AutoTriggered,
		emergency.TriggeredBy,
		emergency.CountdownSeconds,
		emergency.Version,
		emergency.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create emergency: %w", err)
	}

	return nil
}

// GetByID retrieves an emergency by its ID
func (s *EmergencyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	query := fmt.Sprintf(`SELECT %s FROM emergencies WHERE id = $1`, emergencyColumns)

	emergency, err := scanEmergency(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmergencyNotFound
		}
		return nil, fmt.Errorf("failed to get emergency: %w", err)
	}

	return emergency, nil
}

// GetActiveByUser returns the user's current PENDING or ACTIVE emergency,
// or nil when there is none.
func (s *EmergencyStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Emergency, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emergencies
		WHERE user_id = $1 AND status IN ('PENDING', 'ACTIVE')
		ORDER BY created_at DESC
		LIMIT 1
	`, emergencyColumns)

	emergency, err := scanEmergency(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active emergency: %w", err)
	}

	return emergency, nil
}

// TransitionStatus performs the atomic compare-and-swap from one status to
// another. The check-then-set is a single UPDATE guarded by the current
// status, so a concurrent cancel and countdown fire can never both succeed.
// Returns the updated row and true when this caller won the swap; (nil,
// false, nil) when the guard did not match.
func (s *EmergencyStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.EmergencyStatus, notes *string) (*models.Emergency, bool, error) {
	var stampColumn string
	switch to {
	case models.StatusActive:
		stampColumn = "activated_at"
	case models.StatusCancelled:
		stampColumn = "cancelled_at"
	case models.StatusResolved:
		stampColumn = "resolved_at"
	default:
		return nil, false, fmt.Errorf("invalid target status: %s", to)
	}

	query := fmt.Sprintf(`
		UPDATE emergencies
		SET status = $1, version = version + 1, %s = $2, resolution_notes = COALESCE($3, resolution_notes)
		WHERE id = $4 AND status = $5
		RETURNING %s
	`, stampColumn, emergencyColumns)

	emergency, err := scanEmergency(s.db.QueryRowContext(ctx, query, to, time.Now().UTC(), notes, id, from))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to transition emergency: %w", err)
	}

	return emergency, true, nil
}

// ListPending returns every PENDING emergency; used by the reconciliation
// sweep to rebuild countdown timers after a restart.
func (s *EmergencyStore) ListPending(ctx context.Context) ([]models.Emergency, error) {
	query := fmt.Sprintf(`SELECT %s FROM emergencies WHERE status = 'PENDING' ORDER BY created_at`, emergencyColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending emergencies: %w", err)
	}
	defer rows.Close()

	return collectEmergencies(rows)
}

// ListWithFilters retrieves emergencies with filtering and pagination
func (s *EmergencyStore) ListWithFilters(ctx context.Context, filters models.HistoryFilters) ([]models.Emergency, int, error) {
	query := fmt.Sprintf(`SELECT %s FROM emergencies WHERE user_id = $1`, emergencyColumns)

	args := []interface{}{filters.UserID}
	argPos := 2

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.Type != nil {
		query += fmt.Sprintf(" AND emergency_type = $%d", argPos)
		args = append(args, *filters.Type)
		argPos++
	}

	if filters.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *filters.StartDate)
		argPos++
	}

	if filters.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argPos)
		args = append(args, *filters.EndDate)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS filtered", query)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count emergencies: %w", err)
	}

	query += " ORDER BY created_at DESC"

	if filters.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list emergencies: %w", err)
	}
	defer rows.Close()

	emergencies, err := collectEmergencies(rows)
	if err != nil {
		return nil, 0, err
	}

	return emergencies, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmergency(row rowScanner) (*models.Emergency, error) {
	var emergency models.Emergency
	err := row.Scan(
		&emergency.ID,
		&emergency.UserID,
		&emergency.EmergencyType,
		&emergency.Status,
		&emergency.Location,
		&emergency.InitialMessage,
		&emergency.AutoTriggered,
		&emergency.TriggeredBy,
		&emergency.CountdownSeconds,
		&emergency.Version,
		&emergency.CreatedAt,
		&emergency.ActivatedAt,
		&emergency.CancelledAt,
		&emergency.ResolvedAt,
		&emergency.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	return &emergency, nil
}

func collectEmergencies(rows *sql.Rows) ([]models.Emergency, error) {
	var emergencies []models.Emergency
	for rows.Next() {
		emergency, err := scanEmergency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emergency: %w", err)
		}
		emergencies = append(emergencies, *emergency)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emergencies: %w", err)
	}

	return emergencies, nil
}
