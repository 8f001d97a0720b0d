// internal/store/notification_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// NotificationStore tracks per-recipient notification jobs through the
// QUEUED -> SENT/DELIVERED/FAILED lifecycle.
type NotificationStore struct {
	db *sql.DB
}

// NewNotificationStore creates a new NotificationStore
func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// CreateJob inserts a new notification job in QUEUED status.
func (s *NotificationStore) CreateJob(ctx context.Context, job *models.NotificationJob) error {
	query := `
		INSERT INTO notification_jobs (
			id, emergency_id, recipient_id, channel, status, tier, attempt, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.EmergencyID,
		job.RecipientID,
		job.Channel,
		job.Status,
		job.Tier,
		job.Attempt,
		job.NextAttemptAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification job: %w", err)
	}

	return nil
}

// UpdateJob writes back a job's status, attempt count and next retry time.
func (s *NotificationStore) UpdateJob(ctx context.Context, job *models.NotificationJob) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = $1, attempt = $2, next_attempt_at = $3, updated_at = $4
		WHERE id = $5
	`, job.Status, job.Attempt, job.NextAttemptAt, time.Now().UTC(), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update notification job: %w", err)
	}
	return nil
}

// ListByEmergency returns all jobs for an emergency, oldest first.
func (s *NotificationStore) ListByEmergency(ctx context.Context, emergencyID uuid.UUID) ([]models.NotificationJob, error) {
	query := `
		SELECT id, emergency_id, recipient_id, channel, status, tier, attempt, next_attempt_at, created_at, updated_at
		FROM notification_jobs
		WHERE emergency_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, emergencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// DueJobs returns QUEUED jobs whose next attempt time has passed; the
// dispatcher picks these up on each retry sweep.
func (s *NotificationStore) DueJobs(ctx context.Context, now time.Time, limit int) ([]models.NotificationJob, error) {
	query := `
		SELECT id, emergency_id, recipient_id, channel, status, tier, attempt, next_attempt_at, created_at, updated_at
		FROM notification_jobs
		WHERE status = 'QUEUED' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notification jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	for rows.Next() {
		var job models.NotificationJob
		if err := rows.Scan(
			&job.ID,
			&job.EmergencyID,
			&job.RecipientID,
			&job.Channel,
			&job.Status,
			&job.Tier,
			&job.Attempt,
			&job.NextAttemptAt,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification jobs: %w", err)
	}

	return jobs, nil
}
