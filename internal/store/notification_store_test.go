// internal/store/notification_store_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshratn/sos-app-sub001/internal/models"
)

var jobColumnList = []string{
	"id", "emergency_id", "recipient_id", "channel", "status", "tier",
	"attempt", "next_attempt_at", "created_at", "updated_at",
}

func queuedJob() *models.NotificationJob {
	now := time.Now().UTC()
	return &models.NotificationJob{
		ID:          uuid.New(),
		EmergencyID: uuid.New(),
		RecipientID: uuid.New(),
		Channel:     models.ChannelPush,
		Status:      models.JobQueued,
		Tier:        1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestNotificationStore_CreateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewNotificationStore(db)
	job := queuedJob()

	mock.ExpectExec("INSERT INTO notification_jobs").
		WithArgs(
			job.ID, job.EmergencyID, job.RecipientID, job.Channel, job.Status,
			job.Tier, job.Attempt, nil, job.CreatedAt, job.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.CreateJob(context.Background(), job)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_UpdateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewNotificationStore(db)
	job := queuedJob()
	job.Status = models.JobSent
	job.Attempt = 2

	mock.ExpectExec("UPDATE notification_jobs").
		WithArgs(job.Status, job.Attempt, nil, sqlmock.AnyArg(), job.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.UpdateJob(context.Background(), job)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_DueJobs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewNotificationStore(db)
	now := time.Now().UTC()
	due := now.Add(-5 * time.Second)

	mock.ExpectQuery("SELECT .+ FROM notification_jobs WHERE status = 'QUEUED'").
		WithArgs(now, 100).
		WillReturnRows(sqlmock.NewRows(jobColumnList).
			AddRow(uuid.New(), uuid.New(), uuid.New(), models.ChannelSMS, models.JobQueued,
				1, 1, due, now.Add(-time.Minute), now))

	jobs, err := store.DueJobs(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ChannelSMS, jobs[0].Channel)
	require.NotNil(t, jobs[0].NextAttemptAt)
	assert.WithinDuration(t, due, *jobs[0].NextAttemptAt, time.Second)
}

func TestNotificationStore_ListByEmergency_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewNotificationStore(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM notification_jobs WHERE emergency_id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(jobColumnList))

	jobs, err := store.ListByEmergency(context.Background(), id)
	assert.NoError(t, err)
	assert.Empty(t, jobs)
}
