// internal/store/acknowledgment_store_test.go
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

func TestAcknowledgmentStore_Insert_First(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewAcknowledgmentStore(db)
	ack := &models.Acknowledgment{
		ID:             uuid.New(),
		EmergencyID:    uuid.New(),
		ContactID:      uuid.New(),
		ContactName:    "Asha",
		AcknowledgedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO emergency_acknowledgments").
		WithArgs(ack.ID, ack.EmergencyID, ack.ContactID, ack.ContactName, ack.AcknowledgedAt, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := store.Insert(context.Background(), ack)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestAcknowledgmentStore_Insert_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewAcknowledgmentStore(db)
	ack := &models.Acknowledgment{
		ID:             uuid.New(),
		EmergencyID:    uuid.New(),
		ContactID:      uuid.New(),
		ContactName:    "Asha",
		AcknowledgedAt: time.Now().UTC(),
	}

	// conflict target matched: DO NOTHING, zero rows affected
	mock.ExpectExec("INSERT INTO emergency_acknowledgments").
		WithArgs(ack.ID, ack.EmergencyID, ack.ContactID, ack.ContactName, ack.AcknowledgedAt, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.Insert(context.Background(), ack)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestAcknowledgmentStore_CountByEmergency(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewAcknowledgmentStore(db)
	emergencyID := uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(emergencyID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountByEmergency(context.Background(), emergencyID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAcknowledgmentStore_ListByEmergency(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewAcknowledgmentStore(db)
	emergencyID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "emergency_id", "contact_id", "contact_name", "acknowledged_at", "location", "message",
	}).AddRow(uuid.New(), emergencyID, uuid.New(), "Asha", time.Now().UTC(), nil, nil)

	mock.ExpectQuery("SELECT .+ FROM emergency_acknowledgments").
		WithArgs(emergencyID).
		WillReturnRows(rows)

	acks, err := store.ListByEmergency(context.Background(), emergencyID)
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, "Asha", acks[0].ContactName)
}
