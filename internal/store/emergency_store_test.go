// internal/store/emergency_store_test.go
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

var emergencyColumnList = []string{
	"id", "user_id", "emergency_type", "status", "location", "initial_message",
	"auto_triggered", "triggered_by", "countdown_seconds", "version", "created_at",
	"activated_at", "cancelled_at", "resolved_at", "resolution_notes",
}

func emergencyRow(id, userID uuid.UUID, status models.EmergencyStatus, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(emergencyColumnList).AddRow(
		id, userID, models.EmergencyTypeMedical, status,
		[]byte(`{"latitude":12.97,"longitude":77.59}`), nil,
		false, "MANUAL", 30, version, time.Now().UTC(),
		nil, nil, nil, nil,
	)
}

func TestEmergencyStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	emergency := &models.Emergency{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		EmergencyType:    models.EmergencyTypeMedical,
		Status:           models.StatusPending,
		Location:         models.Location{Latitude: 12.97, Longitude: 77.59},
		TriggeredBy:      "MANUAL",
		CountdownSeconds: 30,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO emergencies").
		WithArgs(
			emergency.ID, emergency.UserID, emergency.EmergencyType, emergency.Status,
			sqlmock.AnyArg(), nil, emergency.AutoTriggered, emergency.TriggeredBy,
			emergency.CountdownSeconds, emergency.Version, emergency.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Create(context.Background(), emergency)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmergencyStore_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM emergencies WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(emergencyColumnList))

	_, err = store.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrEmergencyNotFound)
}

func TestEmergencyStore_TransitionStatus_Won(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	id := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("UPDATE emergencies").
		WithArgs(models.StatusActive, sqlmock.AnyArg(), nil, id, models.StatusPending).
		WillReturnRows(emergencyRow(id, userID, models.StatusActive, 2))

	updated, swapped, err := store.TransitionStatus(context.Background(), id, models.StatusPending, models.StatusActive, nil)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, models.StatusActive, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
}

func TestEmergencyStore_TransitionStatus_LostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	id := uuid.New()

	// guard status no longer matches: zero rows back from RETURNING
	mock.ExpectQuery("UPDATE emergencies").
		WithArgs(models.StatusActive, sqlmock.AnyArg(), nil, id, models.StatusPending).
		WillReturnRows(sqlmock.NewRows(emergencyColumnList))

	updated, swapped, err := store.TransitionStatus(context.Background(), id, models.StatusPending, models.StatusActive, nil)
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Nil(t, updated)
}

func TestEmergencyStore_TransitionStatus_InvalidTarget(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)

	_, _, err = store.TransitionStatus(context.Background(), uuid.New(), models.StatusActive, models.StatusPending, nil)
	assert.Error(t, err)
}

func TestEmergencyStore_GetActiveByUser_None(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM emergencies").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(emergencyColumnList))

	emergency, err := store.GetActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, emergency)
}

func TestEmergencyStore_ListPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	rows := emergencyRow(uuid.New(), uuid.New(), models.StatusPending, 1).
		AddRow(
			uuid.New(), uuid.New(), models.EmergencyTypeFire, models.StatusPending,
			[]byte(`{"latitude":1,"longitude":2}`), nil,
			true, "DEVICE", 10, 1, time.Now().UTC(),
			nil, nil, nil, nil,
		)

	mock.ExpectQuery("SELECT .+ FROM emergencies WHERE status = 'PENDING'").
		WillReturnRows(rows)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestEmergencyStore_ListWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewEmergencyStore(db)
	userID := uuid.New()
	status := models.StatusResolved

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(userID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .+ FROM emergencies").
		WithArgs(userID, status, 20, 0).
		WillReturnRows(emergencyRow(uuid.New(), userID, status, 3))

	filters := models.HistoryFilters{UserID: userID, Status: &status, Page: 1, PageSize: 20}
	emergencies, total, err := store.ListWithFilters(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, emergencies, 1)
}
