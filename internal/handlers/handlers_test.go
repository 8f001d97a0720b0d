// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshratn/sos-app-sub001/internal/common/apperrors"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger/loggertest"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

type fakeEngine struct {
	emergency *models.Emergency
	ack       *models.Acknowledgment
	created   bool
	err       error

	lastDeviceToken string
	lastFilters     models.HistoryFilters
}

func (f *fakeEngine) Trigger(ctx context.Context, req *models.CreateEmergencyRequest) (*models.Emergency, error) {
	return f.emergency, f.err
}

func (f *fakeEngine) AutoTrigger(ctx context.Context, deviceToken string, req *models.AutoTriggerRequest) (*models.Emergency, error) {
	f.lastDeviceToken = deviceToken
	return f.emergency, f.err
}

func (f *fakeEngine) Cancel(ctx context.Context, emergencyID uuid.UUID, req *models.CancelRequest) (*models.Emergency, error) {
	return f.emergency, f.err
}

func (f *fakeEngine) Resolve(ctx context.Context, emergencyID uuid.UUID, req *models.ResolveRequest) (*models.Emergency, error) {
	return f.emergency, f.err
}

func (f *fakeEngine) Acknowledge(ctx context.Context, emergencyID uuid.UUID, req *models.AcknowledgeRequest) (*models.Acknowledgment, bool, error) {
	return f.ack, f.created, f.err
}

func (f *fakeEngine) Get(ctx context.Context, emergencyID, userID uuid.UUID) (*models.EmergencyResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.EmergencyResponse{Emergency: *f.emergency}, nil
}

func (f *fakeEngine) History(ctx context.Context, filters models.HistoryFilters) (*models.EmergencyListResponse, error) {
	f.lastFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	return &models.EmergencyListResponse{
		Emergencies: []models.Emergency{*f.emergency},
		Total:       1,
		Page:        filters.Page,
		PageSize:    filters.PageSize,
	}, nil
}

func testEmergency(status models.EmergencyStatus) *models.Emergency {
	return &models.Emergency{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		EmergencyType:    models.EmergencyTypeMedical,
		Status:           status,
		Location:         models.Location{Latitude: 12.9716, Longitude: 77.5946},
		TriggeredBy:      "user",
		CountdownSeconds: 30,
		Version:          1,
	}
}

func newTestServer(t *testing.T, engine *fakeEngine) *httptest.Server {
	t.Helper()
	log := loggertest.New(t)
	router := NewRouter(RouterDeps{
		Emergency: NewEmergencyHandler(engine, log),
		Logger:    log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body map[string]interface{}, headers map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func triggerBody(userID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"user_id":        userID.String(),
		"emergency_type": "MEDICAL",
		"location":       map[string]interface{}{"latitude": 12.9716, "longitude": 77.5946},
	}
}

func TestTrigger_ReturnsCreated(t *testing.T) {
	emergency := testEmergency(models.StatusPending)
	engine := &fakeEngine{emergency: emergency}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/trigger", triggerBody(emergency.UserID), nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded models.EmergencyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, emergency.ID, decoded.Emergency.ID)
	assert.Equal(t, models.StatusPending, decoded.Emergency.Status)
}

func TestTrigger_RejectsInvalidBody(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusPending)}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/trigger", map[string]interface{}{
		"user_id": uuid.NewString(),
		// emergency_type and location missing
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrigger_RejectsUnknownEmergencyType(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusPending)}
	srv := newTestServer(t, engine)

	body := triggerBody(uuid.New())
	body["emergency_type"] = "TORNADO"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/trigger", body, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrigger_MapsStateConflict(t *testing.T) {
	engine := &fakeEngine{err: apperrors.NewStateConflictError("trigger", string(models.StatusActive))}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/trigger", triggerBody(uuid.New()), nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAutoTrigger_RequiresDeviceToken(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusPending)}
	srv := newTestServer(t, engine)

	body := map[string]interface{}{
		"user_id":        uuid.NewString(),
		"emergency_type": "FALL",
		"location":       map[string]interface{}{"latitude": 1.0, "longitude": 2.0},
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/auto-trigger", body, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/emergency/auto-trigger", body, map[string]string{
		"X-Device-Token": "device-token-1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "device-token-1", engine.lastDeviceToken)
}

func TestCancel_ReturnsUpdatedEmergency(t *testing.T) {
	emergency := testEmergency(models.StatusCancelled)
	engine := &fakeEngine{emergency: emergency}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/emergency/%s/cancel", srv.URL, emergency.ID), map[string]interface{}{
		"user_id": emergency.UserID.String(),
		"reason":  "accidental",
	}, nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded models.EmergencyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, models.StatusCancelled, decoded.Emergency.Status)
}

func TestCancel_RejectsMalformedID(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusCancelled)}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/emergency/not-a-uuid/cancel", map[string]interface{}{
		"user_id": uuid.NewString(),
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolve_MapsNotFound(t *testing.T) {
	engine := &fakeEngine{err: apperrors.NewNotFoundError("emergency", uuid.NewString())}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/emergency/%s/resolve", srv.URL, uuid.New()), map[string]interface{}{
		"user_id": uuid.NewString(),
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAcknowledge_CreatedVersusRepeat(t *testing.T) {
	emergency := testEmergency(models.StatusActive)
	ack := &models.Acknowledgment{
		ID:          uuid.New(),
		EmergencyID: emergency.ID,
		ContactID:   uuid.New(),
		ContactName: "Asha",
	}
	body := map[string]interface{}{
		"contact_id":   ack.ContactID.String(),
		"contact_name": ack.ContactName,
	}
	url := fmt.Sprintf("%s/api/v1/emergency/%s/acknowledge", "%s", emergency.ID)

	engine := &fakeEngine{ack: ack, created: true}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf(url, srv.URL), body, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	engine.created = false
	resp = doJSON(t, http.MethodPost, fmt.Sprintf(url, srv.URL), body, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded models.Acknowledgment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, ack.ContactID, decoded.ContactID)
}

func TestAcknowledge_RequiresContactName(t *testing.T) {
	engine := &fakeEngine{ack: &models.Acknowledgment{}, created: true}
	srv := newTestServer(t, engine)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/emergency/%s/acknowledge", srv.URL, uuid.New()), map[string]interface{}{
		"contact_id": uuid.NewString(),
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGet_RequiresUserID(t *testing.T) {
	emergency := testEmergency(models.StatusActive)
	engine := &fakeEngine{emergency: emergency}
	srv := newTestServer(t, engine)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/emergency/%s", srv.URL, emergency.ID))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/emergency/%s?user_id=%s", srv.URL, emergency.ID, emergency.UserID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistory_ParsesFilters(t *testing.T) {
	emergency := testEmergency(models.StatusResolved)
	engine := &fakeEngine{emergency: emergency}
	srv := newTestServer(t, engine)

	url := fmt.Sprintf("%s/api/v1/emergency/history?user_id=%s&status=RESOLVED&type=MEDICAL&page=2&page_size=10",
		srv.URL, emergency.UserID)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, emergency.UserID, engine.lastFilters.UserID)
	require.NotNil(t, engine.lastFilters.Status)
	assert.Equal(t, models.StatusResolved, *engine.lastFilters.Status)
	require.NotNil(t, engine.lastFilters.Type)
	assert.Equal(t, models.EmergencyTypeMedical, *engine.lastFilters.Type)
	assert.Equal(t, 2, engine.lastFilters.Page)
	assert.Equal(t, 10, engine.lastFilters.PageSize)
}

func TestHistory_RejectsBadDate(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusResolved)}
	srv := newTestServer(t, engine)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/emergency/history?user_id=%s&start_date=yesterday", srv.URL, uuid.New()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	engine := &fakeEngine{emergency: testEmergency(models.StatusPending)}
	srv := newTestServer(t, engine)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
