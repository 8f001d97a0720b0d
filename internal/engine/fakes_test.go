// internal/engine/fakes_test.go
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/identity"
	"github.com/dineshratn/sos-app-sub001/internal/models"
	"github.com/dineshratn/sos-app-sub001/internal/store"
)

// memEmergencyStore implements EmergencyStore with the same CAS semantics
// as the Postgres store.
type memEmergencyStore struct {
	mu          sync.Mutex
	emergencies map[uuid.UUID]*models.Emergency
	failNext    error
}

func newMemEmergencyStore() *memEmergencyStore {
	return &memEmergencyStore{emergencies: make(map[uuid.UUID]*models.Emergency)}
}

func (s *memEmergencyStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *memEmergencyStore) Create(_ context.Context, emergency *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	clone := *emergency
	s.emergencies[emergency.ID] = &clone
	return nil
}

func (s *memEmergencyStore) GetByID(_ context.Context, id uuid.UUID) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	emergency, ok := s.emergencies[id]
	if !ok {
		return nil, store.ErrEmergencyNotFound
	}
	clone := *emergency
	return &clone, nil
}

func (s *memEmergencyStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	for _, emergency := range s.emergencies {
		if emergency.UserID == userID && (emergency.IsPending() || emergency.IsActive()) {
			clone := *emergency
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memEmergencyStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.EmergencyStatus, notes *string) (*models.Emergency, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, false, err
	}
	emergency, ok := s.emergencies[id]
	if !ok || emergency.Status != from {
		return nil, false, nil
	}
	emergency.Status = to
	emergency.Version++
	now := time.Now().UTC()
	switch to {
	case models.StatusActive:
		emergency.ActivatedAt = &now
	case models.StatusCancelled:
		emergency.CancelledAt = &now
	case models.StatusResolved:
		emergency.ResolvedAt = &now
	}
	if notes != nil {
		emergency.ResolutionNotes = notes
	}
	clone := *emergency
	return &clone, true, nil
}

func (s *memEmergencyStore) ListPending(_ context.Context) ([]models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var pending []models.Emergency
	for _, emergency := range s.emergencies {
		if emergency.IsPending() {
			pending = append(pending, *emergency)
		}
	}
	return pending, nil
}

func (s *memEmergencyStore) ListWithFilters(_ context.Context, filters models.HistoryFilters) ([]models.Emergency, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, 0, err
	}
	var out []models.Emergency
	for _, emergency := range s.emergencies {
		if emergency.UserID != filters.UserID {
			continue
		}
		if filters.Status != nil && emergency.Status != *filters.Status {
			continue
		}
		out = append(out, *emergency)
	}
	return out, len(out), nil
}

func (s *memEmergencyStore) status(id uuid.UUID) models.EmergencyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emergencies[id].Status
}

// memAckStore implements AcknowledgmentStore with the unique-pair rule.
type memAckStore struct {
	mu   sync.Mutex
	acks map[uuid.UUID]map[uuid.UUID]*models.Acknowledgment
}

func newMemAckStore() *memAckStore {
	return &memAckStore{acks: make(map[uuid.UUID]map[uuid.UUID]*models.Acknowledgment)}
}

func (s *memAckStore) Insert(_ context.Context, ack *models.Acknowledgment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byContact, ok := s.acks[ack.EmergencyID]
	if !ok {
		byContact = make(map[uuid.UUID]*models.Acknowledgment)
		s.acks[ack.EmergencyID] = byContact
	}
	if _, exists := byContact[ack.ContactID]; exists {
		return false, nil
	}
	clone := *ack
	byContact[ack.ContactID] = &clone
	return true, nil
}

func (s *memAckStore) GetByContact(_ context.Context, emergencyID, contactID uuid.UUID) (*models.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ack, ok := s.acks[emergencyID][contactID]; ok {
		clone := *ack
		return &clone, nil
	}
	return nil, nil
}

func (s *memAckStore) ListByEmergency(_ context.Context, emergencyID uuid.UUID) ([]models.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Acknowledgment
	for _, ack := range s.acks[emergencyID] {
		out = append(out, *ack)
	}
	return out, nil
}

func (s *memAckStore) CountByEmergency(_ context.Context, emergencyID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acks[emergencyID]), nil
}

// memEscalationStore implements EscalationStore.
type memEscalationStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]*models.EscalationState
}

func newMemEscalationStore() *memEscalationStore {
	return &memEscalationStore{states: make(map[uuid.UUID]*models.EscalationState)}
}

func (s *memEscalationStore) Upsert(_ context.Context, state *models.EscalationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *state
	s.states[state.EmergencyID] = &clone
	return nil
}

func (s *memEscalationStore) Get(_ context.Context, emergencyID uuid.UUID) (*models.EscalationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[emergencyID]; ok {
		clone := *state
		return &clone, nil
	}
	return nil, nil
}

func (s *memEscalationStore) MarkStopped(_ context.Context, emergencyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[emergencyID]; ok {
		state.Stopped = true
	}
	return nil
}

func (s *memEscalationStore) ListActive(_ context.Context) ([]models.EscalationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscalationState
	for _, state := range s.states {
		if !state.Stopped {
			out = append(out, *state)
		}
	}
	return out, nil
}

func (s *memEscalationStore) stopped(emergencyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[emergencyID]
	return ok && state.Stopped
}

// capturedEvent is one publish call recorded by fakePublisher.
type capturedEvent struct {
	eventType events.EventType
	emergency models.Emergency
	tier      int
	firstAck  bool
}

type fakePublisher struct {
	mu            sync.Mutex
	events        []capturedEvent
	failPublishes int // fail this many emergency-event publishes first
}

func (p *fakePublisher) PublishEmergencyEvent(_ context.Context, eventType events.EventType, emergency *models.Emergency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPublishes > 0 {
		p.failPublishes--
		return assert.AnError
	}
	p.events = append(p.events, capturedEvent{eventType: eventType, emergency: *emergency})
	return nil
}

func (p *fakePublisher) PublishAcknowledgment(_ context.Context, emergency *models.Emergency, _ *models.Acknowledgment, firstAck bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{eventType: events.EventContactAcknowledged, emergency: *emergency, firstAck: firstAck})
	return nil
}

func (p *fakePublisher) PublishEscalation(_ context.Context, emergency *models.Emergency, tier int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{eventType: events.EventEscalationTriggered, emergency: *emergency, tier: tier})
	return nil
}

func (p *fakePublisher) byType(eventType events.EventType) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeDeviceGateway accepts a single configured token.
type fakeDeviceGateway struct {
	token    string
	identity identity.DeviceIdentity
}

func (g *fakeDeviceGateway) ValidateToken(_ context.Context, token string) (*identity.DeviceIdentity, error) {
	if token != g.token {
		return nil, identity.ErrInvalidDeviceToken
	}
	id := g.identity
	return &id, nil
}
