// internal/engine/service.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/apperrors"
	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/metrics"
	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/identity"
	"github.com/dineshratn/sos-app-sub001/internal/models"
	"github.com/dineshratn/sos-app-sub001/internal/store"
)

// Service is the emergency lifecycle engine. Every status transition funnels
// through the store's CAS; the service layers validation, ownership checks,
// timer management and event publication on top.
type Service struct {
	emergencies EmergencyStore
	acks        AcknowledgmentStore
	publisher   Publisher
	countdowns  *CountdownScheduler
	escalations *EscalationMonitor
	latch       AckLatch
	devices     identity.DeviceGateway
	cfg         config.EmergencyConfig
	logger      logger.Logger
	clock       func() time.Time
}

// NewService creates the engine service.
func NewService(
	emergencies EmergencyStore,
	acks AcknowledgmentStore,
	publisher Publisher,
	countdowns *CountdownScheduler,
	escalations *EscalationMonitor,
	latch AckLatch,
	devices identity.DeviceGateway,
	cfg config.EmergencyConfig,
	log logger.Logger,
) *Service {
	return &Service{
		emergencies: emergencies,
		acks:        acks,
		publisher:   publisher,
		countdowns:  countdowns,
		escalations: escalations,
		latch:       latch,
		devices:     devices,
		cfg:         cfg,
		logger:      log.WithFields(map[string]interface{}{"component": "emergency_service"}),
		clock:       time.Now,
	}
}

// Trigger creates a PENDING emergency for a user-initiated SOS and arms its
// countdown. A user with an emergency already in flight gets a conflict, not
// a second alert.
func (s *Service) Trigger(ctx context.Context, req *models.CreateEmergencyRequest) (*models.Emergency, error) {
	countdown := s.cfg.DefaultCountdownSeconds
	if req.CountdownSeconds != nil {
		countdown = *req.CountdownSeconds
	}
	if countdown < s.cfg.MinCountdownSeconds || countdown > s.cfg.MaxCountdownSeconds {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"countdown_seconds must be between %d and %d", s.cfg.MinCountdownSeconds, s.cfg.MaxCountdownSeconds))
	}

	emergency := &models.Emergency{
		ID:               uuid.New(),
		UserID:           req.UserID,
		EmergencyType:    req.EmergencyType,
		Status:           models.StatusPending,
		Location:         req.Location,
		InitialMessage:   req.InitialMessage,
		AutoTriggered:    false,
		TriggeredBy:      "user",
		CountdownSeconds: countdown,
		Version:          1,
		CreatedAt:        s.clock().UTC(),
	}

	return s.create(ctx, emergency)
}

// AutoTrigger creates an emergency on behalf of a registered device, for
// example a fall detection wearable. The device token is validated first and
// must belong to the user being alerted for. Auto-triggered emergencies use
// the longer auto countdown so the wearer can cancel a false positive.
func (s *Service) AutoTrigger(ctx context.Context, deviceToken string, req *models.AutoTriggerRequest) (*models.Emergency, error) {
	device, err := s.devices.ValidateToken(ctx, deviceToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidDeviceToken) {
			return nil, apperrors.NewAuthorizationError("device token rejected")
		}
		return nil, apperrors.NewTransientStoreError(err)
	}
	if device.UserID != req.UserID {
		return nil, apperrors.NewAuthorizationError("device is not registered to this user")
	}

	emergency := &models.Emergency{
		ID:               uuid.New(),
		UserID:           req.UserID,
		EmergencyType:    req.EmergencyType,
		Status:           models.StatusPending,
		Location:         req.Location,
		AutoTriggered:    true,
		TriggeredBy:      "device:" + device.DeviceID.String(),
		CountdownSeconds: s.cfg.AutoCountdownSeconds,
		Version:          1,
		CreatedAt:        s.clock().UTC(),
	}

	return s.create(ctx, emergency)
}

func (s *Service) create(ctx context.Context, emergency *models.Emergency) (*models.Emergency, error) {
	if err := emergency.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	existing, err := s.emergencies.GetActiveByUser(ctx, emergency.UserID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}
	if existing != nil {
		return nil, apperrors.NewStateConflictError("trigger", string(existing.Status))
	}

	if err := s.emergencies.Create(ctx, emergency); err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}

	s.logger.Info("Emergency created", map[string]interface{}{
		"emergency_id":   emergency.ID,
		"user_id":        emergency.UserID,
		"emergency_type": emergency.EmergencyType,
		"auto_triggered": emergency.AutoTriggered,
		"countdown_s":    emergency.CountdownSeconds,
	})

	// No event yet: downstream consumers only hear about an emergency once
	// it survives its countdown and activates.
	s.countdowns.Schedule(emergency)
	return emergency, nil
}

// Cancel moves a PENDING emergency to CANCELLED before its countdown fires.
// Losing the race against the countdown returns a conflict carrying the
// status that won.
func (s *Service) Cancel(ctx context.Context, emergencyID uuid.UUID, req *models.CancelRequest) (*models.Emergency, error) {
	current, err := s.getOwned(ctx, emergencyID, req.UserID)
	if err != nil {
		return nil, err
	}

	updated, swapped, err := s.emergencies.TransitionStatus(ctx, emergencyID, models.StatusPending, models.StatusCancelled, nil)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}
	if !swapped {
		metrics.EmergencyTransitionConflicts.WithLabelValues("cancel").Inc()
		// re-read for an accurate conflict status
		current, err = s.emergencies.GetByID(ctx, emergencyID)
		if err != nil {
			return nil, apperrors.NewTransientStoreError(err)
		}
		return nil, apperrors.NewStateConflictError("cancel", string(current.Status))
	}

	metrics.EmergencyTransitions.WithLabelValues(string(models.StatusPending), string(models.StatusCancelled)).Inc()
	s.countdowns.Cancel(emergencyID)

	s.logger.Info("Emergency cancelled", map[string]interface{}{
		"emergency_id": emergencyID,
		"user_id":      req.UserID,
		"reason":       req.Reason,
	})

	if err := s.publisher.PublishEmergencyEvent(ctx, events.EventEmergencyCancelled, updated); err != nil {
		s.logger.WithError(err).Error("Cancelled event publish failed", map[string]interface{}{
			"emergency_id": emergencyID,
		})
	}

	return updated, nil
}

// Resolve closes out an emergency. ACTIVE emergencies resolve normally;
// a PENDING one may also be resolved directly, which skips activation.
func (s *Service) Resolve(ctx context.Context, emergencyID uuid.UUID, req *models.ResolveRequest) (*models.Emergency, error) {
	if _, err := s.getOwned(ctx, emergencyID, req.UserID); err != nil {
		return nil, err
	}

	from := models.StatusActive
	updated, swapped, err := s.emergencies.TransitionStatus(ctx, emergencyID, models.StatusActive, models.StatusResolved, req.ResolutionNotes)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}
	if !swapped {
		from = models.StatusPending
		updated, swapped, err = s.emergencies.TransitionStatus(ctx, emergencyID, models.StatusPending, models.StatusResolved, req.ResolutionNotes)
		if err != nil {
			return nil, apperrors.NewTransientStoreError(err)
		}
	}
	if !swapped {
		metrics.EmergencyTransitionConflicts.WithLabelValues("resolve").Inc()
		current, err := s.emergencies.GetByID(ctx, emergencyID)
		if err != nil {
			return nil, apperrors.NewTransientStoreError(err)
		}
		return nil, apperrors.NewStateConflictError("resolve", string(current.Status))
	}

	metrics.EmergencyTransitions.WithLabelValues(string(from), string(models.StatusResolved)).Inc()

	// terminal: tear down whatever timers remain
	s.countdowns.Cancel(emergencyID)
	s.escalations.Stop(ctx, emergencyID)
	if err := s.latch.Clear(ctx, emergencyID); err != nil {
		s.logger.WithError(err).Warn("Failed to clear first-ack latch", map[string]interface{}{
			"emergency_id": emergencyID,
		})
	}

	s.logger.Info("Emergency resolved", map[string]interface{}{
		"emergency_id": emergencyID,
		"user_id":      req.UserID,
	})

	if err := s.publisher.PublishEmergencyEvent(ctx, events.EventEmergencyResolved, updated); err != nil {
		s.logger.WithError(err).Error("Resolved event publish failed", map[string]interface{}{
			"emergency_id": emergencyID,
		})
	}

	return updated, nil
}

// Acknowledge records that an emergency contact has seen and responded to an
// ACTIVE emergency. Repeats from the same contact return the original
// acknowledgment unchanged. The first acknowledgment stops escalation.
func (s *Service) Acknowledge(ctx context.Context, emergencyID uuid.UUID, req *models.AcknowledgeRequest) (*models.Acknowledgment, bool, error) {
	emergency, err := s.emergencies.GetByID(ctx, emergencyID)
	if err != nil {
		if errors.Is(err, store.ErrEmergencyNotFound) {
			return nil, false, apperrors.NewNotFoundError("emergency", emergencyID.String())
		}
		return nil, false, apperrors.NewTransientStoreError(err)
	}

	if !emergency.IsActive() {
		return nil, false, apperrors.NewStateConflictError("acknowledge", string(emergency.Status))
	}

	ack := &models.Acknowledgment{
		ID:             uuid.New(),
		EmergencyID:    emergencyID,
		ContactID:      req.ContactID,
		ContactName:    req.ContactName,
		AcknowledgedAt: s.clock().UTC(),
		Location:       req.Location,
		Message:        req.Message,
	}
	if err := ack.Validate(); err != nil {
		return nil, false, apperrors.NewValidationError(err.Error())
	}

	inserted, err := s.acks.Insert(ctx, ack)
	if err != nil {
		return nil, false, apperrors.NewTransientStoreError(err)
	}

	if !inserted {
		existing, err := s.acks.GetByContact(ctx, emergencyID, req.ContactID)
		if err != nil {
			return nil, false, apperrors.NewTransientStoreError(err)
		}
		s.logger.Debug("Duplicate acknowledgment ignored", map[string]interface{}{
			"emergency_id": emergencyID,
			"contact_id":   req.ContactID,
		})
		return existing, false, nil
	}

	first, err := s.latch.FirstAck(ctx, emergencyID)
	if err != nil {
		// count-based stop at the next tick still halts escalation
		s.logger.WithError(err).Warn("First-ack latch unavailable", map[string]interface{}{
			"emergency_id": emergencyID,
		})
		first = false
	}

	if first {
		s.escalations.Stop(ctx, emergencyID)
	}

	s.logger.Info("Emergency acknowledged", map[string]interface{}{
		"emergency_id": emergencyID,
		"contact_id":   req.ContactID,
		"first_ack":    first,
	})

	if err := s.publisher.PublishAcknowledgment(ctx, emergency, ack, first); err != nil {
		s.logger.WithError(err).Error("Acknowledgment event publish failed", map[string]interface{}{
			"emergency_id": emergencyID,
		})
	}

	return ack, true, nil
}

// Get returns an emergency with its acknowledgments. Only the owner may
// read it.
func (s *Service) Get(ctx context.Context, emergencyID, userID uuid.UUID) (*models.EmergencyResponse, error) {
	emergency, err := s.getOwned(ctx, emergencyID, userID)
	if err != nil {
		return nil, err
	}

	acks, err := s.acks.ListByEmergency(ctx, emergencyID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}

	return &models.EmergencyResponse{Emergency: *emergency, Acknowledgments: acks}, nil
}

// History returns the user's past emergencies with filters and pagination.
func (s *Service) History(ctx context.Context, filters models.HistoryFilters) (*models.EmergencyListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	emergencies, total, err := s.emergencies.ListWithFilters(ctx, filters)
	if err != nil {
		return nil, apperrors.NewTransientStoreError(err)
	}

	return &models.EmergencyListResponse{
		Emergencies: emergencies,
		Total:       total,
		Page:        filters.Page,
		PageSize:    filters.PageSize,
	}, nil
}

func (s *Service) getOwned(ctx context.Context, emergencyID, userID uuid.UUID) (*models.Emergency, error) {
	emergency, err := s.emergencies.GetByID(ctx, emergencyID)
	if err != nil {
		if errors.Is(err, store.ErrEmergencyNotFound) {
			return nil, apperrors.NewNotFoundError("emergency", emergencyID.String())
		}
		return nil, apperrors.NewTransientStoreError(err)
	}
	if emergency.UserID != userID {
		return nil, apperrors.NewAuthorizationError("emergency belongs to another user")
	}
	return emergency, nil
}
