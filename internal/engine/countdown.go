// internal/engine/countdown.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/metrics"
	"github.com/dineshratn/sos-app-sub001/internal/common/observability"
	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

const fireTimeout = 10 * time.Second

// The activated event is the dispatcher's only cue to notify the tier-1
// circle, so a failed publish gets a few immediate retries before the
// escalation ladder becomes the fallback notification path.
const activationPublishAttempts = 3

// CountdownScheduler owns the in-memory countdown timers for PENDING
// emergencies. Timers are derived state: whether an expiry actually
// activates the emergency is decided by the database CAS, so a timer firing
// for an already-cancelled emergency is harmless.
type CountdownScheduler struct {
	emergencies EmergencyStore
	publisher   Publisher
	escalations *EscalationMonitor
	timers      *timerSet
	logger      logger.Logger
	obs         *observability.Observability
	clock       func() time.Time
}

// NewCountdownScheduler creates a CountdownScheduler.
func NewCountdownScheduler(emergencies EmergencyStore, publisher Publisher, escalations *EscalationMonitor, log logger.Logger, obs *observability.Observability) *CountdownScheduler {
	return &CountdownScheduler{
		emergencies: emergencies,
		publisher:   publisher,
		escalations: escalations,
		timers:      newTimerSet(metrics.CountdownTimersActive),
		logger:      log.WithFields(map[string]interface{}{"component": "countdown"}),
		obs:         obs,
		clock:       time.Now,
	}
}

// Schedule arms the countdown timer for a PENDING emergency. A deadline
// already in the past fires immediately; the reconciliation sweep relies on
// this after a restart.
func (s *CountdownScheduler) Schedule(emergency *models.Emergency) {
	id := emergency.ID
	delay := emergency.CountdownDeadline().Sub(s.clock())

	s.timers.put(id, schedule(delay, func() {
		s.timers.forget(id)
		s.fire(id)
	}))

	s.logger.Debug("Countdown scheduled", map[string]interface{}{
		"emergency_id": id,
		"delay_ms":     delay.Milliseconds(),
	})
}

// Cancel disarms the timer. Returns false when no timer was armed, which
// happens when the countdown already fired.
func (s *CountdownScheduler) Cancel(id uuid.UUID) bool {
	return s.timers.remove(id)
}

// Stop cancels every armed timer; called on shutdown. Pending emergencies
// are picked up again by the sweep on the next start.
func (s *CountdownScheduler) Stop() {
	s.timers.stopAll()
}

func (s *CountdownScheduler) fire(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	started := s.clock()
	defer func() {
		s.obs.RecordTickDuration(ctx, s.clock().Sub(started), "countdown")
	}()

	emergency, swapped, err := s.emergencies.TransitionStatus(ctx, id, models.StatusPending, models.StatusActive, nil)
	if err != nil {
		s.logger.WithError(err).Error("Countdown activation failed, rescheduling", map[string]interface{}{
			"emergency_id": id,
		})
		// transient store failure: retry shortly rather than lose the alarm
		s.timers.put(id, schedule(fireTimeout, func() {
			s.timers.forget(id)
			s.fire(id)
		}))
		return
	}

	if !swapped {
		// cancel won the race; nothing to activate
		metrics.EmergencyTransitionConflicts.WithLabelValues("countdown_fire").Inc()
		s.logger.Debug("Countdown expired after cancellation", map[string]interface{}{
			"emergency_id": id,
		})
		return
	}

	metrics.EmergencyTransitions.WithLabelValues(string(models.StatusPending), string(models.StatusActive)).Inc()
	s.logger.Info("Emergency activated", map[string]interface{}{
		"emergency_id": id,
		"user_id":      emergency.UserID,
		"version":      emergency.Version,
	})

	var pubErr error
	for attempt := 1; attempt <= activationPublishAttempts; attempt++ {
		if pubErr = s.publisher.PublishEmergencyEvent(ctx, events.EventEmergencyActivated, emergency); pubErr == nil {
			break
		}
		s.logger.WithError(pubErr).Warn("Activation event publish failed", map[string]interface{}{
			"emergency_id": id,
			"attempt":      attempt,
		})
	}
	if pubErr != nil {
		s.logger.WithError(pubErr).Error("Activation event dropped, escalation will re-notify", map[string]interface{}{
			"emergency_id": id,
		})
	}

	if s.escalations != nil {
		s.escalations.Start(ctx, emergency)
	}
}
