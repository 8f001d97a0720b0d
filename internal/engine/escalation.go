// internal/engine/escalation.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/metrics"
	"github.com/dineshratn/sos-app-sub001/internal/common/observability"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// EscalationMonitor watches ACTIVE emergencies and raises the notification
// tier while nobody acknowledges. Tier advancement stops at MaxTiers; after
// that each tick re-notifies the final tier until an acknowledgment,
// resolution or cancellation stops the monitor. State is persisted on every
// advancement so a restart resumes at the recorded tier instead of starting
// over.
type EscalationMonitor struct {
	emergencies EmergencyStore
	acks        AcknowledgmentStore
	states      EscalationStore
	publisher   Publisher
	cfg         config.EscalationConfig
	timers      *timerSet
	logger      logger.Logger
	obs         *observability.Observability
	clock       func() time.Time
}

// NewEscalationMonitor creates an EscalationMonitor.
func NewEscalationMonitor(emergencies EmergencyStore, acks AcknowledgmentStore, states EscalationStore, publisher Publisher, cfg config.EscalationConfig, log logger.Logger, obs *observability.Observability) *EscalationMonitor {
	return &EscalationMonitor{
		emergencies: emergencies,
		acks:        acks,
		states:      states,
		publisher:   publisher,
		cfg:         cfg,
		timers:      newTimerSet(metrics.EscalationMonitorsActive),
		logger:      log.WithFields(map[string]interface{}{"component": "escalation"}),
		obs:         obs,
		clock:       time.Now,
	}
}

// Start begins monitoring a newly activated emergency at tier one, the
// circle already notified at activation. The first tick fires one tier
// window later and escalates to tier two.
func (m *EscalationMonitor) Start(ctx context.Context, emergency *models.Emergency) {
	state := &models.EscalationState{
		EmergencyID:  emergency.ID,
		CurrentTier:  1,
		TierDeadline: m.clock().Add(m.cfg.TierWindow()),
	}

	if err := m.states.Upsert(ctx, state); err != nil {
		m.logger.WithError(err).Error("Failed to persist escalation state", map[string]interface{}{
			"emergency_id": emergency.ID,
		})
		// monitor still runs; the sweep cannot resume it after a crash
	}

	m.scheduleTick(emergency.ID, state.TierDeadline)
	m.logger.Info("Escalation monitoring started", map[string]interface{}{
		"emergency_id": emergency.ID,
		"deadline":     state.TierDeadline,
	})
}

// Resume re-arms a monitor from persisted state after a restart. A deadline
// already in the past ticks immediately.
func (m *EscalationMonitor) Resume(state models.EscalationState) {
	m.scheduleTick(state.EmergencyID, state.TierDeadline)
	m.logger.Info("Escalation monitoring resumed", map[string]interface{}{
		"emergency_id": state.EmergencyID,
		"tier":         state.CurrentTier,
		"deadline":     state.TierDeadline,
	})
}

// Stop halts monitoring, both the in-memory timer and the persisted state.
func (m *EscalationMonitor) Stop(ctx context.Context, emergencyID uuid.UUID) {
	m.timers.remove(emergencyID)
	if err := m.states.MarkStopped(ctx, emergencyID); err != nil {
		m.logger.WithError(err).Error("Failed to mark escalation stopped", map[string]interface{}{
			"emergency_id": emergencyID,
		})
	}
}

// Shutdown cancels all in-memory timers without touching persisted state,
// so monitors resume after the next start.
func (m *EscalationMonitor) Shutdown() {
	m.timers.stopAll()
}

// Monitoring reports whether an in-memory timer is armed for the emergency.
func (m *EscalationMonitor) Monitoring(emergencyID uuid.UUID) bool {
	return m.timers.contains(emergencyID)
}

func (m *EscalationMonitor) scheduleTick(id uuid.UUID, deadline time.Time) {
	m.timers.put(id, schedule(deadline.Sub(m.clock()), func() {
		m.timers.forget(id)
		m.tick(id)
	}))
}

// tick runs at each tier deadline. Acknowledged, resolved and cancelled
// emergencies stop the monitor; otherwise the tier advances (capped at
// MaxTiers) and an escalation event is published.
func (m *EscalationMonitor) tick(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	started := m.clock()
	defer func() {
		m.obs.RecordTickDuration(ctx, m.clock().Sub(started), "escalation")
	}()

	emergency, err := m.emergencies.GetByID(ctx, id)
	if err != nil {
		m.retryTick(ctx, id, err)
		return
	}

	if !emergency.IsActive() {
		m.logger.Debug("Emergency no longer active, stopping escalation", map[string]interface{}{
			"emergency_id": id,
			"status":       emergency.Status,
		})
		m.Stop(ctx, id)
		return
	}

	ackCount, err := m.acks.CountByEmergency(ctx, id)
	if err != nil {
		m.retryTick(ctx, id, err)
		return
	}
	if ackCount > 0 {
		m.logger.Info("Emergency acknowledged, stopping escalation", map[string]interface{}{
			"emergency_id": id,
			"ack_count":    ackCount,
		})
		m.Stop(ctx, id)
		return
	}

	state, err := m.states.Get(ctx, id)
	if err != nil {
		m.retryTick(ctx, id, err)
		return
	}
	if state == nil || state.Stopped {
		return
	}

	tier := state.CurrentTier + 1
	if tier > m.cfg.MaxTiers {
		tier = m.cfg.MaxTiers
	}

	next := m.clock().Add(m.cfg.RenotifyInterval())
	state.CurrentTier = tier
	state.TierDeadline = next
	if err := m.states.Upsert(ctx, state); err != nil {
		m.retryTick(ctx, id, err)
		return
	}

	metrics.EscalationsTriggered.WithLabelValues(tierLabel(tier)).Inc()
	m.logger.Info("Escalation triggered", map[string]interface{}{
		"emergency_id": id,
		"tier":         tier,
		"next_tick":    next,
	})

	if err := m.publisher.PublishEscalation(ctx, emergency, tier); err != nil {
		m.logger.WithError(err).Error("Escalation event publish failed", map[string]interface{}{
			"emergency_id": id,
			"tier":         tier,
		})
	}

	m.scheduleTick(id, next)
}

// retryTick reschedules after a transient failure without advancing the
// tier.
func (m *EscalationMonitor) retryTick(ctx context.Context, id uuid.UUID, cause error) {
	m.logger.WithError(cause).Warn("Escalation tick failed, retrying", map[string]interface{}{
		"emergency_id": id,
	})
	m.scheduleTick(id, m.clock().Add(m.cfg.TickRetry()))
}

func tierLabel(tier int) string {
	switch tier {
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "4+"
	}
}
