// internal/engine/sweeper.go
package engine

import (
	"context"
	"time"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
)

const defaultSweepInterval = time.Minute

// Sweeper reconciles in-memory timers with the database. On startup it
// rebuilds countdown timers for PENDING emergencies and escalation monitors
// for un-stopped states; expired deadlines fire immediately through the
// normal CAS path, so a crash during a countdown never strands an alert.
// Periodic sweeps catch timers lost to transient scheduling failures.
type Sweeper struct {
	emergencies EmergencyStore
	states      EscalationStore
	countdowns  *CountdownScheduler
	escalations *EscalationMonitor
	interval    time.Duration
	logger      logger.Logger
}

// NewSweeper creates a Sweeper with the default interval.
func NewSweeper(emergencies EmergencyStore, states EscalationStore, countdowns *CountdownScheduler, escalations *EscalationMonitor, log logger.Logger) *Sweeper {
	return &Sweeper{
		emergencies: emergencies,
		states:      states,
		countdowns:  countdowns,
		escalations: escalations,
		interval:    defaultSweepInterval,
		logger:      log.WithFields(map[string]interface{}{"component": "sweeper"}),
	}
}

// Run sweeps once immediately, then at every interval until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepCountdowns(ctx)
	s.sweepEscalations(ctx)
}

func (s *Sweeper) sweepCountdowns(ctx context.Context) {
	pending, err := s.emergencies.ListPending(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Countdown sweep failed", nil)
		return
	}

	rebuilt := 0
	for i := range pending {
		emergency := &pending[i]
		if s.countdowns.timers.contains(emergency.ID) {
			continue
		}
		s.countdowns.Schedule(emergency)
		rebuilt++
	}

	if rebuilt > 0 {
		s.logger.Info("Rebuilt countdown timers", map[string]interface{}{
			"count": rebuilt,
		})
	}
}

func (s *Sweeper) sweepEscalations(ctx context.Context) {
	states, err := s.states.ListActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Escalation sweep failed", nil)
		return
	}

	rebuilt := 0
	for _, state := range states {
		if s.escalations.Monitoring(state.EmergencyID) {
			continue
		}

		emergency, err := s.emergencies.GetByID(ctx, state.EmergencyID)
		if err != nil {
			s.logger.WithError(err).Error("Escalation sweep lookup failed", map[string]interface{}{
				"emergency_id": state.EmergencyID,
			})
			continue
		}

		if !emergency.IsActive() {
			// monitor state outlived its emergency; close it out
			s.escalations.Stop(ctx, state.EmergencyID)
			continue
		}

		s.escalations.Resume(state)
		rebuilt++
	}

	if rebuilt > 0 {
		s.logger.Info("Resumed escalation monitors", map[string]interface{}{
			"count": rebuilt,
		})
	}
}
