// internal/engine/sweeper_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger/loggertest"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

func newTestSweeper(t *testing.T, e *testEngine) *Sweeper {
	t.Helper()
	return NewSweeper(e.emergencies, e.states, e.countdowns, e.escalations, loggertest.New(t))
}

func TestSweep_RebuildsCountdownTimers(t *testing.T) {
	e := newTestEngine(t)
	emergency := e.trigger(t)
	// simulate a restart losing the in-memory timer
	e.countdowns.Cancel(emergency.ID)
	require.False(t, e.countdowns.timers.contains(emergency.ID))

	newTestSweeper(t, e).Sweep(context.Background())

	assert.True(t, e.countdowns.timers.contains(emergency.ID))
}

func TestSweep_ExpiredCountdownActivates(t *testing.T) {
	e := newTestEngine(t)
	emergency := e.trigger(t)
	e.countdowns.Cancel(emergency.ID)

	// backdate past the deadline
	e.emergencies.mu.Lock()
	e.emergencies.emergencies[emergency.ID].CreatedAt = time.Now().Add(-time.Hour)
	e.emergencies.mu.Unlock()

	newTestSweeper(t, e).Sweep(context.Background())

	require.Eventually(t, func() bool {
		return e.emergencies.status(emergency.ID) == models.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweep_ResumesEscalationMonitors(t *testing.T) {
	e := newTestEngine(t)
	emergency := activeEmergency(t, e)

	state := models.EscalationState{
		EmergencyID:  emergency.ID,
		CurrentTier:  1,
		TierDeadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, e.states.Upsert(context.Background(), &state))
	require.False(t, e.escalations.Monitoring(emergency.ID))

	newTestSweeper(t, e).Sweep(context.Background())

	assert.True(t, e.escalations.Monitoring(emergency.ID))
}

func TestSweep_ClosesStateForTerminalEmergency(t *testing.T) {
	e := newTestEngine(t)
	emergency := activeEmergency(t, e)

	state := models.EscalationState{
		EmergencyID:  emergency.ID,
		CurrentTier:  1,
		TierDeadline: time.Now().Add(time.Hour),
	}
	require.NoError(t, e.states.Upsert(context.Background(), &state))

	_, swapped, err := e.emergencies.TransitionStatus(context.Background(), emergency.ID, models.StatusActive, models.StatusResolved, nil)
	require.NoError(t, err)
	require.True(t, swapped)

	newTestSweeper(t, e).Sweep(context.Background())

	assert.True(t, e.states.stopped(emergency.ID))
	assert.False(t, e.escalations.Monitoring(emergency.ID))
}

func TestSweep_IdempotentForArmedTimers(t *testing.T) {
	e := newTestEngine(t)
	emergency := e.trigger(t)

	sweeper := newTestSweeper(t, e)
	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	assert.True(t, e.countdowns.timers.contains(emergency.ID))
	assert.Equal(t, models.StatusPending, e.emergencies.status(emergency.ID))
}
