// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmergencyTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_transitions_total",
			Help: "Total number of emergency status transitions",
		},
		[]string{"from", "to"},
	)

	EmergencyTransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_transition_conflicts_total",
			Help: "Total number of lost CAS races on status transitions",
		},
		[]string{"operation"},
	)

	EscalationsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_triggered_total",
			Help: "Total number of escalation tier advances",
		},
		[]string{"tier"},
	)

	CountdownTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "countdown_timers_active",
			Help: "Number of countdown timers currently scheduled",
		},
	)

	EscalationMonitorsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escalation_monitors_active",
			Help: "Number of escalation monitors currently running",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_events_published_total",
			Help: "Total number of domain events published to the bus",
		},
		[]string{"topic"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_event_publish_failures_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"topic"},
	)

	NotificationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Total number of notification jobs by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	NotificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_send_duration_seconds",
			Help: "Duration of provider send calls in seconds",
		},
		[]string{"channel"},
	)
)
