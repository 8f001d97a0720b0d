// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/metrics"
	"github.com/dineshratn/sos-app-sub001/internal/directory"
	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// JobStore is the persistence surface for notification jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.NotificationJob) error
	UpdateJob(ctx context.Context, job *models.NotificationJob) error
	DueJobs(ctx context.Context, now time.Time, limit int) ([]models.NotificationJob, error)
}

// EmergencyReader is the read-only emergency access the dispatcher needs
// when retrying jobs.
type EmergencyReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error)
}

const dueJobBatchSize = 100

// Dispatcher turns lifecycle and escalation events into per-contact
// notification jobs and drives each job through send, retry and channel
// fallback. Jobs are independent: one contact's dead push endpoint never
// delays another contact's SMS.
type Dispatcher struct {
	jobs        JobStore
	emergencies EmergencyReader
	contacts    directory.ContactDirectory
	senders     map[models.Channel]ChannelSender
	cfg         config.NotificationConfig
	logger      logger.Logger
	clock       func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(jobs JobStore, emergencies EmergencyReader, contacts directory.ContactDirectory, senders map[models.Channel]ChannelSender, cfg config.NotificationConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:        jobs,
		emergencies: emergencies,
		contacts:    contacts,
		senders:     senders,
		cfg:         cfg,
		logger:      log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		clock:       time.Now,
	}
}

// HandleEmergencyEvent fans an emergency lifecycle event out to contacts.
// Only activation notifies; creation, cancellation, resolution and
// acknowledgments need no contact fan-out here.
func (d *Dispatcher) HandleEmergencyEvent(ctx context.Context, envelope *events.Envelope) error {
	if envelope.EventType != events.EventEmergencyActivated {
		return nil
	}

	var payload events.EmergencyPayload
	if err := decodePayload(envelope.Payload, &payload); err != nil {
		d.logger.WithError(err).Error("Dropping event with bad payload", map[string]interface{}{
			"event_type": envelope.EventType,
		})
		return nil
	}

	notice := activationNotice(envelope.EmergencyID, &payload)
	return d.fanOut(ctx, envelope.EmergencyID, payload.UserID, 1, notice)
}

// HandleEscalationEvent notifies every contact tier up to the event's tier,
// so each escalation widens the circle by one. Re-notifications at the final
// tier re-send to the same circle.
func (d *Dispatcher) HandleEscalationEvent(ctx context.Context, envelope *events.Envelope) error {
	var payload events.EscalationPayload
	if err := decodePayload(envelope.Payload, &payload); err != nil {
		d.logger.WithError(err).Error("Dropping escalation event with bad payload", nil)
		return nil
	}

	notice := escalationNotice(envelope.EmergencyID, &payload)
	return d.fanOut(ctx, envelope.EmergencyID, payload.UserID, payload.Tier, notice)
}

func (d *Dispatcher) fanOut(ctx context.Context, emergencyID, userID uuid.UUID, contactTier int, notice Notice) error {
	contacts, err := d.contacts.ContactsForUser(ctx, userID, contactTier)
	if err != nil {
		return fmt.Errorf("failed to resolve contacts: %w", err)
	}
	if len(contacts) == 0 {
		d.logger.Warn("No contacts to notify", map[string]interface{}{
			"emergency_id": emergencyID,
			"user_id":      userID,
		})
		return nil
	}

	for _, contact := range contacts {
		channel, ok := d.firstChannel(contact)
		if !ok {
			d.logger.Warn("Contact has no usable channel", map[string]interface{}{
				"emergency_id": emergencyID,
				"contact_id":   contact.ID,
			})
			continue
		}

		job := &models.NotificationJob{
			ID:          uuid.New(),
			EmergencyID: emergencyID,
			RecipientID: contact.ID,
			Channel:     channel,
			Status:      models.JobQueued,
			Tier:        contactTier,
			CreatedAt:   d.clock().UTC(),
			UpdatedAt:   d.clock().UTC(),
		}
		if err := d.jobs.CreateJob(ctx, job); err != nil {
			// job creation failures surface so the event is redelivered
			return fmt.Errorf("failed to create notification job: %w", err)
		}

		d.deliver(ctx, job, contact, notice)
	}

	return nil
}

// firstChannel picks the contact's first usable channel in preference
// order, honoring per-channel enablement.
func (d *Dispatcher) firstChannel(contact directory.Contact) (models.Channel, bool) {
	for _, channel := range models.DefaultChannelOrder {
		if !d.channelEnabled(channel) {
			continue
		}
		if contact.SupportsChannel(channel) {
			return channel, true
		}
	}
	return "", false
}

func (d *Dispatcher) channelEnabled(channel models.Channel) bool {
	switch channel {
	case models.ChannelPush:
		return d.cfg.Push.Enabled
	case models.ChannelSMS:
		return d.cfg.SMS.Enabled
	case models.ChannelEmail:
		return d.cfg.Email.Enabled
	default:
		return false
	}
}

// deliver performs one send attempt and applies the retry/fallback policy.
func (d *Dispatcher) deliver(ctx context.Context, job *models.NotificationJob, contact directory.Contact, notice Notice) {
	sender, ok := d.senders[job.Channel]
	if !ok {
		d.failJob(ctx, job, contact, fmt.Errorf("no sender for channel %s", job.Channel))
		return
	}

	job.Attempt++
	started := d.clock()
	err := sender.Send(ctx, contact, notice)
	metrics.NotificationSendDuration.WithLabelValues(string(job.Channel)).Observe(d.clock().Sub(started).Seconds())

	if err != nil {
		d.handleSendFailure(ctx, job, contact, err)
		return
	}

	job.Status = models.JobSent
	job.NextAttemptAt = nil
	if err := d.jobs.UpdateJob(ctx, job); err != nil {
		d.logger.WithError(err).Error("Failed to record sent job", map[string]interface{}{
			"job_id": job.ID,
		})
	}
	metrics.NotificationJobs.WithLabelValues(string(job.Channel), "sent").Inc()
	d.logger.Info("Notification sent", map[string]interface{}{
		"job_id":       job.ID,
		"emergency_id": job.EmergencyID,
		"contact_id":   contact.ID,
		"channel":      job.Channel,
		"attempt":      job.Attempt,
	})
}

func (d *Dispatcher) handleSendFailure(ctx context.Context, job *models.NotificationJob, contact directory.Contact, cause error) {
	// A failing push endpoint must not delay the contact hearing about the
	// emergency: the first provider failure on PUSH opens the SMS job right
	// away, while the push job keeps its own retry schedule.
	if job.Channel == models.ChannelPush && job.Attempt == 1 {
		d.fallbackToSMS(ctx, job, contact)
	}

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.MaxJobAttempts
	}

	if job.Attempt < maxAttempts {
		next := d.clock().UTC().Add(d.backoff(job.Attempt))
		job.NextAttemptAt = &next
		if err := d.jobs.UpdateJob(ctx, job); err != nil {
			d.logger.WithError(err).Error("Failed to schedule retry", map[string]interface{}{
				"job_id": job.ID,
			})
		}
		metrics.NotificationJobs.WithLabelValues(string(job.Channel), "retry").Inc()
		d.logger.Warn("Notification send failed, retry scheduled", map[string]interface{}{
			"job_id":       job.ID,
			"emergency_id": job.EmergencyID,
			"channel":      job.Channel,
			"attempt":      job.Attempt,
			"next_attempt": next,
			"error":        cause.Error(),
		})
		return
	}

	d.failJob(ctx, job, contact, cause)
}

// failJob marks the job FAILED. The job's own channel is done at this point;
// any PUSH job already opened its SMS fallback on its first provider failure.
func (d *Dispatcher) failJob(ctx context.Context, job *models.NotificationJob, contact directory.Contact, cause error) {
	job.Status = models.JobFailed
	job.NextAttemptAt = nil
	if err := d.jobs.UpdateJob(ctx, job); err != nil {
		d.logger.WithError(err).Error("Failed to record failed job", map[string]interface{}{
			"job_id": job.ID,
		})
	}
	metrics.NotificationJobs.WithLabelValues(string(job.Channel), "failed").Inc()
	d.logger.Error("Notification delivery exhausted", map[string]interface{}{
		"job_id":       job.ID,
		"emergency_id": job.EmergencyID,
		"contact_id":   contact.ID,
		"channel":      job.Channel,
		"error":        cause.Error(),
	})
}

// fallbackToSMS opens an SMS job for the contact of a failing push job and
// delivers it straight away. Fallback is one hop only: an exhausted SMS job
// is terminal.
func (d *Dispatcher) fallbackToSMS(ctx context.Context, job *models.NotificationJob, contact directory.Contact) {
	if !d.channelEnabled(models.ChannelSMS) || !contact.SupportsChannel(models.ChannelSMS) {
		return
	}

	fallback := &models.NotificationJob{
		ID:          uuid.New(),
		EmergencyID: job.EmergencyID,
		RecipientID: job.RecipientID,
		Channel:     models.ChannelSMS,
		Status:      models.JobQueued,
		Tier:        job.Tier,
		CreatedAt:   d.clock().UTC(),
		UpdatedAt:   d.clock().UTC(),
	}
	if err := d.jobs.CreateJob(ctx, fallback); err != nil {
		d.logger.WithError(err).Error("Failed to create fallback job", map[string]interface{}{
			"job_id": job.ID,
		})
		return
	}
	metrics.NotificationJobs.WithLabelValues(string(models.ChannelSMS), "fallback").Inc()
	d.logger.Info("Falling back to SMS", map[string]interface{}{
		"job_id":       job.ID,
		"fallback_job": fallback.ID,
		"emergency_id": job.EmergencyID,
		"contact_id":   contact.ID,
	})

	if notice, ok := d.rebuildNotice(ctx, job.EmergencyID, job.Tier); ok {
		d.deliver(ctx, fallback, contact, notice)
	}
}

// RunRetryLoop periodically picks up due jobs until the context is
// cancelled.
func (d *Dispatcher) RunRetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.ProcessDueJobs(ctx)
		}
	}
}

// ProcessDueJobs retries every queued job whose backoff has elapsed.
func (d *Dispatcher) ProcessDueJobs(ctx context.Context) {
	due, err := d.jobs.DueJobs(ctx, d.clock().UTC(), dueJobBatchSize)
	if err != nil {
		d.logger.WithError(err).Error("Failed to list due jobs", nil)
		return
	}

	for i := range due {
		job := &due[i]
		if job.NextAttemptAt == nil && d.clock().Sub(job.CreatedAt) < time.Minute {
			// freshly queued jobs are sent inline at fan-out time; only
			// pick them up here once they look stranded by a crash
			continue
		}

		emergency, err := d.emergencies.GetByID(ctx, job.EmergencyID)
		if err != nil {
			d.logger.WithError(err).Error("Failed to load emergency for retry", map[string]interface{}{
				"job_id": job.ID,
			})
			continue
		}
		if emergency.IsTerminal() {
			// nobody needs a retry for a closed emergency
			job.Status = models.JobFailed
			job.NextAttemptAt = nil
			if err := d.jobs.UpdateJob(ctx, job); err != nil {
				d.logger.WithError(err).Error("Failed to close stale job", map[string]interface{}{
					"job_id": job.ID,
				})
			}
			continue
		}

		contact, ok := d.resolveContact(ctx, emergency.UserID, job)
		if !ok {
			continue
		}

		notice := retryNotice(emergency, job.Tier)
		d.deliver(ctx, job, contact, notice)
	}
}

func (d *Dispatcher) resolveContact(ctx context.Context, userID uuid.UUID, job *models.NotificationJob) (directory.Contact, bool) {
	contacts, err := d.contacts.ContactsForUser(ctx, userID, job.Tier)
	if err != nil {
		d.logger.WithError(err).Error("Failed to resolve contact for retry", map[string]interface{}{
			"job_id": job.ID,
		})
		return directory.Contact{}, false
	}
	for _, contact := range contacts {
		if contact.ID == job.RecipientID {
			return contact, true
		}
	}
	d.logger.Warn("Contact no longer in directory, abandoning job", map[string]interface{}{
		"job_id":     job.ID,
		"contact_id": job.RecipientID,
	})
	job.Status = models.JobFailed
	if err := d.jobs.UpdateJob(ctx, job); err != nil {
		d.logger.WithError(err).Error("Failed to close orphaned job", map[string]interface{}{
			"job_id": job.ID,
		})
	}
	return directory.Contact{}, false
}

func (d *Dispatcher) rebuildNotice(ctx context.Context, emergencyID uuid.UUID, tier int) (Notice, bool) {
	emergency, err := d.emergencies.GetByID(ctx, emergencyID)
	if err != nil {
		d.logger.WithError(err).Error("Failed to rebuild notice", map[string]interface{}{
			"emergency_id": emergencyID,
		})
		return Notice{}, false
	}
	return retryNotice(emergency, tier), true
}

// backoff returns the delay before the given completed attempt's retry.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delays := d.cfg.RetryBackoff()
	if len(delays) == 0 {
		delays = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	}
	idx := attempt - 1
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return delays[idx]
}

func decodePayload(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func activationNotice(emergencyID uuid.UUID, payload *events.EmergencyPayload) Notice {
	return Notice{
		Subject: fmt.Sprintf("SOS: %s emergency", payload.EmergencyType),
		Body: fmt.Sprintf(
			"%s emergency is active. Location: %.5f, %.5f. Open the app to acknowledge. Ref: %s",
			payload.EmergencyType, payload.Location.Latitude, payload.Location.Longitude, emergencyID,
		),
	}
}

func escalationNotice(emergencyID uuid.UUID, payload *events.EscalationPayload) Notice {
	return Notice{
		Subject: fmt.Sprintf("SOS escalation: %s emergency unacknowledged", payload.EmergencyType),
		Body: fmt.Sprintf(
			"A %s emergency has gone unacknowledged (escalation tier %d). Please respond now. Ref: %s",
			payload.EmergencyType, payload.Tier, emergencyID,
		),
	}
}

func retryNotice(emergency *models.Emergency, tier int) Notice {
	if tier > 1 {
		return Notice{
			Subject: fmt.Sprintf("SOS escalation: %s emergency unacknowledged", emergency.EmergencyType),
			Body: fmt.Sprintf(
				"A %s emergency has gone unacknowledged. Please respond now. Ref: %s",
				emergency.EmergencyType, emergency.ID,
			),
		}
	}
	return Notice{
		Subject: fmt.Sprintf("SOS: %s emergency", emergency.EmergencyType),
		Body: fmt.Sprintf(
			"%s emergency is active. Location: %.5f, %.5f. Open the app to acknowledge. Ref: %s",
			emergency.EmergencyType, emergency.Location.Latitude, emergency.Location.Longitude, emergency.ID,
		),
	}
}
