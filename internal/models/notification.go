package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery channel for a notification job.
type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

// DefaultChannelOrder is the fallback preference used when choosing the
// first channel for a contact.
var DefaultChannelOrder = []Channel{ChannelPush, ChannelSMS, ChannelEmail}

// JobStatus is the lifecycle status of a notification job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobSent      JobStatus = "SENT"
	JobDelivered JobStatus = "DELIVERED"
	JobFailed    JobStatus = "FAILED"
)

// MaxJobAttempts caps retries per job; channel fallback creates a new job
// instead of a fourth attempt.
const MaxJobAttempts = 3

// NotificationJob is one delivery attempt stream for a single
// (recipient, channel) pair. Jobs are independent: one contact's total
// failure never blocks another's delivery.
type NotificationJob struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	EmergencyID   uuid.UUID  `json:"emergency_id" db:"emergency_id"`
	RecipientID   uuid.UUID  `json:"recipient_id" db:"recipient_id"`
	Channel       Channel    `json:"channel" db:"channel"`
	Status        JobStatus  `json:"status" db:"status"`
	Tier          int        `json:"tier" db:"tier"`
	Attempt       int        `json:"attempt" db:"attempt"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty" db:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
