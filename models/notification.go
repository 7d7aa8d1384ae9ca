package models

import "time"

const (
	NotificationPending   = "pending"
	NotificationDelivered = "delivered"

	NotifyLetterReminder      = "letter_reminder"
	NotifyLetterEscalation    = "letter_escalation"
	NotifyLetterReceived      = "letter_received"
	NotifyLetterAutoVerified  = "letter_auto_verified"
	NotifyDisputeRaised       = "dispute_raised"
	NotifyDisputeResolved     = "dispute_resolved"
	NotifyMissionCompleted    = "mission_completed"
	NotifyCancellationDecided = "cancellation_decided"
)

// Notification is an outbox row for the external notification transport.
// Rows are written in the same transaction as the state change that caused
// them and delivered asynchronously by workers.NotificationDispatcher, so
// protocol correctness never depends on delivery succeeding.
type Notification struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`

	Type        string `json:"type" gorm:"type:varchar(32);not null"`
	PayloadJSON string `json:"payload" gorm:"type:text"`

	Status      string     `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	Attempts    int        `json:"attempts" gorm:"default:0"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	Timestamps
}
