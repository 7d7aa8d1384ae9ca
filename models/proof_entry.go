package models

import "time"

const (
	ProofStatusSent         = "sent"
	ProofStatusReceived     = "received"
	ProofStatusAutoVerified = "auto_verified"
	ProofStatusDisputed     = "disputed"
)

// ProofEntry records the evidence for one exchange step: the sender's photo
// of the mailed letter, and later the receiver's confirmation. Entries only
// move forward: sent -> received | auto_verified | disputed, and
// disputed -> received | auto_verified. Never deleted.
type ProofEntry struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID    string `gorm:"index;not null;uniqueIndex:idx_proof_match_step" json:"match_id"`
	StepNumber int    `gorm:"not null;uniqueIndex:idx_proof_match_step" json:"step_number"`

	SenderID   string `gorm:"index;not null" json:"sender_id"`
	ReceiverID string `gorm:"index;not null" json:"receiver_id"`

	SenderEvidenceURL   string     `json:"sender_evidence_url"`
	SentAt              time.Time  `json:"sent_at" gorm:"index"`
	ReceiverEvidenceURL *string    `json:"receiver_evidence_url,omitempty"`
	ReceivedAt          *time.Time `json:"received_at,omitempty"`

	Status        string  `json:"status" gorm:"type:varchar(16);index;check:status IN ('sent','received','auto_verified','disputed')"`
	DisputeReason *string `json:"dispute_reason,omitempty"`

	// Sweep milestones; a nil field means that transition has not fired yet.
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	Timestamps
}

// IsResolved reports whether the entry reached a terminal state.
func (p *ProofEntry) IsResolved() bool {
	return p.Status == ProofStatusReceived || p.Status == ProofStatusAutoVerified
}
