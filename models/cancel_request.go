package models

import "time"

const (
	CancelRequestPending  = "pending"
	CancelRequestApproved = "approved"
	CancelRequestRejected = "rejected"
)

// CancelRequest is one party's request to terminate a match early. It stays
// pending until an administrator adjudicates it; at most one pending request
// may exist per match.
type CancelRequest struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID     string `gorm:"index;not null" json:"match_id"`
	RequesterID string `gorm:"index;not null" json:"requester_id"`
	Reason      string `json:"reason"`

	Status    string     `json:"status" gorm:"type:varchar(16);default:'pending';check:status IN ('pending','approved','rejected')"`
	DecidedBy *string    `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	Timestamps
}
