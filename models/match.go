package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MatchStatusPendingSetup = "pending_setup"
	MatchStatusActive       = "active"
	MatchStatusCompleted    = "completed"
	MatchStatusCancelled    = "cancelled"
)

// Match pairs two users for a physical letter exchange. PartyA is the party
// that registered first: odd-numbered steps are sent by PartyA, even-numbered
// steps by PartyB. Turn order is derived from step parity, never stored.
type Match struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	PartyAID   string `gorm:"index;not null" json:"party_a_id"` // links to profile service
	PartyAName string `json:"party_a_name"`
	PartyBID   string `gorm:"index;not null" json:"party_b_id"`
	PartyBName string `json:"party_b_name"`

	Status string `json:"status" gorm:"type:varchar(16);default:'pending_setup';check:status IN ('pending_setup','active','completed','cancelled')"`

	Timestamps
}

// SenderForStep returns the user who must send the given step (1-based).
func (m *Match) SenderForStep(step int) string {
	if step%2 == 1 {
		return m.PartyAID
	}
	return m.PartyBID
}

// ReceiverForStep returns the counterpart of SenderForStep.
func (m *Match) ReceiverForStep(step int) string {
	if step%2 == 1 {
		return m.PartyBID
	}
	return m.PartyAID
}

// Counterpart returns the other party of the match.
func (m *Match) Counterpart(userID string) string {
	if userID == m.PartyAID {
		return m.PartyBID
	}
	return m.PartyAID
}

// IsParty reports whether userID is one of the two matched users.
func (m *Match) IsParty(userID string) bool {
	return userID == m.PartyAID || userID == m.PartyBID
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
