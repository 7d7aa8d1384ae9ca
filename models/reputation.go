package models

import "time"

const (
	PenaltyKindCancelRequest  = "cancel_request"
	PenaltyKindUnverifiedSend = "unverified_send"

	PenaltySeverityMinor = "minor"
	PenaltySeverityMajor = "major"
)

// ReputationRecord tracks per-user exchange outcomes. The trust score is NOT
// stored here — it is recomputed from the penalty log (see
// services.ReputationService) so concurrent penalties from unrelated missions
// stay commutative and the score is always auditable.
type ReputationRecord struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	TotalMatches          int64 `json:"total_matches" gorm:"default:0"`
	CompletedMatches      int64 `json:"completed_matches" gorm:"default:0"`
	SelfCancelledCount    int64 `json:"self_cancelled_count" gorm:"default:0"`
	PartnerCancelledCount int64 `json:"partner_cancelled_count" gorm:"default:0"`

	Timestamps
}

// PenaltyEntry is an immutable, append-only record of one trust-score
// deduction.
type PenaltyEntry struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`

	Kind           string `json:"kind" gorm:"type:varchar(32);not null"`
	Severity       string `json:"severity" gorm:"type:varchar(16)"`
	PointsDeducted int    `json:"points_deducted" gorm:"not null"`
	Reason         string `json:"reason"`
	RelatedMatchID string `gorm:"index" json:"related_match_id"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
