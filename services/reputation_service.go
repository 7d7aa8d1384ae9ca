package services

import (
	"errors"
	"fmt"

	"penpal-exchange-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Penalty weights. Completion deliberately awards nothing — only
// cancellations and rejected disputes move the score, so it cannot be farmed
// upward.
const (
	MaxScore                    = 100
	CancelPenaltyPoints         = 10
	UnverifiedSendPenaltyPoints = 25
)

// ReputationService maintains per-user trust state from terminal match
// outcomes. The score is derived: clamp(100 - sum(penalties), 0, 100),
// recomputed from the append-only penalty log on every read. Appends from
// unrelated missions commute, so concurrent penalties cannot lose an update.
type ReputationService struct {
	DB *gorm.DB
}

func NewReputationService(db *gorm.DB) *ReputationService {
	return &ReputationService{DB: db}
}

// EnsureRecord ensures a ReputationRecord row exists (idempotent). Two
// first-time events for the same user can race the not-found check; the
// loser's insert hits the unique index and falls back to re-fetching.
func (s *ReputationService) EnsureRecord(externalUserID string) (*models.ReputationRecord, error) {
	var rec models.ReputationRecord
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = models.ReputationRecord{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
		}
		if err := s.DB.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				var existing models.ReputationRecord
				if err := s.DB.Where("external_user_id = ?", externalUserID).First(&existing).Error; err != nil {
					return nil, err
				}
				return &existing, nil
			}
			return nil, err
		}
		return &rec, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// bump applies additive counter updates in a single statement. Counters must
// commute: many concurrent missions can end for the same user, and a
// read-modify-write through a loaded struct would lose updates.
func (s *ReputationService) bump(userID string, updates map[string]interface{}) error {
	return s.DB.Model(&models.ReputationRecord{}).
		Where("external_user_id = ?", userID).
		Updates(updates).Error
}

// OnMissionCompleted credits both parties with a finished match. No score
// change.
func (s *ReputationService) OnMissionCompleted(match *models.Match) error {
	for _, userID := range []string{match.PartyAID, match.PartyBID} {
		if _, err := s.EnsureRecord(userID); err != nil {
			return err
		}
		err := s.bump(userID, map[string]interface{}{
			"total_matches":     gorm.Expr("total_matches + 1"),
			"completed_matches": gorm.Expr("completed_matches + 1"),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// OnCancellation books an approved early termination: counters for both
// sides, a cancel_request penalty for the requester.
func (s *ReputationService) OnCancellation(matchID, requesterID, counterpartID string) error {
	if _, err := s.EnsureRecord(requesterID); err != nil {
		return err
	}
	err := s.bump(requesterID, map[string]interface{}{
		"total_matches":        gorm.Expr("total_matches + 1"),
		"self_cancelled_count": gorm.Expr("self_cancelled_count + 1"),
	})
	if err != nil {
		return err
	}

	if _, err := s.EnsureRecord(counterpartID); err != nil {
		return err
	}
	err = s.bump(counterpartID, map[string]interface{}{
		"total_matches":           gorm.Expr("total_matches + 1"),
		"partner_cancelled_count": gorm.Expr("partner_cancelled_count + 1"),
	})
	if err != nil {
		return err
	}

	return s.appendPenalty(requesterID, matchID, models.PenaltyEntry{
		Kind:           models.PenaltyKindCancelRequest,
		Severity:       models.PenaltySeverityMinor,
		PointsDeducted: CancelPenaltyPoints,
		Reason:         "requested early termination of the exchange",
	})
}

// OnDisputeRejected penalizes the at-fault sender after an admin rejects
// their claimed send.
func (s *ReputationService) OnDisputeRejected(matchID, atFaultUserID string) error {
	if _, err := s.EnsureRecord(atFaultUserID); err != nil {
		return err
	}
	return s.appendPenalty(atFaultUserID, matchID, models.PenaltyEntry{
		Kind:           models.PenaltyKindUnverifiedSend,
		Severity:       models.PenaltySeverityMajor,
		PointsDeducted: UnverifiedSendPenaltyPoints,
		Reason:         "claimed send rejected on dispute review",
	})
}

func (s *ReputationService) appendPenalty(userID, matchID string, p models.PenaltyEntry) error {
	p.ID = uuid.NewString()
	p.ExternalUserID = userID
	p.RelatedMatchID = matchID
	if err := s.DB.Create(&p).Error; err != nil {
		return fmt.Errorf("failed to append %s penalty for %s: %w", p.Kind, userID, err)
	}
	return nil
}

// GetScore recomputes the bounded 0-100 trust score from the penalty log.
// Consumed by the external matchmaker to deprioritize low-trust users.
func (s *ReputationService) GetScore(userID string) (int, error) {
	var deducted int64
	err := s.DB.Model(&models.PenaltyEntry{}).
		Where("external_user_id = ?", userID).
		Select("COALESCE(SUM(points_deducted), 0)").
		Scan(&deducted).Error
	if err != nil {
		return 0, err
	}

	score := MaxScore - int(deducted)
	if score < 0 {
		score = 0
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, nil
}

// GetReputation returns the record, derived score and full penalty history.
func (s *ReputationService) GetReputation(userID string) (*models.ReputationRecord, int, []models.PenaltyEntry, error) {
	rec, err := s.EnsureRecord(userID)
	if err != nil {
		return nil, 0, nil, err
	}
	score, err := s.GetScore(userID)
	if err != nil {
		return nil, 0, nil, err
	}
	var penalties []models.PenaltyEntry
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Find(&penalties).Error; err != nil {
		return nil, 0, nil, err
	}
	return rec, score, penalties, nil
}
