package services

import (
	"errors"
	"time"

	"penpal-exchange-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancellationService lets either side request early termination of a match.
// A request never cancels anything by itself — it waits for an
// administrator's adjudication.
type CancellationService struct {
	DB *gorm.DB
}

func NewCancellationService(db *gorm.DB) *CancellationService {
	return &CancellationService{DB: db}
}

// RequestCancellation opens a pending request. Only one may be open per
// match at a time.
func (s *CancellationService) RequestCancellation(matchID, requesterID, reason string) (*models.CancelRequest, error) {
	var request models.CancelRequest

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if !match.IsParty(requesterID) {
			return ErrNotAParty
		}
		if match.Status != models.MatchStatusActive && match.Status != models.MatchStatusPendingSetup {
			return ErrMissionNotActive
		}

		var open int64
		if err := tx.Model(&models.CancelRequest{}).
			Where("match_id = ? AND status = ?", matchID, models.CancelRequestPending).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrDuplicateRequest
		}

		request = models.CancelRequest{
			ID:          uuid.NewString(),
			MatchID:     matchID,
			RequesterID: requesterID,
			Reason:      reason,
			Status:      models.CancelRequestPending,
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Adjudicate applies an administrator's decision. Approval cancels the match
// and mission, books the reputation consequences and soft-deletes the match
// record; rejection just closes the request.
func (s *CancellationService) Adjudicate(requestID, decision, adminID string) (*models.CancelRequest, error) {
	var request models.CancelRequest

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if request.Status != models.CancelRequestPending {
			return ErrAlreadyResolved
		}

		now := time.Now()
		request.DecidedBy = &adminID
		request.DecidedAt = &now

		if decision != models.CancelRequestApproved {
			request.Status = models.CancelRequestRejected
			return tx.Save(&request).Error
		}
		request.Status = models.CancelRequestApproved
		if err := tx.Save(&request).Error; err != nil {
			return err
		}

		match, mission, err := loadMatchMission(tx, request.MatchID)
		if err != nil {
			return err
		}

		match.Status = models.MatchStatusCancelled
		if err := tx.Save(match).Error; err != nil {
			return err
		}
		mission.IsCancelled = true
		if err := tx.Save(mission).Error; err != nil {
			return err
		}

		counterpart := match.Counterpart(request.RequesterID)
		if err := NewReputationService(tx).OnCancellation(match.ID, request.RequesterID, counterpart); err != nil {
			return err
		}

		for _, userID := range []string{match.PartyAID, match.PartyBID} {
			Emit(tx, userID, models.NotifyCancellationDecided, map[string]interface{}{
				"match_id": match.ID,
				"decision": decision,
			})
		}

		// Finalized cancellations retire the match record.
		return tx.Delete(match).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ListPendingCancellations feeds the admin review surface.
func (s *CancellationService) ListPendingCancellations() ([]models.CancelRequest, error) {
	var requests []models.CancelRequest
	err := s.DB.Where("status = ?", models.CancelRequestPending).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}
