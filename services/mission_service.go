package services

import (
	"errors"
	"fmt"
	"time"

	"penpal-exchange-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTotalSteps is 10 round trips of letters.
const DefaultTotalSteps = 20

// MissionService owns the proof ledger and mission progress for matched
// pairs. Every mutation of a mission and its proof entries runs inside a
// single transaction so two near-simultaneous confirmations (or a
// confirmation racing the timeout sweep) cannot double-advance progress —
// the loser of the race hits a precondition error instead.
type MissionService struct {
	DB *gorm.DB
}

func NewMissionService(db *gorm.DB) *MissionService {
	return &MissionService{DB: db}
}

// RegisterMatch creates the Match + Mission pair in pending_setup. The two
// user IDs arrive already paired from the external matchmaker; the party
// registered first sends the odd-numbered steps.
func (s *MissionService) RegisterMatch(partyAID, partyAName, partyBID, partyBName string, totalSteps int) (*models.Match, error) {
	if totalSteps <= 0 {
		totalSteps = DefaultTotalSteps
	}

	match := models.Match{
		ID:         uuid.NewString(),
		PartyAID:   partyAID,
		PartyAName: partyAName,
		PartyBID:   partyBID,
		PartyBName: partyBName,
		Status:     models.MatchStatusPendingSetup,
	}
	mission := models.Mission{
		ID:         uuid.NewString(),
		MatchID:    match.ID,
		TotalSteps: totalSteps,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		return tx.Create(&mission).Error
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ActivateMatch moves a pending match to active so letters can start flowing.
func (s *MissionService) ActivateMatch(matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.Status != models.MatchStatusPendingSetup {
			return ErrAlreadyResolved
		}
		match.Status = models.MatchStatusActive
		return tx.Save(&match).Error
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// SubmitSend records that the sender mailed the next unclaimed step. The
// sender for a step is fixed by parity, which is the whole turn-order
// mechanism: no mutable "whose turn" flag exists to desynchronize from the
// ledger. Progress does NOT advance here — only on confirmation.
func (s *MissionService) SubmitSend(matchID, senderID, evidenceURL string) (*models.ProofEntry, error) {
	var entry models.ProofEntry

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		match, mission, err := loadMatchMission(tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusActive || mission.IsCompleted || mission.IsCancelled {
			return ErrMissionNotActive
		}
		if !match.IsParty(senderID) {
			return ErrNotAParty
		}

		// Next unclaimed step: one past the highest existing entry, or one
		// past the confirmed progress if nothing is in flight.
		step := mission.CurrentStep + 1
		var last models.ProofEntry
		err = tx.Where("match_id = ?", matchID).Order("step_number DESC").First(&last).Error
		switch {
		case err == nil:
			if last.StepNumber >= step {
				step = last.StepNumber + 1
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first letter of the mission
		default:
			return err
		}
		if step > mission.TotalSteps {
			return ErrDuplicateStep
		}
		if match.SenderForStep(step) != senderID {
			return ErrNotYourTurn
		}

		entry = models.ProofEntry{
			ID:                uuid.NewString(),
			MatchID:           matchID,
			StepNumber:        step,
			SenderID:          senderID,
			ReceiverID:        match.ReceiverForStep(step),
			SenderEvidenceURL: evidenceURL,
			SentAt:            time.Now(),
			Status:            models.ProofStatusSent,
		}
		if err := tx.Create(&entry).Error; err != nil {
			// Two submits racing for the same step: the unique index on
			// (match_id, step_number) turns the loser into a no-op.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateStep
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ConfirmReceive is the receiver's acknowledgement that the letter for
// stepNumber arrived. Progress advances only through the contiguity rule
// (stepNumber == currentStep+1); that check is the safety net that makes a
// lost race harmless.
func (s *MissionService) ConfirmReceive(matchID string, stepNumber int, receiverID string, evidenceURL *string) (*models.ProofEntry, error) {
	var entry models.ProofEntry

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		match, mission, err := loadMatchMission(tx, matchID)
		if err != nil {
			return err
		}
		if match.Status == models.MatchStatusCancelled || mission.IsCancelled {
			return ErrMissionNotActive
		}

		if err := tx.Where("match_id = ? AND step_number = ?", matchID, stepNumber).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProofNotFound
			}
			return err
		}
		if entry.IsResolved() {
			return ErrAlreadyResolved
		}
		if entry.ReceiverID != receiverID {
			return ErrNotYourProof
		}
		// Should not happen given the send-side parity check, but a disputed
		// predecessor can leave a later entry confirmable ahead of progress.
		if stepNumber > mission.CurrentStep+1 {
			return ErrOutOfOrderConfirmation
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":      models.ProofStatusReceived,
			"received_at": now,
			"resolved_at": now,
		}
		if evidenceURL != nil {
			updates["receiver_evidence_url"] = *evidenceURL
		}
		// Guarded write: if the timeout sweep auto-verified this entry between
		// our read and now, zero rows match and the terminal state stands.
		res := tx.Model(&models.ProofEntry{}).
			Where("id = ? AND status IN ?", entry.ID, []string{models.ProofStatusSent, models.ProofStatusDisputed}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		entry.Status = models.ProofStatusReceived
		entry.ReceivedAt = &now
		entry.ResolvedAt = &now
		entry.ReceiverEvidenceURL = evidenceURL

		Emit(tx, entry.SenderID, models.NotifyLetterReceived, map[string]interface{}{
			"match_id": matchID,
			"step":     stepNumber,
		})

		return advanceProgress(tx, match, mission)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetMissionState returns a read-only snapshot of the mission.
func (s *MissionService) GetMissionState(matchID string) (*models.Mission, error) {
	var mission models.Mission
	if err := s.DB.Where("match_id = ?", matchID).First(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &mission, nil
}

// GetMatch returns the match record, including soft-deleted (cancelled) ones.
func (s *MissionService) GetMatch(matchID string) (*models.Match, error) {
	var match models.Match
	if err := s.DB.Unscoped().First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

// ListEntries returns all proof entries of a match in step order.
func (s *MissionService) ListEntries(matchID string) ([]models.ProofEntry, error) {
	var entries []models.ProofEntry
	err := s.DB.Where("match_id = ?", matchID).Order("step_number ASC").Find(&entries).Error
	return entries, err
}

func loadMatchMission(tx *gorm.DB, matchID string) (*models.Match, *models.Mission, error) {
	var match models.Match
	if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMatchNotFound
		}
		return nil, nil, err
	}
	var mission models.Mission
	if err := tx.Where("match_id = ?", matchID).First(&mission).Error; err != nil {
		return nil, nil, fmt.Errorf("mission missing for match %s: %w", matchID, err)
	}
	return &match, &mission, nil
}

// advanceProgress walks CurrentStep forward over contiguously resolved
// entries. Resolutions can land out of order (a disputed step 2 adjudicated
// after step 3 auto-verified), so this is a catch-up loop rather than a
// single increment. Completing the final step finishes the mission and fires
// the reputation completion hook.
func advanceProgress(tx *gorm.DB, match *models.Match, mission *models.Mission) error {
	for mission.CurrentStep < mission.TotalSteps {
		var next models.ProofEntry
		err := tx.Where("match_id = ? AND step_number = ?", match.ID, mission.CurrentStep+1).First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return err
		}
		if !next.IsResolved() {
			break
		}
		mission.CurrentStep++
		mission.MarkStepDone(mission.CurrentStep)
	}

	if mission.CurrentStep == mission.TotalSteps && !mission.IsCompleted && !mission.IsCancelled {
		mission.IsCompleted = true
		match.Status = models.MatchStatusCompleted
		if err := tx.Save(match).Error; err != nil {
			return err
		}
		if err := NewReputationService(tx).OnMissionCompleted(match); err != nil {
			return err
		}
		for _, userID := range []string{match.PartyAID, match.PartyBID} {
			Emit(tx, userID, models.NotifyMissionCompleted, map[string]interface{}{
				"match_id": match.ID,
			})
		}
	}

	return tx.Save(mission).Error
}

// claimTerminal moves an entry to a terminal status with a guarded write:
// the transition applies only while the entry is still in one of the expected
// source states. Zero rows affected means another writer resolved the entry
// first; the claim is a no-op and terminal states are never overwritten. Used
// by the timeout sweep and dispute adjudication, which can never be rejected
// as out of order.
func claimTerminal(tx *gorm.DB, entry *models.ProofEntry, from []string, status string, now time.Time) (bool, error) {
	res := tx.Model(&models.ProofEntry{}).
		Where("id = ? AND status IN ?", entry.ID, from).
		Updates(map[string]interface{}{
			"status":      status,
			"received_at": now,
			"resolved_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	entry.Status = status
	entry.ReceivedAt = &now
	entry.ResolvedAt = &now
	return true, nil
}

// advanceMission reloads the pair and catches progress up after a terminal
// resolution landed outside ConfirmReceive.
func advanceMission(tx *gorm.DB, matchID string) error {
	match, mission, err := loadMatchMission(tx, matchID)
	if err != nil {
		return err
	}
	return advanceProgress(tx, match, mission)
}
