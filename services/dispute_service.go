package services

import (
	"errors"
	"time"

	"penpal-exchange-system/models"

	"gorm.io/gorm"
)

const (
	DisputeOutcomeConfirmed = "confirmed"
	DisputeOutcomeRejected  = "rejected"
)

// DisputeService handles a receiver's claim that a letter never arrived.
// A disputed entry is excluded from the timeout sweep until an administrator
// adjudicates it, and adjudication always forces a terminal state — a
// dispute can delay a mission but never stall it forever.
type DisputeService struct {
	DB    *gorm.DB
	Sweep SweepConfig
}

func NewDisputeService(db *gorm.DB, sweep SweepConfig) *DisputeService {
	return &DisputeService{DB: db, Sweep: sweep}
}

// RaiseDispute marks a sent entry as disputed. The window closes when
// auto-verification would have fired; if the sweep won the scheduling race
// first, the entry is no longer `sent` and the caller gets AlreadyResolved.
func (s *DisputeService) RaiseDispute(matchID string, stepNumber int, receiverID, reason string) (*models.ProofEntry, error) {
	var entry models.ProofEntry

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ? AND step_number = ?", matchID, stepNumber).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProofNotFound
			}
			return err
		}
		if entry.Status != models.ProofStatusSent {
			return ErrAlreadyResolved
		}
		if entry.ReceiverID != receiverID {
			return ErrNotYourProof
		}
		if time.Since(entry.SentAt) >= s.Sweep.AutoVerifyAfter {
			return ErrDisputeWindowClosed
		}

		// Guarded write: a sweep auto-verification landing between our read
		// and this statement leaves zero rows and the terminal state stands.
		res := tx.Model(&models.ProofEntry{}).
			Where("id = ? AND status = ?", entry.ID, models.ProofStatusSent).
			Updates(map[string]interface{}{
				"status":         models.ProofStatusDisputed,
				"dispute_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		entry.Status = models.ProofStatusDisputed
		entry.DisputeReason = &reason

		Emit(tx, entry.SenderID, models.NotifyDisputeRaised, map[string]interface{}{
			"match_id": matchID,
			"step":     stepNumber,
			"reason":   reason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ResolveDispute is the administrator's binding decision. "confirmed" behaves
// like the receiver confirming; "rejected" still promotes the entry to
// auto_verified so the mission keeps moving, but penalizes the sender —
// claimed send, letter likely never arrived.
func (s *DisputeService) ResolveDispute(matchID string, stepNumber int, outcome, adminID string) (*models.ProofEntry, error) {
	var entry models.ProofEntry

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ? AND step_number = ?", matchID, stepNumber).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProofNotFound
			}
			return err
		}
		if entry.Status != models.ProofStatusDisputed {
			return ErrNotDisputed
		}

		now := time.Now()
		status := models.ProofStatusReceived
		if outcome == DisputeOutcomeRejected {
			status = models.ProofStatusAutoVerified
		}
		claimed, err := claimTerminal(tx, &entry, []string{models.ProofStatusDisputed}, status, now)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrNotDisputed
		}
		// Penalize only after the claim sticks, so a lost race never books a
		// penalty for an entry someone else resolved.
		if outcome == DisputeOutcomeRejected {
			if err := NewReputationService(tx).OnDisputeRejected(matchID, entry.SenderID); err != nil {
				return err
			}
		}
		if err := advanceMission(tx, matchID); err != nil {
			return err
		}

		for _, userID := range []string{entry.SenderID, entry.ReceiverID} {
			Emit(tx, userID, models.NotifyDisputeResolved, map[string]interface{}{
				"match_id": matchID,
				"step":     stepNumber,
				"outcome":  outcome,
				"admin_id": adminID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListDisputedEntries feeds the admin review surface, oldest dispute first.
func (s *DisputeService) ListDisputedEntries() ([]models.ProofEntry, error) {
	var entries []models.ProofEntry
	err := s.DB.Where("status = ?", models.ProofStatusDisputed).
		Order("updated_at ASC").
		Find(&entries).Error
	return entries, err
}
