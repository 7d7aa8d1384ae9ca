// services/scheduler.go
package services

import (
	"log"
	"os"
	"strconv"
	"time"

	"penpal-exchange-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// SweepConfig holds the wall-clock windows for unconfirmed letters. They are
// computed from the persisted SentAt timestamp, never from in-memory timers,
// so a restart does not reset them.
type SweepConfig struct {
	ReminderAfter   time.Duration // nudge the receiver
	EscalateAfter   time.Duration // flag for admins
	AutoVerifyAfter time.Duration // promote to auto_verified
	Interval        time.Duration // sweep cadence
}

// DefaultSweepConfig: remind at 3 days, escalate at 7, auto-verify at 10.
var DefaultSweepConfig = SweepConfig{
	ReminderAfter:   72 * time.Hour,
	EscalateAfter:   168 * time.Hour,
	AutoVerifyAfter: 240 * time.Hour,
	Interval:        3 * time.Hour,
}

// LoadSweepConfig reads hour-granularity overrides from the environment.
func LoadSweepConfig() SweepConfig {
	cfg := DefaultSweepConfig
	if h := envHours("SWEEP_REMINDER_HOURS"); h > 0 {
		cfg.ReminderAfter = h
	}
	if h := envHours("SWEEP_ESCALATE_HOURS"); h > 0 {
		cfg.EscalateAfter = h
	}
	if h := envHours("SWEEP_AUTO_VERIFY_HOURS"); h > 0 {
		cfg.AutoVerifyAfter = h
	}
	if h := envHours("SWEEP_INTERVAL_HOURS"); h > 0 {
		cfg.Interval = h
	}
	return cfg
}

func envHours(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		log.Printf("[SWEEP] ignoring invalid %s=%q", key, raw)
		return 0
	}
	return time.Duration(hours) * time.Hour
}

func (s *MissionService) StartTimeoutSweeper(cfg SweepConfig) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			s.RunSweep(time.Now(), cfg)
		}),
	)
}

// RunSweep inspects every proof entry still in `sent`, oldest first, and
// applies whichever timeout transitions are due. Each entry is processed in
// its own transaction: one bad row is logged and skipped, never allowed to
// abort the rest of the batch. Each transition is idempotent — it is guarded
// by the timestamp field it sets — so running the sweep twice is a no-op.
func (s *MissionService) RunSweep(now time.Time, cfg SweepConfig) {
	var entries []models.ProofEntry
	err := s.DB.Where("status = ?", models.ProofStatusSent).
		Order("sent_at ASC").
		Find(&entries).Error
	if err != nil {
		log.Printf("[SWEEP] DB error listing sent entries: %v", err)
		return
	}

	for _, e := range entries {
		if err := s.sweepEntry(e.ID, now, cfg); err != nil {
			log.Printf("[SWEEP] entry %s (match %s step %d) failed: %v", e.ID, e.MatchID, e.StepNumber, err)
		}
	}
}

func (s *MissionService) sweepEntry(entryID string, now time.Time, cfg SweepConfig) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.ProofEntry
		if err := tx.First(&entry, "id = ?", entryID).Error; err != nil {
			return err
		}
		// Re-check under the transaction: a confirmation or dispute may have
		// won the race since the entry was listed.
		if entry.Status != models.ProofStatusSent {
			return nil
		}

		var mission models.Mission
		if err := tx.Where("match_id = ?", entry.MatchID).First(&mission).Error; err != nil {
			return err
		}
		if mission.IsCancelled {
			return nil
		}

		age := now.Sub(entry.SentAt)

		switch {
		case age >= cfg.AutoVerifyAfter:
			// The mechanism that stops one unresponsive party from stalling
			// the mission forever. A guarded claim: if a confirmation or
			// dispute committed since the entry was read, the claim misses
			// and the sweep backs off.
			claimed, err := claimTerminal(tx, &entry, []string{models.ProofStatusSent}, models.ProofStatusAutoVerified, now)
			if err != nil {
				return err
			}
			if !claimed {
				return nil
			}
			log.Printf("[SWEEP] auto-verifying match %s step %d (unconfirmed for %s)", entry.MatchID, entry.StepNumber, age.Round(time.Hour))
			Emit(tx, entry.SenderID, models.NotifyLetterAutoVerified, map[string]interface{}{
				"match_id": entry.MatchID,
				"step":     entry.StepNumber,
			})
			return advanceMission(tx, entry.MatchID)

		case age >= cfg.EscalateAfter && entry.EscalatedAt == nil:
			res := tx.Model(&models.ProofEntry{}).
				Where("id = ? AND status = ?", entry.ID, models.ProofStatusSent).
				Update("escalated_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			Emit(tx, entry.ReceiverID, models.NotifyLetterEscalation, map[string]interface{}{
				"match_id": entry.MatchID,
				"step":     entry.StepNumber,
			})
			return nil

		// An entry first seen past the escalation window skips the reminder
		// stage entirely; a day-3 nudge after a day-7 escalation is noise.
		case age >= cfg.ReminderAfter && entry.ReminderSentAt == nil && entry.EscalatedAt == nil:
			res := tx.Model(&models.ProofEntry{}).
				Where("id = ? AND status = ?", entry.ID, models.ProofStatusSent).
				Update("reminder_sent_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			Emit(tx, entry.ReceiverID, models.NotifyLetterReminder, map[string]interface{}{
				"match_id": entry.MatchID,
				"step":     entry.StepNumber,
			})
			return nil
		}

		return nil
	})
}

// ListEscalatedEntries is the administrator surface for letters that went a
// week without confirmation.
func (s *MissionService) ListEscalatedEntries() ([]models.ProofEntry, error) {
	var entries []models.ProofEntry
	err := s.DB.Where("status = ? AND escalated_at IS NOT NULL", models.ProofStatusSent).
		Order("sent_at ASC").
		Find(&entries).Error
	return entries, err
}
