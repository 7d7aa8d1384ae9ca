package services

import (
	"testing"
	"time"

	"penpal-exchange-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	alice = "user-alice" // registers first, sends odd steps
	bob   = "user-bob"   // counterpart, sends even steps
	admin = "admin-1"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// In-memory sqlite gives every new connection its own empty database;
	// pin the pool to one so concurrent test goroutines share state.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Match{},
		&models.Mission{},
		&models.ProofEntry{},
		&models.ReputationRecord{},
		&models.PenaltyEntry{},
		&models.CancelRequest{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newActiveMatch(t *testing.T, svc *MissionService, totalSteps int) *models.Match {
	t.Helper()
	match, err := svc.RegisterMatch(alice, "Alice", bob, "Bob", totalSteps)
	if err != nil {
		t.Fatalf("RegisterMatch: %v", err)
	}
	if _, err := svc.ActivateMatch(match.ID); err != nil {
		t.Fatalf("ActivateMatch: %v", err)
	}
	match.Status = models.MatchStatusActive
	return match
}

// backdateStep rewrites SentAt so timeout windows computed from the persisted
// timestamp appear elapsed.
func backdateStep(t *testing.T, db *gorm.DB, matchID string, step int, age time.Duration) {
	t.Helper()
	err := db.Model(&models.ProofEntry{}).
		Where("match_id = ? AND step_number = ?", matchID, step).
		Update("sent_at", time.Now().Add(-age)).Error
	if err != nil {
		t.Fatalf("backdateStep: %v", err)
	}
}

func getEntry(t *testing.T, db *gorm.DB, matchID string, step int) *models.ProofEntry {
	t.Helper()
	var entry models.ProofEntry
	if err := db.Where("match_id = ? AND step_number = ?", matchID, step).First(&entry).Error; err != nil {
		t.Fatalf("entry for step %d not found: %v", step, err)
	}
	return &entry
}

func getMission(t *testing.T, svc *MissionService, matchID string) *models.Mission {
	t.Helper()
	mission, err := svc.GetMissionState(matchID)
	if err != nil {
		t.Fatalf("GetMissionState: %v", err)
	}
	return mission
}

func countNotifications(t *testing.T, db *gorm.DB, notifType string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Notification{}).Where("type = ?", notifType).Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}

// playThrough sends and confirms steps from..to in order.
func playThrough(t *testing.T, svc *MissionService, match *models.Match, from, to int) {
	t.Helper()
	for step := from; step <= to; step++ {
		sender := match.SenderForStep(step)
		receiver := match.ReceiverForStep(step)
		if _, err := svc.SubmitSend(match.ID, sender, "https://cdn.example.com/letter.jpg"); err != nil {
			t.Fatalf("SubmitSend step %d: %v", step, err)
		}
		if _, err := svc.ConfirmReceive(match.ID, step, receiver, nil); err != nil {
			t.Fatalf("ConfirmReceive step %d: %v", step, err)
		}
	}
}
