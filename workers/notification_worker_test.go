package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"penpal-exchange-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestDrainOnce(t *testing.T) {
	db := newTestDB(t)

	var fail atomic.Bool
	fail.Store(true)
	var gotToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get("X-Service-Token"))
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	row := models.Notification{
		ID:             uuid.NewString(),
		ExternalUserID: "user-alice",
		Type:           models.NotifyLetterReminder,
		PayloadJSON:    `{"match_id":"match-1","step":1}`,
		Status:         models.NotificationPending,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create outbox row: %v", err)
	}

	d := &NotificationDispatcher{
		BaseURL:    srv.URL,
		Token:      "service-token",
		HTTPClient: srv.Client(),
		DB:         db,
	}

	// Transport down: the row stays pending and the attempt is recorded.
	d.drainOnce(context.Background())
	var after models.Notification
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if after.Status != models.NotificationPending {
		t.Errorf("status = %q, want still pending after failed delivery", after.Status)
	}
	if after.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", after.Attempts)
	}

	// Transport back up: the retried row is delivered.
	fail.Store(false)
	d.drainOnce(context.Background())
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if after.Status != models.NotificationDelivered {
		t.Errorf("status = %q, want delivered", after.Status)
	}
	if after.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", after.Attempts)
	}
	if after.DeliveredAt == nil {
		t.Error("DeliveredAt not set on delivery")
	}
	if token, _ := gotToken.Load().(string); token != "service-token" {
		t.Errorf("service token header = %q, want %q", token, "service-token")
	}

	// A delivered row is never picked up again.
	d.drainOnce(context.Background())
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if after.Attempts != 2 {
		t.Errorf("attempts after idle drain = %d, want 2", after.Attempts)
	}
}
