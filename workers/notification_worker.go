package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"penpal-exchange-system/models"
	"penpal-exchange-system/utils"

	"gorm.io/gorm"
)

const dispatchBatchSize = 50

// NotificationDispatcher drains the notification outbox and forwards rows to
// the external notification transport. Delivery is best-effort: protocol
// state never depends on it, so failed rows just stay pending and are
// retried on the next poll.
type NotificationDispatcher struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewNotificationDispatcher(db *gorm.DB) *NotificationDispatcher {
	baseURL := os.Getenv("NOTIFY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("EXCHANGE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("EXCHANGE_SERVICE_TOKEN environment variable is required for notification dispatch")
	}

	return &NotificationDispatcher{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

// deliver POSTs a single outbox row to the transport.
func (d *NotificationDispatcher) deliver(ctx context.Context, n models.Notification) error {
	var payload map[string]interface{}
	if n.PayloadJSON != "" {
		if err := json.Unmarshal([]byte(n.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("failed to decode payload for notification %s: %w", n.ID, err)
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"user_id": n.ExternalUserID,
		"type":    n.Type,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/v1/internal/notifications", d.BaseURL), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", d.Token)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notification transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification transport returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// drainOnce fetches one batch of pending outbox rows and attempts delivery.
// Each row is handled independently — one failed delivery never blocks the
// batch.
func (d *NotificationDispatcher) drainOnce(ctx context.Context) {
	var pending []models.Notification
	err := d.DB.Where("status = ?", models.NotificationPending).
		Order("created_at ASC").
		Limit(dispatchBatchSize).
		Find(&pending).Error
	if err != nil {
		log.Printf("[NOTIFY_WORKER] DB error listing pending notifications: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	delivered := 0
	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			log.Printf("[NOTIFY_WORKER] delivery of %s (%s) failed: %v", n.ID, n.Type, err)
			if uerr := d.DB.Model(&models.Notification{}).
				Where("id = ?", n.ID).
				Update("attempts", gorm.Expr("attempts + 1")).Error; uerr != nil {
				log.Printf("[NOTIFY_WORKER] failed to record attempt for %s: %v", n.ID, uerr)
			}
			continue
		}

		now := time.Now()
		if err := d.DB.Model(&models.Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]interface{}{
				"status":       models.NotificationDelivered,
				"delivered_at": &now,
				"attempts":     gorm.Expr("attempts + 1"),
			}).Error; err != nil {
			log.Printf("[NOTIFY_WORKER] failed to mark %s delivered: %v", n.ID, err)
			continue
		}
		delivered++
	}
	log.Printf("[NOTIFY_WORKER] delivered %d/%d notification(s)", delivered, len(pending))
}

// PollOutbox runs the dispatch loop until ctx is cancelled.
func PollOutbox(ctx context.Context, dispatcher *NotificationDispatcher, pollInterval time.Duration) {
	log.Println("Starting notification outbox dispatcher...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification dispatcher stopped.")
			return
		case <-ticker.C:
			dispatcher.drainOnce(ctx)
		}
	}
}
