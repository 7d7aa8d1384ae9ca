package services

import (
	"encoding/json"
	"log"

	"penpal-exchange-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Emit appends a notification outbox row for the external transport.
// Fire-and-forget: a failed insert is logged and swallowed so it can never
// roll back the protocol transaction it rides on.
func Emit(tx *gorm.DB, userID, notifType string, payload map[string]interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[NOTIFY] failed to encode %s payload for %s: %v", notifType, userID, err)
		return
	}

	n := models.Notification{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Type:           notifType,
		PayloadJSON:    string(payloadJSON),
		Status:         models.NotificationPending,
	}
	if err := tx.Create(&n).Error; err != nil {
		log.Printf("[NOTIFY] failed to enqueue %s for %s: %v", notifType, userID, err)
	}
}
