// services/events.go
package services

import (
	"encoding/json"

	"loyalty-points-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newEvent(userID string, kind models.LoyaltyEventKind, payload map[string]interface{}) models.LoyaltyEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{}`)
	}
	return models.LoyaltyEvent{
		ID:      uuid.NewString(),
		UserID:  userID,
		Kind:    kind,
		Payload: raw,
	}
}

func newTierChangeEvent(userID string, oldTier, newTier models.Tier) models.LoyaltyEvent {
	kind := models.EventTierUpgrade
	if newTier.Rank() < oldTier.Rank() {
		kind = models.EventTierDowngrade
	}
	return newEvent(userID, kind, map[string]interface{}{
		"old_tier": oldTier,
		"new_tier": newTier,
	})
}

// persistEvents writes emitted events to the outbox for the notification
// dispatch worker. Callers run it inside the same transaction as the mutation
// that raised the events, so the ledger write and its events commit together.
func persistEvents(db *gorm.DB, events []models.LoyaltyEvent) error {
	if len(events) == 0 {
		return nil
	}
	return db.Create(&events).Error
}
