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

	"loyalty-points-service/models"

	"gorm.io/gorm"
)

// NotificationDispatchClient drains the loyalty event outbox and delivers the
// events to the notification service. Rendering and transport of user-facing
// messages stay entirely on the notification side — this worker only ships the
// typed facts.
type NotificationDispatchClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewNotificationDispatchClient(db *gorm.DB) *NotificationDispatchClient {
	baseURL := os.Getenv("NOTIFICATION_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("NOTIFICATION_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("LOYALTY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("LOYALTY_SERVICE_TOKEN environment variable is required for event dispatch")
	}

	return &NotificationDispatchClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DeliverEvents posts one batch of events to the notification service.
func (c *NotificationDispatchClient) DeliverEvents(ctx context.Context, events []models.LoyaltyEvent) error {
	payload := struct {
		Events []models.LoyaltyEvent `json:"events"`
	}{Events: events}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/notifications/loyalty", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// PollEvents ships undispatched events on an interval. A failed delivery leaves
// the batch undispatched, so the next tick retries it; events are only marked
// dispatched after the notification service accepted them.
func PollEvents(ctx context.Context, client *NotificationDispatchClient, pollInterval time.Duration) {
	log.Println("Starting loyalty event dispatch (outbox polling)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Loyalty event dispatch stopped.")
			return
		case <-ticker.C:
			var events []models.LoyaltyEvent
			err := client.DB.
				Where("dispatched = ?", false).
				Order("created_at ASC").
				Limit(100).
				Find(&events).Error
			if err != nil {
				log.Printf("❌ Error loading undispatched events: %v", err)
				continue
			}
			if len(events) == 0 {
				continue
			}

			if err := client.DeliverEvents(ctx, events); err != nil {
				log.Printf("❌ Event delivery failed (will retry): %v", err)
				continue
			}

			now := time.Now()
			ids := make([]string, len(events))
			for i, e := range events {
				ids[i] = e.ID
			}
			if err := client.DB.Model(&models.LoyaltyEvent{}).
				Where("id IN ?", ids).
				Updates(map[string]interface{}{"dispatched": true, "dispatched_at": now}).Error; err != nil {
				log.Printf("❌ Failed to mark events dispatched: %v", err)
				continue
			}

			log.Printf("📤 Dispatched %d loyalty event(s)", len(events))
		}
	}
}
