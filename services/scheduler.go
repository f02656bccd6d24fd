// services/scheduler.go
package services

import (
	"log"
	"time"

	"loyalty-points-service/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryScheduler runs the hourly expiry sweep: any user holding an
// earning transaction whose expiry date has passed gets swept through the
// orchestrator so the sweep also raises events. Sweeps are idempotent, so an
// overlapping or retried run is harmless.
func (s *LoyaltyService) StartExpiryScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			now := time.Now()

			var userIDs []string
			err := s.DB.Model(&models.PointTransaction{}).
				Distinct("user_id").
				Where("expires_at IS NOT NULL AND expires_at <= ?", now).
				Pluck("user_id", &userIDs).Error
			if err != nil {
				log.Printf("[ExpirySweep] DB error: %v", err)
				return
			}

			swept := 0
			for _, userID := range userIDs {
				res, err := s.OnExpirySweep(userID, now)
				if err != nil {
					log.Printf("[ExpirySweep] Failed for user %s: %v", userID, err)
					continue
				}
				if len(res.Events) > 0 {
					swept++
				}
			}
			if swept > 0 {
				log.Printf("✅ Expiry sweep: expired points for %d user(s)", swept)
			}
		}),
	)
}
