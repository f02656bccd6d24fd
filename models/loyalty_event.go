package models

import (
	"time"

	"gorm.io/datatypes"
)

// LoyaltyEventKind is the closed set of domain events the orchestrator emits
// for the notification dispatcher.
type LoyaltyEventKind string

const (
	EventPointsEarned    LoyaltyEventKind = "points_earned"
	EventPointsExpiring  LoyaltyEventKind = "points_expiring"
	EventTierUpgrade     LoyaltyEventKind = "tier_upgrade"
	EventTierDowngrade   LoyaltyEventKind = "tier_downgrade"
	EventRewardRedeemed  LoyaltyEventKind = "reward_redeemed"
	EventReferralSuccess LoyaltyEventKind = "referral_success"
)

// Valid reports whether k is a known event kind.
func (k LoyaltyEventKind) Valid() bool {
	switch k {
	case EventPointsEarned, EventPointsExpiring, EventTierUpgrade,
		EventTierDowngrade, EventRewardRedeemed, EventReferralSuccess:
		return true
	}
	return false
}

// LoyaltyEvent is an outbox row for one emitted domain event. The orchestrator
// writes these and also returns them per call; the notification dispatch worker
// drains undispatched rows and delivers them. The core never calls a
// notification transport directly.
type LoyaltyEvent struct {
	ID      string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string           `gorm:"index;not null" json:"user_id"`
	Kind    LoyaltyEventKind `gorm:"not null" json:"kind"`
	Payload datatypes.JSON   `json:"payload"`

	Dispatched   bool       `gorm:"default:false;index" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
