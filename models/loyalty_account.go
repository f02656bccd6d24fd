package models

import (
	"time"

	"gorm.io/gorm"
)

// Tier is a named loyalty bracket determined purely by current point balance.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Rank orders tiers for upgrade/downgrade comparison.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	}
	return 0
}

// Name returns the display name for a tier.
func (t Tier) Name() string {
	switch t {
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Silver"
	case TierGold:
		return "Gold"
	}
	return "Bronze"
}

// UserLoyaltyAccount is the denormalized projection of a user's ledger
// (denormalized for performance, same pattern as a progress record). It is
// mutated only as a side effect of appending a PointTransaction; the invariant
// TotalPoints = TotalPointsEarned - TotalPointsRedeemed - TotalPointsExpired
// holds at all times and TotalPoints never goes negative.
type UserLoyaltyAccount struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to profile service

	TotalPoints         int64 `json:"total_points" gorm:"default:0"`
	CurrentTier         Tier  `json:"current_tier" gorm:"not null;default:'bronze'"`
	TotalPointsEarned   int64 `json:"total_points_earned" gorm:"default:0"`
	TotalPointsRedeemed int64 `json:"total_points_redeemed" gorm:"default:0"`
	TotalPointsExpired  int64 `json:"total_points_expired" gorm:"default:0"`

	ReferralCode  string `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferralCount int64  `json:"referral_count" gorm:"default:0"`

	LastLoginDate *time.Time `json:"last_login_date,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
