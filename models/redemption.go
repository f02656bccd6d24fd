package models

import "time"

// RedemptionStatus transitions only forward: pending -> fulfilled | cancelled.
type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "pending"
	RedemptionStatusFulfilled RedemptionStatus = "fulfilled"
	RedemptionStatusCancelled RedemptionStatus = "cancelled"
)

// Redemption records one redemption attempt. Each row pairs 1:1 with exactly
// one redeem-type PointTransaction (linked through the transaction's
// ReferenceID); cancellation refunds through a fresh admin_add transaction
// rather than touching ledger history.
type Redemption struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string `gorm:"index;not null" json:"user_id"`
	RewardID string `gorm:"index;not null" json:"reward_id"`

	PointsSpent        int64            `gorm:"not null" json:"points_spent"`
	PointsBalanceAfter int64            `gorm:"not null" json:"points_balance_after"`
	Status             RedemptionStatus `gorm:"not null;default:'pending'" json:"status"`

	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Timestamps
}
