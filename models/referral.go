package models

import "time"

// ReferralStatus transitions only forward: pending -> completed | cancelled.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

// Referral tracks one referral attempt. The unique index on ReferredUserID is
// the idempotency boundary — a user can be referred exactly once.
type Referral struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID     string `gorm:"index;not null" json:"referrer_id"`            // ExternalUserID
	ReferredUserID string `gorm:"uniqueIndex;not null" json:"referred_user_id"` // ExternalUserID

	ReferredUserName  string `json:"referred_user_name"`
	ReferredUserEmail string `json:"referred_user_email,omitempty"`

	PointsAwarded int64          `json:"points_awarded" gorm:"default:0"`
	Status        ReferralStatus `gorm:"not null;default:'pending'" json:"status"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`

	Timestamps
}
