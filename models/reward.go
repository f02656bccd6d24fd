package models

// Reward is a redeemable catalog entry with finite inventory. Quantity is only
// ever written by the redemption engine (decrement) and admin CRUD.
type Reward struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"type:text" json:"image_url"`

	PointsRequired int64 `gorm:"not null" json:"points_required"`
	Quantity       int64 `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	IsActive       bool  `gorm:"not null;default:true" json:"is_active"`

	Timestamps
}

// Available reports whether the reward can currently be redeemed.
func (r *Reward) Available() bool {
	return r.IsActive && r.Quantity > 0
}
