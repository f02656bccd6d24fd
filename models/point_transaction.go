package models

import "time"

// PointTransactionType is the closed set of ledger entry kinds. Every switch over
// it must be exhaustive — unknown values are rejected before touching the ledger.
type PointTransactionType string

const (
	TxTypeSignup         PointTransactionType = "signup"
	TxTypeDailyLogin     PointTransactionType = "daily_login"
	TxTypeReferralSignup PointTransactionType = "referral_signup"
	TxTypePurchase       PointTransactionType = "purchase"
	TxTypeRedeem         PointTransactionType = "redeem"
	TxTypeExpired        PointTransactionType = "expired"
	TxTypeAdminAdd       PointTransactionType = "admin_add"
	TxTypeAdminRemove    PointTransactionType = "admin_remove"
)

// Valid reports whether t is one of the known transaction types.
func (t PointTransactionType) Valid() bool {
	switch t {
	case TxTypeSignup, TxTypeDailyLogin, TxTypeReferralSignup, TxTypePurchase,
		TxTypeRedeem, TxTypeExpired, TxTypeAdminAdd, TxTypeAdminRemove:
		return true
	}
	return false
}

// IsEarning reports whether t credits points. Earning transactions carry an
// expiry date; debits never do.
func (t PointTransactionType) IsEarning() bool {
	switch t {
	case TxTypeSignup, TxTypeDailyLogin, TxTypeReferralSignup, TxTypePurchase, TxTypeAdminAdd:
		return true
	case TxTypeRedeem, TxTypeExpired, TxTypeAdminRemove:
		return false
	}
	return false
}

// IsDebit reports whether t removes points and therefore must not drive the
// balance negative.
func (t PointTransactionType) IsDebit() bool {
	switch t {
	case TxTypeRedeem, TxTypeExpired, TxTypeAdminRemove:
		return true
	case TxTypeSignup, TxTypeDailyLogin, TxTypeReferralSignup, TxTypePurchase, TxTypeAdminAdd:
		return false
	}
	return false
}

// PointTransaction is one immutable fact in a user's ledger. Rows are only ever
// appended — expiry and refunds are new transactions, never rewrites.
type PointTransaction struct {
	ID           string               `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string               `gorm:"index;not null" json:"user_id"`
	Type         PointTransactionType `gorm:"not null" json:"type"`
	Points       int64                `gorm:"not null" json:"points"` // signed delta
	BalanceAfter int64                `gorm:"not null" json:"balance_after"`
	ReferenceID  *string              `gorm:"index" json:"reference_id,omitempty"` // order/referral/reward/redemption id
	ExpiresAt    *time.Time           `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at" gorm:"autoCreateTime"`
}
