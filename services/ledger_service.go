// services/ledger_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"loyalty-points-service/models"
	"loyalty-points-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Point values per earning trigger (tunable via config/env later)
const (
	SignupBonusPoints   = 3
	DailyLoginPoints    = 1
	ReferrerBonusPoints = 5

	// One point per 100 currency units on a purchase.
	PurchasePointsDivisor = 100

	// Earned points expire this many months after being credited.
	PointsExpiryMonths = 6
)

// PurchasePoints computes the points for an order total: floor(total / 100).
func PurchasePoints(orderTotal int64) int64 {
	if orderTotal < 0 {
		return 0
	}
	return orderTotal / PurchasePointsDivisor
}

// LedgerService is the sole writer of PointTransaction rows and the sole
// authority for UserLoyaltyAccount balances. Every balance-mutating operation
// runs in a transaction holding a SELECT FOR UPDATE on the account row, so
// operations for the same user are serialized; different users proceed in
// parallel.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureAccount ensures a UserLoyaltyAccount row exists (idempotent). The
// referral code is derived from the user id, so creation needs no extra state.
func (s *LedgerService) EnsureAccount(userID string) (*models.UserLoyaltyAccount, error) {
	if userID == "" {
		return nil, ErrValidation
	}
	var acct models.UserLoyaltyAccount
	err := s.DB.Where("user_id = ?", userID).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr(err)
	}
	acct = models.UserLoyaltyAccount{
		ID:           uuid.NewString(),
		UserID:       userID,
		CurrentTier:  models.TierBronze,
		ReferralCode: utils.ReferralCode(userID),
	}
	if err := s.DB.Create(&acct).Error; err != nil {
		return nil, storageErr(err)
	}
	return &acct, nil
}

// GetAccount fetches the account snapshot for a user.
func (s *LedgerService) GetAccount(userID string) (*models.UserLoyaltyAccount, error) {
	var acct models.UserLoyaltyAccount
	if err := s.DB.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return &acct, nil
}

// GetBalance returns the current spendable balance. By construction it equals
// the BalanceAfter of the most recent transaction.
func (s *LedgerService) GetBalance(userID string) (int64, error) {
	acct, err := s.GetAccount(userID)
	if err != nil {
		return 0, err
	}
	return acct.TotalPoints, nil
}

// GetTransactions returns the user's ledger history, newest first.
func (s *LedgerService) GetTransactions(userID string, page, size int) ([]models.PointTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	if err := s.DB.Model(&models.PointTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	var txs []models.PointTransaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&txs).Error
	return txs, total, storageErr(err)
}

// AppendTransaction appends one signed transaction for a user. points is the
// positive magnitude; the sign comes from the type. Debit types that would
// drive the balance negative are rejected with ErrInsufficientBalance and
// append nothing.
func (s *LedgerService) AppendTransaction(userID string, txType models.PointTransactionType, points int64, referenceID *string, expiresAt *time.Time) (*models.PointTransaction, error) {
	var ptx *models.PointTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		ptx, err = appendLocked(tx, acct, txType, points, referenceID, expiresAt)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return ptx, nil
}

// GrantSignupBonus credits the one-time signup bonus. The already-granted check
// runs under the account row lock, so concurrent signup deliveries for the same
// user serialize and exactly one appends. Returns (nil, nil) when the bonus was
// already granted — a no-op, not an error.
func (s *LedgerService) GrantSignupBonus(userID string, referenceID *string) (*models.PointTransaction, error) {
	var ptx *models.PointTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		granted, err := signupGranted(tx, userID)
		if err != nil {
			return err
		}
		if granted {
			return nil
		}
		ptx, err = appendLocked(tx, acct, models.TxTypeSignup, SignupBonusPoints, referenceID, nil)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return ptx, nil
}

// signupGranted reports whether a signup transaction already exists. Callers
// deciding whether to append must hold the user's account row lock first.
func signupGranted(tx *gorm.DB, userID string) (bool, error) {
	var count int64
	err := tx.Model(&models.PointTransaction{}).
		Where("user_id = ? AND type = ?", userID, models.TxTypeSignup).
		Count(&count).Error
	return count > 0, err
}

// RecordDailyLogin awards the daily visit point at most once per calendar day.
// Returns (nil, nil) when today's point was already credited — a no-op, not an
// error.
func (s *LedgerService) RecordDailyLogin(userID string, today time.Time) (*models.PointTransaction, error) {
	var ptx *models.PointTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		if acct.LastLoginDate != nil && sameCalendarDay(*acct.LastLoginDate, today) {
			return nil
		}
		day := today
		acct.LastLoginDate = &day
		ptx, err = appendLocked(tx, acct, models.TxTypeDailyLogin, DailyLoginPoints, nil, nil)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return ptx, nil
}

// ExpirePoints sweeps earned points whose expiry date has passed into one
// aggregate expired transaction. Consumption is FIFO: redemptions and earlier
// expiries are treated as draining the oldest earned batches first, so only the
// unconsumed remainder of aged batches expires. Returns (nil, nil) when nothing
// is newly expired, which also makes re-running at the same asOf a no-op.
func (s *LedgerService) ExpirePoints(userID string, asOf time.Time) (*models.PointTransaction, error) {
	var ptx *models.PointTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		var batches []models.PointTransaction
		if err := tx.Where("user_id = ? AND points > 0", userID).
			Order("created_at ASC").
			Find(&batches).Error; err != nil {
			return err
		}

		// Everything already redeemed or expired drains oldest batches first.
		consumed := acct.TotalPointsRedeemed + acct.TotalPointsExpired
		var expiring int64
		for _, b := range batches {
			remaining := b.Points
			if consumed > 0 {
				if consumed >= remaining {
					consumed -= remaining
					continue
				}
				remaining -= consumed
				consumed = 0
			}
			if b.ExpiresAt != nil && !b.ExpiresAt.After(asOf) {
				expiring += remaining
			}
		}

		if expiring <= 0 {
			return nil
		}
		ptx, err = appendLocked(tx, acct, models.TxTypeExpired, expiring, nil, nil)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return ptx, nil
}

// AdminAdjust applies a manual credit (delta > 0) or debit (delta < 0).
func (s *LedgerService) AdminAdjust(userID string, delta int64, reason string) (*models.PointTransaction, error) {
	if delta == 0 {
		return nil, ErrValidation
	}
	txType := models.TxTypeAdminAdd
	points := delta
	if delta < 0 {
		txType = models.TxTypeAdminRemove
		points = -delta
	}
	ptx, err := s.AppendTransaction(userID, txType, points, nil, nil)
	if err != nil {
		return nil, err
	}
	fmt.Printf("🛠️ Admin adjustment: %s → %+d points (reason: %s)\n", userID, delta, reason)
	return ptx, nil
}

// lockAccount fetches the account row under SELECT FOR UPDATE.
func lockAccount(tx *gorm.DB, userID string) (*models.UserLoyaltyAccount, error) {
	var acct models.UserLoyaltyAccount
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// appendLocked writes one transaction and updates the account projection. The
// caller must hold the account row lock; acct is mutated in place so callers
// can stage extra field changes (e.g. LastLoginDate) before the single Save.
func appendLocked(tx *gorm.DB, acct *models.UserLoyaltyAccount, txType models.PointTransactionType, points int64, referenceID *string, expiresAt *time.Time) (*models.PointTransaction, error) {
	if !txType.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if points < 0 {
		return nil, ErrValidation
	}

	delta := points
	if txType.IsDebit() {
		delta = -points
	}
	newBalance := acct.TotalPoints + delta
	if txType.IsDebit() && newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	now := time.Now()
	if txType.IsEarning() {
		acct.TotalPointsEarned += points
		if expiresAt == nil {
			exp := now.AddDate(0, PointsExpiryMonths, 0)
			expiresAt = &exp
		}
	} else {
		// Debits never carry an expiry.
		expiresAt = nil
		if txType == models.TxTypeExpired {
			acct.TotalPointsExpired += points
		} else {
			acct.TotalPointsRedeemed += points
		}
	}

	acct.TotalPoints = newBalance
	acct.CurrentTier = ResolveTier(newBalance)

	if err := tx.Save(acct).Error; err != nil {
		return nil, err
	}

	ptx := &models.PointTransaction{
		ID:           uuid.NewString(),
		UserID:       acct.UserID,
		Type:         txType,
		Points:       delta,
		BalanceAfter: newBalance,
		ReferenceID:  referenceID,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if err := tx.Create(ptx).Error; err != nil {
		return nil, err
	}
	return ptx, nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
