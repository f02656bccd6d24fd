// services/referral_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"loyalty-points-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralService validates and records referral relationships and drives the
// bonus transactions through the ledger on completion.
type ReferralService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewReferralService(db *gorm.DB, ledger *LedgerService) *ReferralService {
	return &ReferralService{DB: db, Ledger: ledger}
}

// RecordReferral creates a pending referral. A user can be referred exactly
// once; the unique index on referred_user_id backstops the pre-check under
// concurrency.
func (s *ReferralService) RecordReferral(referrerID, referredUserID, referredUserName, referredUserEmail string) (*models.Referral, error) {
	if referrerID == "" || referredUserID == "" {
		return nil, ErrValidation
	}
	if referrerID == referredUserID {
		return nil, ErrSelfReferral
	}

	var existing models.Referral
	err := s.DB.Where("referred_user_id = ?", referredUserID).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateReferral
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr(err)
	}

	ref := &models.Referral{
		ID:                uuid.NewString(),
		ReferrerID:        referrerID,
		ReferredUserID:    referredUserID,
		ReferredUserName:  referredUserName,
		ReferredUserEmail: referredUserEmail,
		Status:            models.ReferralStatusPending,
	}
	if err := s.DB.Create(ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateReferral
		}
		return nil, storageErr(err)
	}
	return ref, nil
}

// CompleteReferral transitions pending -> completed, credits the referrer, and
// grants the referred user their signup bonus if no independent signup
// transaction exists yet (never double-counted). Increments the referrer's
// referral count.
func (s *ReferralService) CompleteReferral(referralID string) (*models.Referral, error) {
	var ref models.Referral
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", referralID).
			First(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidReferralState
			}
			return err
		}
		if ref.Status != models.ReferralStatusPending {
			return ErrInvalidReferralState
		}

		now := time.Now()
		ref.Status = models.ReferralStatusCompleted
		ref.CompletedAt = &now
		ref.PointsAwarded = ReferrerBonusPoints
		if err := tx.Save(&ref).Error; err != nil {
			return err
		}

		// Credit the referrer.
		refID := ref.ID
		acct, err := lockAccount(tx, ref.ReferrerID)
		if err != nil {
			return err
		}
		acct.ReferralCount++
		if _, err := appendLocked(tx, acct, models.TxTypeReferralSignup, ReferrerBonusPoints, &refID, nil); err != nil {
			return err
		}

		// Grant the referred user's own signup bonus, unless they already got
		// one through a direct signup. The check runs after taking the referred
		// account's row lock, so it cannot race a concurrent direct signup.
		referredAcct, err := lockAccount(tx, ref.ReferredUserID)
		if err != nil {
			return err
		}
		granted, err := signupGranted(tx, ref.ReferredUserID)
		if err != nil {
			return err
		}
		if !granted {
			if _, err := appendLocked(tx, referredAcct, models.TxTypeSignup, SignupBonusPoints, &refID, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	fmt.Printf("🤝 Referral completed: %s referred %s (+%d / +%d)\n",
		ref.ReferrerID, ref.ReferredUserID, ReferrerBonusPoints, SignupBonusPoints)
	return &ref, nil
}

// CancelReferral transitions pending -> cancelled. No ledger writes to reverse
// because completion never happened.
func (s *ReferralService) CancelReferral(referralID string) (*models.Referral, error) {
	var ref models.Referral
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", referralID).
			First(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidReferralState
			}
			return err
		}
		if ref.Status != models.ReferralStatusPending {
			return ErrInvalidReferralState
		}
		ref.Status = models.ReferralStatusCancelled
		return tx.Save(&ref).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return &ref, nil
}

// FindAccountByCode resolves a referral code to the referrer's account.
func (s *ReferralService) FindAccountByCode(code string) (*models.UserLoyaltyAccount, error) {
	var acct models.UserLoyaltyAccount
	if err := s.DB.Where("referral_code = ?", code).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return &acct, nil
}

// ListReferrals returns the referrals made by a user, newest first.
func (s *ReferralService) ListReferrals(referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.DB.Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&refs).Error
	return refs, storageErr(err)
}
