// services/redemption_service.go
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

// RedemptionService executes redemptions as one atomic unit: reward inventory
// decrement plus ledger debit either both land or neither does. The reward row
// is locked before the account row, consistently with every other multi-entity
// operation, so mixed concurrent operations cannot deadlock.
type RedemptionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewRedemptionService(db *gorm.DB, ledger *LedgerService) *RedemptionService {
	return &RedemptionService{DB: db, Ledger: ledger}
}

// Redeem exchanges points for one unit of a reward. Two concurrent redemptions
// of the same last unit serialize on the reward row lock; the loser sees
// quantity 0 and gets ErrRewardUnavailable. A failed balance debit rolls the
// inventory decrement back with the surrounding transaction.
func (s *RedemptionService) Redeem(userID, rewardID string) (*models.Redemption, error) {
	if userID == "" || rewardID == "" {
		return nil, ErrValidation
	}
	var redemption *models.Redemption
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", rewardID).
			First(&reward).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRewardUnavailable
			}
			return err
		}
		if !reward.Available() {
			return ErrRewardUnavailable
		}

		reward.Quantity--
		if err := tx.Save(&reward).Error; err != nil {
			return err
		}

		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}
		refID := rewardID
		ptx, err := appendLocked(tx, acct, models.TxTypeRedeem, reward.PointsRequired, &refID, nil)
		if err != nil {
			return err
		}

		redemption = &models.Redemption{
			ID:                 uuid.NewString(),
			UserID:             userID,
			RewardID:           rewardID,
			PointsSpent:        reward.PointsRequired,
			PointsBalanceAfter: ptx.BalanceAfter,
			Status:             models.RedemptionStatusPending,
		}
		return tx.Create(redemption).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}

	fmt.Printf("🎁 Redemption: %s spent %d points on reward %s\n",
		userID, redemption.PointsSpent, redemption.RewardID)
	return redemption, nil
}

// FulfillRedemption transitions pending -> fulfilled (admin only).
func (s *RedemptionService) FulfillRedemption(redemptionID string) (*models.Redemption, error) {
	var red models.Redemption
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", redemptionID).
			First(&red).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRedemptionState
			}
			return err
		}
		if red.Status != models.RedemptionStatusPending {
			return ErrInvalidRedemptionState
		}
		now := time.Now()
		red.Status = models.RedemptionStatusFulfilled
		red.FulfilledAt = &now
		return tx.Save(&red).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return &red, nil
}

// CancelRedemption transitions pending -> cancelled and refunds the spent
// points through a fresh admin_add transaction — reversal is a new fact, the
// original debit stays in the ledger. The reward unit goes back into inventory.
func (s *RedemptionService) CancelRedemption(redemptionID string) (*models.Redemption, error) {
	var red models.Redemption
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", redemptionID).
			First(&red).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRedemptionState
			}
			return err
		}
		if red.Status != models.RedemptionStatusPending {
			return ErrInvalidRedemptionState
		}

		now := time.Now()
		red.Status = models.RedemptionStatusCancelled
		red.CancelledAt = &now
		if err := tx.Save(&red).Error; err != nil {
			return err
		}

		// Restock the reward unit.
		var reward models.Reward
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", red.RewardID).
			First(&reward).Error; err == nil {
			reward.Quantity++
			if err := tx.Save(&reward).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		acct, err := lockAccount(tx, red.UserID)
		if err != nil {
			return err
		}
		redID := red.ID
		_, err = appendLocked(tx, acct, models.TxTypeAdminAdd, red.PointsSpent, &redID, nil)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}

	fmt.Printf("↩️ Redemption cancelled: %s refunded %d points\n", red.UserID, red.PointsSpent)
	return &red, nil
}
