// services/loyalty_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"loyalty-points-service/models"
	"loyalty-points-service/utils"

	"gorm.io/gorm"
)

// LoyaltyService is the façade external collaborators call. It sequences the
// ledger, referral tracker and redemption engine, and reports what happened as
// an updated account snapshot plus a list of domain events. It never calls a
// notification transport itself — events go to the outbox and the caller.
type LoyaltyService struct {
	DB          *gorm.DB
	Ledger      *LedgerService
	Referrals   *ReferralService
	Redemptions *RedemptionService
}

func NewLoyaltyService(db *gorm.DB) *LoyaltyService {
	ledger := NewLedgerService(db)
	return &LoyaltyService{
		DB:          db,
		Ledger:      ledger,
		Referrals:   NewReferralService(db, ledger),
		Redemptions: NewRedemptionService(db, ledger),
	}
}

// withDB clones the service bound to db, so one orchestrated operation can run
// every sub-service against the same transaction.
func (s *LoyaltyService) withDB(db *gorm.DB) *LoyaltyService {
	ledger := NewLedgerService(db)
	return &LoyaltyService{
		DB:          db,
		Ledger:      ledger,
		Referrals:   NewReferralService(db, ledger),
		Redemptions: NewRedemptionService(db, ledger),
	}
}

// run executes one orchestrated operation inside a single transaction: the
// ledger mutation and its outbox rows commit together or not at all. The
// sub-services' own transactions degrade to savepoints inside it.
func (s *LoyaltyService) run(op func(svc *LoyaltyService) (*LoyaltyResult, error)) (*LoyaltyResult, error) {
	var result *LoyaltyResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = op(s.withDB(tx))
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

// LoyaltyResult is what every orchestrated operation returns: the account as it
// stands after the call, and the events the call raised.
type LoyaltyResult struct {
	Account *models.UserLoyaltyAccount `json:"account"`
	Events  []models.LoyaltyEvent      `json:"events"`
}

// OnSignup credits the signup bonus for a new user and, when a valid referral
// code naming another user was supplied, records and synchronously completes
// the referral (the signup bonus then flows through completion instead, so it
// is never double-counted). Calling again for an already-signed-up user is a
// no-op that returns the current snapshot.
func (s *LoyaltyService) OnSignup(userID, displayName, referralCode string) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.signup(userID, displayName, referralCode)
	})
}

func (s *LoyaltyService) signup(userID, displayName, referralCode string) (*LoyaltyResult, error) {
	acct, err := s.Ledger.EnsureAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	if granted, err := signupGranted(s.DB, userID); err != nil {
		return nil, err
	} else if granted {
		return &LoyaltyResult{Account: acct}, nil
	}

	var events []models.LoyaltyEvent

	referrer := s.resolveReferrer(userID, referralCode)
	if referrer != nil {
		referrerOldTier := referrer.CurrentTier
		ref, err := s.Referrals.RecordReferral(referrer.UserID, userID, displayName, "")
		if err == nil {
			_, err = s.Referrals.CompleteReferral(ref.ID)
		}
		if err != nil {
			// Referral problems must not block the signup itself.
			fmt.Printf("⚠️ Referral for %s via %s not applied: %v\n", userID, referralCode, err)
			referrer = nil
		} else {
			events = append(events, newEvent(referrer.UserID, models.EventReferralSuccess, map[string]interface{}{
				"referred_user_id":   userID,
				"referred_user_name": displayName,
				"points_awarded":     int64(ReferrerBonusPoints),
			}))
			if refreshed, err := s.Ledger.GetAccount(referrer.UserID); err == nil && refreshed.CurrentTier != referrerOldTier {
				events = append(events, newTierChangeEvent(referrer.UserID, referrerOldTier, refreshed.CurrentTier))
			}
		}
	}
	if referrer == nil {
		ptx, err := s.Ledger.GrantSignupBonus(userID, nil)
		if err != nil {
			return nil, err
		}
		if ptx == nil {
			// A concurrent delivery granted the bonus first.
			return &LoyaltyResult{Account: acct}, nil
		}
	}

	events = append(events, newEvent(userID, models.EventPointsEarned, map[string]interface{}{
		"points": int64(SignupBonusPoints),
		"reason": string(models.TxTypeSignup),
	}))

	return s.finish(userID, oldTier, events)
}

// OnDailyVisit awards the daily login point, at most once per calendar day.
func (s *LoyaltyService) OnDailyVisit(userID string, today time.Time) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.dailyVisit(userID, today)
	})
}

func (s *LoyaltyService) dailyVisit(userID string, today time.Time) (*LoyaltyResult, error) {
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	ptx, err := s.Ledger.RecordDailyLogin(userID, today)
	if err != nil {
		return nil, err
	}
	if ptx == nil {
		return &LoyaltyResult{Account: acct}, nil
	}

	events := []models.LoyaltyEvent{
		newEvent(userID, models.EventPointsEarned, map[string]interface{}{
			"points": ptx.Points,
			"reason": string(models.TxTypeDailyLogin),
		}),
	}
	return s.finish(userID, oldTier, events)
}

// OnPurchase credits floor(orderTotal/100) points for a completed order.
// Orders under 100 currency units earn nothing and append nothing.
func (s *LoyaltyService) OnPurchase(userID, orderID string, orderTotal int64) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.purchase(userID, orderID, orderTotal)
	})
}

func (s *LoyaltyService) purchase(userID, orderID string, orderTotal int64) (*LoyaltyResult, error) {
	if orderTotal < 0 {
		return nil, ErrValidation
	}
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	points := PurchasePoints(orderTotal)
	if points == 0 {
		return &LoyaltyResult{Account: acct}, nil
	}

	refID := orderID
	ptx, err := s.Ledger.AppendTransaction(userID, models.TxTypePurchase, points, &refID, nil)
	if err != nil {
		return nil, err
	}

	events := []models.LoyaltyEvent{
		newEvent(userID, models.EventPointsEarned, map[string]interface{}{
			"points":   ptx.Points,
			"reason":   string(models.TxTypePurchase),
			"order_id": orderID,
		}),
	}
	return s.finish(userID, oldTier, events)
}

// OnRedeemRequest runs a redemption and reports it.
func (s *LoyaltyService) OnRedeemRequest(userID, rewardID string) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.redeemRequest(userID, rewardID)
	})
}

func (s *LoyaltyService) redeemRequest(userID, rewardID string) (*LoyaltyResult, error) {
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	red, err := s.Redemptions.Redeem(userID, rewardID)
	if err != nil {
		return nil, err
	}

	events := []models.LoyaltyEvent{
		newEvent(userID, models.EventRewardRedeemed, map[string]interface{}{
			"redemption_id": red.ID,
			"reward_id":     red.RewardID,
			"points_spent":  red.PointsSpent,
			"balance_after": red.PointsBalanceAfter,
		}),
	}
	return s.finish(userID, oldTier, events)
}

// OnExpirySweep converts aged unspent points into an expired debit. Re-running
// at the same asOf raises nothing.
func (s *LoyaltyService) OnExpirySweep(userID string, asOf time.Time) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.expirySweep(userID, asOf)
	})
}

func (s *LoyaltyService) expirySweep(userID string, asOf time.Time) (*LoyaltyResult, error) {
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	ptx, err := s.Ledger.ExpirePoints(userID, asOf)
	if err != nil {
		return nil, err
	}
	if ptx == nil {
		return &LoyaltyResult{Account: acct}, nil
	}

	events := []models.LoyaltyEvent{
		newEvent(userID, models.EventPointsExpiring, map[string]interface{}{
			"points_expired": -ptx.Points,
			"balance_after":  ptx.BalanceAfter,
		}),
	}
	return s.finish(userID, oldTier, events)
}

// OnAdminAdjust applies a manual point adjustment.
func (s *LoyaltyService) OnAdminAdjust(userID string, delta int64, reason string) (*LoyaltyResult, error) {
	return s.run(func(svc *LoyaltyService) (*LoyaltyResult, error) {
		return svc.adminAdjust(userID, delta, reason)
	})
}

func (s *LoyaltyService) adminAdjust(userID string, delta int64, reason string) (*LoyaltyResult, error) {
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	oldTier := acct.CurrentTier

	ptx, err := s.Ledger.AdminAdjust(userID, delta, reason)
	if err != nil {
		return nil, err
	}

	var events []models.LoyaltyEvent
	if ptx.Points > 0 {
		events = append(events, newEvent(userID, models.EventPointsEarned, map[string]interface{}{
			"points": ptx.Points,
			"reason": reason,
		}))
	}
	return s.finish(userID, oldTier, events)
}

// finish reloads the snapshot, appends a tier change event when the operation
// crossed a threshold (one event even when two thresholds were crossed), and
// writes everything raised to the outbox within the surrounding transaction.
func (s *LoyaltyService) finish(userID string, oldTier models.Tier, events []models.LoyaltyEvent) (*LoyaltyResult, error) {
	acct, err := s.Ledger.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	if acct.CurrentTier != oldTier {
		events = append(events, newTierChangeEvent(userID, oldTier, acct.CurrentTier))
	}
	if err := persistEvents(s.DB, events); err != nil {
		return nil, err
	}
	return &LoyaltyResult{Account: acct, Events: events}, nil
}

// resolveReferrer maps a supplied referral code to its owner's account, or nil
// when the code is empty, malformed, unknown, or the user's own.
func (s *LoyaltyService) resolveReferrer(userID, referralCode string) *models.UserLoyaltyAccount {
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	if code == "" || !utils.ValidReferralCodeFormat(code) {
		return nil
	}
	referrer, err := s.Referrals.FindAccountByCode(code)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			fmt.Printf("⚠️ Referral code lookup failed for %s: %v\n", code, err)
		}
		return nil
	}
	if referrer.UserID == userID {
		return nil
	}
	return referrer
}
