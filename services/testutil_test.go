package services

import (
	"fmt"
	"testing"

	"loyalty-points-service/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.UserLoyaltyAccount{},
		&models.PointTransaction{},
		&models.Referral{},
		&models.Reward{},
		&models.Redemption{},
		&models.LoyaltyEvent{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// checkBalanceIdentity asserts the core ledger invariant for a user:
// balance == earned - redeemed - expired, >= 0, equal to both the sum of all
// deltas and the BalanceAfter of the newest transaction.
func checkBalanceIdentity(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()

	var acct models.UserLoyaltyAccount
	if err := db.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}

	want := acct.TotalPointsEarned - acct.TotalPointsRedeemed - acct.TotalPointsExpired
	if acct.TotalPoints != want {
		t.Fatalf("balance identity broken: total=%d earned=%d redeemed=%d expired=%d",
			acct.TotalPoints, acct.TotalPointsEarned, acct.TotalPointsRedeemed, acct.TotalPointsExpired)
	}
	if acct.TotalPoints < 0 {
		t.Fatalf("negative balance: %d", acct.TotalPoints)
	}

	var txs []models.PointTransaction
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&txs).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	var sum int64
	for _, tx := range txs {
		sum += tx.Points
	}
	if sum != acct.TotalPoints {
		t.Fatalf("sum of deltas %d != account balance %d", sum, acct.TotalPoints)
	}
	if len(txs) > 0 && txs[len(txs)-1].BalanceAfter != acct.TotalPoints {
		t.Fatalf("latest BalanceAfter %d != account balance %d", txs[len(txs)-1].BalanceAfter, acct.TotalPoints)
	}
}
