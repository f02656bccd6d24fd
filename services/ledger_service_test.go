package services

import (
	"errors"
	"testing"
	"time"

	"loyalty-points-service/models"
	"loyalty-points-service/utils"
)

func TestEnsureAccountIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	first, err := ledger.EnsureAccount("user-1")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	second, err := ledger.EnsureAccount("user-1")
	if err != nil {
		t.Fatalf("ensure account again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same account row, got %s and %s", first.ID, second.ID)
	}
	if first.ReferralCode != utils.ReferralCode("user-1") {
		t.Fatalf("referral code not derived from user id: %s", first.ReferralCode)
	}
	if first.CurrentTier != models.TierBronze {
		t.Fatalf("new account should start bronze, got %s", first.CurrentTier)
	}
}

func TestAppendTransactionBalanceAndExpiry(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	ptx, err := ledger.AppendTransaction("user-1", models.TxTypeSignup, SignupBonusPoints, nil, nil)
	if err != nil {
		t.Fatalf("append signup: %v", err)
	}
	if ptx.Points != 3 || ptx.BalanceAfter != 3 {
		t.Fatalf("signup tx: points=%d balanceAfter=%d, want 3/3", ptx.Points, ptx.BalanceAfter)
	}
	if ptx.ExpiresAt == nil {
		t.Fatal("earning transaction must carry an expiry date")
	}
	wantExp := ptx.CreatedAt.AddDate(0, PointsExpiryMonths, 0)
	if !ptx.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expiry = %v, want created+6mo = %v", ptx.ExpiresAt, wantExp)
	}

	debit, err := ledger.AppendTransaction("user-1", models.TxTypeAdminRemove, 2, nil, nil)
	if err != nil {
		t.Fatalf("append debit: %v", err)
	}
	if debit.Points != -2 || debit.BalanceAfter != 1 {
		t.Fatalf("debit tx: points=%d balanceAfter=%d, want -2/1", debit.Points, debit.BalanceAfter)
	}
	if debit.ExpiresAt != nil {
		t.Fatal("debit transaction must not carry an expiry date")
	}

	checkBalanceIdentity(t, db, "user-1")
}

func TestDebitRejectedWithoutPartialWrite(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if _, err := ledger.AppendTransaction("user-1", models.TxTypeSignup, 3, nil, nil); err != nil {
		t.Fatalf("append signup: %v", err)
	}

	_, err := ledger.AppendTransaction("user-1", models.TxTypeRedeem, 10, nil, nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The rejected call must leave nothing behind.
	var txCount int64
	db.Model(&models.PointTransaction{}).Where("user_id = ?", "user-1").Count(&txCount)
	if txCount != 1 {
		t.Fatalf("expected 1 transaction after rejected debit, got %d", txCount)
	}
	balance, err := ledger.GetBalance("user-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 3 {
		t.Fatalf("balance changed by rejected debit: %d", balance)
	}
	checkBalanceIdentity(t, db, "user-1")
}

func TestInvalidTransactionType(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	_, err := ledger.AppendTransaction("user-1", "bonus_rain", 10, nil, nil)
	if !errors.Is(err, ErrInvalidTransactionType) {
		t.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}
}

func TestAppendTransactionUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.AppendTransaction("ghost", models.TxTypeSignup, 3, nil, nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDailyLoginOncePerCalendarDay(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	today := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	first, err := ledger.RecordDailyLogin("user-1", today)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first == nil || first.Points != 1 {
		t.Fatalf("first login should credit +1, got %+v", first)
	}

	// Same calendar day, later hour: no-op, not an error.
	second, err := ledger.RecordDailyLogin("user-1", today.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second != nil {
		t.Fatalf("second login same day should be a no-op, got %+v", second)
	}

	// Next day credits again, even though fewer than 24h elapsed since the
	// first call's timestamp would matter under elapsed-time comparison.
	next, err := ledger.RecordDailyLogin("user-1", today.Add(16*time.Hour))
	if err != nil {
		t.Fatalf("next-day login: %v", err)
	}
	if next == nil || next.Points != 1 {
		t.Fatalf("next-day login should credit +1, got %+v", next)
	}

	var count int64
	db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND type = ?", "user-1", models.TxTypeDailyLogin).
		Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 daily_login transactions, got %d", count)
	}
	checkBalanceIdentity(t, db, "user-1")
}

func TestExpireAgedSignupBonus(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	// A signup bonus earned exactly 6 months ago is due today.
	expired := time.Now()
	if _, err := ledger.AppendTransaction("user-1", models.TxTypeSignup, 3, nil, &expired); err != nil {
		t.Fatalf("append signup: %v", err)
	}

	ptx, err := ledger.ExpirePoints("user-1", time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if ptx == nil || ptx.Points != -3 {
		t.Fatalf("expected -3 expired transaction, got %+v", ptx)
	}
	if ptx.Type != models.TxTypeExpired {
		t.Fatalf("expected expired type, got %s", ptx.Type)
	}

	balance, _ := ledger.GetBalance("user-1")
	if balance != 0 {
		t.Fatalf("balance after expiry = %d, want 0", balance)
	}

	// Re-running at the same asOf is a no-op.
	again, err := ledger.ExpirePoints("user-1", time.Now())
	if err != nil {
		t.Fatalf("re-expire: %v", err)
	}
	if again != nil {
		t.Fatalf("re-running expiry emitted a transaction: %+v", again)
	}
	checkBalanceIdentity(t, db, "user-1")
}

func TestExpiryNetsRedemptionsFIFO(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	// Old batch of 10 (due), then a fresh batch of 5 (not due).
	due := time.Now().Add(-time.Hour)
	if _, err := ledger.AppendTransaction("user-1", models.TxTypeAdminAdd, 10, nil, &due); err != nil {
		t.Fatalf("append old batch: %v", err)
	}
	if _, err := ledger.AppendTransaction("user-1", models.TxTypePurchase, 5, nil, nil); err != nil {
		t.Fatalf("append fresh batch: %v", err)
	}
	// Redeem 8: FIFO consumption drains the old batch first.
	if _, err := ledger.AppendTransaction("user-1", models.TxTypeRedeem, 8, nil, nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	ptx, err := ledger.ExpirePoints("user-1", time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	// Only the unconsumed remainder of the old batch (10-8=2) expires.
	if ptx == nil || ptx.Points != -2 {
		t.Fatalf("expected -2 expired, got %+v", ptx)
	}

	balance, _ := ledger.GetBalance("user-1")
	if balance != 5 {
		t.Fatalf("balance after expiry = %d, want 5 (fresh batch untouched)", balance)
	}
	checkBalanceIdentity(t, db, "user-1")
}

func TestExpiryNothingDue(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if _, err := ledger.AppendTransaction("user-1", models.TxTypeSignup, 3, nil, nil); err != nil {
		t.Fatalf("append signup: %v", err)
	}

	ptx, err := ledger.ExpirePoints("user-1", time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if ptx != nil {
		t.Fatalf("nothing is due, but got %+v", ptx)
	}
}

func TestAdminAdjust(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	add, err := ledger.AdminAdjust("user-1", 100, "goodwill")
	if err != nil {
		t.Fatalf("admin add: %v", err)
	}
	if add.Type != models.TxTypeAdminAdd || add.Points != 100 {
		t.Fatalf("unexpected add tx: %+v", add)
	}

	remove, err := ledger.AdminAdjust("user-1", -40, "correction")
	if err != nil {
		t.Fatalf("admin remove: %v", err)
	}
	if remove.Type != models.TxTypeAdminRemove || remove.Points != -40 {
		t.Fatalf("unexpected remove tx: %+v", remove)
	}

	if _, err := ledger.AdminAdjust("user-1", 0, "noop"); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero adjustment should fail validation, got %v", err)
	}
	checkBalanceIdentity(t, db, "user-1")
}

func TestGrantSignupBonusOnce(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	if _, err := ledger.EnsureAccount("user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	first, err := ledger.GrantSignupBonus("user-1", nil)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if first == nil || first.Points != 3 || first.Type != models.TxTypeSignup {
		t.Fatalf("unexpected first grant: %+v", first)
	}

	// A second delivery is a no-op, not an error, and appends nothing.
	second, err := ledger.GrantSignupBonus("user-1", nil)
	if err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	if second != nil {
		t.Fatalf("repeat grant appended %+v", second)
	}

	var count int64
	db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND type = ?", "user-1", models.TxTypeSignup).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 signup transaction, got %d", count)
	}
	checkBalanceIdentity(t, db, "user-1")
}
