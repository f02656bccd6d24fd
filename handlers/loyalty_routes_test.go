package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"loyalty-points-service/models"
	"loyalty-points-service/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	app := fiber.New()
	loyaltyService := services.NewLoyaltyService(db)
	catalogService := services.NewCatalogService(db)
	SetupLoyaltyRoutes(app, loyaltyService)
	SetupRewardRoutes(app, catalogService, loyaltyService.Redemptions)
	return app, db
}

func jsonRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func userHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID}
}

func adminHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID, "X-User-Roles": "admin"}
}

func TestUserRoutesRequireUserContext(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/user/loyalty", nil, nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-User-ID, got %d", resp.StatusCode)
	}
}

func TestGetLoyaltySnapshot(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/user/loyalty", nil, userHeaders("user-1")))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		UserID       string `json:"user_id"`
		TotalPoints  int64  `json:"total_points"`
		TierName     string `json:"tier_name"`
		ReferralCode string `json:"referral_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != "user-1" || body.TierName != "Bronze" {
		t.Fatalf("unexpected snapshot: %+v", body)
	}
	if body.ReferralCode == "" {
		t.Fatal("snapshot missing referral code")
	}
}

func TestSignupHookAndRedemptionFlow(t *testing.T) {
	app, db := setupTestApp(t)

	// Signup hook credits the bonus.
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/hooks/signup", map[string]interface{}{
		"user_id":      "user-1",
		"display_name": "User One",
	}, nil))
	if err != nil {
		t.Fatalf("signup hook: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Purchase hook: 250 → +2.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/hooks/purchase", map[string]interface{}{
		"user_id":     "user-1",
		"order_id":    "order-1",
		"order_total": 250,
	}, nil))
	if err != nil {
		t.Fatalf("purchase hook: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Admin creates a reward the user cannot yet afford.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/s/admin/rewards", map[string]interface{}{
		"title":           "Gift Card",
		"points_required": 100,
		"quantity":        3,
	}, adminHeaders("admin-1")))
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating reward, got %d", resp.StatusCode)
	}
	var reward models.Reward
	if err := json.NewDecoder(resp.Body).Decode(&reward); err != nil {
		t.Fatalf("decode reward: %v", err)
	}
	if reward.Slug != "gift-card" {
		t.Fatalf("slug = %q, want gift-card", reward.Slug)
	}

	// Redemption fails on balance, and the snapshot stays unchanged.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/user/loyalty/redeem", map[string]interface{}{
		"reward_id": reward.ID,
	}, userHeaders("user-1")))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for insufficient balance, got %d", resp.StatusCode)
	}
	var acct models.UserLoyaltyAccount
	if err := db.Where("user_id = ?", "user-1").First(&acct).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if acct.TotalPoints != 5 {
		t.Fatalf("rejected redeem changed balance: %d", acct.TotalPoints)
	}

	// Top up and redeem successfully.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/s/admin/points/adjust", map[string]interface{}{
		"user_id": "user-1",
		"points":  95,
		"reason":  "test grant",
	}, adminHeaders("admin-1")))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 adjusting points, got %d", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/user/loyalty/redeem", map[string]interface{}{
		"reward_id": reward.ID,
	}, userHeaders("user-1")))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 redeeming, got %d", resp.StatusCode)
	}

	var result struct {
		Account models.UserLoyaltyAccount `json:"account"`
		Events  []models.LoyaltyEvent     `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Account.TotalPoints != 0 {
		t.Fatalf("balance after redeem = %d, want 0", result.Account.TotalPoints)
	}
	if len(result.Events) == 0 {
		t.Fatal("redeem returned no events")
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/s/admin/rewards", map[string]interface{}{
		"title":           "Sticker",
		"points_required": 10,
		"quantity":        1,
	}, userHeaders("user-1")))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without admin role, got %d", resp.StatusCode)
	}
}

func TestTransactionHistoryPagination(t *testing.T) {
	app, _ := setupTestApp(t)

	if resp, err := app.Test(jsonRequest(t, http.MethodPost, "/hooks/signup", map[string]interface{}{
		"user_id": "user-1",
	}, nil)); err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup hook failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if resp, err := app.Test(jsonRequest(t, http.MethodPost, "/hooks/purchase", map[string]interface{}{
			"user_id":     "user-1",
			"order_id":    fmt.Sprintf("order-%d", i),
			"order_total": 100,
		}, nil)); err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("purchase hook %d failed: %v", i, err)
		}
	}

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/user/loyalty/transactions?page=1&size=2", nil, userHeaders("user-1")))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Transactions []models.PointTransaction `json:"transactions"`
		TotalItems   int64                     `json:"total_items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transactions) != 2 {
		t.Fatalf("page size not honored: got %d rows", len(body.Transactions))
	}
	if body.TotalItems != 4 { // 1 signup + 3 purchases
		t.Fatalf("total_items = %d, want 4", body.TotalItems)
	}
}
