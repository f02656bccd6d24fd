// handlers/loyalty_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"loyalty-points-service/middleware"
	"loyalty-points-service/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps the service error taxonomy to HTTP codes. Business-rule
// rejections are 4xx and final; only ErrStorageUnavailable invites a retry.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired
	case errors.Is(err, services.ErrRewardUnavailable):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrDuplicateReferral):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrSelfReferral):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidReferralState):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidRedemptionState):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidTransactionType):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}

func SetupLoyaltyRoutes(app *fiber.App, loyaltyService *services.LoyaltyService) {
	// 🔐 Secured routes — require user context (userID, roles)
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/loyalty", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		acct, err := loyaltyService.Ledger.EnsureAccount(userID)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"user_id":               acct.UserID,
			"total_points":          acct.TotalPoints,
			"current_tier":          acct.CurrentTier,
			"tier_name":             acct.CurrentTier.Name(),
			"points_to_next_tier":   services.PointsToNextTier(acct.TotalPoints),
			"total_points_earned":   acct.TotalPointsEarned,
			"total_points_redeemed": acct.TotalPointsRedeemed,
			"total_points_expired":  acct.TotalPointsExpired,
			"referral_code":         acct.ReferralCode,
			"referral_count":        acct.ReferralCount,
			"last_login_date":       acct.LastLoginDate,
		})
	})

	securedGroup.Get("/user/loyalty/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		txs, total, err := loyaltyService.Ledger.GetTransactions(userID, page, size)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"transactions": txs,
			"page":         page,
			"size":         size,
			"total_items":  total,
		})
	})

	securedGroup.Post("/user/loyalty/daily-login", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		result, err := loyaltyService.OnDailyVisit(userID, time.Now())
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(result)
	})

	securedGroup.Get("/user/loyalty/referral", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		acct, err := loyaltyService.Ledger.EnsureAccount(userID)
		if err != nil {
			return errorJSON(c, err)
		}
		referrals, err := loyaltyService.Referrals.ListReferrals(userID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"referral_code":  acct.ReferralCode,
			"referral_count": acct.ReferralCount,
			"referrals":      referrals,
		})
	})

	securedGroup.Post("/user/loyalty/redeem", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			RewardID string `json:"reward_id" validate:"required,uuid"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.RewardID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_id is required"})
		}

		result, err := loyaltyService.OnRedeemRequest(userID, req.RewardID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(result)
	})

	// Hooks — called by sibling services (identity provider, order service)
	// through the gateway when their facts occur.
	app.Post("/hooks/signup", func(c *fiber.Ctx) error {
		var req struct {
			UserID       string `json:"user_id" validate:"required"`
			DisplayName  string `json:"display_name"`
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}

		result, err := loyaltyService.OnSignup(req.UserID, req.DisplayName, req.ReferralCode)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	app.Post("/hooks/purchase", func(c *fiber.Ctx) error {
		var req struct {
			UserID     string `json:"user_id" validate:"required"`
			OrderID    string `json:"order_id" validate:"required"`
			OrderTotal int64  `json:"order_total" validate:"min=0"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.UserID == "" || req.OrderID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and order_id are required"})
		}
		if req.OrderTotal < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "order_total must not be negative"})
		}

		result, err := loyaltyService.OnPurchase(req.UserID, req.OrderID, req.OrderTotal)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(result)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Post("/points/adjust", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id" validate:"required"`
			Points int64  `json:"points" validate:"required"`
			Reason string `json:"reason" validate:"max=255"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.UserID == "" || req.Points == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and a non-zero points value are required"})
		}

		result, err := loyaltyService.OnAdminAdjust(req.UserID, req.Points, req.Reason)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(result)
	})

	adminGroup.Post("/referrals/:id/cancel", func(c *fiber.Ctx) error {
		ref, err := loyaltyService.Referrals.CancelReferral(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(ref)
	})

	adminGroup.Post("/expiry/run", func(c *fiber.Ctx) error {
		var req struct {
			UserID string     `json:"user_id" validate:"required"`
			AsOf   *time.Time `json:"as_of"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}
		asOf := time.Now()
		if req.AsOf != nil {
			asOf = *req.AsOf
		}

		result, err := loyaltyService.OnExpirySweep(req.UserID, asOf)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(result)
	})
}
