// handlers/reward_routes.go
package handlers

import (
	"loyalty-points-service/middleware"
	"loyalty-points-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, catalogService *services.CatalogService, redemptionService *services.RedemptionService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Catalog browsing
	securedGroup.Get("/rewards", catalogService.GetActiveRewards)
	securedGroup.Get("/user/loyalty/redemptions", catalogService.GetUserRedemptions)

	// Admin reward CRUD + redemption lifecycle
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Get("/rewards", catalogService.GetAllRewards)
	adminGroup.Post("/rewards", catalogService.CreateReward)
	adminGroup.Put("/rewards/:id", catalogService.UpdateReward)
	adminGroup.Delete("/rewards/:id", catalogService.DeleteReward)

	adminGroup.Post("/redemptions/:id/fulfill", func(c *fiber.Ctx) error {
		red, err := redemptionService.FulfillRedemption(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(red)
	})

	adminGroup.Post("/redemptions/:id/cancel", func(c *fiber.Ctx) error {
		red, err := redemptionService.CancelRedemption(c.Params("id"))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(red)
	})
}
