// services/catalog_service.go
package services

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"loyalty-points-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService owns the reward catalog CRUD. Inventory decrement during
// redemption stays with the RedemptionService.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// --- Admin Handlers ---

// CreateReward creates a new catalog entry (Admin only)
func (s *CatalogService) CreateReward(c *fiber.Ctx) error {
	var req struct {
		Title          string `json:"title" validate:"required"`
		Description    string `json:"description"`
		ImageURL       string `json:"image_url"`
		PointsRequired int64  `json:"points_required" validate:"required,min=1"`
		Quantity       int64  `json:"quantity" validate:"min=0"`
		IsActive       *bool  `json:"is_active"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if req.PointsRequired <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_required must be positive"})
	}
	if req.Quantity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must not be negative"})
	}

	reward := &models.Reward{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           slug.Make(req.Title),
		Description:    req.Description,
		ImageURL:       req.ImageURL,
		PointsRequired: req.PointsRequired,
		Quantity:       req.Quantity,
		IsActive:       true,
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}

	if err := s.DB.Create(reward).Error; err != nil {
		log.Printf("DB Error creating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}

	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateReward updates an existing reward (Admin only)
func (s *CatalogService) UpdateReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var existing models.Reward
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title          *string `json:"title"`
		Description    *string `json:"description"`
		ImageURL       *string `json:"image_url"`
		PointsRequired *int64  `json:"points_required"`
		Quantity       *int64  `json:"quantity"`
		IsActive       *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		existing.Title = *req.Title
		existing.Slug = slug.Make(*req.Title)
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.ImageURL != nil {
		existing.ImageURL = *req.ImageURL
	}
	if req.PointsRequired != nil {
		if *req.PointsRequired <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_required must be positive"})
		}
		existing.PointsRequired = *req.PointsRequired
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must not be negative"})
		}
		existing.Quantity = *req.Quantity
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}

	return c.JSON(existing)
}

// DeleteReward soft-deletes a reward (Admin only)
func (s *CatalogService) DeleteReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&reward).Error; err != nil {
		log.Printf("DB Error deleting reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete reward"})
	}

	return c.JSON(fiber.Map{"message": "Reward deleted successfully"})
}

// GetAllRewards fetches all rewards including inactive (Admin only)
func (s *CatalogService) GetAllRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("created_at DESC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching all rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// --- User Handlers ---

// GetActiveRewards fetches the redeemable catalog: active entries, optionally
// filtered to those still in stock (?in_stock=true) or affordable
// (?max_points=N).
func (s *CatalogService) GetActiveRewards(c *fiber.Ctx) error {
	query := s.DB.Where("is_active = ?", true)

	if strings.EqualFold(c.Query("in_stock"), "true") {
		query = query.Where("quantity > 0")
	}
	if maxStr := c.Query("max_points"); maxStr != "" {
		maxPoints, err := strconv.ParseInt(maxStr, 10, 64)
		if err != nil || maxPoints < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid max_points parameter"})
		}
		query = query.Where("points_required <= ?", maxPoints)
	}

	var rewards []models.Reward
	if err := query.Order("points_required ASC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}

	return c.JSON(rewards)
}

// GetUserRedemptions lists the authenticated user's redemption history.
func (s *CatalogService) GetUserRedemptions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}

	sinceDays, _ := strconv.Atoi(c.Query("days", "90"))
	since := time.Now().AddDate(0, 0, -sinceDays)

	var redemptions []models.Redemption
	if err := s.DB.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&redemptions).Error; err != nil {
		log.Printf("DB Error fetching redemptions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch redemptions"})
	}

	return c.JSON(redemptions)
}
