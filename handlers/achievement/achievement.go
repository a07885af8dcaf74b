package achievement

import (
	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AchievementHandler handles achievement-related requests
type AchievementHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewAchievementHandler creates a new achievement handler
func NewAchievementHandler(db *gorm.DB) *AchievementHandler {
	return &AchievementHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateAchievementRequest represents an achievement creation request
type CreateAchievementRequest struct {
	Code        string         `json:"code" validate:"required,min=3,max=50"`
	Title       string         `json:"title" validate:"required,min=3,max=255"`
	Description string         `json:"description"`
	Criteria    datatypes.JSON `json:"criteria"`
}

// AwardRequest represents awarding an achievement to a user
type AwardRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// ListAchievements returns all achievements
func (h *AchievementHandler) ListAchievements(c *fiber.Ctx) error {
	var achievements []model.Achievement
	if err := h.db.Order("code ASC").Find(&achievements).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch achievements")
	}

	return response.Success(c, achievements)
}

// CreateAchievement creates a new achievement. Administrator gate is
// applied at the route.
func (h *AchievementHandler) CreateAchievement(c *fiber.Ctx) error {
	var req CreateAchievementRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	var existing model.Achievement
	if err := h.db.Where("code = ?", req.Code).First(&existing).Error; err == nil {
		return response.Conflict(c, "An achievement with this code already exists")
	}

	achievement := model.Achievement{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		Criteria:    req.Criteria,
	}

	if err := h.db.Create(&achievement).Error; err != nil {
		return response.InternalServerError(c, "Failed to create achievement")
	}

	return response.Created(c, achievement)
}

// DeleteAchievement soft-deletes an achievement
func (h *AchievementHandler) DeleteAchievement(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid achievement ID")
	}

	var achievement model.Achievement
	if err := h.db.First(&achievement, id).Error; err != nil {
		return response.NotFound(c, "Achievement not found")
	}

	if err := h.db.Delete(&achievement).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete achievement")
	}

	return response.SuccessWithMessage(c, "Achievement deleted successfully", nil)
}

// AwardAchievement grants an achievement to a user. Awarding twice is a
// no-op rather than an error.
func (h *AchievementHandler) AwardAchievement(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid achievement ID")
	}

	var req AwardRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	var achievement model.Achievement
	if err := h.db.First(&achievement, id).Error; err != nil {
		return response.NotFound(c, "Achievement not found")
	}

	var user model.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	var existing model.UserAchievement
	err = h.db.
		Where("user_id = ? AND achievement_id = ?", user.ID, achievement.ID).
		First(&existing).Error
	if err == nil {
		return response.SuccessWithMessage(c, "Achievement already awarded", existing)
	}

	award := model.UserAchievement{
		UserID:        user.ID,
		AchievementID: achievement.ID,
	}
	if err := h.db.Create(&award).Error; err != nil {
		return response.InternalServerError(c, "Failed to award achievement")
	}

	return response.Created(c, award)
}

// ListMyAchievements returns the authenticated caller's achievements
func (h *AchievementHandler) ListMyAchievements(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var awards []model.UserAchievement
	err := h.db.
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&awards).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch achievements")
	}

	return response.Success(c, awards)
}
