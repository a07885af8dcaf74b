package series

import (
	"strings"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SeriesHandler handles series-related requests
type SeriesHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(db *gorm.DB) *SeriesHandler {
	return &SeriesHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateSeriesRequest represents a series creation request
type CreateSeriesRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Slug        string `json:"slug" validate:"required,min=3,max=255"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

// UpdateSeriesRequest represents a series update request
type UpdateSeriesRequest struct {
	Title       string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description"`
	Published   *bool   `json:"published"`
}

// ListSeries returns published series, paginated. Moderators and above
// also see unpublished drafts.
func (h *SeriesHandler) ListSeries(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	query := h.db.Model(&model.Series{})

	role, ok := middleware.GetUserRole(c)
	if !ok || !role.AtLeast(model.RoleModerator) {
		query = query.Where("published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count series")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var series []model.Series
	err := query.
		Preload("Author").
		Order("created_at DESC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&series).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch series")
	}

	return response.Paginated(c, series, pagination)
}

// GetSeries returns a single series with its enigmas, looked up by slug
func (h *SeriesHandler) GetSeries(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return response.BadRequest(c, "Series slug is required")
	}

	var series model.Series
	err := h.db.
		Preload("Author").
		Preload("Enigmas", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("slug = ?", slug).
		First(&series).Error
	if err != nil {
		return response.NotFound(c, "Series not found")
	}

	if !series.Published {
		role, ok := middleware.GetUserRole(c)
		if !ok || !role.AtLeast(model.RoleModerator) {
			return response.NotFound(c, "Series not found")
		}
	}

	return response.Success(c, series)
}

// CreateSeries creates a new series. Moderator gate is applied at the route.
func (h *SeriesHandler) CreateSeries(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req CreateSeriesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))

	var existing model.Series
	if err := h.db.Where("slug = ?", slug).First(&existing).Error; err == nil {
		return response.Conflict(c, "A series with this slug already exists")
	}

	series := model.Series{
		Title:       req.Title,
		Slug:        slug,
		Description: req.Description,
		AuthorID:    userID,
		Published:   req.Published,
	}

	if err := h.db.Create(&series).Error; err != nil {
		return response.InternalServerError(c, "Failed to create series")
	}

	return response.Created(c, series)
}

// UpdateSeries updates an existing series
func (h *SeriesHandler) UpdateSeries(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid series ID")
	}

	var req UpdateSeriesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	var series model.Series
	if err := h.db.First(&series, id).Error; err != nil {
		return response.NotFound(c, "Series not found")
	}

	if req.Title != "" {
		series.Title = req.Title
	}
	if req.Description != nil {
		series.Description = *req.Description
	}
	if req.Published != nil {
		series.Published = *req.Published
	}

	if err := h.db.Save(&series).Error; err != nil {
		return response.InternalServerError(c, "Failed to update series")
	}

	return response.Success(c, series)
}

// DeleteSeries soft-deletes a series and cascades to its enigmas
func (h *SeriesHandler) DeleteSeries(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid series ID")
	}

	var series model.Series
	if err := h.db.First(&series, id).Error; err != nil {
		return response.NotFound(c, "Series not found")
	}

	if err := h.db.Delete(&series).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete series")
	}

	return response.SuccessWithMessage(c, "Series deleted successfully", nil)
}
