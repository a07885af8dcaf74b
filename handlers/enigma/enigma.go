package enigma

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/services/spaces"
	"github.com/enigmarium/backend/utils/captcha"
	"github.com/enigmarium/backend/utils/pdfvalidation"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// EnigmaHandler handles enigma-related requests
type EnigmaHandler struct {
	db            *gorm.DB
	uploader      spaces.Uploader
	captchaEngine *captcha.Engine
	validator     *validation.Validator
}

// NewEnigmaHandler creates a new enigma handler
func NewEnigmaHandler(db *gorm.DB, uploader spaces.Uploader, captchaEngine *captcha.Engine) *EnigmaHandler {
	return &EnigmaHandler{
		db:            db,
		uploader:      uploader,
		captchaEngine: captchaEngine,
		validator:     validation.NewValidator(),
	}
}

// CreateEnigmaRequest represents an enigma creation request
type CreateEnigmaRequest struct {
	SeriesID  uint   `json:"series_id" validate:"required"`
	Position  int    `json:"position" validate:"required,min=1"`
	Title     string `json:"title" validate:"required,min=3,max=255"`
	Statement string `json:"statement" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
}

// UpdateEnigmaRequest represents an enigma update request
type UpdateEnigmaRequest struct {
	Position  *int    `json:"position" validate:"omitempty,min=1"`
	Title     string  `json:"title" validate:"omitempty,min=3,max=255"`
	Statement *string `json:"statement"`
	Answer    string  `json:"answer"`
}

// SubmitAnswerRequest represents an answer submission
type SubmitAnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// SubmitReportRequest represents a visitor problem report
type SubmitReportRequest struct {
	Email   string `json:"email" validate:"omitempty,email"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
	Captcha string `json:"captcha" validate:"required"`
}

// hashAnswer normalizes an answer before hashing so casing and stray
// whitespace never make a correct answer fail
func hashAnswer(answer string) string {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// GetEnigma returns a single enigma without its answer
func (h *EnigmaHandler) GetEnigma(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	return response.Success(c, enigma)
}

// CreateEnigma creates a new enigma within a series. Moderator gate is
// applied at the route.
func (h *EnigmaHandler) CreateEnigma(c *fiber.Ctx) error {
	var req CreateEnigmaRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	var series model.Series
	if err := h.db.First(&series, req.SeriesID).Error; err != nil {
		return response.NotFound(c, "Series not found")
	}

	enigma := model.Enigma{
		SeriesID:   req.SeriesID,
		Position:   req.Position,
		Title:      req.Title,
		Statement:  req.Statement,
		AnswerHash: hashAnswer(req.Answer),
	}

	if err := h.db.Create(&enigma).Error; err != nil {
		return response.InternalServerError(c, "Failed to create enigma")
	}

	return response.Created(c, enigma)
}

// UpdateEnigma updates an existing enigma
func (h *EnigmaHandler) UpdateEnigma(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	var req UpdateEnigmaRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	if req.Position != nil {
		enigma.Position = *req.Position
	}
	if req.Title != "" {
		enigma.Title = req.Title
	}
	if req.Statement != nil {
		enigma.Statement = *req.Statement
	}
	if req.Answer != "" {
		enigma.AnswerHash = hashAnswer(req.Answer)
	}

	if err := h.db.Save(&enigma).Error; err != nil {
		return response.InternalServerError(c, "Failed to update enigma")
	}

	return response.Success(c, enigma)
}

// DeleteEnigma soft-deletes an enigma
func (h *EnigmaHandler) DeleteEnigma(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	if err := h.db.Delete(&enigma).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete enigma")
	}

	return response.SuccessWithMessage(c, "Enigma deleted successfully", nil)
}

// SubmitAnswer checks an authenticated user's answer against the stored
// hash. The comparison is constant time so response timing leaks nothing
// about how close a guess is.
func (h *EnigmaHandler) SubmitAnswer(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	var req SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Answer == "" {
		return response.BadRequest(c, "Answer is required")
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	guess := hashAnswer(req.Answer)
	correct := subtle.ConstantTimeCompare([]byte(guess), []byte(enigma.AnswerHash)) == 1

	return response.Success(c, fiber.Map{
		"correct": correct,
	})
}

// SubmitReport records a visitor problem report about an enigma.
// Reporting is open to unauthenticated visitors and therefore captcha-gated.
func (h *EnigmaHandler) SubmitReport(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	var req SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	ok, err := h.captchaEngine.Verify(req.Captcha)
	if err != nil {
		if err == captcha.ErrMalformed {
			return response.BadRequest(c, "Malformed captcha payload")
		}
		return response.ServiceUnavailable(c, "Captcha verification unavailable")
	}
	if !ok {
		return response.BadRequest(c, "Captcha verification failed")
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	report := model.EnigmaReport{
		EnigmaID: enigma.ID,
		Email:    validation.NormalizeEmail(req.Email),
		Message:  req.Message,
	}

	if err := h.db.Create(&report).Error; err != nil {
		return response.InternalServerError(c, "Failed to submit report")
	}

	return response.Created(c, fiber.Map{
		"id": report.ID,
	})
}

// ListReports returns the reports filed against an enigma. Moderator gate
// is applied at the route.
func (h *EnigmaHandler) ListReports(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	query := h.db.Model(&model.EnigmaReport{}).Where("enigma_id = ?", id)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count reports")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var reports []model.EnigmaReport
	err = query.
		Order("created_at DESC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&reports).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch reports")
	}

	return response.Paginated(c, reports, pagination)
}

// UploadAttachment validates and stores a PDF attachment for an enigma.
// Moderator gate is applied at the route.
func (h *EnigmaHandler) UploadAttachment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid enigma ID")
	}

	if h.uploader == nil {
		return response.ServiceUnavailable(c, "Attachment storage is not configured")
	}

	var enigma model.Enigma
	if err := h.db.First(&enigma, id).Error; err != nil {
		return response.NotFound(c, "Enigma not found")
	}

	file, err := c.FormFile("attachment")
	if err != nil {
		return response.BadRequest(c, "Attachment file is required")
	}

	result, err := pdfvalidation.ValidatePDFFile(file, pdfvalidation.AttachmentLimits)
	if err != nil {
		return response.InternalServerError(c, "Failed to validate attachment")
	}
	if !result.Valid {
		return response.BadRequest(c, result.Error)
	}

	src, err := file.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read attachment")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return response.InternalServerError(c, "Failed to read attachment")
	}

	key := fmt.Sprintf("enigmas/%d/attachment-%d.pdf", enigma.ID, time.Now().Unix())
	url, err := h.uploader.Upload(c.Context(), key, data, "application/pdf")
	if err != nil {
		return response.InternalServerError(c, "Failed to store attachment")
	}

	if err := h.db.Model(&enigma).Update("attachment_url", url).Error; err != nil {
		return response.InternalServerError(c, "Failed to save attachment URL")
	}

	return response.Success(c, fiber.Map{
		"attachment_url": url,
		"page_count":     result.PageCount,
	})
}
