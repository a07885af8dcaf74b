package auth

import (
	"errors"

	"github.com/enigmarium/backend/model"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// UpdateProfileRequest represents a profile update request
type UpdateProfileRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// GetProfile returns the authenticated caller's account
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	return response.Success(c, toUserResponse(user))
}

// UpdateProfile updates the authenticated caller's account
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.Validate(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Email != "" {
		email := validation.NormalizeEmail(req.Email)
		if email != user.Email {
			var existing model.User
			if err := h.db.Where("email = ? AND id <> ?", email, user.ID).First(&existing).Error; err == nil {
				return response.Conflict(c, "Email is already in use")
			}
			user.Email = email
		}
	}

	if err := h.db.Save(user).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	return response.Success(c, toUserResponse(user))
}

// ChangePassword changes the password of an authenticated caller and
// rotates their credentials: every open session is invalidated.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		return response.BadRequest(c, "Old password and new password are required")
	}

	if err := authutil.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
		return response.BadRequest(c, "Current password is incorrect")
	}

	hashedPassword, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, authutil.ErrPasswordTooShort) {
			return response.BadRequest(c, "Password must be at least 8 characters long")
		}
		return response.InternalServerError(c, "Failed to process password")
	}

	if err := h.db.Model(user).Update("password_hash", hashedPassword).Error; err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}

	if err := h.ledger.InvalidateAllForUser(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}

	middleware.ClearSessionCookies(c, h.secureCookies)

	return response.SuccessWithMessage(c, "Password changed successfully. Please login again with your new password", nil)
}
