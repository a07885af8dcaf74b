package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/services/mail"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/crypto"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ResetTokenLifetime is how long a password-reset link stays usable
const ResetTokenLifetime = 15 * time.Minute

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents a password reset with token
type ResetPasswordRequest struct {
	Token          string `json:"token" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=8"`
	RepeatPassword string `json:"repeat_password" validate:"required"`
}

// ForgotPassword starts the reset flow. The response is identical whether
// or not the account exists, to prevent account enumeration.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" {
		return response.BadRequest(c, "Email is required")
	}

	uniformReply := func() error {
		return response.SuccessWithMessage(c, "If the email exists, a password reset link will be sent", nil)
	}

	email := validation.NormalizeEmail(req.Email)

	var user model.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		return uniformReply()
	}

	resetToken, err := crypto.NewResetToken()
	if err != nil {
		return response.InternalServerError(c, "Failed to create reset token")
	}

	// At most one live reset token per user: superseding runs as one
	// transaction so no window with two live tokens is left behind.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&model.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&model.PasswordResetToken{
			UserID:   user.ID,
			Token:    resetToken,
			Deadline: time.Now().Add(ResetTokenLifetime),
		}).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create reset token")
	}

	// Delivery happens off the request path; a failed send is logged, not
	// surfaced to the requester.
	go func(recipient, name, token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		vars := map[string]string{
			"name":            name,
			"reset_link":      fmt.Sprintf("%s/reset-password?token=%s", h.appBaseURL, token),
			"expires_minutes": fmt.Sprintf("%d", int(ResetTokenLifetime.Minutes())),
		}
		if err := h.mailer.Send(ctx, mail.TemplatePasswordReset, recipient, vars); err != nil {
			log.Printf("Failed to send password reset email to %s: %v", recipient, err)
		}
	}(user.Email, user.Name, resetToken)

	return uniformReply()
}

// ResetPassword completes the reset flow with a token from the email link
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return response.BadRequest(c, "Token and new password are required")
	}

	// Token liveness is checked before anything about the new password, so
	// a dead link always reports as a dead link. Expired rows linger until
	// the sweep but are functionally dead.
	var resetToken model.PasswordResetToken
	err := h.db.Where("token = ? AND deadline > ?", req.Token, time.Now()).
		First(&resetToken).Error
	if err != nil {
		return response.BadRequest(c, "Invalid or expired reset link")
	}

	var user model.User
	if err := h.db.First(&user, resetToken.UserID).Error; err != nil {
		return response.BadRequest(c, "Invalid or expired reset link")
	}

	if req.NewPassword != req.RepeatPassword {
		return response.BadRequest(c, "Passwords do not match")
	}

	hashedPassword, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, authutil.ErrPasswordTooShort) {
			return response.BadRequest(c, "Password must be at least 8 characters long")
		}
		return response.InternalServerError(c, "Failed to process password")
	}

	// Single use: the password change and the token burn commit together.
	// Consuming one token deletes every reset token the user has, including
	// siblings from racing requests; if the burn fails the change rolls
	// back and the link stays usable rather than usable-again-by-accident.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_hash", hashedPassword).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", user.ID).Delete(&model.PasswordResetToken{}).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}

	// Credential rotation: every open session dies with the old password
	if err := h.ledger.InvalidateAllForUser(c.Context(), user.ID); err != nil {
		log.Printf("Failed to invalidate sessions for user %d: %v", user.ID, err)
	}

	go func(recipient, name string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		vars := map[string]string{"name": name}
		if err := h.mailer.Send(ctx, mail.TemplatePasswordChanged, recipient, vars); err != nil {
			log.Printf("Failed to send password changed email to %s: %v", recipient, err)
		}
	}(user.Email, user.Name)

	return response.SuccessWithMessage(c, "Password reset successfully", nil)
}
