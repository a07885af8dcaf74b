package auth

import (
	"time"

	"github.com/enigmarium/backend/model"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// LoginResponse represents a successful login response. The credential
// itself travels in the access_token cookie; the anti-forgery nonce is
// echoed out-of-band through the X-Xsrf-Token response header.
type LoginResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
	Remember  bool         `json:"remember"`
}

// Login authenticates a user and issues a session credential
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()
	email := validation.NormalizeEmail(req.Email)

	var user model.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		// Record failed attempt even if user not found
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordSuccessfulAttempt(c, ip)
	}

	cred, err := h.issuer.Issue(c.Context(), &user, req.Remember)
	if err != nil {
		return response.InternalServerError(c, "Failed to issue session credential")
	}

	middleware.SetSessionCookies(c, cred.Token, cred.Deadline, cred.Remember, h.secureCookies)
	c.Set(middleware.XSRFHeader, cred.XSRFToken)

	return response.Success(c, LoginResponse{
		User:      toUserResponse(&user),
		ExpiresAt: cred.Deadline,
		Remember:  cred.Remember,
	})
}
