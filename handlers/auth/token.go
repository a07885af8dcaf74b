package auth

import (
	"crypto/subtle"

	"github.com/enigmarium/backend/model"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
)

// VerifyToken is the soft session check used by clients on startup. Unlike
// the access gate it never forces a logout: a structurally invalid or
// revoked credential is answered with a plain auth error and the client's
// cookies are left alone.
func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	rawToken := c.Cookies(middleware.AccessTokenCookie)
	nonce := c.Get(middleware.XSRFHeader)
	if rawToken == "" || nonce == "" {
		return response.Unauthorized(c, "Authentication required")
	}

	claims, err := h.jwtManager.ValidateCredential(rawToken)
	if err != nil {
		if err == authutil.ErrExpiredToken {
			return response.Error(c, fiber.StatusUnauthorized, "Session has expired", "TOKEN_EXPIRED")
		}
		return response.Unauthorized(c, "Invalid session credential")
	}

	if subtle.ConstantTimeCompare([]byte(claims.XSRFToken), []byte(nonce)) != 1 {
		return response.Unauthorized(c, "Invalid session credential")
	}

	live, err := h.ledger.IsValid(c.Context(), rawToken, claims.UserID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check session status")
	}
	if !live {
		return response.Error(c, fiber.StatusUnauthorized, "Session has been revoked", "TOKEN_REVOKED")
	}

	var user model.User
	if err := h.db.Where("name = ?", claims.Name).First(&user).Error; err != nil {
		return response.Unauthorized(c, "Unknown identity")
	}

	return response.Success(c, toUserResponse(&user))
}

// Logout invalidates the caller's session credential in the ledger and
// clears the client's cookies
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	rawToken, ok := middleware.GetRawToken(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if err := h.ledger.InvalidateAll(c.Context(), rawToken); err != nil {
		return response.InternalServerError(c, "Failed to revoke session")
	}

	middleware.ClearSessionCookies(c, h.secureCookies)

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
