package middleware

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	// AccessTokenCookie carries the signed session credential
	AccessTokenCookie = "access_token"
	// RememberMeCookie is an opaque marker present only for remembered sessions
	RememberMeCookie = "remember_me"
	// XSRFHeader must echo the anti-forgery nonce bound into the credential
	XSRFHeader = "X-Xsrf-Token"
)

// AuthMiddleware is the per-request access gate: signature check, nonce
// match, ledger lookup, identity load, role gate - in that order. Each
// stage decides on its own whether failing it forces a client-side logout.
type AuthMiddleware struct {
	jwtManager    *auth.JWTManager
	ledger        *auth.TokenLedger
	db            *gorm.DB
	secureCookies bool
}

// NewAuthMiddleware creates a new access gate
func NewAuthMiddleware(jwtManager *auth.JWTManager, ledger *auth.TokenLedger, db *gorm.DB, secureCookies bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:    jwtManager,
		ledger:        ledger,
		db:            db,
		secureCookies: secureCookies,
	}
}

// AcceptUser admits any authenticated caller
func (m *AuthMiddleware) AcceptUser() fiber.Handler {
	return m.accept(model.RoleUser)
}

// AcceptModerator admits moderators and administrators
func (m *AuthMiddleware) AcceptModerator() fiber.Handler {
	return m.accept(model.RoleModerator)
}

// AcceptAdministrator admits administrators only
func (m *AuthMiddleware) AcceptAdministrator() fiber.Handler {
	return m.accept(model.RoleAdministrator)
}

// Optional attaches the caller's identity when a valid credential is
// present but never rejects the request. Public listings use it to widen
// results for privileged callers.
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawToken := c.Cookies(AccessTokenCookie)
		nonce := c.Get(XSRFHeader)
		if rawToken == "" || nonce == "" {
			return c.Next()
		}

		claims, err := m.jwtManager.ValidateCredential(rawToken)
		if err != nil {
			return c.Next()
		}

		if subtle.ConstantTimeCompare([]byte(claims.XSRFToken), []byte(nonce)) != 1 {
			return c.Next()
		}

		live, err := m.ledger.IsValid(c.Context(), rawToken, claims.UserID)
		if err != nil || !live {
			return c.Next()
		}

		var user model.User
		if err := m.db.Where("name = ?", claims.Name).First(&user).Error; err != nil {
			return c.Next()
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_name", user.Name)
		c.Locals("user_role", user.Role)
		c.Locals("claims", claims)
		c.Locals("user", &user)
		c.Locals("raw_token", rawToken)

		return c.Next()
	}
}

func (m *AuthMiddleware) accept(minRole model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Missing credential or missing nonce header means the caller is
		// simply unauthenticated. No forced logout.
		rawToken := c.Cookies(AccessTokenCookie)
		nonce := c.Get(XSRFHeader)
		if rawToken == "" || nonce == "" {
			return response.Unauthorized(c, "Authentication required")
		}

		// A credential that fails signature or expiry checks is either
		// tampered with or stale: clear the client's session storage.
		claims, err := m.jwtManager.ValidateCredential(rawToken)
		if err != nil {
			ClearSessionCookies(c, m.secureCookies)
			if errors.Is(err, auth.ErrExpiredToken) {
				return response.Error(c, fiber.StatusUnauthorized, "Session has expired", "TOKEN_EXPIRED")
			}
			return response.Error(c, fiber.StatusUnauthorized, "Invalid session credential", "INVALID_TOKEN")
		}

		// The nonce in the header must match the one bound into the
		// credential. A mismatch is treated the same as tampering.
		if subtle.ConstantTimeCompare([]byte(claims.XSRFToken), []byte(nonce)) != 1 {
			ClearSessionCookies(c, m.secureCookies)
			return response.Error(c, fiber.StatusUnauthorized, "Invalid session credential", "XSRF_MISMATCH")
		}

		// Cryptographically fine does not mean alive: the ledger decides.
		// An administratively dead credential is a plain auth failure, the
		// client keeps its cookies (concurrent-session semantics).
		live, err := m.ledger.IsValid(c.Context(), rawToken, claims.UserID)
		if err != nil {
			return response.InternalServerError(c, "Failed to check session status")
		}
		if !live {
			return response.Error(c, fiber.StatusUnauthorized, "Session has been revoked", "TOKEN_REVOKED")
		}

		// Load the caller's identity by the name embedded in the credential
		// unless an earlier gate in the chain already attached it.
		user, ok := GetUser(c)
		if !ok {
			var u model.User
			if err := m.db.Where("name = ?", claims.Name).First(&u).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.Unauthorized(c, "Unknown identity")
				}
				return response.InternalServerError(c, "Failed to load user")
			}
			user = &u
		}

		if !user.Role.AtLeast(minRole) {
			return response.Forbidden(c, "Insufficient permissions")
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_name", user.Name)
		c.Locals("user_role", user.Role)
		c.Locals("claims", claims)
		c.Locals("user", user)
		c.Locals("raw_token", rawToken)

		return c.Next()
	}
}

// SetSessionCookies delivers an issued credential to the client. The cookie
// lifetime matches the credential deadline; the remember marker is only set
// for remembered sessions.
func SetSessionCookies(c *fiber.Ctx, token string, deadline time.Time, remember, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Expires:  deadline,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	if remember {
		c.Cookie(&fiber.Cookie{
			Name:     RememberMeCookie,
			Value:    "1",
			Expires:  deadline,
			Path:     "/",
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}

// ClearSessionCookies expires both session cookies on the client
func ClearSessionCookies(c *fiber.Ctx, secure bool) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{AccessTokenCookie, RememberMeCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			Path:     "/",
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (model.Role, bool) {
	role := c.Locals("user_role")
	if role == nil {
		return "", false
	}
	r, ok := role.(model.Role)
	return r, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}

// GetRawToken extracts the raw credential string from context
func GetRawToken(c *fiber.Ctx) (string, bool) {
	raw := c.Locals("raw_token")
	if raw == nil {
		return "", false
	}
	t, ok := raw.(string)
	return t, ok
}
