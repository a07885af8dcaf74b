package auth

import (
	"time"

	"github.com/enigmarium/backend/model"
	"github.com/enigmarium/backend/services/mail"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/captcha"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/enigmarium/backend/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	issuer               *authutil.TokenIssuer
	jwtManager           *authutil.JWTManager
	ledger               *authutil.TokenLedger
	captchaEngine        *captcha.Engine
	mailer               mail.Sender
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
	secureCookies        bool
	appBaseURL           string
}

// Config bundles the collaborators an AuthHandler needs
type Config struct {
	DB                   *gorm.DB
	JWTManager           *authutil.JWTManager
	Ledger               *authutil.TokenLedger
	CaptchaEngine        *captcha.Engine
	Mailer               mail.Sender
	BruteForceProtection *middleware.BruteForceProtection
	SecureCookies        bool
	AppBaseURL           string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg Config) *AuthHandler {
	return &AuthHandler{
		db:                   cfg.DB,
		issuer:               authutil.NewTokenIssuer(cfg.JWTManager, cfg.Ledger),
		jwtManager:           cfg.JWTManager,
		ledger:               cfg.Ledger,
		captchaEngine:        cfg.CaptchaEngine,
		mailer:               cfg.Mailer,
		bruteForceProtection: cfg.BruteForceProtection,
		validator:            validation.NewValidator(),
		secureCookies:        cfg.SecureCookies,
		appBaseURL:           cfg.AppBaseURL,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Captcha  string `json:"captcha" validate:"required"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// Register handles user registration. Registration is open to anonymous
// visitors and therefore captcha-gated.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
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

	email := validation.NormalizeEmail(req.Email)

	// Check if user already exists
	var existingUser model.User
	if err := h.db.Where("email = ? OR name = ?", email, req.Name).First(&existingUser).Error; err == nil {
		return response.Conflict(c, "User with this name or email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         model.RoleUser,
	}

	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create user")
	}

	return response.Created(c, toUserResponse(&user))
}
