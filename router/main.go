package router

import (
	"log"
	"os"
	"time"

	"github.com/enigmarium/backend/config"
	"github.com/enigmarium/backend/database"
	achievement_handlers "github.com/enigmarium/backend/handlers/achievement"
	admin_handlers "github.com/enigmarium/backend/handlers/admin"
	auth_handlers "github.com/enigmarium/backend/handlers/auth"
	enigma_handlers "github.com/enigmarium/backend/handlers/enigma"
	series_handlers "github.com/enigmarium/backend/handlers/series"
	"github.com/enigmarium/backend/services/mail"
	"github.com/enigmarium/backend/services/spaces"
	"github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/cache"
	"github.com/enigmarium/backend/utils/captcha"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes wires every handler and gate onto the fiber app. The captcha
// engine is created by the caller at startup so a key-generation failure
// aborts the process before it accepts traffic.
func SetupRoutes(app *fiber.App, store database.Storage, captchaEngine *captcha.Engine, env *config.EnvironmentVariable) {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "enigmarium-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Issuer: jwtIssuer,
	})

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	ledger := auth.NewTokenLedger(db)
	secureCookies := env.IsProduction()

	// Redis is optional: without it logins proceed unthrottled
	var bruteForceProtection *middleware.BruteForceProtection
	if env.REDIS_URL != "" {
		redisCache, err := cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
		} else {
			bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
		}
	}

	// Mail falls back to log delivery outside production setups
	var mailer mail.Sender
	if env.SMTP_HOST != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host: env.SMTP_HOST,
			Port: env.SMTP_PORT,
			User: env.SMTP_USER,
			Pass: env.SMTP_PASS,
			From: env.MAIL_FROM,
		})
	} else {
		log.Println("SMTP not configured, emails will be logged instead")
		mailer = &mail.LogSender{}
	}

	// Spaces is optional: without it attachment uploads answer 503
	var uploader spaces.Uploader
	if env.DO_SPACES_KEY != "" {
		spacesUploader, err := spaces.NewSpacesUploader(spaces.Config{
			AccessKey: env.DO_SPACES_KEY,
			SecretKey: env.DO_SPACES_SECRET,
			Bucket:    env.DO_SPACES_BUCKET,
			Region:    env.DO_SPACES_REGION,
			Endpoint:  env.DO_SPACES_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize Spaces uploader: %v", err)
		} else {
			uploader = spacesUploader
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, ledger, db, secureCookies)

	authHandler := auth_handlers.NewAuthHandler(auth_handlers.Config{
		DB:                   db,
		JWTManager:           jwtManager,
		Ledger:               ledger,
		CaptchaEngine:        captchaEngine,
		Mailer:               mailer,
		BruteForceProtection: bruteForceProtection,
		SecureCookies:        secureCookies,
		AppBaseURL:           env.APP_BASE_URL,
	})
	seriesHandler := series_handlers.NewSeriesHandler(db)
	enigmaHandler := enigma_handlers.NewEnigmaHandler(db, uploader, captchaEngine)
	achievementHandler := achievement_handlers.NewAchievementHandler(db)
	adminHandler := admin_handlers.NewAdminHandler(db, ledger)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database is unreachable")
		}
		return response.SuccessWithMessage(c, "pong", nil)
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Captcha challenge (public)
	api.Get("/captcha", authHandler.GetCaptcha)

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckLockout(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Get("/verify", authHandler.VerifyToken)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.AcceptUser(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.AcceptUser(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.AcceptUser())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)
	profileGroup.Get("/achievements", achievementHandler.ListMyAchievements)

	// Series routes
	series := api.Group("/series")
	series.Get("/", authMiddleware.Optional(), seriesHandler.ListSeries)
	series.Get("/:slug", authMiddleware.Optional(), seriesHandler.GetSeries)
	series.Post("/", authMiddleware.AcceptModerator(), seriesHandler.CreateSeries)
	series.Put("/:id", authMiddleware.AcceptModerator(), seriesHandler.UpdateSeries)
	series.Delete("/:id", authMiddleware.AcceptModerator(), seriesHandler.DeleteSeries)

	// Enigma routes
	enigmas := api.Group("/enigmas")
	enigmas.Get("/:id", enigmaHandler.GetEnigma)
	enigmas.Post("/", authMiddleware.AcceptModerator(), enigmaHandler.CreateEnigma)
	enigmas.Put("/:id", authMiddleware.AcceptModerator(), enigmaHandler.UpdateEnigma)
	enigmas.Delete("/:id", authMiddleware.AcceptModerator(), enigmaHandler.DeleteEnigma)
	enigmas.Post("/:id/answer", authMiddleware.AcceptUser(), enigmaHandler.SubmitAnswer)
	enigmas.Post("/:id/report", enigmaHandler.SubmitReport)
	enigmas.Get("/:id/reports", authMiddleware.AcceptModerator(), enigmaHandler.ListReports)
	enigmas.Post("/:id/attachment", authMiddleware.AcceptModerator(), enigmaHandler.UploadAttachment)

	// Achievement routes
	achievements := api.Group("/achievements")
	achievements.Get("/", achievementHandler.ListAchievements)
	achievements.Post("/", authMiddleware.AcceptAdministrator(), achievementHandler.CreateAchievement)
	achievements.Delete("/:id", authMiddleware.AcceptAdministrator(), achievementHandler.DeleteAchievement)
	achievements.Post("/:id/award", authMiddleware.AcceptAdministrator(), achievementHandler.AwardAchievement)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.AcceptAdministrator())
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/role", adminHandler.ChangeRole)
	admin.Post("/users/:id/revoke-sessions", adminHandler.RevokeSessions)
}
