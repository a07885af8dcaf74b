package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/enigmarium/backend/model"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/captcha"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingMailer captures deliveries for assertions
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	Template  string
	Recipient string
	Vars      map[string]string
}

func (m *recordingMailer) Send(_ context.Context, template, recipient string, vars map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Template: template, Recipient: recipient, Vars: vars})
	return nil
}

type fixture struct {
	app           *fiber.App
	db            *gorm.DB
	captchaEngine *captcha.Engine
	mailer        *recordingMailer
	ledger        *authutil.TokenLedger
	jwtManager    *authutil.JWTManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.SessionToken{}, &model.PasswordResetToken{}))

	engine, err := captcha.NewEngine("sha256")
	require.NoError(t, err)

	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{Secret: "handler-secret", Issuer: "handler-test"})
	ledger := authutil.NewTokenLedger(db)
	mailer := &recordingMailer{}

	handler := NewAuthHandler(Config{
		DB:            db,
		JWTManager:    jwtManager,
		Ledger:        ledger,
		CaptchaEngine: engine,
		Mailer:        mailer,
		SecureCookies: false,
		AppBaseURL:    "http://localhost:3000",
	})
	gate := middleware.NewAuthMiddleware(jwtManager, ledger, db, false)

	app := fiber.New()
	app.Get("/captcha", handler.GetCaptcha)
	app.Post("/register", handler.Register)
	app.Post("/login", handler.Login)
	app.Get("/verify", handler.VerifyToken)
	app.Post("/logout", gate.AcceptUser(), handler.Logout)
	app.Post("/forgot-password", handler.ForgotPassword)
	app.Post("/reset-password", handler.ResetPassword)
	app.Post("/change-password", gate.AcceptUser(), handler.ChangePassword)
	app.Get("/profile", gate.AcceptUser(), handler.GetProfile)
	app.Put("/profile", gate.AcceptUser(), handler.UpdateProfile)

	return &fixture{
		app:           app,
		db:            db,
		captchaEngine: engine,
		mailer:        mailer,
		ledger:        ledger,
		jwtManager:    jwtManager,
	}
}

// solveCaptcha builds a valid solved payload against the fixture's engine
func (f *fixture) solveCaptcha(t *testing.T) string {
	t.Helper()
	challenge, err := f.captchaEngine.Create("", 7777)
	require.NoError(t, err)
	raw, err := json.Marshal(captcha.Payload{
		Algorithm: challenge.Algorithm,
		Challenge: challenge.Challenge,
		Salt:      challenge.Salt,
		Signature: challenge.Signature,
		Number:    7777,
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func (f *fixture) postJSON(t *testing.T, path string, body interface{}, cookies []*http.Cookie, headers map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *fixture) putJSON(t *testing.T, path string, body interface{}, cookies []*http.Cookie, headers map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *fixture) register(t *testing.T, name, email, password string) {
	t.Helper()
	resp := f.postJSON(t, "/register", RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Captcha:  f.solveCaptcha(t),
	}, nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// login returns the session cookie and the nonce header
func (f *fixture) login(t *testing.T, email, password string) (*http.Cookie, string) {
	t.Helper()
	resp := f.postJSON(t, "/login", LoginRequest{Email: email, Password: password}, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accessCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			accessCookie = c
		}
	}
	require.NotNil(t, accessCookie)
	nonce := resp.Header.Get(middleware.XSRFHeader)
	require.NotEmpty(t, nonce)
	return accessCookie, nonce
}

func decodeBody(t *testing.T, resp *http.Response) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestGetCaptcha(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/captcha", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "sha256", data["algorithm"])
	assert.NotEmpty(t, data["challenge"])
	assert.NotEmpty(t, data["salt"])
	assert.NotEmpty(t, data["signature"])
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	var user model.User
	require.NoError(t, f.db.Where("email = ?", "alice@example.com").First(&user).Error)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NoError(t, authutil.CheckPassword(user.PasswordHash, "password123"))
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	resp := f.postJSON(t, "/register", RegisterRequest{
		Name:     "alice",
		Email:    "other@example.com",
		Password: "password123",
		Captcha:  f.solveCaptcha(t),
	}, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterMalformedCaptcha(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/register", RegisterRequest{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "password123",
		Captcha:  "!!not-base64!!",
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterWrongCaptchaAnswer(t *testing.T) {
	f := newFixture(t)

	challenge, err := f.captchaEngine.Create("", 7777)
	require.NoError(t, err)
	raw, err := json.Marshal(captcha.Payload{
		Algorithm: challenge.Algorithm,
		Challenge: challenge.Challenge,
		Salt:      challenge.Salt,
		Signature: challenge.Signature,
		Number:    1234, // wrong solution
	})
	require.NoError(t, err)

	resp := f.postJSON(t, "/register", RegisterRequest{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "password123",
		Captcha:  base64.StdEncoding.EncodeToString(raw),
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginDeliversCredential(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	cookie, nonce := f.login(t, "alice@example.com", "password123")
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)

	// The nonce echoed in the header is the one bound into the credential
	claims, err := f.jwtManager.ValidateCredential(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, nonce, claims.XSRFToken)

	// And the ledger holds its shadow record
	live, err := f.ledger.IsValid(context.Background(), cookie.Value, claims.UserID)
	require.NoError(t, err)
	assert.True(t, live)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	resp := f.postJSON(t, "/login", LoginRequest{Email: "alice@example.com", Password: "wrong"}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRememberExtendsDeadline(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	resp := f.postJSON(t, "/login", LoginRequest{
		Email: "alice@example.com", Password: "password123", Remember: true,
	}, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rememberCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.RememberMeCookie {
			rememberCookie = c
		}
	}
	require.NotNil(t, rememberCookie)

	var entry model.SessionToken
	require.NoError(t, f.db.First(&entry).Error)
	assert.WithinDuration(t, time.Now().Add(authutil.RememberLifetime), entry.Deadline, 10*time.Second)
}

func TestVerifyTokenSoftCheck(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(cookie)
	req.Header.Set(middleware.XSRFHeader, nonce)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Revoke, then verify again: plain auth error, cookies untouched
	require.NoError(t, f.ledger.InvalidateAll(context.Background(), cookie.Value))

	req = httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(cookie)
	req.Header.Set(middleware.XSRFHeader, nonce)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "TOKEN_REVOKED", body.Error.Code)
	assert.Empty(t, resp.Cookies())
}

func TestLogoutRevokesCredential(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	resp := f.postJSON(t, "/logout", nil, []*http.Cookie{cookie}, map[string]string{middleware.XSRFHeader: nonce})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	live, err := f.ledger.IsValid(context.Background(), cookie.Value, 0)
	require.NoError(t, err)
	assert.False(t, live)
}

func TestForgotPasswordUniformReply(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	known := f.postJSON(t, "/forgot-password", ForgotPasswordRequest{Email: "alice@example.com"}, nil, nil)
	unknown := f.postJSON(t, "/forgot-password", ForgotPasswordRequest{Email: "nobody@example.com"}, nil, nil)

	assert.Equal(t, http.StatusOK, known.StatusCode)
	assert.Equal(t, http.StatusOK, unknown.StatusCode)

	// Identical bodies so responses leak nothing about account existence
	assert.Equal(t, decodeBody(t, known).Message, decodeBody(t, unknown).Message)

	// Only the real account got a token
	var count int64
	require.NoError(t, f.db.Model(&model.PasswordResetToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestForgotPasswordSupersedesPreviousToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	f.postJSON(t, "/forgot-password", ForgotPasswordRequest{Email: "alice@example.com"}, nil, nil)
	var first model.PasswordResetToken
	require.NoError(t, f.db.First(&first).Error)

	f.postJSON(t, "/forgot-password", ForgotPasswordRequest{Email: "alice@example.com"}, nil, nil)

	// At most one live token per user, and it is the newer one
	var tokens []model.PasswordResetToken
	require.NoError(t, f.db.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.NotEqual(t, first.Token, tokens[0].Token)
}

func TestResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, _ := f.login(t, "alice@example.com", "password123")

	f.postJSON(t, "/forgot-password", ForgotPasswordRequest{Email: "alice@example.com"}, nil, nil)
	var reset model.PasswordResetToken
	require.NoError(t, f.db.First(&reset).Error)

	resp := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          reset.Token,
		NewPassword:    "newpassword456",
		RepeatPassword: "newpassword456",
	}, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password rejected, new one works
	failed := f.postJSON(t, "/login", LoginRequest{Email: "alice@example.com", Password: "password123"}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, failed.StatusCode)
	f.login(t, "alice@example.com", "newpassword456")

	// The pre-reset session died with the old password
	live, err := f.ledger.IsValid(context.Background(), cookie.Value, 0)
	require.NoError(t, err)
	assert.False(t, live)

	// Single use: the consumed token is gone
	again := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          reset.Token,
		NewPassword:    "anotherpass789",
		RepeatPassword: "anotherpass789",
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, again.StatusCode)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	var user model.User
	require.NoError(t, f.db.Where("email = ?", "alice@example.com").First(&user).Error)
	require.NoError(t, f.db.Create(&model.PasswordResetToken{
		UserID:   user.ID,
		Token:    "expired-token",
		Deadline: time.Now().Add(-time.Minute),
	}).Error)

	resp := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          "expired-token",
		NewPassword:    "newpassword456",
		RepeatPassword: "newpassword456",
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetPasswordMismatchedRepeat(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	var user model.User
	require.NoError(t, f.db.Where("email = ?", "alice@example.com").First(&user).Error)
	require.NoError(t, f.db.Create(&model.PasswordResetToken{
		UserID:   user.ID,
		Token:    "live-token",
		Deadline: time.Now().Add(10 * time.Minute),
	}).Error)

	resp := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          "live-token",
		NewPassword:    "newpassword456",
		RepeatPassword: "different456",
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Passwords do not match", body.Error.Message)

	// The token was not consumed by the failed attempt
	var count int64
	require.NoError(t, f.db.Model(&model.PasswordResetToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResetPasswordDeadLinkReportedFirst(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	var user model.User
	require.NoError(t, f.db.Where("email = ?", "alice@example.com").First(&user).Error)
	require.NoError(t, f.db.Create(&model.PasswordResetToken{
		UserID:   user.ID,
		Token:    "expired-token",
		Deadline: time.Now().Add(-time.Minute),
	}).Error)

	// A dead link with mismatched passwords reports as a dead link, not
	// as a password mismatch
	resp := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          "expired-token",
		NewPassword:    "newpassword456",
		RepeatPassword: "different456",
	}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Invalid or expired reset link", body.Error.Message)
}

func TestResetPasswordTokenBurnFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	var user model.User
	require.NoError(t, f.db.Where("email = ?", "alice@example.com").First(&user).Error)
	require.NoError(t, f.db.Create(&model.PasswordResetToken{
		UserID:   user.ID,
		Token:    "live-token",
		Deadline: time.Now().Add(10 * time.Minute),
	}).Error)

	// Make the token burn fail underneath the handler
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("fail_token_burn", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*model.PasswordResetToken); ok {
			tx.AddError(errors.New("storage failure"))
		}
	}))
	t.Cleanup(func() { _ = f.db.Callback().Delete().Remove("fail_token_burn") })

	resp := f.postJSON(t, "/reset-password", ResetPasswordRequest{
		Token:          "live-token",
		NewPassword:    "newpassword456",
		RepeatPassword: "newpassword456",
	}, nil, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The password change rolled back with the failed burn, so the link
	// stays live and the old password still works
	var count int64
	require.NoError(t, f.db.Model(&model.PasswordResetToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	f.login(t, "alice@example.com", "password123")
}

func TestChangePasswordRotatesSessions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	resp := f.postJSON(t, "/change-password", ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	}, []*http.Cookie{cookie}, map[string]string{middleware.XSRFHeader: nonce})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	live, err := f.ledger.IsValid(context.Background(), cookie.Value, 0)
	require.NoError(t, err)
	assert.False(t, live)

	f.login(t, "alice@example.com", "newpassword456")
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	resp := f.postJSON(t, "/change-password", ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "newpassword456",
	}, []*http.Cookie{cookie}, map[string]string{middleware.XSRFHeader: nonce})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(cookie)
	req.Header.Set(middleware.XSRFHeader, nonce)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "alice", data["name"])
	assert.Equal(t, "alice@example.com", data["email"])
}

func TestUpdateProfileEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	resp := f.putJSON(t, "/profile", UpdateProfileRequest{Email: "Alice@NewHost.com"},
		[]*http.Cookie{cookie}, map[string]string{middleware.XSRFHeader: nonce})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user model.User
	require.NoError(t, f.db.Where("name = ?", "alice").First(&user).Error)
	assert.Equal(t, "alice@newhost.com", user.Email)
}

func TestUpdateProfileDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	f.register(t, "bob", "bob@example.com", "password123")
	cookie, nonce := f.login(t, "alice@example.com", "password123")

	resp := f.putJSON(t, "/profile", UpdateProfileRequest{Email: "bob@example.com"},
		[]*http.Cookie{cookie}, map[string]string{middleware.XSRFHeader: nonce})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var user model.User
	require.NoError(t, f.db.Where("name = ?", "alice").First(&user).Error)
	assert.Equal(t, "alice@example.com", user.Email)
}
