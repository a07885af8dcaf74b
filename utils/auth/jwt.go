package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

const (
	// DefaultLifetime is how long a session credential lives by default
	DefaultLifetime = 12 * time.Hour
	// RememberLifetime is the extended lifetime for "remember me" sessions
	RememberLifetime = 7 * 24 * time.Hour
)

// JWTConfig holds credential signing configuration
type JWTConfig struct {
	Secret string
	Issuer string
}

// Claims is the payload of a signed session credential. The anti-forgery
// nonce is bound into the credential and must be echoed back by the client
// in the X-Xsrf-Token header on every authenticated request.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Name      string `json:"name"`
	XSRFToken string `json:"xsrf_token"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies session credentials
type JWTManager struct {
	config JWTConfig
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{
		config: config,
	}
}

// Lifetime returns the credential lifetime for the given remember flag
func Lifetime(remember bool) time.Duration {
	if remember {
		return RememberLifetime
	}
	return DefaultLifetime
}

// SignCredential signs a session credential for the user carrying the given
// anti-forgery nonce. Returns the signed token and its deadline.
func (j *JWTManager) SignCredential(userID uint, name, nonce string, remember bool) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(Lifetime(remember))

	claims := Claims{
		UserID:    userID,
		Name:      name,
		XSRFToken: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			Subject:   name,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(j.config.Secret))
	return signedToken, expiresAt, err
}

// ValidateCredential verifies signature and expiry and returns the claims
func (j *JWTManager) ValidateCredential(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(j.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
