package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// ResetTokenBytes is the entropy of a password-reset token
	ResetTokenBytes = 32
	// NonceBytes is the entropy of a session anti-forgery nonce
	NonceBytes = 32
)

// RandomHex returns n cryptographically secure random bytes hex-encoded
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewResetToken generates a high-entropy password-reset token
func NewResetToken() (string, error) {
	return RandomHex(ResetTokenBytes)
}

// NewNonce generates a high-entropy anti-forgery nonce
func NewNonce() (string, error) {
	return RandomHex(NonceBytes)
}

// RandomKey returns n cryptographically secure random bytes
func RandomKey(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return buf, nil
}
