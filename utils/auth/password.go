package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the floor applied to every password the API
// accepts: registration, reset and change alike.
const MinPasswordLength = 8

// hashCost is the bcrypt work factor used for stored credentials.
const hashCost = 12

var (
	// ErrPasswordTooShort flags a candidate password below MinPasswordLength.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrWrongPassword is returned when a password does not match the stored hash.
	ErrWrongPassword = errors.New("wrong password")
)

// HashPassword enforces the length floor and returns a bcrypt hash
// ready for storage. Callers surface ErrPasswordTooShort as a client
// error and everything else as an internal one.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a candidate password against a stored hash. A
// plain mismatch comes back as ErrWrongPassword so callers can tell it
// apart from a corrupt or truncated hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}
