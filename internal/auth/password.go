package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when a login password does not match.
var ErrBadCredentials = errors.New("auth: bad credentials")

// HashPassword hashes a plaintext password using bcrypt with the
// default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password: hash: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
// Returns nil on match and ErrBadCredentials otherwise. An empty hash
// never matches, so password login stays off until one is configured.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}
