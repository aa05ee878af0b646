// Package auth covers credential handling for the vault API: password
// hashing and signed bearer tokens.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// HashPassword validates and hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperrors.New(apperrors.CodeUserPasswordTooShort,
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperrors.New(apperrors.CodeAuthCredentialsInvalid, "invalid email or password")
	}
	return nil
}
