package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// User is an account that can own assets, be named as a beneficiary, initiate
// verification events and vote on approvals.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// CreateUserInput describes the data needed to register a user. PasswordHash
// must already be hashed; the domain never sees plaintext passwords.
type CreateUserInput struct {
	Email        string
	FullName     string
	PasswordHash string
}

// NewUser creates a user with a generated ID and normalized email.
func NewUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, apperrors.New(apperrors.CodeUserEmailInvalid, "a valid email address is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return User{}, apperrors.New(apperrors.CodeUserNameEmpty, "full name is required")
	}
	if input.PasswordHash == "" {
		return User{}, apperrors.New(apperrors.CodeUserPasswordTooShort, "password hash is required")
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	return User{
		ID:           userID,
		Email:        email,
		PasswordHash: input.PasswordHash,
		FullName:     fullName,
		CreatedAt:    now().UTC(),
	}, nil
}
