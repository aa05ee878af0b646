package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
)

// DefaultTokenTTL is how long an issued bearer token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer mints and verifies HS256 bearer tokens whose subject is the
// authenticated user id.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption adjusts a TokenIssuer during construction.
type IssuerOption func(*TokenIssuer)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *TokenIssuer) { i.ttl = ttl }
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer creates an issuer signing with the given secret.
func NewTokenIssuer(secret []byte, issuer string, opts ...IssuerOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	ti := &TokenIssuer{
		secret: secret,
		issuer: issuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti, nil
}

// Issue mints a signed token for the given user id.
func (i *TokenIssuer) Issue(userID string) (string, error) {
	now := i.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature and validity window and returns the
// subject user id.
func (i *TokenIssuer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", apperrors.New(apperrors.CodeAuthTokenInvalid, "invalid or expired token")
	}
	if claims.Subject == "" {
		return "", apperrors.New(apperrors.CodeAuthTokenInvalid, "token has no subject")
	}
	return claims.Subject, nil
}
