package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

// CreateUser inserts a user account; duplicate emails report ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, full_name, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser returns one user account by id.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if err := s.ready(); err != nil {
		return domain.User{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM users WHERE id = ?`,
		strings.TrimSpace(userID),
	)
	return scanUser(row)
}

// GetUserByEmail returns one user account by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if err := s.ready(); err != nil {
		return domain.User{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (domain.User, error) {
	var user domain.User
	var createdAt int64
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, storage.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}
