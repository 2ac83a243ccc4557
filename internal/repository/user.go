package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse/gatehouse/internal/model"
)

// CreateAccount inserts a new account stamped with the current time.
// Concurrent calls for the same identity race on the unique constraint:
// exactly one succeeds and the rest get ErrIdentityExists.
func (r *Repository) CreateAccount(ctx context.Context, identity, passwordHash string) error {
	query := `
		INSERT INTO users (id, identity, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		newAccountID(),
		identity,
		passwordHash,
		r.now().UTC(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdentityExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindByIdentity retrieves an account by exact identity match.
func (r *Repository) FindByIdentity(ctx context.Context, identity string) (*model.UserAccount, error) {
	query := `
		SELECT id, identity, password_hash, created_at
		FROM users
		WHERE identity = $1
	`

	var user model.UserAccount
	err := r.pool.QueryRow(ctx, query, identity).Scan(
		&user.ID,
		&user.Identity,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by identity: %w", err)
	}

	return &user, nil
}

// UpdatePassword replaces the stored hash and reports whether a row changed.
func (r *Repository) UpdatePassword(ctx context.Context, identity, newHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $1
		WHERE identity = $2
	`

	tag, err := r.pool.Exec(ctx, query, newHash, identity)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
