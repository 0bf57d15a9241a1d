// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/hookpanel/internal/models"
)

// ErrExpired is returned when a consumed reset token was already past its expiry.
var ErrExpired = errors.New("record expired")

// CreatePasswordReset stores a newly issued reset token.
func (r *Repository) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, email, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		reset.TokenHash, reset.Email, reset.Expires, reset.Created)
	return err
}

// GetPasswordReset retrieves a reset token by hash.
func (r *Repository) GetPasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	err := r.db.GetContext(ctx, &reset, `SELECT * FROM password_resets WHERE token = ?`, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &reset, nil
}

// DeletePasswordReset deletes a token by hash. Deleting an unknown token is not an error.
func (r *Repository) DeletePasswordReset(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE token = ?`, tokenHash)
	return err
}

// DeleteExpiredPasswordResets deletes tokens that expired before now.
func (r *Repository) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ConsumePasswordReset removes the token row and, if it had not expired at
// now, sets passwordHash on the owning user. Both happen in one transaction,
// and the row is claimed with a single DELETE ... RETURNING, so concurrent
// callers holding the same token cannot both succeed; the loser gets
// ErrNotFound.
//
// An expired token is still deleted and ErrExpired is returned. A token whose
// user no longer exists is deleted and ErrNotFound is returned.
func (r *Repository) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.PasswordReset, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var reset models.PasswordReset
	err = tx.GetContext(ctx, &reset,
		`DELETE FROM password_resets WHERE token = ? RETURNING token, email, expires_at, created_at`,
		tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}

	var result error
	if reset.Expired(now) {
		result = ErrExpired
	} else {
		err = updateUserPassword(ctx, tx, reset.Email, passwordHash)
		switch {
		case errors.Is(err, ErrNotFound):
			result = ErrNotFound
		case err != nil:
			return nil, fmt.Errorf("update password: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &reset, result
}
