package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

// RefreshTokenRepository handles persistence for users.user_tokens.
type RefreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository constructs a RefreshTokenRepository over db.
func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (types.RefreshToken, error) {
	const query = `
		INSERT INTO users.user_tokens (user_id, refresh_token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	rt := types.RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	if err := r.db.QueryRowContext(ctx, query, userID, token, expiresAt).Scan(&rt.CreatedAt); err != nil {
		return types.RefreshToken{}, translate("create refresh token", err)
	}
	return rt, nil
}

// Find returns ErrNotFound when token is unknown.
func (r *RefreshTokenRepository) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	const query = `
		SELECT refresh_token, user_id, expires_at, created_at
		FROM users.user_tokens
		WHERE refresh_token = $1`
	var rt types.RefreshToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RefreshToken{}, ErrNotFound
		}
		return types.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return rt, nil
}

// Update replaces oldToken with newToken in place.
func (r *RefreshTokenRepository) Update(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (types.RefreshToken, error) {
	const query = `
		UPDATE users.user_tokens
		SET refresh_token = $1, expires_at = $2
		WHERE refresh_token = $3
		RETURNING refresh_token, user_id, expires_at, created_at`
	var rt types.RefreshToken
	err := r.db.QueryRowContext(ctx, query, newToken, newExpiresAt, oldToken).Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RefreshToken{}, ErrNotFound
		}
		return types.RefreshToken{}, translate("update refresh token", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM users.user_tokens WHERE refresh_token = $1`
	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
