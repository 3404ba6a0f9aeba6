package services

import (
	"context"
	"strings"
	"time"

	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

// RefreshTokenService exposes direct CRUD over stored refresh tokens.
type RefreshTokenService struct {
	repo RefreshTokenRepository
}

// NewRefreshTokenService constructs a RefreshTokenService backed by repo.
func NewRefreshTokenService(repo RefreshTokenRepository) *RefreshTokenService {
	return &RefreshTokenService{repo: repo}
}

func (s *RefreshTokenService) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	if strings.TrimSpace(token) == "" {
		return types.RefreshToken{}, NewValidationError("token", "Token is required")
	}
	return s.repo.Find(ctx, token)
}

// Create stores a refresh token for userID after validating every field.
func (s *RefreshTokenService) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (types.RefreshToken, error) {
	verr := &ValidationError{}
	if userID == uuid.Nil {
		verr.add("userId", "User ID is required")
	}
	if strings.TrimSpace(token) == "" {
		verr.add("token", "Token is required")
	}
	if expiresAt.IsZero() {
		verr.add("expiresAt", "Expiry date is required")
	}
	if err := verr.err(); err != nil {
		return types.RefreshToken{}, err
	}
	return s.repo.Create(ctx, userID, token, expiresAt)
}

// Update replaces oldToken with newToken and its new expiry.
func (s *RefreshTokenService) Update(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (types.RefreshToken, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(newToken) == "" {
		verr.add("newToken", "New token is required")
	}
	if newExpiresAt.IsZero() {
		verr.add("newExpiresAt", "New expiry date is required")
	}
	if err := verr.err(); err != nil {
		return types.RefreshToken{}, err
	}
	return s.repo.Update(ctx, oldToken, newToken, newExpiresAt)
}

func (s *RefreshTokenService) Delete(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}
