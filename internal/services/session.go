package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

// RefreshTokenRepository defines persistence operations for refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (types.RefreshToken, error)
	Find(ctx context.Context, token string) (types.RefreshToken, error)
	Update(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (types.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}

// Session is the result of a successful login or refresh.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             types.User
}

// SessionService issues, rotates and revokes token pairs.
type SessionService struct {
	users  *UserService
	tokens RefreshTokenRepository
	issuer *auth.TokenIssuer
	log    logging.Logger
	now    func() time.Time
}

// NewSessionService constructs a SessionService. A nil log discards output.
func NewSessionService(users *UserService, tokens RefreshTokenRepository, issuer *auth.TokenIssuer, log logging.Logger) *SessionService {
	if log == nil {
		log = logging.Nop()
	}
	return &SessionService{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		log:    log,
		now:    time.Now,
	}
}

// Login authenticates the user and persists a fresh refresh token.
func (s *SessionService) Login(ctx context.Context, username, password string) (Session, error) {
	verr := &ValidationError{}
	if username == "" {
		verr.add("username", "Username is required")
	}
	if password == "" {
		verr.add("password", "Password is required")
	}
	if err := verr.err(); err != nil {
		return Session{}, err
	}

	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.log.Warn(ctx, "login rejected", "username", username)
		}
		return Session{}, err
	}

	access, err := s.issuer.IssueAccessToken(user.ID, user.Username, user.Roles)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, expiresAt, err := s.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if _, err := s.tokens.Create(ctx, user.ID, refresh, expiresAt); err != nil {
		return Session{}, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID.String())
	return Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: expiresAt,
		User:             user,
	}, nil
}

// Refresh rotates a stored refresh token and issues a new access token.
// The old token stops working once this returns.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return Session{}, err
	}

	stored, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if stored.Expired(s.now()) {
		if err := s.tokens.Delete(ctx, refreshToken); err != nil {
			s.log.Warn(ctx, "delete expired refresh token", "error", err)
		}
		return Session{}, ErrTokenExpired
	}
	if stored.UserID.String() != claims.UserID {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return Session{}, err
	}

	access, err := s.issuer.IssueAccessToken(user.ID, user.Username, user.Roles)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	next, expiresAt, err := s.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if _, err := s.tokens.Update(ctx, refreshToken, next, expiresAt); err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:      access,
		RefreshToken:     next,
		RefreshExpiresAt: expiresAt,
		User:             user,
	}, nil
}

// Logout revokes the refresh token.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Delete(ctx, refreshToken)
}
