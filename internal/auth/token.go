package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = 24 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken covers bad signatures, unexpected algorithms and expiry.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMissingUserID is returned for a well-signed token without a userId claim.
	ErrMissingUserID = errors.New("token is missing userId")
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a refresh token.
type RefreshClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies access and refresh tokens with separate secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. Non-positive TTLs fall back to
// DefaultAccessTokenTTL and DefaultRefreshTokenTTL.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// IssueAccessToken mints a stateless access token.
func (i *TokenIssuer) IssueAccessToken(userID uuid.UUID, username, role string) (string, error) {
	now := i.now()
	claims := AccessClaims{
		UserID:   userID.String(),
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	return sign(claims, i.accessSecret)
}

// IssueRefreshToken mints a refresh token and returns its expiry. Persisting
// it is the caller's job.
func (i *TokenIssuer) IssueRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := sign(claims, i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccessToken verifies an access token and returns its claims.
func (i *TokenIssuer) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token and returns its claims.
func (i *TokenIssuer) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// RefreshTTL is the lifetime given to new refresh tokens.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
