package types

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted long-lived credential.
// A token past ExpiresAt is invalid even if the row still exists.
type RefreshToken struct {
	// Token is the signed refresh token string.
	Token string `json:"refresh_token" db:"refresh_token"`

	// UserID references the owning user.
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// ExpiresAt is when the token stops being honoured.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is when the token was stored.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
