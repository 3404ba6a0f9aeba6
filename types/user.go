package types

import (
	"time"

	"github.com/google/uuid"
)

// User is an account of the users service.
type User struct {
	// ID is the generated identifier of the user.
	ID uuid.UUID `json:"user_id" db:"user_id"`

	// Username is the unique login name.
	Username string `json:"username" db:"username"`

	// PasswordHash is the bcrypt hash of the password.
	// It is never exposed in API responses.
	PasswordHash string `json:"-" db:"pwd"`

	// Email is the user's email address. Unique across users.
	Email string `json:"email" db:"email"`

	// Roles is the role label carried into access tokens (e.g. "farmer").
	Roles string `json:"roles" db:"roles"`

	// Port is the service port associated with the user's station.
	Port int `json:"port" db:"port"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserInfo is the public subset of a user returned by username lookups.
type UserInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Roles    string `json:"roles"`
}

// Info returns the public subset of the user.
func (u User) Info() UserInfo {
	return UserInfo{Username: u.Username, Email: u.Email, Roles: u.Roles}
}

// UserUpdate lists the user fields that may be changed after creation.
// Nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Roles        *string
	Port         *int
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil && u.Roles == nil && u.Port == nil
}
