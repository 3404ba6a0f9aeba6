package services

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for both an unknown username and a
	// wrong password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned for a stored refresh token past its expiry.
	ErrTokenExpired = errors.New("refresh token expired")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// err returns nil when nothing was added.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
