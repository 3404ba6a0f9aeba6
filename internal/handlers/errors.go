package handlers

import (
	"errors"
	"net/http"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/internal/store"
)

const (
	msgInvalidCredentials = "Username or password is incorrect"
	msgTokenRequired      = "Authentication token is required."
	msgInvalidToken       = "Invalid or expired token."
	msgMissingUserID      = "Invalid token structure: userId missing."
	msgResourceNotFound   = "Resource not found"
)

// ErrorStyle selects the JSON shape used for error bodies.
type ErrorStyle int

const (
	// MessageStyle writes {"message": ...}.
	MessageStyle ErrorStyle = iota
	// ErrorFieldStyle writes {"error": ...}.
	ErrorFieldStyle
)

// errorMessages are the route-specific texts for 404 and 409.
type errorMessages struct {
	notFound string
	conflict string
}

// responder maps service errors onto HTTP responses.
type responder struct {
	log   logging.Logger
	dev   bool
	style ErrorStyle
}

func newResponder(log logging.Logger, dev bool, style ErrorStyle) responder {
	if log == nil {
		log = logging.Nop()
	}
	return responder{log: log, dev: dev, style: style}
}

func (rs responder) write(w http.ResponseWriter, status int, message string) {
	if rs.style == ErrorFieldStyle {
		writeError(w, status, message)
		return
	}
	writeMessage(w, status, message)
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error, msgs errorMessages) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Errors: verr.Fields})
	case errors.Is(err, store.ErrNotFound):
		rs.write(w, http.StatusNotFound, orDefault(msgs.notFound, msgResourceNotFound))
	case errors.Is(err, store.ErrConflict):
		rs.write(w, http.StatusConflict, orDefault(msgs.conflict, "Resource already exists"))
	case errors.Is(err, services.ErrInvalidCredentials):
		rs.write(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, auth.ErrMissingUserID):
		rs.write(w, http.StatusBadRequest, msgMissingUserID)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, services.ErrTokenExpired):
		rs.write(w, http.StatusForbidden, msgInvalidToken)
	default:
		rs.internal(w, r, err)
	}
}

// internal logs err and writes a 500. Details reach the client only in development.
func (rs responder) internal(w http.ResponseWriter, r *http.Request, err error) {
	rs.log.Error(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, internalErrorBody(rs.style, rs.dev, err.Error()))
}

func internalErrorBody(style ErrorStyle, dev bool, detail string) any {
	if style == ErrorFieldStyle {
		body := map[string]string{"error": "Internal server error"}
		if dev {
			body["details"] = detail
		}
		return body
	}
	body := map[string]string{"message": "Internal Server Error"}
	if dev {
		body["stack"] = detail
	}
	return body
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ValidationResponse lists every rejected field.
type ValidationResponse struct {
	Errors []services.FieldError `json:"errors"`
}
