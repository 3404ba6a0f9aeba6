package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var refreshTokenMessages = errorMessages{
	notFound: "Refresh token not found",
	conflict: "Refresh token already exists",
}

// RefreshTokenHandler exposes CRUD over stored refresh tokens.
type RefreshTokenHandler struct {
	tokens *services.RefreshTokenService
	responder
}

// NewRefreshTokenHandler constructs a RefreshTokenHandler.
func NewRefreshTokenHandler(tokens *services.RefreshTokenService, log logging.Logger, dev bool) *RefreshTokenHandler {
	return &RefreshTokenHandler{
		tokens:    tokens,
		responder: newResponder(log, dev, MessageStyle),
	}
}

// RefreshTokenRouter registers refresh-token routes behind authMiddleware.
func RefreshTokenRouter(r chi.Router, handler *RefreshTokenHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Post("/", handler.CreateRefreshToken)
	r.Route("/{token}", func(r chi.Router) {
		r.Get("/", handler.GetRefreshToken)
		r.Put("/", handler.UpdateRefreshToken)
		r.Delete("/", handler.DeleteRefreshToken)
	})
}

// GetRefreshToken looks up a stored refresh token.
func (h *RefreshTokenHandler) GetRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Find(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err, refreshTokenMessages)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// CreateRefreshToken stores a refresh token for a user.
func (h *RefreshTokenHandler) CreateRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req CreateRefreshTokenRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, refreshTokenMessages)
		return
	}

	verr := &services.ValidationError{}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		verr.Fields = append(verr.Fields, services.FieldError{Field: "userId", Message: "User ID must be a valid UUID"})
	}
	expiresAt, err := parseTimestamp(req.ExpiresAt)
	if err != nil {
		verr.Fields = append(verr.Fields, services.FieldError{Field: "expiresAt", Message: "Expiry date must be an RFC 3339 timestamp"})
	}
	if len(verr.Fields) > 0 {
		h.fail(w, r, verr, refreshTokenMessages)
		return
	}

	if _, err := h.tokens.Create(r.Context(), userID, req.Token, expiresAt); err != nil {
		// A missing user surfaces as a foreign-key violation.
		h.fail(w, r, err, errorMessages{notFound: "User not found", conflict: refreshTokenMessages.conflict})
		return
	}
	writeMessage(w, http.StatusCreated, "Refresh token created successfully")
}

// UpdateRefreshToken swaps a stored token for a new one.
func (h *RefreshTokenHandler) UpdateRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateRefreshTokenRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, refreshTokenMessages)
		return
	}

	newExpiresAt, err := parseTimestamp(req.NewExpiresAt)
	if err != nil {
		h.fail(w, r, services.NewValidationError("newExpiresAt", "New expiry date must be an RFC 3339 timestamp"), refreshTokenMessages)
		return
	}

	updated, err := h.tokens.Update(r.Context(), chi.URLParam(r, "token"), req.NewToken, newExpiresAt)
	if err != nil {
		h.fail(w, r, err, refreshTokenMessages)
		return
	}
	writeJSON(w, http.StatusOK, RefreshTokenUpdatedResponse{
		Message:      "Refresh token updated successfully",
		UpdatedToken: updated,
	})
}

// DeleteRefreshToken removes a stored refresh token.
func (h *RefreshTokenHandler) DeleteRefreshToken(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Delete(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.fail(w, r, err, refreshTokenMessages)
		return
	}
	writeMessage(w, http.StatusOK, "Refresh token deleted successfully")
}

func parseTimestamp(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

type CreateRefreshTokenRequest struct {
	UserID    string `json:"userId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type UpdateRefreshTokenRequest struct {
	NewToken     string `json:"newToken"`
	NewExpiresAt string `json:"newExpiresAt"`
}

type RefreshTokenUpdatedResponse struct {
	Message      string             `json:"message"`
	UpdatedToken types.RefreshToken `json:"updatedToken"`
}
