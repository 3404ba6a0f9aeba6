package handlers

import (
	"net/http"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var userMessages = errorMessages{
	notFound: "User not found",
	conflict: "Username or email already exists",
}

// UserHandler provides user management and profile endpoints.
type UserHandler struct {
	users *services.UserService
	responder
}

// NewUserHandler constructs a UserHandler. In development internal error
// details are included in responses.
func NewUserHandler(users *services.UserService, log logging.Logger, dev bool) *UserHandler {
	return &UserHandler{
		users:     users,
		responder: newResponder(log, dev, MessageStyle),
	}
}

// UserRouter registers user routes. Every route requires authMiddleware.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Put("/change-password", handler.ChangePassword)
	r.Get("/get-user-info/{username}", handler.GetUserInfo)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

// ListUsers returns every user without password hashes.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser registers a user on behalf of an authenticated caller.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, userMessages)
		return
	}

	user, err := h.users.Create(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser returns one user by id.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser applies a partial update to a user.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req UserUpdateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err, userMessages)
		return
	}

	user, err := h.users.Update(r.Context(), id, services.UserUpdateInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Roles:    req.Roles,
		Port:     req.Port,
	})
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user by id.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Message: "User deleted successfully", User: &user})
}

// GetProfile returns the authenticated user.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the authenticated user's email or port.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req ProfileUpdateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err, userMessages)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, services.ProfileUpdateInput{
		Email: req.Email,
		Port:  req.Port,
	})
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword sets a new password for the authenticated user.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, userMessages)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.NewPassword, req.ConfirmPassword); err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

// GetUserInfo returns the public fields of a user looked up by username.
func (h *UserHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err, userMessages)
		return
	}
	writeJSON(w, http.StatusOK, user.Info())
}

func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Errors: []services.FieldError{
			{Field: "id", Message: "Invalid user ID"},
		}})
		return uuid.Nil, false
	}
	return id, true
}

func (h *UserHandler) currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, msgTokenRequired)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, msgMissingUserID)
		return uuid.Nil, false
	}
	return id, true
}

// UserRequest is the body for registration and user creation.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Roles    string `json:"roles"`
	Port     int    `json:"port"`
}

func (req UserRequest) input() services.UserInput {
	return services.UserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Roles:    req.Roles,
		Port:     req.Port,
	}
}

type UserUpdateRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Email    *string `json:"email"`
	Roles    *string `json:"roles"`
	Port     *int    `json:"port"`
}

type ProfileUpdateRequest struct {
	Email *string `json:"email"`
	Port  *int    `json:"port"`
}

type ChangePasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
