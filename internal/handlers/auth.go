package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/internal/store"
	"github.com/corn-moisture/platform/types"
	"github.com/go-chi/chi/v5"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/v1/auth/refresh-token"
)

// AuthHandler provides registration and session endpoints.
type AuthHandler struct {
	users        *services.UserService
	sessions     *services.SessionService
	secureCookie bool
	responder
}

// NewAuthHandler constructs an AuthHandler. In development the refresh
// cookie is sent without the Secure flag.
func NewAuthHandler(users *services.UserService, sessions *services.SessionService, log logging.Logger, dev bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		secureCookie: !dev,
		responder:    newResponder(log, dev, MessageStyle),
	}
}

// AuthRouter registers registration and session routes under /v1.
// loginLimit wraps only the login route.
func AuthRouter(r chi.Router, handler *AuthHandler, loginLimit func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Route("/auth", func(r chi.Router) {
		if loginLimit != nil {
			r.With(loginLimit).Post("/login", handler.Login)
		} else {
			r.Post("/login", handler.Login)
		}
		r.Post("/refresh-token", handler.RefreshToken)
		r.Delete("/refresh-token", handler.Logout)
	})
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, errorMessages{})
		return
	}

	user, err := h.users.Register(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err, errorMessages{conflict: "Username or email already exists"})
		return
	}

	writeJSON(w, http.StatusCreated, UserEnvelope{Message: "User registered successfully", User: &user})
}

// Login verifies credentials, returns an access token and sets the refresh cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, errorMessages{})
		return
	}

	session, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err, errorMessages{})
		return
	}

	h.setRefreshCookie(w, session.RefreshToken, session.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// RefreshToken rotates the refresh cookie and issues a new access token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeMessage(w, http.StatusUnauthorized, "Refresh token is required.")
		return
	}

	session, err := h.sessions.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, services.ErrTokenExpired) || errors.Is(err, store.ErrNotFound) {
			h.clearRefreshCookie(w)
		}
		h.fail(w, r, err, errorMessages{notFound: "Refresh token not found"})
		return
	}

	h.setRefreshCookie(w, session.RefreshToken, session.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// Logout revokes the refresh cookie. It succeeds even when the token is unknown.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Logout(r.Context(), cookie.Value); err != nil && !errors.Is(err, store.ErrNotFound) {
			h.internal(w, r, err)
			return
		}
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionResponse struct {
	AccessToken string `json:"accessToken"`
	Roles       string `json:"roles"`
	Port        int    `json:"port"`
}

func newSessionResponse(session services.Session) SessionResponse {
	return SessionResponse{
		AccessToken: session.AccessToken,
		Roles:       session.User.Roles,
		Port:        session.User.Port,
	}
}

// UserEnvelope wraps a user with a status message.
type UserEnvelope struct {
	Message string      `json:"message"`
	User    *types.User `json:"user,omitempty"`
}
