package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type usersFixture struct {
	router http.Handler
	issuer *auth.TokenIssuer
	users  *memUsers
	tokens *memTokens
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()

	users := newMemUsers()
	tokens := newMemTokens()
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	userService := services.NewUserService(users)
	sessionService := services.NewSessionService(userService, tokens, issuer, nil)
	requireAuth := RequireAuth(issuer)

	r := chi.NewRouter()
	r.NotFound(NotFound(MessageStyle))
	r.Get("/", Root)
	r.Get("/health", UsersHealth(time.Now()))
	r.Route("/v1", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(userService, sessionService, nil, true), nil)
		r.Route("/refresh-tokens", func(r chi.Router) {
			RefreshTokenRouter(r, NewRefreshTokenHandler(services.NewRefreshTokenService(tokens), nil, true), requireAuth)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, NewUserHandler(userService, nil, true), requireAuth)
		})
	})

	return &usersFixture{router: r, issuer: issuer, users: users, tokens: tokens}
}

func newDataRouter(repo *memPredictions) http.Handler {
	r := chi.NewRouter()
	r.NotFound(NotFound(ErrorFieldStyle))
	r.Get("/health", DataHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKey(testAPIKey, nil))
		r.Route("/predictions", func(r chi.Router) {
			PredictionRouter(r, NewPredictionHandler(services.NewPredictionService(repo), nil, false))
		})
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (f *usersFixture) register(t *testing.T, username, password string) {
	t.Helper()
	rec := doJSON(t, f.router, http.MethodPost, "/v1/register", map[string]any{
		"username": username,
		"password": password,
		"email":    username + "@example.com",
		"roles":    "farmer",
		"port":     5000,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *usersFixture) login(t *testing.T, username, password string) (SessionResponse, *http.Cookie) {
	t.Helper()
	rec := doJSON(t, f.router, http.MethodPost, "/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	return resp, cookie
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
