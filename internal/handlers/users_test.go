package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_RequireAuth(t *testing.T) {
	f := newUsersFixture(t)

	rec := doJSON(t, f.router, http.MethodGet, "/v1/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsers_CRUD(t *testing.T) {
	f := newUsersFixture(t)
	f.register(t, "admin", "secret")
	session, _ := f.login(t, "admin", "secret")
	auth := bearer(session.AccessToken)

	rec := doJSON(t, f.router, http.MethodPost, "/v1/users", map[string]any{
		"username": "farmer2",
		"password": "secret",
		"email":    "farmer2@example.com",
		"roles":    "farmer",
		"port":     5001,
	}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, f.router, http.MethodGet, "/v1/users", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = doJSON(t, f.router, http.MethodPut, "/v1/users/"+created.ID, map[string]any{"roles": "admin", "port": 6000}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"roles":"admin"`)

	rec = doJSON(t, f.router, http.MethodPut, "/v1/users/"+created.ID, map[string]any{"user_id": uuid.NewString()}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, f.router, http.MethodDelete, "/v1/users/"+created.ID, nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"User deleted successfully"`)

	rec = doJSON(t, f.router, http.MethodGet, "/v1/users/"+created.ID, nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"User not found"}`, rec.Body.String())

	rec = doJSON(t, f.router, http.MethodGet, "/v1/users/not-a-uuid", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_Profile(t *testing.T) {
	f := newUsersFixture(t)
	f.register(t, "farmer1", "secret")
	session, _ := f.login(t, "farmer1", "secret")
	auth := bearer(session.AccessToken)

	rec := doJSON(t, f.router, http.MethodGet, "/v1/users/profile", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"farmer1"`)

	rec = doJSON(t, f.router, http.MethodPut, "/v1/users/profile", map[string]any{"email": "new@example.com", "port": 7000}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"new@example.com"`)
	assert.Contains(t, rec.Body.String(), `"port":7000`)

	rec = doJSON(t, f.router, http.MethodPut, "/v1/users/profile", map[string]any{"roles": "admin"}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	user, err := f.users.GetByUsername(t.Context(), "farmer1")
	require.NoError(t, err)
	assert.Equal(t, "farmer", user.Roles)
}

func TestUsers_ChangePassword(t *testing.T) {
	f := newUsersFixture(t)
	f.register(t, "farmer1", "secret")
	session, _ := f.login(t, "farmer1", "secret")
	auth := bearer(session.AccessToken)

	rec := doJSON(t, f.router, http.MethodPut, "/v1/users/change-password", map[string]string{
		"newPassword":     "newpass",
		"confirmPassword": "different",
	}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.users.updates)

	rec = doJSON(t, f.router, http.MethodPut, "/v1/users/change-password", map[string]string{
		"newPassword":     "newpass",
		"confirmPassword": "newpass",
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Password updated successfully"}`, rec.Body.String())

	f.login(t, "farmer1", "newpass")
}

func TestUsers_GetUserInfo(t *testing.T) {
	f := newUsersFixture(t)
	f.register(t, "farmer1", "secret")
	session, _ := f.login(t, "farmer1", "secret")

	rec := doJSON(t, f.router, http.MethodGet, "/v1/users/get-user-info/farmer1", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"farmer1","email":"farmer1@example.com","roles":"farmer"}`, rec.Body.String())

	rec = doJSON(t, f.router, http.MethodGet, "/v1/users/get-user-info/ghost", nil, bearer(session.AccessToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
