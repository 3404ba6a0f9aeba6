package services

import (
	"context"
	"errors"
	"testing"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() UserInput {
	return UserInput{
		Username: "farmer1",
		Password: "secret",
		Email:    "Farmer1@Example.com",
		Roles:    "farmer",
		Port:     5000,
	}
}

func TestRegister(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "farmer1@example.com", user.Email)
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "secret"))
}

func TestRegister_Duplicate(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, store.ErrConflict)

	other := validInput()
	other.Username = "farmer2"
	_, err = svc.Register(context.Background(), other)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), UserInput{Password: "abc", Email: "nope", Port: 70000})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	messages := make(map[string]string)
	for _, f := range verr.Fields {
		messages[f.Field] = f.Message
	}
	assert.Equal(t, map[string]string{
		"username": "Username is required",
		"password": "Password must be at least 5 characters",
		"email":    "Invalid email address",
		"roles":    "Role is required",
		"port":     "Port must be a valid integer between 1 and 65535",
	}, messages)
}

func TestAuthenticate(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	registered, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "farmer1", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, errWrong := svc.Authenticate(context.Background(), "farmer1", "wrong-password")
	_, errUnknown := svc.Authenticate(context.Background(), "nobody", "secret")
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong, errUnknown)
}

func TestUpdateProfile_OnlyEmailAndPort(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	email := "new@example.com"
	port := 6000
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdateInput{Email: &email, Port: &port})
	require.NoError(t, err)

	assert.Equal(t, email, updated.Email)
	assert.Equal(t, port, updated.Port)
	assert.Equal(t, user.Username, updated.Username)
	assert.Equal(t, user.Roles, updated.Roles)
}

func TestUpdate_EmptyPatch(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	_, err := svc.Update(context.Background(), uuid.New(), UserUpdateInput{})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUpdate_RehashesPassword(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	password := "another-secret"
	updated, err := svc.Update(context.Background(), user.ID, UserUpdateInput{Password: &password})
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(updated.PasswordHash, password))
}

func TestChangePassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo)
	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	t.Run("mismatch is rejected before any write", func(t *testing.T) {
		err := svc.ChangePassword(context.Background(), user.ID, "newpass", "other")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, 0, repo.updates)
	})

	t.Run("too short is rejected before any write", func(t *testing.T) {
		err := svc.ChangePassword(context.Background(), user.ID, "abc", "abc")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, 0, repo.updates)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "newpass", "newpass"))
		_, err := svc.Authenticate(context.Background(), "farmer1", "newpass")
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.ChangePassword(context.Background(), uuid.New(), "newpass", "newpass")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())
	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	deleted, err := svc.Delete(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, deleted.ID)

	_, err = svc.GetByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
