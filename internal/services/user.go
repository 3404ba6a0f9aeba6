package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/store"
	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

const minPasswordLength = 5

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) (types.User, error)
}

// UserInput is the full set of fields accepted when a user is created.
type UserInput struct {
	Username string
	Password string
	Email    string
	Roles    string
	Port     int
}

// UserUpdateInput holds the fields an administrator may change on a user.
type UserUpdateInput struct {
	Username *string
	Password *string
	Email    *string
	Roles    *string
	Port     *int
}

// ProfileUpdateInput holds the fields a user may change on their own profile.
type ProfileUpdateInput struct {
	Email *string
	Port  *int
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

// NewUserService constructs a UserService backed by repo.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register validates and stores a new account. Duplicates yield store.ErrConflict.
func (s *UserService) Register(ctx context.Context, in UserInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Roles = strings.TrimSpace(in.Roles)
	if err := validateUserInput(in); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	return s.create(ctx, in)
}

// Create stores a user without the prior uniqueness read; the unique index
// still rejects duplicates.
func (s *UserService) Create(ctx context.Context, in UserInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Roles = strings.TrimSpace(in.Roles)
	if err := validateUserInput(in); err != nil {
		return types.User{}, err
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in UserInput) (types.User, error) {
	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, types.User{
		Username:     in.Username,
		PasswordHash: hashed,
		Email:        in.Email,
		Roles:        in.Roles,
		Port:         in.Port,
	})
}

// Authenticate checks username and password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a comparison so response time does not reveal the miss.
			auth.CheckPassword(dummyHash(), password)
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// List returns every user in creation order.
func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// GetByID returns store.ErrNotFound when no user has id.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Update validates the supplied fields and applies only those that were set.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UserUpdateInput) (types.User, error) {
	verr := &ValidationError{}
	var upd types.UserUpdate

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			verr.add("username", "Username is required")
		}
		upd.Username = &username
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !validEmail(email) {
			verr.add("email", "Invalid email address")
		}
		upd.Email = &email
	}
	if in.Roles != nil {
		roles := strings.TrimSpace(*in.Roles)
		if roles == "" {
			verr.add("roles", "Role is required")
		}
		upd.Roles = &roles
	}
	if in.Port != nil {
		if !validPort(*in.Port) {
			verr.add("port", "Port must be a valid integer between 1 and 65535")
		}
		upd.Port = in.Port
	}
	if in.Password != nil && len(*in.Password) < minPasswordLength {
		verr.add("password", "Password must be at least 5 characters")
	}
	if err := verr.err(); err != nil {
		return types.User{}, err
	}

	if in.Password != nil {
		hashed, err := auth.HashPassword(*in.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		upd.PasswordHash = &hashed
	}
	if upd.Empty() {
		return types.User{}, NewValidationError("body", "No updatable fields provided")
	}
	return s.repo.Update(ctx, id, upd)
}

// UpdateProfile applies a self-service change; only email and port are writable.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdateInput) (types.User, error) {
	return s.Update(ctx, id, UserUpdateInput{Email: in.Email, Port: in.Port})
}

// ChangePassword validates both fields before touching the store.
func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, newPassword, confirmPassword string) error {
	verr := &ValidationError{}
	if len(newPassword) < minPasswordLength {
		verr.add("newPassword", "Password must be at least 5 characters")
	}
	if confirmPassword != newPassword {
		verr.add("confirmPassword", "Passwords do not match")
	}
	if err := verr.err(); err != nil {
		return err
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.repo.Update(ctx, id, types.UserUpdate{PasswordHash: &hashed})
	return err
}

// Delete removes the user and returns the deleted row.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.Delete(ctx, id)
}

func validateUserInput(in UserInput) error {
	verr := &ValidationError{}
	if in.Username == "" {
		verr.add("username", "Username is required")
	}
	if len(in.Password) < minPasswordLength {
		verr.add("password", "Password must be at least 5 characters")
	}
	if !validEmail(in.Email) {
		verr.add("email", "Invalid email address")
	}
	if in.Roles == "" {
		verr.add("roles", "Role is required")
	}
	if !validPort(in.Port) {
		verr.add("port", "Port must be a valid integer between 1 and 65535")
	}
	return verr.err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, ".")
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

var (
	dummyOnce sync.Once
	dummy     string
)

func dummyHash() string {
	dummyOnce.Do(func() {
		dummy, _ = auth.HashPassword(uuid.NewString())
	})
	return dummy
}
