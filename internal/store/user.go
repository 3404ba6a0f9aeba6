package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

const userColumns = `user_id, username, pwd, email, roles, port, created_at, updated_at`

// UserRepository handles persistence for users.users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a UserRepository over db.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Roles,
		&user.Port,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users.users ORDER BY created_at, username`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users.users WHERE user_id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByUsername returns ErrNotFound when no user has that username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users.users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// Create inserts user and returns ErrConflict on a duplicate username or email.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users.users (username, pwd, email, roles, port)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_id, created_at, updated_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Roles,
		user.Port,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return types.User{}, translate("create user", err)
	}
	return user, nil
}

// Update writes only the fields set in upd and returns the stored row.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate) (types.User, error) {
	var set assignments
	if upd.Username != nil {
		set.add("username", *upd.Username)
	}
	if upd.Email != nil {
		set.add("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		set.add("pwd", *upd.PasswordHash)
	}
	if upd.Roles != nil {
		set.add("roles", *upd.Roles)
	}
	if upd.Port != nil {
		set.add("port", *upd.Port)
	}
	if set.empty() {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(
		`UPDATE users.users SET %s, updated_at = NOW() WHERE user_id = $%d RETURNING %s`,
		set.set(), set.next(), userColumns,
	)
	args := append(set.args, id)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, translate("update user", err)
	}
	return user, nil
}

// Delete removes the user and returns the deleted row.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) (types.User, error) {
	const query = `DELETE FROM users.users WHERE user_id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("delete user: %w", err)
	}
	return user, nil
}
