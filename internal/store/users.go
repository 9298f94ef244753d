package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/evidenca/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
	return u, err
}

// CreateUser creates a new user. A taken username is a validation error.
func CreateUser(ctx context.Context, db DBTX, username, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: username %q is taken", model.ErrValidation, username)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", dbErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", dbErr(err))
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db DBTX, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", dbErr(err))
	}
	return u, nil
}

// GetUserByUsername returns the live user with a username.
func GetUserByUsername(ctx context.Context, db DBTX, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", dbErr(err))
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db DBTX) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", dbErr(err))
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", dbErr(err))
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of live users.
func CountUsers(ctx context.Context, db DBTX) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", dbErr(err))
	}
	return n, nil
}

// UpdateUser updates a user's role.
func UpdateUser(ctx context.Context, db DBTX, id int64, role string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", dbErr(err))
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db DBTX, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", dbErr(err))
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", dbErr(err))
	}
	return nil
}
