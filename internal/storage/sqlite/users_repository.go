package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/users"
)

type UserRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func (r *UserRepository) CreateUser(ctx context.Context, params users.CreateParams) (_ *users.User, err error) {
	defer observe("users.create", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ts := time.Now().UTC()
	formatted := ts.Format(timestampLayout)
	_, err = r.db.ExecContext(ctx, `
INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		strings.ToLower(params.ID), params.Name, params.Email, params.PasswordHash, formatted, formatted,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, classify(fmt.Errorf("insert user: %w", err))
	}
	return &users.User{
		ID:           strings.ToLower(params.ID),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	defer observe("users.get_by_email", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
  FROM users
 WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (_ *users.User, err error) {
	defer observe("users.get_by_id", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
  FROM users
 WHERE id = ?`, strings.ToLower(id))
	return scanUser(row)
}

func scanUser(row scanner) (*users.User, error) {
	var (
		user                 users.User
		createdAt, updatedAt string
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get user: %w", err))
	}
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
