package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func (r *UserRepository) CreateUser(ctx context.Context, params users.CreateParams) (_ *users.User, err error) {
	defer observe("users.create", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user := &users.User{
		ID:           params.ID,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
	}
	err = r.pool.QueryRow(ctx, `
INSERT INTO users (id, name, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`,
		params.ID, params.Name, params.Email, params.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, users.ErrEmailTaken
		}
		return nil, classify(fmt.Errorf("insert user: %w", err))
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	defer observe("users.get_by_email", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
  FROM users
 WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (_ *users.User, err error) {
	defer observe("users.get_by_id", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if ids.ValidateUUID(id) != nil {
		return nil, users.ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
  FROM users
 WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user users.User
		id   pgtype.UUID
	)
	err := row.Scan(&id, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get user: %w", err))
	}
	user.ID = ids.UUIDToString(id)
	return &user, nil
}
