package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the Postgres backend.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type Option func(*Repository)

// WithQueryTimeout bounds every repository call. Zero keeps the default.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRepository(pool *pgxpool.Pool, opts ...Option) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	r := &Repository{pool: pool, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// OpenPool parses the database settings and connects.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func (r *Repository) Events() events.Repository {
	return &EventRepository{pool: r.pool, timeout: r.timeout}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{pool: r.pool, timeout: r.timeout}
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return classify(r.pool.Ping(ctx))
}

func (r *Repository) Driver() string { return config.DriverPostgres }

// Pool exposes the underlying pool for River and the metrics collector.
func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
