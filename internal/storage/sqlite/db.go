package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	msqlite "modernc.org/sqlite"
)

const (
	defaultQueryTimeout = 5 * time.Second
	busyTimeoutMillis   = 5000

	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// casefoldFunc is the SQL function search uses. SQLite's own LIKE only folds
// ASCII letters, so both sides are lower-cased with Unicode rules first.
const casefoldFunc = "casefold"

func init() {
	if err := msqlite.RegisterDeterministicScalarFunction(casefoldFunc, 1, casefold); err != nil {
		panic(fmt.Sprintf("sqlite: register %s: %v", casefoldFunc, err))
	}
}

func casefold(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Every connection gets the same pragmas. _txlock=immediate makes BEGIN take
// the write lock up front so read-then-write transactions cannot deadlock.
var dsnParams = strings.Join([]string{
	fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis),
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
}, "&")

// Open opens the database file at path. It does not apply migrations.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Repository is the embedded SQLite backend.
type Repository struct {
	db      *sql.DB
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

func NewRepository(db *sql.DB, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite repository: db is nil")
	}
	r := &Repository{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Events() events.Repository {
	return &EventRepository{db: r.db, timeout: r.timeout}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{db: r.db, timeout: r.timeout}
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return classify(r.db.PingContext(ctx))
}

func (r *Repository) Driver() string { return config.DriverSQLite }

// DB exposes the handle for the metrics collector.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Close() error { return r.db.Close() }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
