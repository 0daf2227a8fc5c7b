package storage

import (
	"context"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
)

// Repository groups data access by domain. Both the Postgres and the SQLite
// backends implement it.
type Repository interface {
	Events() events.Repository
	Users() users.Repository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Driver names the backend ("postgres" or "sqlite").
	Driver() string
}
