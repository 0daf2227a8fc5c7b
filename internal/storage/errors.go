package storage

import (
	"errors"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
)

// ErrUnavailable marks transient backend failures (timeouts, lost
// connections, lock contention). Callers may retry.
var ErrUnavailable = errors.New("storage unavailable")

// IsDomainOutcome reports whether err is a domain sentinel returned by a
// repository (not found, duplicate, full) rather than a backend failure.
func IsDomainOutcome(err error) bool {
	for _, target := range []error{
		events.ErrNotFound,
		events.ErrAlreadyReserved,
		events.ErrCapacityExceeded,
		events.ErrSpotsBelowAttendance,
		users.ErrUserNotFound,
		users.ErrEmailTaken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
