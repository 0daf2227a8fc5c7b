package events

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("event not found")
	ErrForbidden            = errors.New("only the event creator may modify this event")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrAlreadyReserved      = errors.New("user has already reserved a spot for this event")
	ErrCapacityExceeded     = errors.New("event is at capacity")
	ErrSpotsBelowAttendance = errors.New("available spots cannot be lower than the current attendee count")
)

// ValidationError reports missing or malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
