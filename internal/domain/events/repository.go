package events

import (
	"context"
	"time"
)

// Event is an event record together with its attendee list.
type Event struct {
	ID             string
	Title          string
	Description    string
	Date           time.Time
	Time           string
	Location       string
	AvailableSpots int
	AttendeeCount  int
	Attendees      []string
	CreatorID      string
	Creator        Creator
	ImageURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Creator is the public identity of an event's creator.
type Creator struct {
	ID    string
	Name  string
	Email string
}

// SpotsRemaining is the number of reservations still possible.
func (e Event) SpotsRemaining() int {
	if left := e.AvailableSpots - e.AttendeeCount; left > 0 {
		return left
	}
	return 0
}

// HasAttendee reports whether userID has reserved a spot.
func (e Event) HasAttendee(userID string) bool {
	for _, id := range e.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

type EventCreateParams struct {
	ULID           string
	Title          string
	Description    string
	Date           time.Time
	Time           string
	Location       string
	AvailableSpots int
	CreatorID      string
	ImageURL       string
}

// EventUpdateParams carries a partial update. Nil fields keep the stored value.
type EventUpdateParams struct {
	Title          *string
	Description    *string
	Date           *time.Time
	Time           *string
	Location       *string
	AvailableSpots *int
	ImageURL       *string
}

// IsEmpty reports whether the update changes nothing.
func (p EventUpdateParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.Time == nil &&
		p.Location == nil && p.AvailableSpots == nil && p.ImageURL == nil
}

type Sort string

const (
	SortDateAsc       Sort = "date_asc"
	SortDateDesc      Sort = "date_desc"
	SortAttendeesAsc  Sort = "attendees_asc"
	SortAttendeesDesc Sort = "attendees_desc"
)

// ListQuery filters and orders event listings. Zero values are ignored as
// filters; an empty Sort means SortDateAsc.
type ListQuery struct {
	Search     string
	Sort       Sort
	CreatorID  string
	AttendeeID string
}

// Repository is the event store. Implementations must make Reserve atomic
// per event: the capacity check and the attendee append happen as one step.
type Repository interface {
	Create(ctx context.Context, params EventCreateParams) (*Event, error)
	GetByULID(ctx context.Context, ulid string) (*Event, error)
	// Update returns ErrNotFound for an unknown id and ErrSpotsBelowAttendance
	// when AvailableSpots would drop under the attendee count.
	Update(ctx context.Context, ulid string, params EventUpdateParams) (*Event, error)
	Delete(ctx context.Context, ulid string) error
	// Reserve appends userID to the attendees and returns the new count.
	// Errors: ErrNotFound, ErrAlreadyReserved, ErrCapacityExceeded, in that
	// order of precedence.
	Reserve(ctx context.Context, ulid, userID string) (int, error)
	List(ctx context.Context, query ListQuery) ([]Event, error)
	IsImageReferenced(ctx context.Context, ref string) (bool, error)
}
