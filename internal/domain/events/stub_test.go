package events

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

const (
	aliceID = "2f1c7a4e-8d8b-4c1e-9a53-0d6d5b1f0a01"
	bobID   = "6b0e3f7c-51a2-4f0e-b3c4-7c2a9d8e1b02"
	carolID = "9a7d2c1b-3e4f-4a5b-8c6d-1e2f3a4b5c03"
)

// memRepo is an in-memory Repository with the same error precedence as the
// storage adapters.
type memRepo struct {
	mu        sync.Mutex
	events    map[string]*Event
	lastQuery ListQuery
	failNext  error
}

func newMemRepo() *memRepo {
	return &memRepo{events: map[string]*Event{}}
}

func (m *memRepo) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memRepo) Create(_ context.Context, params EventCreateParams) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	event := &Event{
		ID:             params.ULID,
		Title:          params.Title,
		Description:    params.Description,
		Date:           params.Date,
		Time:           params.Time,
		Location:       params.Location,
		AvailableSpots: params.AvailableSpots,
		Attendees:      []string{},
		CreatorID:      params.CreatorID,
		Creator:        Creator{ID: params.CreatorID, Name: "creator", Email: "creator@example.com"},
		ImageURL:       params.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.events[event.ID] = event
	return clone(event), nil
}

func (m *memRepo) GetByULID(_ context.Context, ulid string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(event), nil
}

func (m *memRepo) Update(_ context.Context, ulid string, params EventUpdateParams) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	event, ok := m.events[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	if params.AvailableSpots != nil && *params.AvailableSpots < event.AttendeeCount {
		return nil, ErrSpotsBelowAttendance
	}
	setIf(&event.Title, params.Title)
	setIf(&event.Description, params.Description)
	setIf(&event.Time, params.Time)
	setIf(&event.Location, params.Location)
	setIf(&event.ImageURL, params.ImageURL)
	if params.Date != nil {
		event.Date = *params.Date
	}
	if params.AvailableSpots != nil {
		event.AvailableSpots = *params.AvailableSpots
	}
	event.UpdatedAt = time.Now().UTC()
	return clone(event), nil
}

func (m *memRepo) Delete(_ context.Context, ulid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.events[ulid]; !ok {
		return ErrNotFound
	}
	delete(m.events, ulid)
	return nil
}

func (m *memRepo) Reserve(_ context.Context, ulid, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	event, ok := m.events[ulid]
	switch {
	case !ok:
		return 0, ErrNotFound
	case event.HasAttendee(userID):
		return 0, ErrAlreadyReserved
	case event.AttendeeCount >= event.AvailableSpots:
		return 0, ErrCapacityExceeded
	}
	event.Attendees = append(event.Attendees, userID)
	event.AttendeeCount++
	return event.AttendeeCount, nil
}

func (m *memRepo) List(_ context.Context, query ListQuery) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = query
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	var out []Event
	needle := strings.ToLower(query.Search)
	for _, event := range m.events {
		if needle != "" && !strings.Contains(strings.ToLower(event.Title+" "+event.Description+" "+event.Location), needle) {
			continue
		}
		if query.CreatorID != "" && event.CreatorID != query.CreatorID {
			continue
		}
		if query.AttendeeID != "" && !event.HasAttendee(query.AttendeeID) {
			continue
		}
		out = append(out, *clone(event))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepo) IsImageReferenced(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.events {
		if event.ImageURL == ref {
			return true, nil
		}
	}
	return false, nil
}

func clone(e *Event) *Event {
	c := *e
	c.Attendees = append([]string{}, e.Attendees...)
	return &c
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, upload *assets.Upload) (string, error) {
	args := m.Called(ctx, upload)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Release(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func newTestService(repo Repository, store AssetStore) *Service {
	return NewService(repo, store, audit.NewLoggerWithZerolog(zerolog.Nop()), zerolog.Nop())
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func validDraft() Draft {
	return Draft{
		Title:          "Board games night",
		Description:    "Bring your favourite game",
		Date:           "2026-11-01",
		Time:           "19:00",
		Location:       "Community hall",
		AvailableSpots: intPtr(10),
	}
}

func seedEvent(t interface {
	Helper()
	Fatalf(string, ...any)
}, svc *Service, actorID string, spots int) *Event {
	t.Helper()
	draft := validDraft()
	draft.AvailableSpots = intPtr(spots)
	event, err := svc.Create(context.Background(), actorID, draft, nil)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}
