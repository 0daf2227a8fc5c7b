package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createEvent(t *testing.T, repo *Repository, creatorID, title string, date time.Time, spots int) *events.Event {
	t.Helper()
	ulid, err := ids.NewULID()
	require.NoError(t, err)
	event, err := repo.Events().Create(context.Background(), events.EventCreateParams{
		ULID:           ulid,
		Title:          title,
		Description:    "description of " + title,
		Date:           date,
		Time:           "18:00",
		Location:       "Toronto",
		AvailableSpots: spots,
		CreatorID:      creatorID,
	})
	require.NoError(t, err)
	return event
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestUserRepository(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice@example.com")

	got, err := repo.Users().GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	got, err = repo.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = repo.Users().CreateUser(ctx, users.CreateParams{
		ID: ids.NewUUID(), Name: "Other", Email: "Alice@Example.com", PasswordHash: "x",
	})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	_, err = repo.Users().GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
	_, err = repo.Users().GetUserByID(ctx, ids.NewUUID())
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestEventRepositoryCRUD(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")

	created := createEvent(t, repo, alice.ID, "Board games", day("2026-11-01"), 3)
	assert.Equal(t, alice.ID, created.CreatorID)
	assert.Equal(t, "alice", created.Creator.Name)
	assert.Equal(t, "alice@example.com", created.Creator.Email)
	assert.Equal(t, 0, created.AttendeeCount)
	assert.Empty(t, created.Attendees)
	assert.Equal(t, day("2026-11-01"), created.Date.UTC())

	title := "Chess night"
	spots := 5
	updated, err := repo.Events().Update(ctx, created.ID, events.EventUpdateParams{Title: &title, AvailableSpots: &spots})
	require.NoError(t, err)
	assert.Equal(t, "Chess night", updated.Title)
	assert.Equal(t, 5, updated.AvailableSpots)
	assert.Equal(t, "Toronto", updated.Location)

	_, err = repo.Events().Update(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", events.EventUpdateParams{Title: &title})
	assert.ErrorIs(t, err, events.ErrNotFound)

	require.NoError(t, repo.Events().Delete(ctx, created.ID))
	_, err = repo.Events().GetByULID(ctx, created.ID)
	assert.ErrorIs(t, err, events.ErrNotFound)
	assert.ErrorIs(t, repo.Events().Delete(ctx, created.ID), events.ErrNotFound)
}

func TestEventRepositoryReserveOutcomes(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	bob := seedUser(t, repo, "bob@example.com")
	carol := seedUser(t, repo, "carol@example.com")

	event := createEvent(t, repo, alice.ID, "Small room", day("2026-11-01"), 1)

	count, err := repo.Events().Reserve(ctx, event.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A full event still reports the duplicate first.
	_, err = repo.Events().Reserve(ctx, event.ID, bob.ID)
	assert.ErrorIs(t, err, events.ErrAlreadyReserved)

	_, err = repo.Events().Reserve(ctx, event.ID, carol.ID)
	assert.ErrorIs(t, err, events.ErrCapacityExceeded)

	_, err = repo.Events().Reserve(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", bob.ID)
	assert.ErrorIs(t, err, events.ErrNotFound)

	spots := 0
	_, err = repo.Events().Update(ctx, event.ID, events.EventUpdateParams{AvailableSpots: &spots})
	assert.ErrorIs(t, err, events.ErrSpotsBelowAttendance)

	got, err := repo.Events().GetByULID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, got.Attendees)
	assert.Equal(t, 1, got.AttendeeCount)
}

func TestEventRepositoryConcurrentReserve(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")

	const spots = 10
	const contenders = 50
	event := createEvent(t, repo, alice.ID, "Popular", day("2026-11-01"), spots)

	attendees := make([]*users.User, contenders)
	for i := range attendees {
		attendees[i] = seedUser(t, repo, ids.NewUUID()+"@example.com")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		full      int
	)
	for _, u := range attendees {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := repo.Events().Reserve(ctx, event.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, events.ErrCapacityExceeded):
				full++
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, spots, succeeded)
	assert.Equal(t, contenders-spots, full)

	got, err := repo.Events().GetByULID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, spots, got.AttendeeCount)
	assert.Len(t, got.Attendees, spots)
}

func TestEventRepositoryConcurrentSameUser(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	bob := seedUser(t, repo, "bob@example.com")
	event := createEvent(t, repo, alice.ID, "Popular", day("2026-11-01"), 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Events().Reserve(ctx, event.ID, bob.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, events.ErrAlreadyReserved)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	got, err := repo.Events().GetByULID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttendeeCount)
}

func TestEventRepositoryList(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	bob := seedUser(t, repo, "bob@example.com")

	late := createEvent(t, repo, alice.ID, "Jazz evening", day("2026-12-01"), 5)
	early := createEvent(t, repo, alice.ID, "100% Pottery", day("2026-10-20"), 5)
	other := createEvent(t, repo, bob.ID, "Running club", day("2026-11-15"), 5)

	_, err := repo.Events().Reserve(ctx, late.ID, bob.ID)
	require.NoError(t, err)

	all, err := repo.Events().List(ctx, events.ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{early.ID, other.ID, late.ID}, eventIDs(all))

	desc, err := repo.Events().List(ctx, events.ListQuery{Sort: events.SortDateDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID, other.ID, early.ID}, eventIDs(desc))

	popular, err := repo.Events().List(ctx, events.ListQuery{Sort: events.SortAttendeesDesc})
	require.NoError(t, err)
	assert.Equal(t, late.ID, popular[0].ID)

	jazz, err := repo.Events().List(ctx, events.ListQuery{Search: "JAZZ"})
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID}, eventIDs(jazz))

	// Wildcards in the search text match literally.
	percent, err := repo.Events().List(ctx, events.ListQuery{Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, []string{early.ID}, eventIDs(percent))

	mine, err := repo.Events().List(ctx, events.ListQuery{CreatorID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, eventIDs(mine))

	attending, err := repo.Events().List(ctx, events.ListQuery{AttendeeID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID}, eventIDs(attending))

	none, err := repo.Events().List(ctx, events.ListQuery{CreatorID: "garbage"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	// Case folding is not limited to ASCII letters.
	cafe := createEvent(t, repo, bob.ID, "Café Évasion", day("2026-11-01"), 5)
	for _, search := range []string{"CAFÉ", "évasion", "ÉVASION"} {
		found, err := repo.Events().List(ctx, events.ListQuery{Search: search})
		require.NoError(t, err)
		assert.Equal(t, []string{cafe.ID}, eventIDs(found), "search %q", search)
	}
}

func TestEventRepositoryImageReference(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	event := createEvent(t, repo, alice.ID, "Gallery", day("2026-11-01"), 5)

	ref := "/uploads/eventImage-01J0000000000000000000000A.png"
	referenced, err := repo.Events().IsImageReferenced(ctx, ref)
	require.NoError(t, err)
	assert.False(t, referenced)

	_, err = repo.Events().Update(ctx, event.ID, events.EventUpdateParams{ImageURL: &ref})
	require.NoError(t, err)

	referenced, err = repo.Events().IsImageReferenced(ctx, ref)
	require.NoError(t, err)
	assert.True(t, referenced)
}

func TestRepositoryPing(t *testing.T) {
	repo, _ := setupPostgres(t)
	require.NoError(t, repo.Ping(context.Background()))
	assert.Equal(t, "postgres", repo.Driver())
}

func eventIDs(list []events.Event) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}
