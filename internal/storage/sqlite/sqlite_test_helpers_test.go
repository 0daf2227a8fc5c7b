package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *Repository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rsvp.db")
	require.NoError(t, MigrateUp(path))

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(db, WithQueryTimeout(10*time.Second))
	require.NoError(t, err)
	return repo
}

func seedUser(t *testing.T, repo *Repository, email string) *users.User {
	t.Helper()
	user, err := repo.Users().CreateUser(context.Background(), users.CreateParams{
		ID:           ids.NewUUID(),
		Name:         strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	return user
}

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

func eventIDs(list []events.Event) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}
