package events

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSort(t *testing.T) {
	tests := map[string]Sort{
		"":               SortDateAsc,
		"date_asc":       SortDateAsc,
		"DATE_DESC":      SortDateDesc,
		" attendees_asc": SortAttendeesAsc,
		"attendees_desc": SortAttendeesDesc,
		"popularity":     SortDateAsc,
	}
	for input, want := range tests {
		assert.Equal(t, want, NormalizeSort(input), input)
	}
}

func TestParseListQuery(t *testing.T) {
	q := ParseListQuery(url.Values{"search": {"  jazz "}, "sortBy": {"attendees_desc"}})
	assert.Equal(t, ListQuery{Search: "jazz", Sort: SortAttendeesDesc}, q)

	q = ParseListQuery(url.Values{"q": {"yoga"}, "sort": {"date_desc"}})
	assert.Equal(t, ListQuery{Search: "yoga", Sort: SortDateDesc}, q)

	q = ParseListQuery(url.Values{})
	assert.Equal(t, ListQuery{Sort: SortDateAsc}, q)
}

func TestListNormalizesQuery(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	got, err := svc.List(context.Background(), ListQuery{Search: "  nothing matches  ", Sort: "bogus"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, ListQuery{Search: "nothing matches", Sort: SortDateAsc}, repo.lastQuery)
}

func TestListReflectsReservations(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)
	event := seedEvent(t, svc, aliceID, 3)

	_, err := svc.Reserve(context.Background(), bobID, event.ID)
	require.NoError(t, err)

	list, err := svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].AttendeeCount)
	assert.Equal(t, []string{bobID}, list[0].Attendees)
}

func TestListCreatedAndAttendedBy(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)
	ctx := context.Background()

	mine := seedEvent(t, svc, aliceID, 3)
	draft := validDraft()
	draft.Date = "2026-10-20"
	theirs, err := svc.Create(ctx, bobID, draft, nil)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, aliceID, theirs.ID)
	require.NoError(t, err)

	created, err := svc.ListCreatedBy(ctx, aliceID, aliceID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, mine.ID, created[0].ID)

	attended, err := svc.ListAttendedBy(ctx, aliceID, aliceID)
	require.NoError(t, err)
	require.Len(t, attended, 1)
	assert.Equal(t, theirs.ID, attended[0].ID)
	assert.Equal(t, time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC), attended[0].Date)

	_, err = svc.ListCreatedBy(ctx, aliceID, bobID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListAttendedBy(ctx, "", aliceID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
