package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxReserveAttempts bounds retries when the conditional update misses but
// the event turns out to have room (capacity raised concurrently).
const maxReserveAttempts = 3

var errReserveRace = errors.New("reserve: capacity changed concurrently")

const eventColumns = `
	e.ulid, e.title, e.description, e.event_date, e.event_time, e.location,
	e.available_spots, e.attendee_count, e.creator_id, u.name, u.email,
	e.image_url, e.created_at, e.updated_at,
	ARRAY(SELECT a.user_id::text FROM event_attendees a WHERE a.event_ulid = e.ulid ORDER BY a.position)`

const eventFrom = `
	FROM events e
	JOIN users u ON u.id = e.creator_id`

var orderClauses = map[events.Sort]string{
	events.SortDateAsc:       "e.event_date ASC, e.ulid ASC",
	events.SortDateDesc:      "e.event_date DESC, e.ulid DESC",
	events.SortAttendeesAsc:  "e.attendee_count ASC, e.ulid ASC",
	events.SortAttendeesDesc: "e.attendee_count DESC, e.ulid DESC",
}

type EventRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func (r *EventRepository) Create(ctx context.Context, params events.EventCreateParams) (_ *events.Event, err error) {
	defer observe("events.create", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if ids.ValidateUUID(params.CreatorID) != nil {
		return nil, events.ErrUnauthenticated
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO events (ulid, title, description, event_date, event_time, location, available_spots, creator_id, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		params.ULID, params.Title, params.Description, params.Date, params.Time,
		params.Location, params.AvailableSpots, params.CreatorID, params.ImageURL,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return nil, events.ErrUnauthenticated
		}
		return nil, classify(fmt.Errorf("insert event: %w", err))
	}
	return r.get(ctx, params.ULID)
}

func (r *EventRepository) GetByULID(ctx context.Context, ulid string) (_ *events.Event, err error) {
	defer observe("events.get", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.get(ctx, ulid)
}

func (r *EventRepository) get(ctx context.Context, ulid string) (*events.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.ulid = $1`, ulid)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get event: %w", err))
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, ulid string, params events.EventUpdateParams) (_ *events.Event, err error) {
	defer observe("events.update", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
UPDATE events SET
	title           = COALESCE($2, title),
	description     = COALESCE($3, description),
	event_date      = COALESCE($4, event_date),
	event_time      = COALESCE($5, event_time),
	location        = COALESCE($6, location),
	available_spots = COALESCE($7::int, available_spots),
	image_url       = COALESCE($8, image_url),
	updated_at      = now()
WHERE ulid = $1
  AND ($7::int IS NULL OR $7::int >= attendee_count)`,
		ulid, params.Title, params.Description, params.Date, params.Time,
		params.Location, params.AvailableSpots, params.ImageURL,
	)
	if err != nil {
		if pgCode(err) == codeCheckViolation {
			return nil, events.ErrSpotsBelowAttendance
		}
		return nil, classify(fmt.Errorf("update event: %w", err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE ulid = $1)`, ulid).Scan(&exists); err != nil {
			return nil, classify(fmt.Errorf("check event: %w", err))
		}
		if !exists {
			return nil, events.ErrNotFound
		}
		return nil, events.ErrSpotsBelowAttendance
	}
	return r.get(ctx, ulid)
}

func (r *EventRepository) Delete(ctx context.Context, ulid string) (err error) {
	defer observe("events.delete", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE ulid = $1`, ulid)
	if err != nil {
		return classify(fmt.Errorf("delete event: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// Reserve increments attendee_count only while it is below available_spots
// and the user is not yet listed, then appends the attendee row. Both writes
// share one transaction; the primary key on event_attendees catches a
// concurrent duplicate from the same user.
func (r *EventRepository) Reserve(ctx context.Context, ulid, userID string) (count int, err error) {
	defer observe("events.reserve", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if ids.ValidateUUID(userID) != nil {
		return 0, events.ErrUnauthenticated
	}
	return retryReserve(func() (int, error) { return r.reserveOnce(ctx, ulid, userID) })
}

// retryReserve repeats attempt while it loses the race. Running out of
// attempts is contention, not a full event, so the caller may retry.
func retryReserve(attempt func() (int, error)) (int, error) {
	for i := 0; i < maxReserveAttempts; i++ {
		count, err := attempt()
		if !errors.Is(err, errReserveRace) {
			return count, err
		}
	}
	return 0, fmt.Errorf("%w: %w", storage.ErrUnavailable, errReserveRace)
}

func (r *EventRepository) reserveOnce(ctx context.Context, ulid, userID string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int
	err = tx.QueryRow(ctx, `
UPDATE events
   SET attendee_count = attendee_count + 1, updated_at = now()
 WHERE ulid = $1
   AND attendee_count < available_spots
   AND NOT EXISTS (SELECT 1 FROM event_attendees WHERE event_ulid = $1 AND user_id = $2)
RETURNING attendee_count`, ulid, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, diagnoseReserve(ctx, tx, ulid, userID)
	}
	if err != nil {
		return 0, classify(fmt.Errorf("reserve spot: %w", err))
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO event_attendees (event_ulid, user_id, position) VALUES ($1, $2, $3)`,
		ulid, userID, count,
	)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return 0, events.ErrAlreadyReserved
		case codeForeignKeyViolation:
			return 0, events.ErrUnauthenticated
		}
		return 0, classify(fmt.Errorf("insert attendee: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify(fmt.Errorf("commit reserve: %w", err))
	}
	return count, nil
}

// diagnoseReserve explains why the conditional update matched nothing.
func diagnoseReserve(ctx context.Context, q queryer, ulid, userID string) error {
	var (
		count, spots int
		attending    bool
	)
	err := q.QueryRow(ctx, `
SELECT e.attendee_count, e.available_spots,
       EXISTS (SELECT 1 FROM event_attendees a WHERE a.event_ulid = e.ulid AND a.user_id = $2)
  FROM events e
 WHERE e.ulid = $1`, ulid, userID).Scan(&count, &spots, &attending)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return events.ErrNotFound
	case err != nil:
		return classify(fmt.Errorf("diagnose reserve: %w", err))
	case attending:
		return events.ErrAlreadyReserved
	case count >= spots:
		return events.ErrCapacityExceeded
	}
	return errReserveRace
}

func (r *EventRepository) List(ctx context.Context, query events.ListQuery) (_ []events.Event, err error) {
	defer observe("events.list", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if search := strings.TrimSpace(query.Search); search != "" {
		args = append(args, storage.ContainsPattern(search))
		n := len(args)
		conds = append(conds, fmt.Sprintf("(e.title ILIKE $%d OR e.description ILIKE $%d OR e.location ILIKE $%d)", n, n, n))
	}
	if query.CreatorID != "" {
		if ids.ValidateUUID(query.CreatorID) != nil {
			return []events.Event{}, nil
		}
		args = append(args, query.CreatorID)
		conds = append(conds, fmt.Sprintf("e.creator_id = $%d", len(args)))
	}
	if query.AttendeeID != "" {
		if ids.ValidateUUID(query.AttendeeID) != nil {
			return []events.Event{}, nil
		}
		args = append(args, query.AttendeeID)
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM event_attendees f WHERE f.event_ulid = e.ulid AND f.user_id = $%d)", len(args)))
	}

	order, ok := orderClauses[query.Sort]
	if !ok {
		order = orderClauses[events.SortDateAsc]
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(eventColumns)
	sb.WriteString(eventFrom)
	if len(conds) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString("\nORDER BY ")
	sb.WriteString(order)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("scan event: %w", err))
		}
		out = append(out, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	return out, nil
}

func (r *EventRepository) IsImageReferenced(ctx context.Context, ref string) (_ bool, err error) {
	defer observe("events.image_referenced", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var referenced bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE image_url = $1)`, ref).Scan(&referenced)
	if err != nil {
		return false, classify(fmt.Errorf("check image reference: %w", err))
	}
	return referenced, nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		event     events.Event
		creatorID pgtype.UUID
	)
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &event.Date, &event.Time, &event.Location,
		&event.AvailableSpots, &event.AttendeeCount, &creatorID, &event.Creator.Name, &event.Creator.Email,
		&event.ImageURL, &event.CreatedAt, &event.UpdatedAt, &event.Attendees,
	)
	if err != nil {
		return nil, err
	}
	event.CreatorID = ids.UUIDToString(creatorID)
	event.Creator.ID = event.CreatorID
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	return &event, nil
}

func (r *EventRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, r.timeout)
}
