package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/storage"
)

// group_concat(... ORDER BY ...) needs SQLite 3.44 or newer.
const eventColumns = `
	e.ulid, e.title, e.description, e.event_date, e.event_time, e.location,
	e.available_spots, e.attendee_count, e.creator_id, u.name, u.email,
	e.image_url, e.created_at, e.updated_at,
	(SELECT group_concat(a.user_id, ',' ORDER BY a.position) FROM event_attendees a WHERE a.event_ulid = e.ulid)`

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
	db      *sql.DB
	timeout time.Duration
}

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *EventRepository) Create(ctx context.Context, params events.EventCreateParams) (_ *events.Event, err error) {
	defer observe("events.create", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ts := now()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO events (ulid, title, description, event_date, event_time, location, available_spots, creator_id, image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ULID, params.Title, params.Description, params.Date.Format(dateLayout), params.Time,
		params.Location, params.AvailableSpots, params.CreatorID, params.ImageURL, ts, ts,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, events.ErrUnauthenticated
		}
		return nil, classify(fmt.Errorf("insert event: %w", err))
	}
	return r.get(ctx, r.db, params.ULID)
}

func (r *EventRepository) GetByULID(ctx context.Context, ulid string) (_ *events.Event, err error) {
	defer observe("events.get", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.get(ctx, r.db, ulid)
}

func (r *EventRepository) get(ctx context.Context, q rowQueryer, ulid string) (*events.Event, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.ulid = ?`, ulid)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get event: %w", err))
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, ulid string, params events.EventUpdateParams) (_ *events.Event, err error) {
	defer observe("events.update", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var date *string
	if params.Date != nil {
		formatted := params.Date.Format(dateLayout)
		date = &formatted
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE events SET
	title           = COALESCE(?2, title),
	description     = COALESCE(?3, description),
	event_date      = COALESCE(?4, event_date),
	event_time      = COALESCE(?5, event_time),
	location        = COALESCE(?6, location),
	available_spots = COALESCE(?7, available_spots),
	image_url       = COALESCE(?8, image_url),
	updated_at      = ?9
WHERE ulid = ?1
  AND (?7 IS NULL OR ?7 >= attendee_count)`,
		ulid, params.Title, params.Description, date, params.Time,
		params.Location, params.AvailableSpots, params.ImageURL, now(),
	)
	if err != nil {
		if isCheckViolation(err) {
			return nil, events.ErrSpotsBelowAttendance
		}
		return nil, classify(fmt.Errorf("update event: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, classify(fmt.Errorf("update event: %w", err))
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE ulid = ?)`, ulid).Scan(&exists); err != nil {
			return nil, classify(fmt.Errorf("check event: %w", err))
		}
		if !exists {
			return nil, events.ErrNotFound
		}
		return nil, events.ErrSpotsBelowAttendance
	}
	return r.get(ctx, r.db, ulid)
}

func (r *EventRepository) Delete(ctx context.Context, ulid string) (err error) {
	defer observe("events.delete", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE ulid = ?`, ulid)
	if err != nil {
		return classify(fmt.Errorf("delete event: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("delete event: %w", err))
	}
	if affected == 0 {
		return events.ErrNotFound
	}
	return nil
}

// Reserve runs the conditional increment and the attendee insert in one
// immediate transaction, so writers on the database are serialized. BeginTx
// only takes the write lock up front because Open sets _txlock=immediate in
// dsnParams; a handle opened any other way loses that guarantee.
func (r *EventRepository) Reserve(ctx context.Context, ulid, userID string) (_ int, err error) {
	defer observe("events.reserve", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	var count int
	err = tx.QueryRowContext(ctx, `
UPDATE events
   SET attendee_count = attendee_count + 1, updated_at = ?3
 WHERE ulid = ?1
   AND attendee_count < available_spots
   AND NOT EXISTS (SELECT 1 FROM event_attendees WHERE event_ulid = ?1 AND user_id = ?2)
RETURNING attendee_count`, ulid, userID, ts).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, diagnoseReserve(ctx, tx, ulid, userID)
	}
	if err != nil {
		return 0, classify(fmt.Errorf("reserve spot: %w", err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO event_attendees (event_ulid, user_id, position, reserved_at) VALUES (?, ?, ?, ?)`,
		ulid, userID, count, ts,
	)
	switch {
	case err == nil:
	case isUniqueViolation(err):
		return 0, events.ErrAlreadyReserved
	case isForeignKeyViolation(err):
		return 0, events.ErrUnauthenticated
	default:
		return 0, classify(fmt.Errorf("insert attendee: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(fmt.Errorf("commit reserve: %w", err))
	}
	return count, nil
}

func diagnoseReserve(ctx context.Context, q rowQueryer, ulid, userID string) error {
	var (
		count, spots int
		attending    bool
	)
	err := q.QueryRowContext(ctx, `
SELECT e.attendee_count, e.available_spots,
       EXISTS (SELECT 1 FROM event_attendees a WHERE a.event_ulid = e.ulid AND a.user_id = ?2)
  FROM events e
 WHERE e.ulid = ?1`, ulid, userID).Scan(&count, &spots, &attending)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return events.ErrNotFound
	case err != nil:
		return classify(fmt.Errorf("diagnose reserve: %w", err))
	case attending:
		return events.ErrAlreadyReserved
	}
	return events.ErrCapacityExceeded
}

func (r *EventRepository) List(ctx context.Context, query events.ListQuery) (_ []events.Event, err error) {
	defer observe("events.list", time.Now(), &err)
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := storage.ContainsPattern(search)
		conds = append(conds, `(casefold(e.title) LIKE casefold(?) ESCAPE '\'
  OR casefold(e.description) LIKE casefold(?) ESCAPE '\'
  OR casefold(e.location) LIKE casefold(?) ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if query.CreatorID != "" {
		conds = append(conds, "e.creator_id = ?")
		args = append(args, strings.ToLower(query.CreatorID))
	}
	if query.AttendeeID != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM event_attendees f WHERE f.event_ulid = e.ulid AND f.user_id = ?)")
		args = append(args, strings.ToLower(query.AttendeeID))
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

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
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
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var referenced bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE image_url = ?)`, ref).Scan(&referenced)
	if err != nil {
		return false, classify(fmt.Errorf("check image reference: %w", err))
	}
	return referenced, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*events.Event, error) {
	var (
		event                events.Event
		date                 string
		createdAt, updatedAt string
		attendees            sql.NullString
	)
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &date, &event.Time, &event.Location,
		&event.AvailableSpots, &event.AttendeeCount, &event.CreatorID, &event.Creator.Name, &event.Creator.Email,
		&event.ImageURL, &createdAt, &updatedAt, &attendees,
	)
	if err != nil {
		return nil, err
	}
	if event.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("parse event date %q: %w", date, err)
	}
	if event.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if event.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	event.Creator.ID = event.CreatorID
	event.Attendees = []string{}
	if attendees.Valid && attendees.String != "" {
		event.Attendees = strings.Split(attendees.String, ",")
	}
	return &event, nil
}
