package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/office-calendar/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper()}
}

type eventRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Date        string         `db:"event_date"`
	StartTime   string         `db:"start_time"`
	EndTime     string         `db:"end_time"`
	RoomID      sql.NullString `db:"room_id"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

type attendeeRow struct {
	EventID string `db:"event_id"`
	UserID  string `db:"user_id"`
}

const eventColumns = `id, title, description, event_date, start_time, end_time, room_id, created_by, created_at, updated_at`

func newEventRow(e persistence.Event) eventRow {
	row := eventRow{
		ID:        e.ID,
		Title:     e.Title,
		Date:      e.Date.String(),
		StartTime: e.Start.String(),
		EndTime:   e.End.String(),
		CreatedBy: e.CreatedBy,
		CreatedAt: formatTimestamp(e.CreatedAt),
		UpdatedAt: formatTimestamp(e.UpdatedAt),
	}
	if e.Description != nil {
		row.Description = sql.NullString{String: *e.Description, Valid: true}
	}
	if e.RoomID != nil {
		row.RoomID = sql.NullString{String: *e.RoomID, Valid: true}
	}
	return row
}

func (row eventRow) toModel() (persistence.Event, error) {
	e := persistence.Event{ID: row.ID, Title: row.Title, CreatedBy: row.CreatedBy}
	var err error
	if e.Date, e.Start, e.End, err = parseSlot(row.Date, row.StartTime, row.EndTime); err != nil {
		return persistence.Event{}, fmt.Errorf("event %s: %w", row.ID, err)
	}
	if row.Description.Valid {
		description := row.Description.String
		e.Description = &description
	}
	if row.RoomID.Valid {
		roomID := row.RoomID.String
		e.RoomID = &roomID
	}
	if e.CreatedAt, err = parseTimestamp("created_at", row.CreatedAt); err != nil {
		return persistence.Event{}, err
	}
	if e.UpdatedAt, err = parseTimestamp("updated_at", row.UpdatedAt); err != nil {
		return persistence.Event{}, err
	}
	return e, nil
}

// CreateEvent inserts an event and its attendees. Attendee IDs that do not
// belong to an existing user are skipped.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.CreatedBy == "" || event.Start >= event.End {
		return persistence.ErrConstraintViolation
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	const query = `
		INSERT INTO events (` + eventColumns + `)
		VALUES (:id, :title, :description, :event_date, :start_time, :end_time, :room_id, :created_by, :created_at, :updated_at)`

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, newEventRow(event)); err != nil {
			return r.mapper.MapError(err)
		}
		return r.replaceAttendees(ctx, tx, event.ID, event.AttendeeIDs)
	})
}

// UpdateEvent replaces the event fields and its attendee list.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrNotFound
	}
	if event.Start >= event.End {
		return persistence.ErrConstraintViolation
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now()
	}

	const query = `
		UPDATE events
		SET title = :title, description = :description, event_date = :event_date,
		    start_time = :start_time, end_time = :end_time, room_id = :room_id, updated_at = :updated_at
		WHERE id = :id`

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, newEventRow(event))
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		return r.replaceAttendees(ctx, tx, event.ID, event.AttendeeIDs)
	})
}

func (r *EventRepository) replaceAttendees(ctx context.Context, tx *sqlx.Tx, eventID string, attendeeIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ?`, eventID); err != nil {
		return r.mapper.MapError(err)
	}
	const insert = `INSERT OR IGNORE INTO event_attendees (event_id, user_id) SELECT ?, id FROM users WHERE id = ?`
	for _, userID := range attendeeIDs {
		if _, err := tx.ExecContext(ctx, insert, eventID, userID); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

// GetEvent retrieves an event and its attendees by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	var events []persistence.Event
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sqlx.Tx) error {
		var row eventRow
		if err := tx.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		var err error
		events, err = r.withAttendees(ctx, tx, []eventRow{row})
		return err
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return events[0], nil
}

// ListEvents returns events matching filter ordered by date, start time and ID.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "event_date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "event_date <= ?")
		args = append(args, filter.To.String())
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY event_date ASC, start_time ASC, id ASC`

	var events []persistence.Event
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sqlx.Tx) error {
		var rows []eventRow
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return r.mapper.MapError(err)
		}
		var err error
		events, err = r.withAttendees(ctx, tx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// withAttendees loads attendees through tx so they match the event rows read in it.
func (r *EventRepository) withAttendees(ctx context.Context, tx *sqlx.Tx, rows []eventRow) ([]persistence.Event, error) {
	events := make([]persistence.Event, 0, len(rows))
	if len(rows) == 0 {
		return events, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	query, args, err := sqlx.In(`SELECT event_id, user_id FROM event_attendees WHERE event_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build attendee query: %w", err)
	}
	var attendees []attendeeRow
	if err := tx.SelectContext(ctx, &attendees, tx.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	byEvent := make(map[string][]string, len(rows))
	for _, a := range attendees {
		byEvent[a.EventID] = append(byEvent[a.EventID], a.UserID)
	}

	for _, row := range rows {
		e, err := row.toModel()
		if err != nil {
			return nil, err
		}
		e.AttendeeIDs = byEvent[row.ID]
		events = append(events, e)
	}
	return events, nil
}

// DeleteEvent removes an event; attendees cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}
