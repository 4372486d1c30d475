package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/scheduler"
)

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool, mapper: NewErrorMapper()}
}

type bookingRow struct {
	ID        string         `db:"id"`
	RoomID    string         `db:"room_id"`
	UserID    string         `db:"user_id"`
	Date      string         `db:"booking_date"`
	StartTime string         `db:"start_time"`
	EndTime   string         `db:"end_time"`
	Title     sql.NullString `db:"title"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

const bookingColumns = `id, room_id, user_id, booking_date, start_time, end_time, title, created_at, updated_at`

func newBookingRow(b persistence.Booking) bookingRow {
	row := bookingRow{
		ID:        b.ID,
		RoomID:    b.RoomID,
		UserID:    b.UserID,
		Date:      b.Date.String(),
		StartTime: b.Start.String(),
		EndTime:   b.End.String(),
		CreatedAt: formatTimestamp(b.CreatedAt),
		UpdatedAt: formatTimestamp(b.UpdatedAt),
	}
	if b.Title != nil {
		row.Title = sql.NullString{String: *b.Title, Valid: true}
	}
	return row
}

func (row bookingRow) toModel() (persistence.Booking, error) {
	b := persistence.Booking{ID: row.ID, RoomID: row.RoomID, UserID: row.UserID}
	var err error
	if b.Date, b.Start, b.End, err = parseSlot(row.Date, row.StartTime, row.EndTime); err != nil {
		return persistence.Booking{}, fmt.Errorf("booking %s: %w", row.ID, err)
	}
	if row.Title.Valid {
		title := row.Title.String
		b.Title = &title
	}
	if b.CreatedAt, err = parseTimestamp("created_at", row.CreatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if b.UpdatedAt, err = parseTimestamp("updated_at", row.UpdatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return b, nil
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.RoomID == "" || booking.UserID == "" || booking.Start >= booking.End {
		return persistence.ErrConstraintViolation
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	const query = `
		INSERT INTO room_bookings (` + bookingColumns + `)
		VALUES (:id, :room_id, :user_id, :booking_date, :start_time, :end_time, :title, :created_at, :updated_at)`

	if _, err := r.pool.db.NamedExecContext(ctx, query, newBookingRow(booking)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateBooking replaces the room, slot and title of an existing booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrNotFound
	}
	if booking.Start >= booking.End {
		return persistence.ErrConstraintViolation
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = time.Now()
	}

	const query = `
		UPDATE room_bookings
		SET room_id = :room_id, booking_date = :booking_date, start_time = :start_time,
		    end_time = :end_time, title = :title, updated_at = :updated_at
		WHERE id = :id`

	result, err := r.pool.db.NamedExecContext(ctx, query, newBookingRow(booking))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	var row bookingRow
	if err := r.pool.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM room_bookings WHERE id = ?`, id); err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListBookings returns bookings matching filter ordered by date, start time and ID.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if !filter.Date.IsZero() {
		clauses = append(clauses, "booking_date = ?")
		args = append(args, filter.Date.String())
	}

	query := `SELECT ` + bookingColumns + ` FROM room_bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY booking_date ASC, start_time ASC, id ASC`

	var rows []bookingRow
	if err := r.pool.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}

	bookings := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// DeleteBooking removes a booking by ID.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM room_bookings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func parseSlot(date, start, end string) (scheduler.Date, scheduler.TimeOfDay, scheduler.TimeOfDay, error) {
	d, err := scheduler.ParseDate(date)
	if err != nil {
		return scheduler.Date{}, 0, 0, err
	}
	s, err := scheduler.ParseTimeOfDay(start)
	if err != nil {
		return scheduler.Date{}, 0, 0, err
	}
	e, err := scheduler.ParseTimeOfDay(end)
	if err != nil {
		return scheduler.Date{}, 0, 0, err
	}
	return d, s, e, nil
}
