package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/office-calendar/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool, mapper: NewErrorMapper()}
}

type roomRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Capacity  sql.NullInt64  `db:"capacity"`
	Location  sql.NullString `db:"location"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

const roomColumns = `id, name, capacity, location, created_at, updated_at`

func newRoomRow(room persistence.Room) roomRow {
	row := roomRow{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: formatTimestamp(room.CreatedAt),
		UpdatedAt: formatTimestamp(room.UpdatedAt),
	}
	if room.Capacity != nil {
		row.Capacity = sql.NullInt64{Int64: int64(*room.Capacity), Valid: true}
	}
	if room.Location != nil {
		row.Location = sql.NullString{String: *room.Location, Valid: true}
	}
	return row
}

func (row roomRow) toModel() (persistence.Room, error) {
	room := persistence.Room{ID: row.ID, Name: row.Name}
	if row.Capacity.Valid {
		capacity := int(row.Capacity.Int64)
		room.Capacity = &capacity
	}
	if row.Location.Valid {
		location := row.Location.String
		room.Location = &location
	}
	var err error
	if room.CreatedAt, err = parseTimestamp("created_at", row.CreatedAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTimestamp("updated_at", row.UpdatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if room.Capacity != nil && *room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	const query = `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES (:id, :name, :capacity, :location, :created_at, :updated_at)`

	if _, err := r.pool.db.NamedExecContext(ctx, query, newRoomRow(room)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}
	if room.Capacity != nil && *room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now()
	}

	const query = `
		UPDATE rooms
		SET name = :name, capacity = :capacity, location = :location, updated_at = :updated_at
		WHERE id = :id`

	result, err := r.pool.db.NamedExecContext(ctx, query, newRoomRow(room))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	var row roomRow
	if err := r.pool.db.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListRooms returns all rooms ordered by name then ID
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	var rows []roomRow
	if err := r.pool.db.SelectContext(ctx, &rows, `SELECT `+roomColumns+` FROM rooms ORDER BY name COLLATE NOCASE ASC, id ASC`); err != nil {
		return nil, r.mapper.MapError(err)
	}

	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Its bookings are deleted and its events keep
// existing without a room.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE events SET room_id = NULL WHERE room_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_bookings WHERE room_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
