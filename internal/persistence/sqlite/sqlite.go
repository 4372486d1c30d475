package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/office-calendar/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories sharing one connection pool.
type Store struct {
	pool *ConnectionPool

	Users    *UserRepository
	Rooms    *RoomRepository
	Bookings *BookingRepository
	Events   *EventRepository
	Sessions *SessionRepository
}

// Open connects to the database described by config and applies pending migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, pool, logger); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return NewStore(pool), nil
}

// NewStore wires repositories over an already migrated pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{
		pool:     pool,
		Users:    NewUserRepository(pool),
		Rooms:    NewRoomRepository(pool),
		Bookings: NewBookingRepository(pool),
		Events:   NewEventRepository(pool),
		Sessions: NewSessionRepository(pool),
	}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	source := migration.NewFSSource(migrationFiles, "migrations")
	manager := migration.NewManager(source, migration.NewSQLiteExecutor(pool.DB()), logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Pool exposes the shared connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// timestampLayout is fixed width so stored UTC timestamps compare correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(column, value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}
