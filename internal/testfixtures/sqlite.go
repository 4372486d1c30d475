package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/persistence/sqlite"
	"github.com/example/office-calendar/internal/persistence/sqlite/migration"
)

// TempSQLiteConfig points at a fresh database file inside tb.TempDir.
func TempSQLiteConfig(tb testing.TB) migration.SQLiteConfig {
	tb.Helper()
	return migration.TempFileTestSQLiteConfig(filepath.Join(tb.TempDir(), "calendar.db"))
}

// NewSQLiteStore opens and migrates a throwaway store that is closed when
// the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	store, err := sqlite.Open(context.Background(), TempSQLiteConfig(tb), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedUser inserts a user with a placeholder password hash.
func SeedUser(tb testing.TB, store *sqlite.Store, id string, admin bool) persistence.User {
	tb.Helper()
	now := ReferenceTime()
	user := persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		Name:         id,
		PasswordHash: "unused",
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Users.CreateUser(context.Background(), user); err != nil {
		tb.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

// SeedRoom inserts a room without capacity or location.
func SeedRoom(tb testing.TB, store *sqlite.Store, id, name string) persistence.Room {
	tb.Helper()
	now := ReferenceTime()
	room := persistence.Room{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := store.Rooms.CreateRoom(context.Background(), room); err != nil {
		tb.Fatalf("failed to seed room %s: %v", id, err)
	}
	return room
}
