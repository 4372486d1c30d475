package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/office-calendar/internal/persistence"
)

func TestNewSQLiteStoreIsMigrated(t *testing.T) {
	store := NewSQLiteStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	SeedUser(t, store, "alice", false)
	room := SeedRoom(t, store, "room-a", "Room A")

	stored, err := store.Rooms.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if stored.Name != "Room A" {
		t.Fatalf("unexpected room %+v", stored)
	}

	user, err := store.Users.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.ID != "alice" || user.IsAdmin {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestNewSQLiteStoreIsIsolated(t *testing.T) {
	first := NewSQLiteStore(t)
	second := NewSQLiteStore(t)

	SeedRoom(t, first, "room-a", "Room A")

	if _, err := second.Rooms.GetRoom(context.Background(), "room-a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from a separate store, got %v", err)
	}
}
