package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/persistence/sqlite/migration"
)

var testTime = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	config := migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "test.db"))
	store, err := Open(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func seedRoom(t *testing.T, store *Store, id, name string) persistence.Room {
	t.Helper()
	room := persistence.Room{ID: id, Name: name, Capacity: intPtr(8), CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.Rooms.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom(%s) failed: %v", id, err)
	}
	return room
}

func TestRoomRepository_CreateRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	room := persistence.Room{
		ID:        "room1",
		Name:      "Conference Room A",
		Capacity:  intPtr(10),
		Location:  strPtr("Building 1, Floor 2"),
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if err := store.Rooms.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	retrieved, err := store.Rooms.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if retrieved.Name != "Conference Room A" {
		t.Errorf("Expected name 'Conference Room A', got '%s'", retrieved.Name)
	}
	if retrieved.Capacity == nil || *retrieved.Capacity != 10 {
		t.Errorf("Expected capacity 10, got %v", retrieved.Capacity)
	}
	if retrieved.Location == nil || *retrieved.Location != "Building 1, Floor 2" {
		t.Errorf("Expected location 'Building 1, Floor 2', got %v", retrieved.Location)
	}
	if !retrieved.CreatedAt.Equal(testTime) {
		t.Errorf("Expected created_at %s, got %s", testTime, retrieved.CreatedAt)
	}
}

func TestRoomRepository_CreateRoom_OptionalFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Rooms.CreateRoom(ctx, persistence.Room{ID: "room1", Name: "Focus Booth"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	retrieved, err := store.Rooms.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if retrieved.Capacity != nil || retrieved.Location != nil {
		t.Errorf("Expected nil capacity and location, got %v and %v", retrieved.Capacity, retrieved.Location)
	}
}

func TestRoomRepository_CreateRoom_InvalidCapacity(t *testing.T) {
	store := newTestStore(t)

	err := store.Rooms.CreateRoom(context.Background(), persistence.Room{ID: "room1", Name: "A", Capacity: intPtr(0)})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation, got %v", err)
	}
}

func TestRoomRepository_CreateRoom_DuplicateName(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "room1", "Aurora")

	err := store.Rooms.CreateRoom(context.Background(), persistence.Room{ID: "room2", Name: "aurora"})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
}

func TestRoomRepository_UpdateRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := seedRoom(t, store, "room1", "Conference Room A")

	room.Name = "Updated Conference Room"
	room.Capacity = intPtr(15)
	room.UpdatedAt = testTime.Add(time.Hour)
	if err := store.Rooms.UpdateRoom(ctx, room); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}

	retrieved, err := store.Rooms.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if retrieved.Name != "Updated Conference Room" {
		t.Errorf("Expected name 'Updated Conference Room', got '%s'", retrieved.Name)
	}
	if retrieved.Capacity == nil || *retrieved.Capacity != 15 {
		t.Errorf("Expected capacity 15, got %v", retrieved.Capacity)
	}

	room.ID = "missing"
	if err := store.Rooms.UpdateRoom(ctx, room); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown room, got %v", err)
	}
}

func TestRoomRepository_ListRooms(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "room2", "conference Room B")
	seedRoom(t, store, "room1", "Conference Room A")

	retrieved, err := store.Rooms.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(retrieved) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(retrieved))
	}
	if retrieved[0].ID != "room1" || retrieved[1].ID != "room2" {
		t.Errorf("Expected rooms ordered case-insensitively by name, got %s, %s", retrieved[0].ID, retrieved[1].ID)
	}
}

func TestRoomRepository_DeleteRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Aurora")
	user := seedUser(t, store, "user1", "alice@example.com", false)

	booking := persistence.Booking{
		ID: "b1", RoomID: "room1", UserID: user.ID,
		Date: mustDate("2024-06-10"), Start: mustTime("09:00"), End: mustTime("10:00"),
	}
	if err := store.Bookings.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	event := persistence.Event{
		ID: "e1", Title: "All hands", RoomID: strPtr("room1"), CreatedBy: user.ID,
		Date: mustDate("2024-06-10"), Start: mustTime("11:00"), End: mustTime("12:00"),
	}
	if err := store.Events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if err := store.Rooms.DeleteRoom(ctx, "room1"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}

	if _, err := store.Rooms.GetRoom(ctx, "room1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected room to be deleted, got %v", err)
	}
	if _, err := store.Bookings.GetBooking(ctx, "b1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected booking to be deleted with its room, got %v", err)
	}
	detached, err := store.Events.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("Expected event to survive room deletion: %v", err)
	}
	if detached.RoomID != nil {
		t.Fatalf("Expected event room to be cleared, got %v", *detached.RoomID)
	}

	if err := store.Rooms.DeleteRoom(ctx, "room1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
