package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/scheduler"
)

func mustDate(s string) scheduler.Date {
	return scheduler.MustParseDate(s)
}

func mustTime(s string) scheduler.TimeOfDay {
	return scheduler.MustParseTimeOfDay(s)
}

func newBooking(id, roomID, userID, date, start, end string) persistence.Booking {
	return persistence.Booking{
		ID:        id,
		RoomID:    roomID,
		UserID:    userID,
		Date:      mustDate(date),
		Start:     mustTime(start),
		End:       mustTime(end),
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func TestBookingRepository_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Aurora")
	seedUser(t, store, "user1", "alice@example.com", false)

	booking := newBooking("b1", "room1", "user1", "2024-06-10", "09:00", "10:30")
	booking.Title = strPtr("Standup")
	require.NoError(t, store.Bookings.CreateBooking(ctx, booking))

	got, err := store.Bookings.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "room1", got.RoomID)
	assert.Equal(t, "user1", got.UserID)
	assert.Equal(t, mustDate("2024-06-10"), got.Date)
	assert.Equal(t, mustTime("09:00"), got.Start)
	assert.Equal(t, mustTime("10:30"), got.End)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Standup", *got.Title)
	assert.True(t, got.CreatedAt.Equal(testTime))
}

func TestBookingRepository_CreateRejectsInvalidRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Aurora")
	seedUser(t, store, "user1", "alice@example.com", false)

	t.Run("inverted slot", func(t *testing.T) {
		err := store.Bookings.CreateBooking(ctx, newBooking("b1", "room1", "user1", "2024-06-10", "10:00", "09:00"))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("unknown room", func(t *testing.T) {
		err := store.Bookings.CreateBooking(ctx, newBooking("b2", "missing", "user1", "2024-06-10", "09:00", "10:00"))
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	})

	t.Run("duplicate id", func(t *testing.T) {
		require.NoError(t, store.Bookings.CreateBooking(ctx, newBooking("b3", "room1", "user1", "2024-06-10", "09:00", "10:00")))
		err := store.Bookings.CreateBooking(ctx, newBooking("b3", "room1", "user1", "2024-06-11", "09:00", "10:00"))
		assert.ErrorIs(t, err, persistence.ErrDuplicate)
	})
}

func TestBookingRepository_ListBookings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Aurora")
	seedRoom(t, store, "room2", "Borealis")
	seedUser(t, store, "user1", "alice@example.com", false)
	seedUser(t, store, "user2", "bob@example.com", false)

	for _, b := range []persistence.Booking{
		newBooking("b3", "room1", "user2", "2024-06-10", "13:00", "14:00"),
		newBooking("b1", "room1", "user1", "2024-06-10", "09:00", "10:00"),
		newBooking("b2", "room2", "user1", "2024-06-10", "09:00", "10:00"),
		newBooking("b4", "room1", "user1", "2024-06-11", "09:00", "10:00"),
	} {
		require.NoError(t, store.Bookings.CreateBooking(ctx, b))
	}

	ids := func(bookings []persistence.Booking) []string {
		out := make([]string, len(bookings))
		for i, b := range bookings {
			out[i] = b.ID
		}
		return out
	}

	all, err := store.Bookings.ListBookings(ctx, persistence.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3", "b4"}, ids(all))

	byRoomDay, err := store.Bookings.ListBookings(ctx, persistence.BookingFilter{RoomID: "room1", Date: mustDate("2024-06-10")})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b3"}, ids(byRoomDay))

	byUser, err := store.Bookings.ListBookings(ctx, persistence.BookingFilter{UserID: "user1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b4"}, ids(byUser))

	none, err := store.Bookings.ListBookings(ctx, persistence.BookingFilter{RoomID: "room2", Date: mustDate("2024-06-11")})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBookingRepository_UpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Aurora")
	seedRoom(t, store, "room2", "Borealis")
	seedUser(t, store, "user1", "alice@example.com", false)

	booking := newBooking("b1", "room1", "user1", "2024-06-10", "09:00", "10:00")
	require.NoError(t, store.Bookings.CreateBooking(ctx, booking))

	booking.RoomID = "room2"
	booking.Start = mustTime("11:00")
	booking.End = mustTime("12:00")
	booking.UpdatedAt = testTime.Add(1)
	require.NoError(t, store.Bookings.UpdateBooking(ctx, booking))

	got, err := store.Bookings.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "room2", got.RoomID)
	assert.Equal(t, "11:00", got.Start.String())
	assert.Nil(t, got.Title)

	missing := booking
	missing.ID = "nope"
	assert.ErrorIs(t, store.Bookings.UpdateBooking(ctx, missing), persistence.ErrNotFound)

	require.NoError(t, store.Bookings.DeleteBooking(ctx, "b1"))
	_, err = store.Bookings.GetBooking(ctx, "b1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, store.Bookings.DeleteBooking(ctx, "b1"), persistence.ErrNotFound)
}
