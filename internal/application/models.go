package application

import (
	"time"

	"github.com/example/office-calendar/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents an office account exposed by the application services.
type User struct {
	ID        string
	Email     string
	Name      string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterParams captures a self-service sign up.
type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	Capacity *int
	Location *string
}

// Room represents a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Capacity  *int
	Location  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomWithBookings pairs a room with its bookings.
type RoomWithBookings struct {
	Room     Room
	Bookings []Booking
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// BookingInput captures caller provided booking fields. Date is YYYY-MM-DD
// and the times are HH:MM.
type BookingInput struct {
	RoomID    string
	Date      string
	StartTime string
	EndTime   string
	Title     *string
}

// Booking is a user's reservation of a room.
type Booking struct {
	ID        string
	RoomID    string
	UserID    string
	Date      scheduler.Date
	Start     scheduler.TimeOfDay
	End       scheduler.TimeOfDay
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservation converts the booking into the form the conflict checker consumes.
func (b Booking) Reservation() scheduler.Reservation {
	return scheduler.Reservation{
		ID:       b.ID,
		Kind:     scheduler.KindBooking,
		RoomID:   b.RoomID,
		Interval: scheduler.Interval{Date: b.Date, Start: b.Start, End: b.End},
	}
}

// BookRoomParams wraps the data required to book a room.
type BookRoomParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to change a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Input     BookingInput
}

// EventInput captures caller provided event fields. A nil or blank RoomID
// means the event does not occupy a room.
type EventInput struct {
	Title       string
	Description *string
	Date        string
	StartTime   string
	EndTime     string
	RoomID      *string
	AttendeeIDs []string
}

// Event is a calendar entry created by an administrator.
type Event struct {
	ID          string
	Title       string
	Description *string
	Date        scheduler.Date
	Start       scheduler.TimeOfDay
	End         scheduler.TimeOfDay
	RoomID      *string
	CreatedBy   string
	AttendeeIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation converts the event into the form the conflict checker
// consumes. ok is false for events without a room.
func (e Event) Reservation() (r scheduler.Reservation, ok bool) {
	if e.RoomID == nil || *e.RoomID == "" {
		return scheduler.Reservation{}, false
	}
	return scheduler.Reservation{
		ID:       e.ID,
		Kind:     scheduler.KindEvent,
		RoomID:   *e.RoomID,
		Interval: scheduler.Interval{Date: e.Date, Start: e.Start, End: e.End},
	}, true
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListEventsParams narrows an event listing. Blank bounds are open.
type ListEventsParams struct {
	Principal Principal
	From      string
	To        string
}

// AvailabilityQuery asks whether a room is free for a slot without writing.
// Kind selects which reservations are considered, as for the matching mutation.
type AvailabilityQuery struct {
	Principal Principal
	RoomID    string
	Date      string
	StartTime string
	EndTime   string
	ExcludeID string
	Kind      scheduler.ReservationKind
}

// Availability is the answer to an AvailabilityQuery.
type Availability struct {
	Available bool
	Conflicts []scheduler.Reservation
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// LoginParams captures the data required to authenticate a user.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult captures the outcome of a successful login.
type LoginResult struct {
	User    User
	Session Session
	Token   string
}
