package persistence

import (
	"time"

	"github.com/example/office-calendar/internal/scheduler"
)

// User represents an office account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
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

// Booking is a user's reservation of a room on a date.
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

// Event is a calendar entry that may occupy a room.
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

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
