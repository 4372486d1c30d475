package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/scheduler"
)

// userStore backs both the user service and the auth credential lookups.
type userStore struct {
	repo persistence.UserRepository
}

func newUserStore(repo persistence.UserRepository) *userStore {
	return &userStore{repo: repo}
}

func (a *userStore) CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(credentials)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, credentials.User.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *userStore) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type roomStore struct {
	repo persistence.RoomRepository
}

func newRoomStore(repo persistence.RoomRepository) *roomStore {
	return &roomStore{repo: repo}
}

func (a *roomStore) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomStore) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomStore) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomStore) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomStore) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type bookingStore struct {
	repo persistence.BookingRepository
}

func newBookingStore(repo persistence.BookingRepository) *bookingStore {
	return &bookingStore{repo: repo}
}

func (a *bookingStore) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingStore) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingStore) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingStore) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func (a *bookingStore) ListBookingsByRoom(ctx context.Context, roomID string) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{RoomID: roomID})
}

func (a *bookingStore) ListBookingsByUser(ctx context.Context, userID string) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{UserID: userID})
}

func (a *bookingStore) list(ctx context.Context, filter persistence.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

type eventStore struct {
	repo persistence.EventRepository
}

func newEventStore(repo persistence.EventRepository) *eventStore {
	return &eventStore{repo: repo}
}

func (a *eventStore) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventStore) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventStore) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStore) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventStore) ListEvents(ctx context.Context, from, to scheduler.Date) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

// reservationSnapshots reads the committed reservations of one room on one
// date for the conflict policy.
type reservationSnapshots struct {
	bookings persistence.BookingRepository
	events   persistence.EventRepository
}

func newReservationSnapshots(bookings persistence.BookingRepository, events persistence.EventRepository) *reservationSnapshots {
	return &reservationSnapshots{bookings: bookings, events: events}
}

func (a *reservationSnapshots) ListRoomBookings(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	models, err := a.bookings.ListBookings(ctx, persistence.BookingFilter{RoomID: roomID, Date: date})
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Reservation, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationBooking(model).Reservation())
	}
	return out, nil
}

func (a *reservationSnapshots) ListRoomEvents(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	models, err := a.events.ListEvents(ctx, persistence.EventFilter{RoomID: roomID, From: date, To: date})
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Reservation, 0, len(models))
	for _, model := range models {
		if r, ok := toApplicationEvent(model).Reservation(); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type sessionStore struct {
	repo   persistence.SessionRepository
	logger *slog.Logger
}

func newSessionStore(repo persistence.SessionRepository, logger *slog.Logger) *sessionStore {
	return &sessionStore{repo: repo, logger: logger}
}

func (a *sessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	return a.GetSession(ctx, session.ID)
}

func (a *sessionStore) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStore) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	return a.repo.RevokeSession(ctx, id, revokedAt)
}

func (a *sessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	removed, err := a.repo.DeleteExpiredSessions(ctx, reference)
	if err != nil {
		return err
	}
	if removed > 0 && a.logger != nil {
		a.logger.DebugContext(ctx, "purged expired sessions", "count", removed)
	}
	return nil
}

func toPersistenceUser(credentials application.UserCredentials) persistence.User {
	user := credentials.User
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: credentials.PasswordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Email:     model.Email,
		Name:      model.Name,
		IsAdmin:   model.IsAdmin,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  cloneInt(room.Capacity),
		Location:  cloneString(room.Location),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		Name:      model.Name,
		Capacity:  cloneInt(model.Capacity),
		Location:  cloneString(model.Location),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:        booking.ID,
		RoomID:    booking.RoomID,
		UserID:    booking.UserID,
		Date:      booking.Date,
		Start:     booking.Start,
		End:       booking.End,
		Title:     cloneString(booking.Title),
		CreatedAt: booking.CreatedAt,
		UpdatedAt: booking.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:        model.ID,
		RoomID:    model.RoomID,
		UserID:    model.UserID,
		Date:      model.Date,
		Start:     model.Start,
		End:       model.End,
		Title:     cloneString(model.Title),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: cloneString(event.Description),
		Date:        event.Date,
		Start:       event.Start,
		End:         event.End,
		RoomID:      cloneString(event.RoomID),
		CreatedBy:   event.CreatedBy,
		AttendeeIDs: append([]string(nil), event.AttendeeIDs...),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:          model.ID,
		Title:       model.Title,
		Description: cloneString(model.Description),
		Date:        model.Date,
		Start:       model.Start,
		End:         model.End,
		RoomID:      cloneString(model.RoomID),
		CreatedBy:   model.CreatedBy,
		AttendeeIDs: append([]string(nil), model.AttendeeIDs...),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
