package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// RoomBookingLister lists the bookings of a single room.
type RoomBookingLister interface {
	ListBookingsByRoom(ctx context.Context, roomID string) ([]Booking, error)
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	bookings    RoomBookingLister
	maxCapacity int
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, bookings RoomBookingLister, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, bookings, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, bookings RoomBookingLister, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, bookings: bookings, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// WithMaxCapacity caps the capacity a room may declare. Zero means no cap.
func (s *RoomService) WithMaxCapacity(limit int) *RoomService {
	if s != nil && limit > 0 {
		s.maxCapacity = limit
	}
	return s
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom stores a new room. Only administrators manage the room catalog.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}

	logger := s.loggerWith(ctx, "CreateRoom", "principal_id", params.Principal.UserID)
	defer func() { s.logOutcome(ctx, logger, "room created", room.ID, err) }()

	if err = s.checkAdminInput(params.Principal, params.Input); err != nil {
		return Room{}, err
	}

	now := s.now()
	room = Room{ID: s.idGenerator(), CreatedAt: now}
	applyRoomInput(&room, params.Input, now)
	if s.rooms == nil {
		return room, nil
	}

	room, err = s.rooms.CreateRoom(ctx, room)
	return room, mapRoomRepoError(err)
}

// UpdateRoom replaces the editable attributes of an existing room.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if !params.Principal.IsAdmin {
		return Room{}, ErrUnauthorized
	}
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "principal_id", params.Principal.UserID, "room_id", params.RoomID)
	defer func() { s.logOutcome(ctx, logger, "room updated", room.ID, err) }()

	existing, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	if err = s.checkAdminInput(params.Principal, params.Input); err != nil {
		return Room{}, err
	}

	applyRoomInput(&existing, params.Input, s.now())
	room, err = s.rooms.UpdateRoom(ctx, existing)
	return room, mapRoomRepoError(err)
}

// DeleteRoom removes a room. Its bookings go with it; events that used it
// keep existing without a room.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) (err error) {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "principal_id", principal.UserID, "room_id", roomID)
	defer func() { s.logOutcome(ctx, logger, "room deleted", roomID, err) }()

	return mapRoomRepoError(s.rooms.DeleteRoom(ctx, roomID))
}

func (s *RoomService) checkAdminInput(principal Principal, input RoomInput) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if vErr := s.validateRoomInput(input); vErr.HasErrors() {
		return vErr
	}
	return nil
}

func (s *RoomService) logOutcome(ctx context.Context, logger *slog.Logger, msg, roomID string, err error) {
	if err != nil {
		logger.ErrorContext(ctx, "room operation failed", "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, msg, "room_id", roomID)
}

func applyRoomInput(room *Room, input RoomInput, now time.Time) {
	room.Name = strings.TrimSpace(input.Name)
	room.Capacity = input.Capacity
	room.Location = normalizeOptionalString(input.Location)
	room.UpdatedAt = now
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, ErrNotFound
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the catalog of rooms for any authenticated user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	rooms = slices.Clone(raw)
	slices.SortFunc(rooms, func(a, b Room) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return rooms, nil
}

// ListRoomsWithBookings returns every room together with its bookings.
func (s *RoomService) ListRoomsWithBookings(ctx context.Context, principal Principal) (result []RoomWithBookings, err error) {
	var rooms []Room
	rooms, err = s.ListRooms(ctx, principal)
	if err != nil {
		return
	}

	result = make([]RoomWithBookings, 0, len(rooms))
	for _, room := range rooms {
		entry := RoomWithBookings{Room: room, Bookings: []Booking{}}
		if s.bookings != nil {
			var bookings []Booking
			bookings, err = s.bookings.ListBookingsByRoom(ctx, room.ID)
			if err != nil {
				err = fmt.Errorf("list bookings for room %s: %w", room.ID, err)
				return nil, err
			}
			entry.Bookings = bookings
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *RoomService) validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity != nil {
		switch {
		case *input.Capacity <= 0:
			vErr.add("capacity", "capacity must be positive")
		case s.maxCapacity > 0 && *input.Capacity > s.maxCapacity:
			vErr.add("capacity", fmt.Sprintf("capacity must not exceed %d", s.maxCapacity))
		}
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("capacity", "capacity must be positive")
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
