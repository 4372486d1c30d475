package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/notify"
	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/scheduler"
)

// BookingRepository captures the persistence operations needed by the booking service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListBookingsByRoom(ctx context.Context, roomID string) ([]Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error)
}

// RoomCatalog resolves room identifiers.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// BookingService books rooms on behalf of users.
type BookingService struct {
	bookings    BookingRepository
	rooms       RoomCatalog
	policy      *ConflictPolicy
	publisher   notify.Publisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the default logger.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, policy *ConflictPolicy, publisher notify.Publisher, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, policy, publisher, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomCatalog, policy *ConflictPolicy, publisher notify.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = notify.Discard{}
	}
	logger = defaultLogger(logger)
	if policy == nil {
		policy = NewConflictPolicy(nil, nil, false, logger)
	}
	return &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		policy:      policy,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// BookRoom reserves a room for the calling user.
func (s *BookingService) BookRoom(ctx context.Context, params BookRoomParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "BookRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to book room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "room booked")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var slot scheduler.Interval
	slot, err = s.parseInput(params.Input, true)
	if err != nil {
		return
	}

	roomID := strings.TrimSpace(params.Input.RoomID)
	if err = s.requireRoom(ctx, roomID); err != nil {
		return
	}

	now := s.now()
	candidate := Booking{
		ID:        s.idGenerator(),
		RoomID:    roomID,
		UserID:    params.Principal.UserID,
		Date:      slot.Date,
		Start:     slot.Start,
		End:       slot.End,
		Title:     normalizeOptionalString(params.Input.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.policy.Guard(ctx, bookingGuard(candidate, ""), func(ctx context.Context) error {
		persisted, cErr := s.bookings.CreateBooking(ctx, candidate)
		if cErr != nil {
			return mapBookingRepoError(cErr)
		}
		booking = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, notify.BookingCreated, params.Principal, booking)
	return
}

// UpdateBooking moves or renames a booking. Only its owner or an administrator
// may change it. A blank RoomID keeps the current room.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	var slot scheduler.Interval
	slot, err = s.parseInput(params.Input, false)
	if err != nil {
		return
	}

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !canModify(params.Principal, existing.UserID) {
		err = ErrUnauthorized
		return
	}

	updated := existing
	if roomID := strings.TrimSpace(params.Input.RoomID); roomID != "" && roomID != existing.RoomID {
		if err = s.requireRoom(ctx, roomID); err != nil {
			return
		}
		updated.RoomID = roomID
	}
	updated.Date = slot.Date
	updated.Start = slot.Start
	updated.End = slot.End
	updated.Title = normalizeOptionalString(params.Input.Title)
	updated.UpdatedAt = s.now()

	err = s.policy.Guard(ctx, bookingGuard(updated, existing.ID), func(ctx context.Context) error {
		persisted, uErr := s.bookings.UpdateBooking(ctx, updated)
		if uErr != nil {
			return mapBookingRepoError(uErr)
		}
		booking = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, notify.BookingUpdated, params.Principal, booking)
	return
}

// CancelBooking deletes a booking owned by the principal, or any booking for administrators.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapBookingRepoError(err)
	}
	if !canModify(principal, existing.UserID) {
		return ErrUnauthorized
	}
	if err = s.bookings.DeleteBooking(ctx, bookingID); err != nil {
		return mapBookingRepoError(err)
	}

	s.publish(ctx, logger, notify.BookingCancelled, principal, existing)
	return nil
}

// GetBooking returns a single booking.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, ErrNotFound
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	return booking, nil
}

// ListBookingsByRoom returns every booking of a room ordered by date and time.
func (s *BookingService) ListBookingsByRoom(ctx context.Context, principal Principal, roomID string) (bookings []Booking, err error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListBookingsByRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list room bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "room bookings listed")
	}()

	if err = s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	bookings, err = s.bookings.ListBookingsByRoom(ctx, roomID)
	return bookings, err
}

// ListMyBookings returns the principal's own bookings.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal) (bookings []Booking, err error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if s.bookings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListMyBookings", "principal_id", principal.UserID)
	bookings, err = s.bookings.ListBookingsByUser(ctx, principal.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	return bookings, nil
}

// CheckAvailability reports whether a room is free for a slot and lists the
// reservations in the way. Nothing is written and no lock is taken.
func (s *BookingService) CheckAvailability(ctx context.Context, query AvailabilityQuery) (result Availability, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability",
		"principal_id", query.Principal.UserID,
		"room_id", query.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("available", result.Available).DebugContext(ctx, "availability checked")
	}()

	kind := query.Kind
	if kind == "" {
		kind = scheduler.KindBooking
	}
	if !kind.Valid() {
		err = newValidationError("kind", "kind must be booking or event")
		return
	}

	var slot scheduler.Interval
	slot, err = parseSlotInput(query.Date, query.StartTime, query.EndTime)
	if err != nil {
		return
	}
	if err = s.requireRoom(ctx, query.RoomID); err != nil {
		return
	}

	var conflicts []scheduler.Reservation
	conflicts, err = s.policy.Check(ctx, GuardRequest{
		Kind:      kind,
		RoomID:    query.RoomID,
		Date:      slot.Date,
		Start:     slot.Start,
		End:       slot.End,
		ExcludeID: query.ExcludeID,
	})
	if err != nil {
		return
	}
	if conflicts == nil {
		conflicts = []scheduler.Reservation{}
	}
	result = Availability{Available: len(conflicts) == 0, Conflicts: conflicts}
	return
}

func (s *BookingService) parseInput(input BookingInput, requireRoom bool) (scheduler.Interval, error) {
	slot, err := parseSlotInput(input.Date, input.StartTime, input.EndTime)
	vErr := &ValidationError{}
	var parsed *ValidationError
	if errors.As(err, &parsed) {
		vErr.merge(parsed)
	}
	if requireRoom && strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	return slot, nil
}

func (s *BookingService) requireRoom(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if strings.TrimSpace(roomID) == "" {
		return ErrNotFound
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return mapRoomRepoError(err)
	}
	return nil
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, kind string, principal Principal, booking Booking) {
	msg := notify.Message{
		Type:       kind,
		ActorID:    principal.UserID,
		OccurredAt: s.now(),
		Data:       bookingNotification(booking),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logger.WarnContext(ctx, "failed to publish notification", "type", kind, "error", err)
	}
}

type bookingPayload struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func bookingNotification(b Booking) bookingPayload {
	return bookingPayload{
		ID:        b.ID,
		RoomID:    b.RoomID,
		UserID:    b.UserID,
		Date:      b.Date.String(),
		StartTime: b.Start.String(),
		EndTime:   b.End.String(),
	}
}

func bookingGuard(b Booking, excludeID string) GuardRequest {
	return GuardRequest{
		Kind:      scheduler.KindBooking,
		RoomID:    b.RoomID,
		Date:      b.Date,
		Start:     b.Start,
		End:       b.End,
		ExcludeID: excludeID,
	}
}

func canModify(principal Principal, ownerID string) bool {
	return principal.IsAdmin || (principal.UserID != "" && principal.UserID == ownerID)
}

// parseSlotInput parses a date and an HH:MM range. Start must precede end.
func parseSlotInput(date, start, end string) (scheduler.Interval, error) {
	vErr := &ValidationError{}
	var slot scheduler.Interval
	var err error

	if slot.Date, err = scheduler.ParseDate(strings.TrimSpace(date)); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	if slot.Start, err = scheduler.ParseTimeOfDay(strings.TrimSpace(start)); err != nil {
		vErr.add("start_time", "start time must be HH:MM")
	}
	if slot.End, err = scheduler.ParseTimeOfDay(strings.TrimSpace(end)); err != nil {
		vErr.add("end_time", "end time must be HH:MM")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	if !slot.Valid() {
		return scheduler.Interval{}, validateSlot(slot.Start, slot.End)
	}
	return slot, nil
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *RoomConflictError
	if errors.As(err, &conflict) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("end_time", "end time must be after start time")
	}
	return err
}
