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

// EventRepository captures the persistence operations needed by the event service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, from, to scheduler.Date) ([]Event, error)
}

// EventService manages calendar events. Mutations are reserved for administrators.
type EventService struct {
	events      EventRepository
	rooms       RoomCatalog
	policy      *ConflictPolicy
	publisher   notify.Publisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventServiceWithLogger constructs an event service.
func NewEventServiceWithLogger(events EventRepository, rooms RoomCatalog, policy *ConflictPolicy, publisher notify.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
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
	return &EventService{
		events:      events,
		rooms:       rooms,
		policy:      policy,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent stores a new event. When the event names a room, the room must
// be free of bookings and other events for the slot.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var candidate Event
	candidate, err = s.buildEvent(ctx, params.Input)
	if err != nil {
		return
	}
	now := s.now()
	candidate.ID = s.idGenerator()
	candidate.CreatedBy = params.Principal.UserID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	err = s.policy.Guard(ctx, eventGuard(candidate, ""), func(ctx context.Context) error {
		persisted, cErr := s.events.CreateEvent(ctx, candidate)
		if cErr != nil {
			return mapEventRepoError(cErr)
		}
		event = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, notify.EventCreated, params.Principal, event)
	return
}

// UpdateEvent replaces an event's fields and attendees. The event's own slot
// is ignored by the conflict check.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var existing Event
	existing, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}

	var updated Event
	updated, err = s.buildEvent(ctx, params.Input)
	if err != nil {
		return
	}
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	err = s.policy.Guard(ctx, eventGuard(updated, existing.ID), func(ctx context.Context) error {
		persisted, uErr := s.events.UpdateEvent(ctx, updated)
		if uErr != nil {
			return mapEventRepoError(uErr)
		}
		event = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, notify.EventUpdated, params.Principal, event)
	return
}

// DeleteEvent removes an event and its attendee list.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.UserID,
		"event_id", eventID,
	)

	existing, err := s.events.GetEvent(ctx, eventID)
	if err == nil {
		err = s.events.DeleteEvent(ctx, eventID)
	}
	if err != nil {
		err = mapEventRepoError(err)
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "event deleted")
	s.publish(ctx, logger, notify.EventDeleted, principal, existing)
	return nil
}

// GetEvent returns a single event.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if principal.UserID == "" {
		return Event{}, ErrUnauthorized
	}
	if s.events == nil {
		return Event{}, ErrNotFound
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// ListEvents returns events between the optional inclusive From and To dates.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if params.Principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if s.events == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListEvents",
		"principal_id", params.Principal.UserID,
		"from", params.From,
		"to", params.To,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	var from, to scheduler.Date
	vErr := &ValidationError{}
	if strings.TrimSpace(params.From) != "" {
		if from, err = scheduler.ParseDate(strings.TrimSpace(params.From)); err != nil {
			vErr.add("from", "from must be YYYY-MM-DD")
		}
	}
	if strings.TrimSpace(params.To) != "" {
		if to, err = scheduler.ParseDate(strings.TrimSpace(params.To)); err != nil {
			vErr.add("to", "to must be YYYY-MM-DD")
		}
	}
	if !vErr.HasErrors() && !from.IsZero() && !to.IsZero() && to.Before(from) {
		vErr.add("to", "to must not be before from")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	events, err = s.events.ListEvents(ctx, from, to)
	return events, err
}

func (s *EventService) buildEvent(ctx context.Context, input EventInput) (Event, error) {
	vErr := &ValidationError{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	slot, err := parseSlotInput(input.Date, input.StartTime, input.EndTime)
	var parsed *ValidationError
	if errors.As(err, &parsed) {
		vErr.merge(parsed)
	}
	if vErr.HasErrors() {
		return Event{}, vErr
	}

	roomID := normalizeOptionalString(input.RoomID)
	if roomID != nil && s.rooms != nil {
		if _, err := s.rooms.GetRoom(ctx, *roomID); err != nil {
			return Event{}, mapRoomRepoError(err)
		}
	}

	return Event{
		Title:       title,
		Description: normalizeOptionalString(input.Description),
		Date:        slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		RoomID:      roomID,
		AttendeeIDs: normalizeIDs(input.AttendeeIDs),
	}, nil
}

func (s *EventService) publish(ctx context.Context, logger *slog.Logger, kind string, principal Principal, event Event) {
	payload := eventPayload{
		ID:          event.ID,
		Title:       event.Title,
		Date:        event.Date.String(),
		StartTime:   event.Start.String(),
		EndTime:     event.End.String(),
		RoomID:      event.RoomID,
		AttendeeIDs: event.AttendeeIDs,
	}
	msg := notify.Message{Type: kind, ActorID: principal.UserID, OccurredAt: s.now(), Data: payload}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logger.WarnContext(ctx, "failed to publish notification", "type", kind, "error", err)
	}
}

type eventPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	RoomID      *string  `json:"room_id,omitempty"`
	AttendeeIDs []string `json:"attendee_ids,omitempty"`
}

func eventGuard(e Event, excludeID string) GuardRequest {
	req := GuardRequest{
		Kind:      scheduler.KindEvent,
		Date:      e.Date,
		Start:     e.Start,
		End:       e.End,
		ExcludeID: excludeID,
	}
	if e.RoomID != nil {
		req.RoomID = *e.RoomID
	}
	return req
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
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
