package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/scheduler"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
	ListRoomsWithBookings(ctx context.Context, principal application.Principal) ([]application.RoomWithBookings, error)
}

type roomScheduleService interface {
	ListBookingsByRoom(ctx context.Context, principal application.Principal, roomID string) ([]application.Booking, error)
	CheckAvailability(ctx context.Context, query application.AvailabilityQuery) (application.Availability, error)
}

type RoomHandler struct {
	service   roomService
	schedule  roomScheduleService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, schedule roomScheduleService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, schedule: schedule, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// ListWithBookings returns every room together with its bookings.
func (h *RoomHandler) ListWithBookings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRoomsWithBookings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]roomWithBookingsDTO, 0, len(rooms))
	for _, rb := range rooms {
		out = append(out, roomWithBookingsDTO{roomDTO: toRoomDTO(rb.Room), Bookings: toBookingDTOs(rb.Bookings)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsWithBookingsResponse{Rooms: out})
}

func (h *RoomHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.schedule == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bookings, err := h.schedule.ListBookingsByRoom(r.Context(), principal, roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Availability answers GET /rooms/{id}/availability?date=&start=&end=&exclude=&kind=.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.schedule == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	q := r.URL.Query()
	result, err := h.schedule.CheckAvailability(r.Context(), application.AvailabilityQuery{
		Principal: principal,
		RoomID:    roomID,
		Date:      q.Get("date"),
		StartTime: q.Get("start"),
		EndTime:   q.Get("end"),
		ExcludeID: q.Get("exclude"),
		Kind:      scheduler.ReservationKind(q.Get("kind")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: result.Available,
		Conflicts: toReservationDTOs(result.Conflicts),
	})
}

type roomRequest struct {
	Name     string  `json:"name"`
	Capacity *int    `json:"capacity"`
	Location *string `json:"location"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:     r.Name,
		Capacity: r.Capacity,
		Location: trimmedPtr(r.Location),
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type listRoomsWithBookingsResponse struct {
	Rooms []roomWithBookingsDTO `json:"rooms"`
}

type availabilityResponse struct {
	Available bool             `json:"available"`
	Conflicts []reservationDTO `json:"conflicts"`
}

type roomDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Capacity  *int    `json:"capacity,omitempty"`
	Location  *string `json:"location,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type roomWithBookingsDTO struct {
	roomDTO
	Bookings []bookingDTO `json:"bookings"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		Location:  room.Location,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: room.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
