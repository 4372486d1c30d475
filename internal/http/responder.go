package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/lock"
	"github.com/example/office-calendar/internal/logging"
	"github.com/example/office-calendar/internal/scheduler"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidID           = errors.New("a resource id is required")
	errMissingSessionToken = errors.New("a session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.RoomConflictError
	if errors.As(err, &conflict) {
		conflicting := toReservationDTO(conflict.Conflicting)
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_CONFLICT",
			Message:   application.RoomConflictMessage,
			Conflict:  &conflicting,
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "The request contains invalid fields.",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrRoomConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ROOM_CONFLICT", Message: application.RoomConflictMessage})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "You are not allowed to perform this operation.",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "The email or password is incorrect.",
		})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "The session has ended. Please log in again.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "The requested resource was not found."})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "A resource with the same identity already exists."})
	case errors.Is(err, lock.ErrNotAcquired):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "The room is busy. Please retry."})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "An internal error occurred."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *reservationDTO   `json:"conflict,omitempty"`
}

type reservationDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toReservationDTO(r scheduler.Reservation) reservationDTO {
	return reservationDTO{
		ID:        r.ID,
		Kind:      string(r.Kind),
		RoomID:    r.RoomID,
		Date:      r.Date.String(),
		StartTime: r.Start.String(),
		EndTime:   r.End.String(),
	}
}

func toReservationDTOs(rs []scheduler.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r))
	}
	return out
}
