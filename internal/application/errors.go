package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/office-calendar/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute such as an email or room name is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login credentials or a session token do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session was logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrRoomConflict is matched by every *RoomConflictError.
	ErrRoomConflict = errors.New("application: room not available")
)

// RoomConflictMessage is the caller-facing text for a room conflict.
const RoomConflictMessage = "The selected room is not available at the requested time"

// RoomConflictError reports the reservation that blocked a room mutation.
type RoomConflictError struct {
	RoomID      string
	Requested   scheduler.Interval
	Conflicting scheduler.Reservation
}

// Error implements the error interface.
func (e *RoomConflictError) Error() string {
	return fmt.Sprintf("room %s is not available on %s %s-%s: overlaps %s %s",
		e.RoomID, e.Requested.Date, e.Requested.Start, e.Requested.End,
		e.Conflicting.Kind, e.Conflicting.ID)
}

// Is lets errors.Is match ErrRoomConflict.
func (e *RoomConflictError) Is(target error) bool {
	return target == ErrRoomConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
