package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/office-calendar/internal/lock"
	"github.com/example/office-calendar/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Resolve(context.Background(), logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scope(ctx, base, "service", serviceName, operation, attrs...)
}

var errorKinds = []struct {
	target error
	kind   string
}{
	{ErrRoomConflict, "room_conflict"},
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAlreadyExists, "already_exists"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrSessionExpired, "session_expired"},
	{ErrSessionRevoked, "session_revoked"},
	{lock.ErrNotAcquired, "lock_unavailable"},
}

// ErrorKind labels err for the error_kind log attribute.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}
