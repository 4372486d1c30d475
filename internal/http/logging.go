package http

import (
	"context"
	"log/slog"

	"github.com/example/office-calendar/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Resolve(context.Background(), logger)
}

// handlerLogger inherits request_id and method from RequestLogger when the
// request passed through it.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Scope(ctx, fallback, "handler", handlerName, operation, attrs...)
}
