// Package notify publishes domain notifications after committed mutations.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/office-calendar/internal/logging"
)

// Routing keys for published notifications.
const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingCancelled = "booking.cancelled"
	EventCreated     = "event.created"
	EventUpdated     = "event.updated"
	EventDeleted     = "event.deleted"
)

// Message is the envelope published for every notification.
type Message struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher delivers a message under its routing key.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// LogPublisher writes notifications to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that logs at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs msg.
func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = p.logger
	}
	logger.InfoContext(ctx, "notification",
		slog.String("type", msg.Type),
		slog.String("actor_id", msg.ActorID),
		slog.Time("occurred_at", msg.OccurredAt),
	)
	return nil
}

// Discard drops every message.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Message) error { return nil }
