package sync

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// queuedEvent is a raw native event waiting in the processor's queue, tagged
// with a correlation id for logs and spans.
type queuedEvent struct {
	id    uuid.UUID
	event model.NativeEvent
}

type eventIDKey struct{}

func withEventID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventID returns the correlation id of the event being processed, if any.
func EventID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(eventIDKey{}).(uuid.UUID)
	return id, ok
}

// loggerFor adds the event correlation id carried by ctx to logger.
func loggerFor(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id, ok := EventID(ctx); ok {
		return logger.With("event_id", id.String())
	}
	return logger
}
