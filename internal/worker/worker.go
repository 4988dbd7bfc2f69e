// Package worker consumes catalogue events published by the API server.
package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/mq"
	"github.com/reelvault/apiserver/internal/services"
)

// Subscriber is the consuming side of a broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// EventLogger records every catalogue event it receives.
type EventLogger struct {
	sub     Subscriber
	channel string
	log     logging.Logger
}

func NewEventLogger(sub Subscriber, channel string, log logging.Logger) *EventLogger {
	return &EventLogger{sub: sub, channel: channel, log: log}
}

// Run consumes until ctx is cancelled.
func (w *EventLogger) Run(ctx context.Context) error {
	w.log.Info(ctx, "worker started", "channel", w.channel)
	err := w.sub.Subscribe(ctx, w.channel, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle logs a single event. Undecodable payloads are logged and dropped
// rather than redelivered forever.
func (w *EventLogger) Handle(ctx context.Context, msg mq.Message) error {
	var event services.MovieEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.log.Warn(ctx, "dropping malformed event", "message_id", msg.ID, "error", err)
		return nil
	}

	switch event.Type {
	case services.EventMovieCreated, services.EventMovieUpdated, services.EventMovieDeleted:
		w.log.Info(ctx, "catalogue event",
			"message_id", msg.ID,
			"type", event.Type,
			"movie_id", event.MovieID,
			"owner_id", event.OwnerID,
			"occurred_at", event.OccurredAt,
		)
	default:
		w.log.Warn(ctx, "dropping unknown event", "message_id", msg.ID, "type", event.Type)
	}
	return nil
}
