package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/types"
)

const (
	EventMovieCreated = "movie.created"
	EventMovieUpdated = "movie.updated"
	EventMovieDeleted = "movie.deleted"
)

const publishTimeout = 5 * time.Second

// EventPublisher sends a payload to a named channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// MovieEvent is the payload published after every catalogue change.
type MovieEvent struct {
	Type       string    `json:"type"`
	MovieID    uuid.UUID `json:"movie_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publish is best effort: the change is already committed, so failures are
// only logged.
func (s *MovieService) publish(ctx context.Context, eventType string, movie types.Movie) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(MovieEvent{
		Type:       eventType,
		MovieID:    movie.ID,
		OwnerID:    movie.OwnerID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error(ctx, "failed to encode event", "type", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{"type": eventType, "owner_id": movie.OwnerID.String()}
	if _, err := s.events.Publish(ctx, s.channel, data, attrs); err != nil {
		s.log.Warn(ctx, "failed to publish event", "type", eventType, "movie_id", movie.ID, "error", err)
	}
}
