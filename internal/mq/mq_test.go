package mq

import (
	"context"
	"testing"

	"github.com/reelvault/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopback struct {
	handlers map[string]Handler
	closed   bool
}

func (l *loopback) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if h, ok := l.handlers[channel]; ok {
		return "1", h(ctx, Message{ID: "1", Data: data, Attributes: attrs})
	}
	return "1", nil
}

func (l *loopback) Subscribe(_ context.Context, channel string, handler Handler) error {
	l.handlers[channel] = handler
	return nil
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func TestMQ_DelegatesToBackend(t *testing.T) {
	ctx := context.Background()
	backend := &loopback{handlers: map[string]Handler{}}
	q := New(backend)

	var got Message
	require.NoError(t, q.Subscribe(ctx, "movie-events", func(_ context.Context, msg Message) error {
		got = msg
		return nil
	}))

	id, err := q.Publish(ctx, "movie-events", []byte(`{}`), map[string]string{"type": "movie.created"})
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, "movie.created", got.Attributes["type"])

	require.NoError(t, q.Close())
	assert.True(t, backend.closed)
}

func TestOpen(t *testing.T) {
	q, err := Open(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.MQBackendRabbitMQ})
	assert.Error(t, err, "empty url")
}
