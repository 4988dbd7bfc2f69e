package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/reelvault/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	objects map[string][]byte
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "covers-bucket" }

func (m *memoryBackend) Close() error { return nil }

func TestStorage_URLAndKey(t *testing.T) {
	const key = "covers/0f8fad5b-d9cb-469f-a165-70867728950e/poster.png"

	tests := []struct {
		name      string
		publicURL string
		wantURL   string
	}{
		{name: "public url", publicURL: "https://cdn.example.com/", wantURL: "https://cdn.example.com/covers-bucket/" + key},
		{name: "served locally", publicURL: "", wantURL: "/covers/" + key},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStorage(&memoryBackend{objects: map[string][]byte{}}, tt.publicURL)

			url := s.URL(key)
			assert.Equal(t, tt.wantURL, url)

			got, ok := s.Key(url)
			require.True(t, ok)
			assert.Equal(t, key, got)

			_, ok = s.Key("https://placehold.co/300x450?text=No+Cover")
			assert.False(t, ok)
		})
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(&memoryBackend{objects: map[string][]byte{}}, "")

	require.NoError(t, s.Put(ctx, "covers/a/b.png", bytes.NewReader([]byte("img")), 3, "image/png"))

	rc, err := s.Get(ctx, "covers/a/b.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Delete(ctx, "covers/a/b.png"))
	_, err = s.Get(ctx, "covers/a/b.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOwnerOf(t *testing.T) {
	owner, err := OwnerOf("covers/alice/x.png")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	for _, key := range []string{"", "covers/", "covers/alice", "other/alice/x.png", "covers/../etc/passwd"} {
		_, err := OwnerOf(key)
		assert.Error(t, err, key)
	}
}

func TestOpen_NoBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
