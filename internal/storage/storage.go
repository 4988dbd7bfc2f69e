// Package storage keeps cover images in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reelvault/apiserver/config"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

// ErrObjectNotFound is returned by Get for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// LocalPrefix is the path covers are served from when no public URL is
// configured.
const LocalPrefix = "/covers/"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend and maps object keys to the URLs
// stored on movies.
type Storage struct {
	backend   ObjectStorage
	publicURL string
}

// NewStorage constructs a Storage wrapper for the provided backend. With an
// empty publicURL covers are addressed under LocalPrefix and served by the
// API itself.
func NewStorage(backend ObjectStorage, publicURL string) *Storage {
	return &Storage{
		backend:   backend,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
	}
}

// Open builds the backend selected by cfg. It returns nil, nil when no
// backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.StorageBackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageBackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return NewStorage(backend, cfg.PublicURL), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend client.
func (s *Storage) Close() error {
	return s.backend.Close()
}

// URL is the address recorded on a movie for key.
func (s *Storage) URL(key string) string {
	if s.publicURL == "" {
		return LocalPrefix + key
	}
	return s.publicURL + "/" + s.backend.Bucket() + "/" + key
}

// Key reverses URL. It reports false for addresses this storage did not
// produce, such as external cover links.
func (s *Storage) Key(url string) (string, bool) {
	prefix := LocalPrefix
	if s.publicURL != "" {
		prefix = s.publicURL + "/" + s.backend.Bucket() + "/"
	}
	key, ok := strings.CutPrefix(url, prefix)
	if !ok || !ValidKey(key) {
		return "", false
	}
	return key, true
}

var errInvalidKey = errors.New("invalid object key")

// ValidKey reports whether key looks like an uploaded cover key.
func ValidKey(key string) bool {
	return strings.HasPrefix(key, "covers/") && !strings.Contains(key, "..")
}

// OwnerOf extracts the owner segment of a cover key.
func OwnerOf(key string) (string, error) {
	if !ValidKey(key) {
		return "", errInvalidKey
	}
	rest := strings.TrimPrefix(key, "covers/")
	owner, _, ok := strings.Cut(rest, "/")
	if !ok || owner == "" {
		return "", errInvalidKey
	}
	return owner, nil
}
