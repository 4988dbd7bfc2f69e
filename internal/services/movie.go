package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/filter"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/storage"
	"github.com/reelvault/apiserver/internal/store"
	"github.com/reelvault/apiserver/types"
)

// MaxCoverBytes caps an uploaded cover image.
const MaxCoverBytes = 5 << 20

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MovieRepository defines persistence operations for movies. Update and
// Delete are scoped to the movie's owner and report store.ErrNotFound when
// nothing matched.
type MovieRepository interface {
	List(ctx context.Context, p filter.Predicate) ([]types.Movie, error)
	Get(ctx context.Context, id uuid.UUID) (types.Movie, error)
	Create(ctx context.Context, movie types.Movie) (types.Movie, error)
	Update(ctx context.Context, movie types.Movie) (types.Movie, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// CoverStore keeps uploaded cover images.
type CoverStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Key(url string) (string, bool)
}

// MovieService encapsulates the movie catalogue use-cases. Every operation
// acts on behalf of a principal and never touches another user's movies.
type MovieService struct {
	repo    MovieRepository
	covers  CoverStore
	events  EventPublisher
	channel string
	log     logging.Logger
}

func NewMovieService(repo MovieRepository, log logging.Logger) *MovieService {
	return &MovieService{repo: repo, log: log}
}

// WithCovers enables cover image uploads.
func (s *MovieService) WithCovers(covers CoverStore) *MovieService {
	s.covers = covers
	return s
}

// WithEvents publishes catalogue changes to channel.
func (s *MovieService) WithEvents(events EventPublisher, channel string) *MovieService {
	s.events = events
	s.channel = channel
	return s
}

// CoversEnabled reports whether cover uploads are accepted.
func (s *MovieService) CoversEnabled() bool {
	return s.covers != nil
}

// List returns all of principal's movies, newest first.
func (s *MovieService) List(ctx context.Context, principal types.User) ([]types.Movie, error) {
	return s.Filter(ctx, principal, filter.Criteria{})
}

// Filter returns principal's movies matching c, newest first.
func (s *MovieService) Filter(ctx context.Context, principal types.User, c filter.Criteria) ([]types.Movie, error) {
	movies, err := s.repo.List(ctx, filter.Build(principal.ID, c))
	if err != nil {
		return nil, unavailable("list movies", err)
	}
	return movies, nil
}

// Authorize loads the movie id and checks that principal owns it.
func (s *MovieService) Authorize(ctx context.Context, principal types.User, id uuid.UUID) (types.Movie, error) {
	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, unavailable("get movie", err)
	}
	if movie.OwnerID != principal.ID {
		return types.Movie{}, ErrForbidden
	}
	return movie, nil
}

// Get returns one of principal's movies.
func (s *MovieService) Get(ctx context.Context, principal types.User, id uuid.UUID) (types.Movie, error) {
	return s.Authorize(ctx, principal, id)
}

// Create adds a movie owned by principal.
func (s *MovieService) Create(ctx context.Context, principal types.User, in MovieInput) (types.Movie, error) {
	if err := s.validate(principal, in); err != nil {
		return types.Movie{}, err
	}

	movie := in.toMovie()
	movie.ID = uuid.New()
	movie.OwnerID = principal.ID

	uploaded, err := s.storeCover(ctx, principal.ID, in.Cover)
	if err != nil {
		return types.Movie{}, err
	}
	if uploaded != "" {
		movie.CoverImage = s.covers.URL(uploaded)
	}

	created, err := s.repo.Create(ctx, movie)
	if err != nil {
		s.dropCover(ctx, uploaded)
		return types.Movie{}, unavailable("create movie", err)
	}

	s.publish(ctx, EventMovieCreated, created)
	return created, nil
}

// Update replaces the editable fields of one of principal's movies.
func (s *MovieService) Update(ctx context.Context, principal types.User, id uuid.UUID, in MovieInput) (types.Movie, error) {
	current, err := s.Authorize(ctx, principal, id)
	if err != nil {
		return types.Movie{}, err
	}
	if err := s.validate(principal, in); err != nil {
		return types.Movie{}, err
	}

	movie := in.toMovie()
	movie.ID = current.ID
	movie.OwnerID = current.OwnerID

	uploaded, err := s.storeCover(ctx, principal.ID, in.Cover)
	if err != nil {
		return types.Movie{}, err
	}
	if uploaded != "" {
		movie.CoverImage = s.covers.URL(uploaded)
	}

	updated, err := s.repo.Update(ctx, movie)
	if err != nil {
		s.dropCover(ctx, uploaded)
		if errors.Is(err, store.ErrNotFound) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, unavailable("update movie", err)
	}

	if current.CoverImage != updated.CoverImage {
		s.dropCoverURL(ctx, principal, current.CoverImage)
	}
	s.publish(ctx, EventMovieUpdated, updated)
	return updated, nil
}

// Delete removes one of principal's movies.
func (s *MovieService) Delete(ctx context.Context, principal types.User, id uuid.UUID) error {
	current, err := s.Authorize(ctx, principal, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, current.ID, principal.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable("delete movie", err)
	}

	s.dropCoverURL(ctx, principal, current.CoverImage)
	s.publish(ctx, EventMovieDeleted, current)
	return nil
}

func (s *MovieService) validate(principal types.User, in MovieInput) error {
	verr := &ValidationError{Fields: map[string]string{}}
	if err := ValidateMovie(in); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}

	if in.Cover != nil {
		if msg := s.checkCover(in.Cover); msg != "" {
			verr.Fields["cover_file"] = msg
		}
	}
	if _, taken := verr.Fields["cover_image"]; !taken && !s.ownsCoverURL(principal, in.CoverImage) {
		verr.Fields["cover_image"] = "must not point to another user's upload"
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *MovieService) checkCover(c *CoverUpload) string {
	switch {
	case s.covers == nil:
		return "cover uploads are not enabled"
	case len(c.Data) == 0:
		return "is empty"
	case len(c.Data) > MaxCoverBytes:
		return fmt.Sprintf("must be at most %d MiB", MaxCoverBytes>>20)
	}
	if _, ok := coverExtensions[sniffImage(c.Data)]; !ok {
		return "must be a JPEG, PNG, GIF or WebP image"
	}
	return ""
}

// storeCover uploads c and returns its object key, or "" when there is no
// upload.
func (s *MovieService) storeCover(ctx context.Context, ownerID uuid.UUID, c *CoverUpload) (string, error) {
	if c == nil {
		return "", nil
	}

	contentType := sniffImage(c.Data)
	key := fmt.Sprintf("covers/%s/%s%s", ownerID, uuid.NewString(), coverExtensions[contentType])
	if err := s.covers.Put(ctx, key, bytes.NewReader(c.Data), int64(len(c.Data)), contentType); err != nil {
		return "", unavailable("upload cover", err)
	}
	return key, nil
}

func (s *MovieService) dropCover(ctx context.Context, key string) {
	if key == "" || s.covers == nil {
		return
	}
	if err := s.covers.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to delete cover", "key", key, "error", err)
	}
}

// dropCoverURL deletes the object behind url when it is an upload of
// principal. Other users' objects are never touched.
func (s *MovieService) dropCoverURL(ctx context.Context, principal types.User, url string) {
	if s.covers == nil {
		return
	}
	key, ok := s.covers.Key(url)
	if !ok {
		return
	}
	if owner, err := storage.OwnerOf(key); err != nil || owner != principal.ID.String() {
		return
	}
	s.dropCover(ctx, key)
}

// ownsCoverURL reports whether url is acceptable as principal's cover: any
// external URL, or an upload stored under principal's own prefix.
func (s *MovieService) ownsCoverURL(principal types.User, url string) bool {
	if s.covers == nil {
		return true
	}
	key, ok := s.covers.Key(strings.TrimSpace(url))
	if !ok {
		return true
	}
	owner, err := storage.OwnerOf(key)
	return err == nil && owner == principal.ID.String()
}

func sniffImage(data []byte) string {
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType
}

func (in MovieInput) toMovie() types.Movie {
	in = in.trimmed()
	movie := types.Movie{
		Name:        in.Name,
		Description: in.Description,
		Genres:      canonicalGenres(in.Genres),
		CoverImage:  in.CoverImage,
	}
	if in.Year != nil {
		movie.Year = *in.Year
	}
	if in.Rating != nil {
		movie.Rating = *in.Rating
	}
	if movie.CoverImage == "" {
		movie.CoverImage = types.DefaultCoverImage
	}
	return movie
}
