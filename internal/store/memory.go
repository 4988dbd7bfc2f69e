package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/filter"
	"github.com/reelvault/apiserver/types"
)

// MemoryUserRepository keeps users in RAM. It backs DB_DRIVER=memory and
// the handler tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]types.User
	byEmail map[string]uuid.UUID
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    map[uuid.UUID]types.User{},
		byEmail: map[string]uuid.UUID{},
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, ErrDuplicate
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

// MemoryMovieRepository keeps movies in RAM.
type MemoryMovieRepository struct {
	mu     sync.RWMutex
	movies map[uuid.UUID]types.Movie
	now    func() time.Time
}

func NewMemoryMovieRepository() *MemoryMovieRepository {
	return &MemoryMovieRepository{
		movies: map[uuid.UUID]types.Movie{},
		now:    monotonicClock(),
	}
}

func (r *MemoryMovieRepository) List(_ context.Context, p filter.Predicate) ([]types.Movie, error) {
	r.mu.RLock()
	all := make([]types.Movie, 0, len(r.movies))
	for _, m := range r.movies {
		all = append(all, cloneMovie(m))
	}
	r.mu.RUnlock()

	return p.Apply(all), nil
}

func (r *MemoryMovieRepository) Get(_ context.Context, id uuid.UUID) (types.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	movie, ok := r.movies[id]
	if !ok {
		return types.Movie{}, ErrNotFound
	}
	return cloneMovie(movie), nil
}

func (r *MemoryMovieRepository) Create(_ context.Context, movie types.Movie) (types.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	movie.CreatedAt = now
	movie.UpdatedAt = now
	if movie.ID == uuid.Nil {
		movie.ID = uuid.New()
	}

	r.movies[movie.ID] = cloneMovie(movie)
	return movie, nil
}

func (r *MemoryMovieRepository) Update(_ context.Context, movie types.Movie) (types.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.movies[movie.ID]
	if !ok || current.OwnerID != movie.OwnerID {
		return types.Movie{}, ErrNotFound
	}

	movie.CreatedAt = current.CreatedAt
	movie.UpdatedAt = r.now()
	r.movies[movie.ID] = cloneMovie(movie)
	return movie, nil
}

func (r *MemoryMovieRepository) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.movies[id]
	if !ok || current.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.movies, id)
	return nil
}

func cloneMovie(m types.Movie) types.Movie {
	m.Genres = append([]types.Genre(nil), m.Genres...)
	return m
}

// monotonicClock never returns the same instant twice, so creation order
// survives coarse system clocks.
func monotonicClock() func() time.Time {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now().UTC()
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
		last = now
		return now
	}
}
