package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/reelvault/apiserver/internal/filter"
	"github.com/reelvault/apiserver/types"
)

const movieColumns = `id, name, description, year, genres, rating, cover_image, owner_id, created_at, updated_at`

// MovieRepository handles persistence for movies.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List returns the movies matching p, newest first.
func (r *MovieRepository) List(ctx context.Context, p filter.Predicate) ([]types.Movie, error) {
	where, args := p.SQL()
	query := `SELECT ` + movieColumns + ` FROM movies WHERE ` + where + ` ORDER BY ` + filter.OrderBy

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := make([]types.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

func (r *MovieRepository) Get(ctx context.Context, id uuid.UUID) (types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`
	movie, err := scanMovie(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	now := time.Now().UTC()
	movie.CreatedAt = now
	movie.UpdatedAt = now
	if movie.ID == uuid.Nil {
		movie.ID = uuid.New()
	}

	const query = `
		INSERT INTO movies (id, name, description, year, genres, rating, cover_image, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		movie.ID,
		movie.Name,
		movie.Description,
		movie.Year,
		genresToArray(movie.Genres),
		movie.Rating,
		movie.CoverImage,
		movie.OwnerID,
		movie.CreatedAt,
		movie.UpdatedAt,
	); err != nil {
		return types.Movie{}, err
	}
	return movie, nil
}

// Update rewrites the editable fields. The owner is part of the match so a
// movie that changed hands or vanished reports ErrNotFound.
func (r *MovieRepository) Update(ctx context.Context, movie types.Movie) (types.Movie, error) {
	movie.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE movies
		SET name = $1,
			description = $2,
			year = $3,
			genres = $4,
			rating = $5,
			cover_image = $6,
			updated_at = $7
		WHERE id = $8 AND owner_id = $9
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		movie.Name,
		movie.Description,
		movie.Year,
		genresToArray(movie.Genres),
		movie.Rating,
		movie.CoverImage,
		movie.UpdatedAt,
		movie.ID,
		movie.OwnerID,
	).Scan(&movie.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (r *MovieRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	const query = `DELETE FROM movies WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (types.Movie, error) {
	var movie types.Movie
	var genres pq.StringArray
	if err := row.Scan(
		&movie.ID,
		&movie.Name,
		&movie.Description,
		&movie.Year,
		&genres,
		&movie.Rating,
		&movie.CoverImage,
		&movie.OwnerID,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	); err != nil {
		return types.Movie{}, err
	}
	movie.Genres = make([]types.Genre, 0, len(genres))
	for _, g := range genres {
		movie.Genres = append(movie.Genres, types.Genre(g))
	}
	return movie, nil
}

func genresToArray(genres []types.Genre) pq.StringArray {
	arr := make(pq.StringArray, 0, len(genres))
	for _, g := range genres {
		arr = append(arr, string(g))
	}
	return arr
}
