package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Genre is one of the fixed catalogue genres.
type Genre string

const (
	GenreAction   Genre = "Action"
	GenreComedy   Genre = "Comedy"
	GenreDrama    Genre = "Drama"
	GenreHorror   Genre = "Horror"
	GenreSciFi    Genre = "Sci-Fi"
	GenreRomance  Genre = "Romance"
	GenreThriller Genre = "Thriller"
	GenreFantasy  Genre = "Fantasy"
)

// Genres lists every accepted genre in display order.
var Genres = []Genre{
	GenreAction,
	GenreComedy,
	GenreDrama,
	GenreHorror,
	GenreSciFi,
	GenreRomance,
	GenreThriller,
	GenreFantasy,
}

// ParseGenre matches s case-insensitively against Genres.
func ParseGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	for _, g := range Genres {
		if strings.EqualFold(string(g), s) {
			return g, true
		}
	}
	return "", false
}

// Bounds shared by every code path that accepts a movie. The year ceiling
// is fixed rather than tied to the current date.
const (
	MinYear              = 1900
	MaxYear              = 2025
	MinRating            = 1.0
	MaxRating            = 10.0
	MinDescriptionLength = 10
)

// DefaultCoverImage is used when a movie is saved without a cover.
const DefaultCoverImage = "https://placehold.co/300x450?text=No+Cover"

// Movie is a catalogue entry owned by exactly one user.
type Movie struct {
	// ID is the unique identifier of the movie.
	ID uuid.UUID `json:"id" db:"id"`

	// Name is the movie title.
	Name string `json:"name" db:"name"`

	// Description is a free-form synopsis or note.
	Description string `json:"description" db:"description"`

	// Year is the release year.
	Year int `json:"year" db:"year"`

	// Genres is a non-empty set of Genre values.
	Genres []Genre `json:"genres" db:"genres"`

	// Rating is the owner's score from MinRating to MaxRating.
	Rating float64 `json:"rating" db:"rating"`

	// CoverImage is the URL of the cover art.
	CoverImage string `json:"cover_image" db:"cover_image"`

	// OwnerID references the user that created the movie. It never changes.
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`

	// CreatedAt is the timestamp at which the movie was added.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasGenre reports whether g is one of the movie's genres.
func (m Movie) HasGenre(g Genre) bool {
	for _, own := range m.Genres {
		if own == g {
			return true
		}
	}
	return false
}
