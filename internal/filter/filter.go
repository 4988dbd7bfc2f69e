// Package filter turns optional movie search criteria into a predicate that
// is always scoped to a single owner. Building a predicate does no I/O; the
// store decides how to execute it.
package filter

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/types"
)

// AnyGenre is the form value meaning "do not filter by genre".
const AnyGenre = "all"

// OrderBy is the ordering applied to every list and filter result.
const OrderBy = "created_at DESC"

const (
	fieldName      = "name"
	fieldGenre     = "genre"
	fieldMinYear   = "min_year"
	fieldMaxYear   = "max_year"
	fieldMinRating = "min_rating"
	fieldMaxRating = "max_rating"
)

// Criteria holds independently optional search fields. Nil bounds are
// unconstrained.
type Criteria struct {
	Name      string   `json:"name"`
	Genre     string   `json:"genre"`
	MinYear   *int     `json:"min_year,omitempty"`
	MaxYear   *int     `json:"max_year,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	MaxRating *float64 `json:"max_rating,omitempty"`
}

// Predicate is the conjunction of an owner scope and the criteria that were
// actually supplied.
type Predicate struct {
	OwnerID      uuid.UUID
	NameContains string
	Genre        types.Genre
	MinYear      *int
	MaxYear      *int
	MinRating    *float64
	MaxRating    *float64
}

// Build composes the predicate for ownerID. Inverted bounds are kept as
// given and simply match nothing.
func Build(ownerID uuid.UUID, c Criteria) Predicate {
	p := Predicate{
		OwnerID:      ownerID,
		NameContains: strings.TrimSpace(c.Name),
		MinYear:      copyPtr(c.MinYear),
		MaxYear:      copyPtr(c.MaxYear),
		MinRating:    copyPtr(c.MinRating),
		MaxRating:    copyPtr(c.MaxRating),
	}

	if !isAnyGenre(c.Genre) {
		if g, ok := types.ParseGenre(c.Genre); ok {
			p.Genre = g
		} else {
			// Unknown genres still constrain the result, to nothing.
			p.Genre = types.Genre(strings.TrimSpace(c.Genre))
		}
	}
	return p
}

// Matches reports whether m satisfies every clause of the predicate.
func (p Predicate) Matches(m types.Movie) bool {
	if m.OwnerID != p.OwnerID {
		return false
	}
	if p.NameContains != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(p.NameContains)) {
		return false
	}
	if p.Genre != "" && !m.HasGenre(p.Genre) {
		return false
	}
	if p.MinYear != nil && m.Year < *p.MinYear {
		return false
	}
	if p.MaxYear != nil && m.Year > *p.MaxYear {
		return false
	}
	if p.MinRating != nil && m.Rating < *p.MinRating {
		return false
	}
	if p.MaxRating != nil && m.Rating > *p.MaxRating {
		return false
	}
	return true
}

// SQL renders the predicate as a Postgres WHERE clause (without the keyword)
// with positional arguments starting at $1.
func (p Predicate) SQL() (string, []any) {
	clauses := []string{"owner_id = $1"}
	args := []any{p.OwnerID}

	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if p.NameContains != "" {
		add(`name ILIKE '%%' || $%d || '%%'`, escapeLike(p.NameContains))
	}
	if p.Genre != "" {
		add("$%d = ANY(genres)", string(p.Genre))
	}
	if p.MinYear != nil {
		add("year >= $%d", *p.MinYear)
	}
	if p.MaxYear != nil {
		add("year <= $%d", *p.MaxYear)
	}
	if p.MinRating != nil {
		add("rating >= $%d", *p.MinRating)
	}
	if p.MaxRating != nil {
		add("rating <= $%d", *p.MaxRating)
	}

	return strings.Join(clauses, " AND "), args
}

// Apply returns the movies matching p, newest first.
func (p Predicate) Apply(movies []types.Movie) []types.Movie {
	matched := make([]types.Movie, 0, len(movies))
	for _, m := range movies {
		if p.Matches(m) {
			matched = append(matched, m)
		}
	}
	SortNewestFirst(matched)
	return matched
}

// SortNewestFirst orders movies by creation time, newest first.
func SortNewestFirst(movies []types.Movie) {
	sort.SliceStable(movies, func(i, j int) bool {
		return movies[i].CreatedAt.After(movies[j].CreatedAt)
	})
}

// Parse reads criteria from submitted form values. Blank fields are absent;
// non-numeric bounds are reported per field.
func Parse(values url.Values) (Criteria, map[string]string) {
	c := Criteria{
		Name:  strings.TrimSpace(values.Get(fieldName)),
		Genre: strings.TrimSpace(values.Get(fieldGenre)),
	}
	errs := map[string]string{}

	c.MinYear = parseInt(values.Get(fieldMinYear), fieldMinYear, errs)
	c.MaxYear = parseInt(values.Get(fieldMaxYear), fieldMaxYear, errs)
	c.MinRating = parseFloat(values.Get(fieldMinRating), fieldMinRating, errs)
	c.MaxRating = parseFloat(values.Get(fieldMaxRating), fieldMaxRating, errs)

	if len(errs) > 0 {
		return c, errs
	}
	return c, nil
}

func parseInt(raw, field string, errs map[string]string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs[field] = "must be a whole number"
		return nil
	}
	return &v
}

func parseFloat(raw, field string, errs map[string]string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		errs[field] = "must be a number"
		return nil
	}
	return &v
}

func isAnyGenre(g string) bool {
	g = strings.TrimSpace(g)
	return g == "" || strings.EqualFold(g, AnyGenre) || strings.EqualFold(g, "any")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
