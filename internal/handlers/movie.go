package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reelvault/apiserver/internal/filter"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/services"
	"github.com/reelvault/apiserver/types"
)

// MovieHandler provides HTTP handlers for a user's movie records.
type MovieHandler struct {
	movieService *services.MovieService
	log          logging.Logger
}

// NewMovieHandler constructs a MovieHandler with the provided service.
func NewMovieHandler(movieService *services.MovieService, log logging.Logger) *MovieHandler {
	return &MovieHandler{movieService: movieService, log: log}
}

// MovieRouter registers record routes on the given router. Every route
// requires a principal.
func MovieRouter(r chi.Router, h *MovieHandler, requireAuth func(http.Handler) http.Handler) {
	r.Use(requireAuth)

	r.Get("/", h.ListMovies)
	r.Get("/filter", h.FilterForm)
	r.Post("/filter", h.FilterMovies)
	r.Get("/add", h.AddForm)
	r.Post("/add", h.CreateMovie)
	r.Get("/edit/{id}", h.EditForm)
	r.Post("/edit/{id}", h.UpdateMovie)
	r.Post("/delete/{id}", h.DeleteMovie)
	r.Get("/{id}", h.GetMovie)
}

type MovieListResponse struct {
	Records []types.Movie `json:"records"`
}

type MovieResponse struct {
	Record types.Movie `json:"record"`
}

type FilterResponse struct {
	Records []types.Movie     `json:"records"`
	Filter  filter.Criteria   `json:"filter"`
	Genres  []types.Genre     `json:"genres"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// MovieFormResponse describes the add and edit forms.
type MovieFormResponse struct {
	Genres        []types.Genre     `json:"genres"`
	MinYear       int               `json:"min_year"`
	MaxYear       int               `json:"max_year"`
	MinRating     float64           `json:"min_rating"`
	MaxRating     float64           `json:"max_rating"`
	DefaultCover  string            `json:"default_cover"`
	CoversEnabled bool              `json:"covers_enabled"`
	Record        *types.Movie      `json:"record,omitempty"`
	Values        map[string]any    `json:"values,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movieService.List(r.Context(), principal(r))
	if err != nil {
		writeInternal(w, r, h.log, "failed to list movies", err)
		return
	}
	writeJSON(w, http.StatusOK, MovieListResponse{Records: movies})
}

func (h *MovieHandler) FilterForm(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movieService.List(r.Context(), principal(r))
	if err != nil {
		writeInternal(w, r, h.log, "failed to list movies", err)
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Records: movies, Genres: types.Genres})
}

func (h *MovieHandler) FilterMovies(w http.ResponseWriter, r *http.Request) {
	form, err := parseRequestForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	criteria, errs := filter.Parse(form.values)
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, FilterResponse{
			Records: []types.Movie{},
			Filter:  criteria,
			Genres:  types.Genres,
			Errors:  errs,
		})
		return
	}

	movies, err := h.movieService.Filter(r.Context(), principal(r), criteria)
	if err != nil {
		writeInternal(w, r, h.log, "failed to filter movies", err)
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Records: movies, Filter: criteria, Genres: types.Genres})
}

func (h *MovieHandler) AddForm(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.form())
}

func (h *MovieHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readMovieForm(w, r)
	if !ok {
		return
	}

	movie, err := h.movieService.Create(r.Context(), principal(r), in)
	if err != nil {
		h.writeMovieError(w, r, in, err)
		return
	}
	redirect(w, r, "/records/"+movie.ID.String())
}

func (h *MovieHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	movie, err := h.movieService.Authorize(r.Context(), principal(r), id)
	if err != nil {
		h.writeMovieError(w, r, services.MovieInput{}, err)
		return
	}

	resp := h.form()
	resp.Record = &movie
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	// Ownership is checked before the body is even looked at.
	if _, err := h.movieService.Authorize(r.Context(), principal(r), id); err != nil {
		h.writeMovieError(w, r, services.MovieInput{}, err)
		return
	}

	in, ok := h.readMovieForm(w, r)
	if !ok {
		return
	}

	movie, err := h.movieService.Update(r.Context(), principal(r), id, in)
	if err != nil {
		h.writeMovieError(w, r, in, err)
		return
	}
	redirect(w, r, "/records/"+movie.ID.String())
}

func (h *MovieHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	if err := h.movieService.Delete(r.Context(), principal(r), id); err != nil {
		h.writeMovieError(w, r, services.MovieInput{}, err)
		return
	}
	redirect(w, r, "/records")
}

// GetMovie shows one record. Records of other users answer exactly like
// missing ones.
func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMovieID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	movie, err := h.movieService.Get(r.Context(), principal(r), id)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			err = services.ErrNotFound
		}
		h.writeMovieError(w, r, services.MovieInput{}, err)
		return
	}
	writeJSON(w, http.StatusOK, MovieResponse{Record: movie})
}

// readMovieForm parses and validates the submitted movie. On failure the
// response has already been written.
func (h *MovieHandler) readMovieForm(w http.ResponseWriter, r *http.Request) (services.MovieInput, bool) {
	form, err := parseRequestForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return services.MovieInput{}, false
	}

	in, errs := parseMovieForm(form)
	if len(errs) == 0 {
		return in, true
	}

	// Report every problem at once, not just the unparseable fields.
	var verr *services.ValidationError
	if errors.As(services.ValidateMovie(in), &verr) {
		for field, msg := range verr.Fields {
			if _, taken := errs[field]; !taken {
				errs[field] = msg
			}
		}
	}
	h.writeMovieError(w, r, in, &services.ValidationError{Fields: errs})
	return services.MovieInput{}, false
}

func (h *MovieHandler) writeMovieError(w http.ResponseWriter, r *http.Request, in services.MovieInput, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := h.form()
		resp.Values = movieValues(in)
		resp.Errors = verr.Fields
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeInternal(w, r, h.log, "movie operation failed", err)
	}
}

func (h *MovieHandler) form() MovieFormResponse {
	return MovieFormResponse{
		Genres:        types.Genres,
		MinYear:       types.MinYear,
		MaxYear:       types.MaxYear,
		MinRating:     types.MinRating,
		MaxRating:     types.MaxRating,
		DefaultCover:  types.DefaultCoverImage,
		CoversEnabled: h.movieService.CoversEnabled(),
	}
}
