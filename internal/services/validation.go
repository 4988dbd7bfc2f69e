package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/reelvault/apiserver/types"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// CoverUpload is an image submitted together with a movie form.
type CoverUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MovieInput holds the rules shared by the add and edit forms.
type MovieInput struct {
	Name        string        `form:"name" validate:"required,max=200"`
	Description string        `form:"description" validate:"required,synopsis"`
	Year        *int          `form:"year" validate:"required,release_year"`
	Genres      []types.Genre `form:"genres" validate:"required,min=1,dive,genre"`
	Rating      *float64      `form:"rating" validate:"required,rating"`
	CoverImage  string        `form:"cover_image" validate:"omitempty,url,max=2048"`
	Cover       *CoverUpload  `form:"cover_file" validate:"-"`
}

// RegisterInput is the submitted registration form.
type RegisterInput struct {
	Name            string `form:"name" validate:"required,max=100"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "genre", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseGenre(fl.Field().String())
		return ok
	})
	mustRegister(v, "release_year", func(fl validator.FieldLevel) bool {
		year := fl.Field().Int()
		return year >= types.MinYear && year <= types.MaxYear
	})
	mustRegister(v, "rating", func(fl validator.FieldLevel) bool {
		rating := fl.Field().Float()
		return rating >= types.MinRating && rating <= types.MaxRating
	})
	mustRegister(v, "synopsis", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= types.MinDescriptionLength
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateMovie checks in against the shared movie rules.
func ValidateMovie(in MovieInput) error {
	return validateStruct(in.trimmed())
}

func (in MovieInput) trimmed() MovieInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	return in
}

// ValidateRegistration checks a registration form.
func ValidateRegistration(in RegisterInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if len(in.Password) > maxPasswordBytes {
		return fieldError("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "genres" {
			return "select at least one genre"
		}
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "select at least one genre"
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "eqfield":
		return "passwords do not match"
	case "genre":
		return "must be one of " + genreList()
	case "release_year":
		return fmt.Sprintf("must be between %d and %d", types.MinYear, types.MaxYear)
	case "rating":
		return fmt.Sprintf("must be between %g and %g", types.MinRating, types.MaxRating)
	case "synopsis":
		return fmt.Sprintf("must be at least %d characters", types.MinDescriptionLength)
	default:
		return "is invalid"
	}
}

func genreList() string {
	names := make([]string, 0, len(types.Genres))
	for _, g := range types.Genres {
		names = append(names, string(g))
	}
	return strings.Join(names, ", ")
}

// canonicalGenres maps validated genres to their canonical spelling and
// drops duplicates, keeping first occurrence order.
func canonicalGenres(in []types.Genre) []types.Genre {
	out := make([]types.Genre, 0, len(in))
	seen := make(map[types.Genre]bool, len(in))
	for _, raw := range in {
		g, ok := types.ParseGenre(string(raw))
		if !ok || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
