package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/reelvault/apiserver/internal/store"
)

var (
	// ErrNotFound is returned when a movie does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrForbidden is returned when a movie exists but belongs to someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateEmail is returned by Register for an email already in use.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned by Authenticate for an unknown email
	// and for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrStoreUnavailable wraps every failure of a backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries user-correctable problems keyed by form field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
