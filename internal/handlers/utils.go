package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// ErrorResponse is the body of every error that is not a form re-render.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withPrincipal(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, user)
}

// PrincipalFromContext returns the authenticated user attached by
// LoadPrincipal, if any.
func PrincipalFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(contextPrincipalKey).(*types.User)
	return user, ok && user != nil
}

// principal is for handlers mounted behind RequireAuth.
func principal(r *http.Request) types.User {
	user, _ := PrincipalFromContext(r.Context())
	return *user
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeInternal logs err and answers with a generic failure.
func writeInternal(w http.ResponseWriter, r *http.Request, log logging.Logger, msg string, err error) {
	log.Error(r.Context(), msg, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "something went wrong")
}

func redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// wantsJSON reports whether the client asked for JSON rather than a page.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func parseMovieID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
