package handlers

import (
	"net/http"

	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/session"
)

// SessionCookieName names the cookie carrying the session token.
const SessionCookieName = "session"

// SessionMiddleware attaches the principal behind the session cookie to each
// request and guards the routes that need one.
type SessionMiddleware struct {
	resolver *session.Resolver
	log      logging.Logger
}

func NewSessionMiddleware(resolver *session.Resolver, log logging.Logger) *SessionMiddleware {
	return &SessionMiddleware{resolver: resolver, log: log}
}

// LoadPrincipal resolves the session cookie. Requests without a usable
// session continue anonymously.
func (m *SessionMiddleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.resolver.Resolve(r.Context(), cookie.Value)
		if err != nil {
			writeInternal(w, r, m.log, "failed to resolve session", err)
			return
		}
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), user)))
	})
}

// RequireAuth is the single authentication gate for protected routes.
// Anonymous JSON clients get 401, everyone else is sent to the login page.
func (m *SessionMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			if wantsJSON(r) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}
