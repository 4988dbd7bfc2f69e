package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/services"
	"github.com/reelvault/apiserver/internal/session"
)

// AuthHandler provides registration, login and logout.
type AuthHandler struct {
	userService  *services.UserService
	sessions     *session.Resolver
	secureCookie bool
	log          logging.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, sessions *session.Resolver, secureCookie bool, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		sessions:     sessions,
		secureCookie: secureCookie,
		log:          log,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler, requireAuth func(http.Handler) http.Handler) {
	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.With(requireAuth).Get("/logout", h.Logout)
}

type RegisterFormResponse struct {
	Errors map[string]string `json:"errors,omitempty"`
	Values map[string]string `json:"values"`
}

type LoginFormResponse struct {
	Registered bool   `json:"registered"`
	Error      string `json:"error,omitempty"`
	Email      string `json:"email,omitempty"`
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RegisterFormResponse{Values: map[string]string{"name": "", "email": ""}})
}

// Register creates an account and sends the client to the login page.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := parseRequestForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in := parseRegisterForm(form)

	_, err = h.userService.Register(r.Context(), in)
	if err == nil {
		redirect(w, r, "/login?registered=1")
		return
	}

	resp := RegisterFormResponse{
		Values: map[string]string{"name": in.Name, "email": in.Email},
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Errors = verr.Fields
	case errors.Is(err, services.ErrDuplicateEmail):
		resp.Errors = map[string]string{formFieldEmail: "is already registered"}
	default:
		writeInternal(w, r, h.log, "failed to register user", err)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LoginFormResponse{Registered: r.URL.Query().Get("registered") == "1"})
}

// Login authenticates the submitted credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form, err := parseRequestForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := form.get(formFieldEmail)

	userID, err := h.userService.Authenticate(r.Context(), email, form.get(formFieldPassword))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, LoginFormResponse{
				Error: services.ErrInvalidCredentials.Error(),
				Email: email,
			})
			return
		}
		writeInternal(w, r, h.log, "failed to authenticate", err)
		return
	}

	token, err := h.sessions.Establish(r.Context(), userID)
	if err != nil {
		writeInternal(w, r, h.log, "failed to establish session", err)
		return
	}

	http.SetCookie(w, h.cookie(token, int(h.sessions.TTL().Seconds())))
	h.log.Info(r.Context(), "user logged in", "user_id", userID)
	redirect(w, r, "/records")
}

// Logout ends the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.sessions.Terminate(r.Context(), cookie.Value); err != nil {
			writeInternal(w, r, h.log, "failed to terminate session", err)
			return
		}
	}

	http.SetCookie(w, h.cookie("", -1))
	redirect(w, r, "/login")
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
