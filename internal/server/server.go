// Package server wires configuration into a ready-to-run HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reelvault/apiserver/config"
	"github.com/reelvault/apiserver/internal/db"
	"github.com/reelvault/apiserver/internal/handlers"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/mq"
	"github.com/reelvault/apiserver/internal/services"
	"github.com/reelvault/apiserver/internal/session"
	"github.com/reelvault/apiserver/internal/storage"
	"github.com/reelvault/apiserver/internal/store"
)

const sessionSweepInterval = 10 * time.Minute

// Server wraps the HTTP server, the router and every backend it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logging.Logger

	db          *sql.DB
	storage     *storage.Storage
	mq          *mq.MQ
	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

type repositories struct {
	users    services.UserRepository
	movies   services.MovieRepository
	sessions session.Store
}

// New constructs a Server from cfg. Backends are opened eagerly so a bad
// configuration fails at startup rather than on the first request.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	secret := strings.TrimSpace(cfg.Session.Secret)
	if secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	s := &Server{log: log}
	ok := false
	defer func() {
		if !ok {
			_ = s.closeBackends()
		}
	}()

	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if s.storage, err = storage.Open(ctx, cfg.Storage); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if s.mq, err = mq.Open(ctx, cfg.MQ); err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userService := services.NewUserService(repos.users)
	movieService := services.NewMovieService(repos.movies, log)
	if s.storage != nil {
		movieService.WithCovers(s.storage)
	}
	if s.mq != nil {
		movieService.WithEvents(s.mq, cfg.MQ.Channel)
	}

	resolver := session.NewResolver(repos.sessions, userService, secret, cfg.Session.TTL)
	if sweeper, isSweeper := repos.sessions.(session.Sweeper); isSweeper {
		s.startSweeper(sweeper)
	}

	sessions := handlers.NewSessionMiddleware(resolver, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		sessions.LoadPrincipal,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/records", http.StatusSeeOther)
	})
	handlers.AuthRouter(router, handlers.NewAuthHandler(userService, resolver, cfg.Session.CookieSecure, log), sessions.RequireAuth)
	router.Route("/records", func(r chi.Router) {
		handlers.MovieRouter(r, handlers.NewMovieHandler(movieService, log), sessions.RequireAuth)
	})
	if s.storage != nil && strings.TrimSpace(cfg.Storage.PublicURL) == "" {
		handlers.CoverRouter(router, handlers.NewCoverHandler(s.storage, log), sessions.RequireAuth)
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ok = true
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Database.Driver == config.DriverMemory {
		users := store.NewMemoryUserRepository()
		return repositories{
			users:    users,
			movies:   store.NewMemoryMovieRepository(),
			sessions: session.NewMemoryStore(),
		}, nil
	}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return repositories{}, fmt.Errorf("open database: %w", err)
	}
	s.db = conn

	repos := repositories{
		users:  store.NewUserRepository(conn),
		movies: store.NewMovieRepository(conn),
	}
	if cfg.Session.Backend == config.SessionBackendPostgres {
		repos.sessions = store.NewSessionRepository(conn)
	} else {
		repos.sessions = session.NewMemoryStore()
	}
	return repos, nil
}

func (s *Server) startSweeper(sweeper session.Sweeper) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	s.sweeperDone = make(chan struct{})
	go func() {
		defer close(s.sweeperDone)
		session.RunSweeper(ctx, sweeper, sessionSweepInterval, s.log)
	}()
}

// Handler exposes the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.closeBackends(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) closeBackends() error {
	var errs []error
	if s.stopSweeper != nil {
		s.stopSweeper()
		<-s.sweeperDone
		s.stopSweeper = nil
	}
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mq: %w", err))
		}
		s.mq = nil
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		s.storage = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.db = nil
	}
	return errors.Join(errs...)
}
