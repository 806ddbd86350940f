package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/accounthub/apiserver/config"
	"github.com/accounthub/apiserver/internal/db"
	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/handlers"
	"github.com/accounthub/apiserver/internal/logger"
	"github.com/accounthub/apiserver/internal/services"
	"github.com/accounthub/apiserver/internal/storage"
	"github.com/accounthub/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
}

// New constructs a Server wired to the database and the configured optional
// backends (event broker, avatar object storage).
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bus, err := events.NewBusFromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init events backend: %w", err)
	}
	if bus == nil {
		log.Info().Msg("events backend not configured, lifecycle events disabled")
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage backend: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	userService := services.NewUserService(userRepo, bus, log)

	var avatarService *services.AvatarService
	if objects != nil {
		if err := objects.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure avatar bucket: %w", err)
		}
		avatarService = services.NewAvatarService(userRepo, objects, cfg.Storage.PublicBaseURL)
	} else {
		log.Info().Msg("storage backend not configured, avatar endpoints disabled")
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, avatarService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown and releases owned resources.
func (s *Server) Shutdown() error {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
