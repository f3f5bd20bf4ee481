// Package server is the composition root: it opens the store, builds the
// services and transports, and mounts them on one chi router.
//
// ROUTES:
//
//	POST /graphql                → queries and mutations (JSON)
//	GET  /graphql (upgrade)      → subscriptions over graphql-ws
//	GET  /healthz                → liveness
//	GET  /auth/google/login      → start the browser login   (needs JWT_SECRET + OAUTH_CLIENT_SECRET)
//	GET  /auth/google/callback   → finish it, set the session cookie
//	POST /auth/logout            → clear the session cookie
//	GET  /api/me                 → current user              (auth)
//	POST /api/images             → upload a pin image        (auth, needs MINIO_ENDPOINT)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/pinmap/internal/auth"
	"github.com/sakif/pinmap/internal/config"
	"github.com/sakif/pinmap/internal/graph"
	"github.com/sakif/pinmap/internal/handler"
	"github.com/sakif/pinmap/internal/middleware"
	"github.com/sakif/pinmap/internal/pubsub"
	"github.com/sakif/pinmap/internal/repository"
	mongoRepo "github.com/sakif/pinmap/internal/repository/mongo"
	sqliteRepo "github.com/sakif/pinmap/internal/repository/sqlite"
	"github.com/sakif/pinmap/internal/service"
	"github.com/sakif/pinmap/internal/storage/minio"
)

// Deps are the externally built collaborators. Zero fields are built from
// config by New; tests inject fakes.
type Deps struct {
	Store    repository.Store
	Verifier service.IdentityVerifier
	Images   *minio.ImageStore
}

// Server owns the router and every long-lived resource behind it.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger

	store  repository.Store
	bus    *pubsub.Bus
	images *minio.ImageStore
	tokens *auth.TokenService

	// sockets bounds every subscription socket; closeSockets ends them on shutdown.
	sockets      context.Context
	closeSockets context.CancelFunc

	authService *service.AuthService
	pinService  *service.PinService
}

// New builds the server. The store is closed by Start on shutdown, or here if
// construction fails.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		bus:    pubsub.New(pubsub.DefaultBuffer, logger),
		store:  deps.Store,
		images: deps.Images,
	}

	if s.store == nil {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	s.sockets, s.closeSockets = context.WithCancel(context.Background())

	ok := false
	defer func() {
		if !ok {
			s.closeSockets()
			s.store.Close()
		}
	}()

	verifier := deps.Verifier
	if verifier == nil {
		v, err := auth.NewGoogleVerifier(cfg.OAuth.ClientID)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	if cfg.JWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.tokens = tokens
	} else {
		logger.Warn("JWT_SECRET not set: session cookies and browser login are disabled")
	}

	if s.images == nil && cfg.ImagesEnabled() {
		images, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.images = images
	}

	s.authService = service.NewAuthService(s.store, verifier, s.tokens, logger)
	s.pinService = service.NewPinService(s.store, s.bus, logger)

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	ok = true
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := mongoRepo.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("server: opening mongo store: %w", err)
		}
		return db, nil
	default:
		if cfg.DBPath != ":memory:" {
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("server: creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite store: %w", err)
		}
		return db, nil
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	// Order: request ID first so every later log line can carry it.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.Authenticate(s.tokens, s.authService, s.logger))
	s.router.Use(middleware.LogUser(s.logger))

	resolver := graph.NewResolver(s.pinService, s.bus, s.logger)
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		return err
	}
	s.router.Handle("/graphql", graph.NewHandler(s.sockets, schema))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	authHandler := handler.NewAuthHandler(
		auth.NewGoogleProvider(s.cfg.OAuth.ClientID, s.cfg.OAuth.ClientSecret, s.cfg.OAuth.CallbackURL),
		s.authService,
		s.tokens,
		s.cfg.SecureCookies(),
		s.logger,
	)
	if s.cfg.BrowserLogin() {
		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authHandler.HandleLogin)
			r.Get("/google/callback", authHandler.HandleCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/me", authHandler.HandleMe)
		if s.images != nil {
			r.Post("/images", handler.NewImageHandler(s.images, s.logger).HandleUpload)
		}
	})

	return nil
}

// Start serves until SIGINT/SIGTERM or ctx is cancelled, then drains
// in-flight requests, closes open WebSockets and the store.
func (s *Server) Start(ctx context.Context) error {
	defer s.store.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.images != nil {
		janitor := &imageJanitor{images: s.images, pins: s.store, logger: s.logger}
		go janitor.run(ctx, s.bus.Subscribe(ctx, pubsub.PinDeleted))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Shutdown does not track hijacked connections.
	srv.RegisterOnShutdown(s.closeSockets)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("store", s.cfg.StoreDriver),
			slog.Bool("browserLogin", s.cfg.BrowserLogin()),
			slog.Bool("images", s.images != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
