// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is wired here, in New,
// rather than scattered across the codebase.
//
//	config → sqlite.DB → services → handlers → chi router
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/petcommunity/internal/auth"
	"github.com/sakif/petcommunity/internal/config"
	"github.com/sakif/petcommunity/internal/handler"
	"github.com/sakif/petcommunity/internal/middleware"
	sqliteRepo "github.com/sakif/petcommunity/internal/repository/sqlite"
	"github.com/sakif/petcommunity/internal/service"
	"github.com/sakif/petcommunity/internal/storage"
)

// Server represents the HTTP server and all its dependencies.
// The Server owns the database connection and closes it on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	images storage.ImageStore
	tokens *auth.TokenService
}

// Option customizes a Server. Tests use it to lower the bcrypt cost.
type Option func(*options)

type options struct {
	passwords *auth.PasswordService
	images    storage.ImageStore
}

// WithPasswordService overrides the bcrypt settings.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// WithImageStore overrides the configured image store.
func WithImageStore(s storage.ImageStore) Option {
	return func(o *options) { o.images = s }
}

// New creates a Server from cfg. The JWT secret is required.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo to avoid confusion with the
// modernc.org/sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{passwords: auth.NewPasswordService()}
	for _, opt := range opts {
		opt(&o)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("configuring tokens (set JWT_SECRET): %w", err)
	}

	images := o.images
	if images == nil {
		images, err = storage.NewFromConfig(context.Background(), cfg.Images)
		if err != nil {
			return nil, fmt.Errorf("creating image store: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		images: images,
		tokens: tokens,
	}
	s.setupRoutes(o.passwords)
	return s, nil
}

// Handler returns the root HTTP handler. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /static/*                   static assets (default pet image)
//	GET    /uploads/*                  uploaded images (filesystem store only)
//	GET    /auth/github/login|callback GitHub sign-in (when configured)
//	POST   /api/auth/register|login|logout
//	GET    /api/me                     auth
//	POST   /api/uploads                auth
//	PATCH  /api/adoptions/{id}/status  auth
//	GET    /api/{kind}                 optional auth
//	GET    /api/{kind}/{id}            optional auth
//	POST   /api/{kind}                 auth
//	PUT    /api/{kind}/{id}            auth
//	DELETE /api/{kind}/{id}            auth
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can read the ID; Recoverer runs last so
// a panic is still logged as a 500.
func (s *Server) setupRoutes(passwords *auth.PasswordService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	users := s.db.Users()
	authService := service.NewAuthService(users, s.tokens, passwords, s.logger)
	listingService := service.NewListingService(s.db.Listings(), users, s.logger)

	// A nil *GitHubProvider stored in the interface would not compare equal
	// to nil, so the interface is only assigned when GitHub is enabled.
	var github handler.GitHubExchanger
	if s.config.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.Auth.GitHubCallbackURL,
		)
	} else {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set)")
	}

	authHandler := handler.NewAuthHandler(authService, github, s.tokens.TTL(), s.logger)
	listingHandler := handler.NewListingHandler(listingService, s.logger)
	uploadHandler := handler.NewUploadHandler(s.images, s.config.Images.MaxBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	if info, err := os.Stat(s.config.Server.StaticDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(s.config.Server.StaticDir))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	if fs, ok := s.images.(*storage.FileSystemStore); ok {
		prefix := fs.Prefix()
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(fs.Root()))))
	}

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/uploads", uploadHandler.HandleUpload)
			r.Patch("/adoptions/{id}/status", listingHandler.HandleSetStatus)
			r.Post("/{kind}", listingHandler.HandleCreate)
			r.Put("/{kind}/{id}", listingHandler.HandleUpdate)
			r.Delete("/{kind}/{id}", listingHandler.HandleDelete)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/{kind}", listingHandler.HandleList)
			r.Get("/{kind}/{id}", listingHandler.HandleGet)
		})
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, let in-flight requests finish,
// then close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
			slog.String("images", s.config.Images.Type),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
