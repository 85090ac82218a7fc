// Package server wires handlers, middleware, and routes into a running HTTP
// server. It is the composition root: every dependency chain — database,
// repositories, services, handlers — is assembled in New, so the rest of the
// codebase only ever receives its dependencies, never constructs them.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/notecode/internal/auth"
	"github.com/sakif/notecode/internal/config"
	"github.com/sakif/notecode/internal/executor"
	dockerexec "github.com/sakif/notecode/internal/executor/docker"
	"github.com/sakif/notecode/internal/handler"
	"github.com/sakif/notecode/internal/middleware"
	sqliteRepo "github.com/sakif/notecode/internal/repository/sqlite"
	"github.com/sakif/notecode/internal/service"
)

// Server owns the router and the resources that must be released on
// shutdown: the database connection and, when execution is enabled, the
// Docker container pool.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	exec   *dockerexec.Executor // nil when executor.enabled is false
}

// New assembles the full dependency chain and registers all routes.
//
// Layering: the sqlite.DB satisfies the repository interfaces, services
// receive repositories, handlers receive services. Handlers never touch the
// database; services never touch HTTP.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if cfg.Executor.Enabled {
		execCfg := dockerexec.DefaultConfig()
		if cfg.Executor.Image != "" {
			execCfg.Image = cfg.Executor.Image
		}
		if cfg.Executor.Timeout > 0 {
			execCfg.Timeout = cfg.Executor.Timeout
		}
		if cfg.Executor.PoolSize > 0 {
			execCfg.PoolSize = cfg.Executor.PoolSize
		}

		// Execution is a convenience, not a core capability: an unreachable
		// Docker daemon degrades the server (no /run route) rather than
		// preventing startup.
		s.exec, err = dockerexec.New(execCfg, logger)
		if err != nil {
			logger.Warn("Docker executor unavailable, file execution disabled",
				slog.String("error", err.Error()),
			)
			s.exec = nil
		}
	}

	if err := s.setupRoutes(); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes registers middleware and all route handlers.
//
// Route map:
//
//	GET    /healthz                  liveness probe
//
//	POST   /auth/register            create an account, get a token
//	POST   /auth/login               exchange credentials for a token
//	GET    /auth/github/login        start GitHub OAuth (if configured)
//	GET    /auth/github/callback     finish GitHub OAuth
//	POST   /auth/logout              acknowledge logout
//
//	GET    /api/test                 echo the authenticated user
//	GET    /api/me                   authenticated user's profile
//	POST   /api/files                create a file
//	GET    /api/files/user/{userId}  list own files, newest first
//	GET    /api/files/{id}           fetch one file
//	PATCH  /api/files/{id}           partial update
//	PATCH  /api/files/{id}/code      replace code only
//	PATCH  /api/files/{id}/algo      replace algorithm notes only
//	DELETE /api/files/{id}           delete a file
//	POST   /api/files/{id}/run       execute in the sandbox (if enabled)
//
// Everything under /api sits behind RequireAuth; /auth is public.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(
			s.cfg.GitHub.ClientID,
			s.cfg.GitHub.ClientSecret,
			s.cfg.GitHub.CallbackURL,
		)
	}

	fileService := service.NewFileService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	authHandler := handler.NewAuthHandler(authService, github, s.cfg.GitHub.RedirectURL, s.logger)
	fileHandler := handler.NewFileHandler(fileService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, s.db, s.logger))

		r.Get("/test", fileHandler.HandleTest)
		r.Get("/me", authHandler.HandleMe)

		r.Post("/files", fileHandler.HandleCreate)
		r.Get("/files/user/{userId}", fileHandler.HandleListByUser)
		r.Get("/files/{id}", fileHandler.HandleGet)
		r.Patch("/files/{id}", fileHandler.HandleUpdate)
		r.Patch("/files/{id}/code", fileHandler.HandleUpdateCode)
		r.Patch("/files/{id}/algo", fileHandler.HandleUpdateAlgo)
		r.Delete("/files/{id}", fileHandler.HandleDelete)

		if s.exec != nil {
			var exec executor.Executor = s.exec
			runHandler := handler.NewRunHandler(fileService, exec, s.logger)
			r.Post("/files/{id}/run", runHandler.HandleRun)
		}
	})

	return nil
}

// Start runs the server until a SIGINT/SIGTERM arrives or ListenAndServe
// fails, then shuts down gracefully: stop accepting connections, drain
// in-flight requests up to the configured timeout, release resources.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
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
			slog.String("addr", srv.Addr),
			slog.String("database", s.cfg.Database.Path),
			slog.Bool("executor", s.exec != nil),
			slog.Bool("github", s.cfg.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// closeResources releases the database and the container pool. Safe to call
// more than once; sql.DB and the Docker client tolerate double Close.
func (s *Server) closeResources() {
	if s.exec != nil {
		if err := s.exec.Close(); err != nil {
			s.logger.Error("closing executor", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
