// Package web serves the transform pipeline over HTTP: template lookup,
// DDL, and one-shot transforms of uploaded spreadsheets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheet2sql/internal/config"
	"github.com/JonMunkholm/sheet2sql/internal/runner"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
	mw "github.com/JonMunkholm/sheet2sql/internal/web/middleware"
)

// Server is the HTTP front end of the pipeline.
type Server struct {
	reg     *schema.Registry
	runner  *runner.Runner
	limiter *TransformLimiter
	cfg     *config.Config

	router *chi.Mux
	server *http.Server
}

// NewServer builds a server over reg. Nothing listens until Start.
func NewServer(reg *schema.Registry, cfg *config.Config) *Server {
	s := &Server{
		reg: reg,
		runner: runner.New(reg, runner.Options{
			NullTokens: cfg.Pipeline.NullTokens,
		}),
		limiter: NewTransformLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Server.APIKeys))

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{name}", s.handleGetTemplate)
		r.Get("/templates/{name}/ddl", s.handleTemplateDDL)

		// Without a name the template is resolved from the file name and
		// header row.
		r.Post("/transform", s.handleTransform)
		r.Post("/transform/{name}", s.handleTransform)
	})
}

// Start listens on the configured address until Shutdown. A Shutdown that
// happens first makes Start return immediately.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr, "templates", s.reg.Len())
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight transforms.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
