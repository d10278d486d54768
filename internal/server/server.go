// Package server exposes the article store over a JSON REST API
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"articleforge/internal/config"
	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// ArticleRepository is the storage the API serves
type ArticleRepository interface {
	Create(ctx context.Context, article *core.Article) (*core.Article, error)
	Get(ctx context.Context, id string) (*core.Article, error)
	GetBySlug(ctx context.Context, slug string) (*core.Article, error)
	List(ctx context.Context, filter core.ListFilter) ([]core.Article, error)
	Count(ctx context.Context, filter core.ListFilter) (int, error)
	Search(ctx context.Context, q string, limit int) ([]core.Article, error)
	Update(ctx context.Context, article *core.Article) (*core.Article, error)
	Delete(ctx context.Context, id string) error
	EnhancedVersion(ctx context.Context, originalID string) (*core.Article, error)
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	articles   ArticleRepository
	config     config.Server
	started    time.Time
}

// New creates a new HTTP server instance
func New(articles ArticleRepository, cfg config.Server) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		articles: articles,
		config:   cfg,
		started:  time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.ReadTimeout),
		WriteTimeout: config.Duration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Post("/", s.handleCreateArticle)
			r.Get("/search", s.handleSearchArticles)
			r.Get("/slug/{slug}", s.handleGetArticleBySlug)
			r.Get("/{id}/with-enhanced", s.handleGetArticleWithEnhanced)
			r.Get("/{id}", s.handleGetArticle)
			r.Put("/{id}", s.handleUpdateArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, &apiError{status: http.StatusNotFound, code: "NOT_FOUND", message: "Route " + r.URL.Path + " not found"})
	})
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
