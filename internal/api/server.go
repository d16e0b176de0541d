// Package api provides the HTTP API server and handlers for the chapter
// audio pipeline.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkcast/inkcast-server/internal/ratelimit"
	"github.com/inkcast/inkcast-server/internal/storage"
	"github.com/inkcast/inkcast-server/internal/store"
	"github.com/inkcast/inkcast-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     store.Store
	objects   storage.Store
	services  *Services
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured. limiter
// may be nil to disable rate limiting on build submission.
func NewServer(st store.Store, objects storage.Store, services *Services, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Server {
	s := &Server{
		store:     st,
		objects:   objects,
		services:  services,
		validator: validation.New(),
		limiter:   limiter,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()

	RegisterErrorHandler()
	config := huma.DefaultConfig("Inkcast API", "1.0.0")
	config.DocsPath = "/docs"
	s.api = humachi.New(s.router, config)

	s.registerHealthRoutes()
	s.registerChapterRoutes()
	s.registerPlaybackRoutes()
	s.registerSearchRoutes()

	// Audio streaming stays chi-native; huma buffers bodies.
	s.router.Get("/api/v1/builds/{buildID}/groups/{index}/audio", s.handleStreamGroupAudio)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.rateLimitBuilds)
}

// rateLimitBuilds throttles build submissions per client. Builds are the
// expensive path (TTS spend), so only POSTs under /api/v1/chapters count.
func (s *Server) rateLimitBuilds(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.Method == http.MethodPost &&
			strings.HasPrefix(r.URL.Path, "/api/v1/chapters") {
			if !s.limiter.Allow(getClientIP(r)) {
				s.logger.Warn("build submission rate limited",
					"ip", getClientIP(r), "path", r.URL.Path)
				writeRateLimited(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
