package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"smishguard/internal/api/handlers"
	apimiddleware "smishguard/internal/api/middleware"
	"smishguard/internal/config"
	"smishguard/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limits   apimiddleware.RateLimitStore
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limits may be nil when rate limiting is disabled.
func NewRouter(cfg config.Config, h *handlers.Handlers, limits apimiddleware.RateLimitStore, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limits:   limits,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	timeout := r.config.Server.RequestTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Get("/", r.handlers.Health.Welcome)
	router.Get("/health", r.handlers.Health.Check)
	router.Get("/ready", r.handlers.Health.Ready)

	router.Route("/api", func(api chi.Router) {
		if r.config.RateLimit.Enabled && r.limits != nil {
			api.Use(apimiddleware.RateLimiter(r.limits, r.config.RateLimit, r.logger))
		}

		api.Post("/scan-image", r.handlers.Scan.ScanImage)
		api.Post("/scan-text", r.handlers.Scan.ScanText)
		api.Post("/rag/explain/{scan_id}", r.handlers.Explain.Explain)
	})

	return router
}
