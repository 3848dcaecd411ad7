package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/api/middleware"
	"github.com/tasklane/convo/internal/chat"
	"github.com/tasklane/convo/internal/handlers"
	"github.com/tasklane/convo/internal/store"
	"github.com/tasklane/convo/internal/ws"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil;
// rate limiting is skipped without it.
func NewRouter(logger zerolog.Logger, svc *chat.Service, db store.Store, redisStore *store.RedisStore, hub *ws.Hub, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (requires Redis)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger)
		r.Use(limiter.Middleware)
	}

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc, db, redisStore)
	auth := middleware.NewAuthMiddleware(db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)

	// Websocket handshake; the credential travels in the upgrade request.
	wsHandler := ws.NewHandler(hub, db, svc, allowedOrigins, logger)
	r.Handle("/ws", wsHandler)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/conversations", h.ListConversations)
		r.Get("/tasks/{id}/messages", h.ListTaskMessages)
		r.Post("/messages", h.SendMessage)
		r.Put("/messages/{id}/read", h.MarkRead)
	})

	return r
}
