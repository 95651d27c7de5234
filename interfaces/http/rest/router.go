package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/longhornrumble/picasso/application/services"
	"github.com/longhornrumble/picasso/interfaces/http/rest/handlers"
	"github.com/longhornrumble/picasso/interfaces/http/rest/middleware"
	"github.com/longhornrumble/picasso/pkg/auth"
	appErrors "github.com/longhornrumble/picasso/pkg/errors"
	"github.com/longhornrumble/picasso/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	chatService *services.ChatService
	rateLimiter *auth.EndpointRateLimiter
	distributed *auth.DistributedRateLimiter
	ipLimiter   *auth.IPRateLimiter
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	errors      *appErrors.ErrorHandler
	enableCORS  bool
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	chatService *services.ChatService,
	rateLimiter *auth.EndpointRateLimiter,
	distributed *auth.DistributedRateLimiter,
	ipLimiter *auth.IPRateLimiter,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	errors *appErrors.ErrorHandler,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		chatService: chatService,
		rateLimiter: rateLimiter,
		distributed: distributed,
		ipLimiter:   ipLimiter,
		metrics:     metrics,
		tracer:      tracer,
		errors:      errors,
		enableCORS:  enableCORS,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Trace(rt.tracer))
	router.Use(middleware.IPFloodGuard(rt.ipLimiter, rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// Chat endpoints
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.EndpointRateLimit(rt.rateLimiter, rt.distributed, rt.metrics, rt.logger))

		chatHandler := handlers.NewChatHandler(rt.chatService, rt.errors, rt.logger)
		streamHandler := handlers.NewStreamHandler(rt.chatService, rt.errors, rt.logger)
		r.Post("/chat", chatHandler.HandleChat)
		r.Post("/chat/stream", streamHandler.HandleStream)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
