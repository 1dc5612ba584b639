package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/config"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/handlers"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/middleware/auth"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/middleware/ratelimit"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// RequestTimeout bounds the handling of a single request
const RequestTimeout = 30 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	router *chi.Mux
}

func NewRouter(
	service domain.MFAService,
	store Pinger,
	ipLimiter domain.AttemptLimiter,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	mfaHandler := handlers.NewMFAHandler(service, logger)

	// Create router with middleware
	router := createRouter(cfg)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				logger.Error("Store health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Store connection failed"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
	))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	rateLimiter := ratelimit.NewRateLimiter(ipLimiter, logger)

	router.Route("/api/mfa", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		if cfg.JWTSecret != "" {
			r.Use(auth.NewAuthMiddleware(cfg.JWTSecret, logger).Handler)
		} else {
			logger.Warn("JWT_SECRET not set, MFA endpoints are unauthenticated")
		}

		r.Post("/begin-enrollment", mfaHandler.BeginEnrollment)
		r.Post("/confirm-enrollment", mfaHandler.ConfirmEnrollment)
		r.Post("/verify-login", mfaHandler.VerifyLogin)
		r.Post("/disable", mfaHandler.DisableMFA)
	})

	return &Router{router: router}
}

func createRouter(cfg *config.Config) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(RequestTimeout))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	return router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
