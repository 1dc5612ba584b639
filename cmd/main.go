package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manorfm/healthshield-mfa/internal/application"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/attempts"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/clock"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/config"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/crypto"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/database"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/repository"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/totp"
	httprouter "github.com/manorfm/healthshield-mfa/internal/interfaces/http"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const ipLimiterTTL = 3 * time.Minute

type store interface {
	domain.ProfileRepository
	httprouter.Pinger
}

// @title HealthShield MFA API
// @version 1.0
// @description TOTP multi-factor enrollment and verification service
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open profile store", zap.Error(err))
	}
	defer closeStore()

	sealer, err := newSealer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret sealer", zap.Error(err))
	}

	verifyLimiter, closeLimiter, err := newAttemptLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize attempt limiter", zap.Error(err))
	}
	defer closeLimiter()

	ipLimiter := attempts.NewMemoryLimiter(rate.Limit(cfg.HTTPRateLimit), cfg.HTTPRateBurst, ipLimiterTTL, clock.New())
	defer ipLimiter.Close()

	// Initialize services
	params := cfg.TOTPParams()
	generator := totp.NewGenerator(params, clock.New(), logger)
	mfaService := application.NewMFAService(repo, generator, verifyLimiter, sealer, params, logger)

	// Create router
	router := httprouter.NewRouter(mfaService, repo, ipLimiter, cfg, logger)

	// Start server
	server := newServer(cfg, router)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.Int("port", cfg.ServerPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("rate_limit_backend", cfg.RateLimitBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server exited properly")
}

// newServer leaves room past the router's request timeout so a timed-out
// request still gets its 504
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: httprouter.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory profile store, state is lost on restart")
		repo := repository.NewMemoryProfileRepository(logger)
		if err := repository.SeedProfiles(ctx, repo, cfg.SeedUsers, logger); err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}

	if cfg.DBAutoMigrate {
		if err := database.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL(), logger); err != nil {
			return nil, nil, err
		}
	}

	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	s := &postgresStore{
		ProfileRepository: repository.NewProfileRepository(db, logger),
		db:                db,
	}
	if err := repository.SeedProfiles(ctx, s, cfg.SeedUsers, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	return s, db.Close, nil
}

// postgresStore reports readiness through the pool behind the repository
type postgresStore struct {
	*repository.ProfileRepository
	db *database.Postgres
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func newSealer(cfg *config.Config, logger *zap.Logger) (domain.SecretSealer, error) {
	if cfg.MFAEncryptionKey == "" {
		logger.Warn("MFA_ENCRYPTION_KEY not set, TOTP secrets are stored unencrypted")
		return crypto.NewPlainSealer(), nil
	}
	return crypto.NewAESSealer(cfg.MFAEncryptionKey, logger)
}

func newAttemptLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.AttemptLimiter, func(), error) {
	if cfg.RateLimitBackend == config.RateLimitBackendRedis {
		client, err := attempts.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, nil, err
		}
		return attempts.NewRedisLimiter(client, cfg.VerifyMaxAttempts, cfg.VerifyAttemptWindow), func() { _ = client.Close() }, nil
	}

	l := attempts.NewMemoryLimiter(
		attempts.PerWindow(cfg.VerifyMaxAttempts, cfg.VerifyAttemptWindow),
		cfg.VerifyMaxAttempts,
		cfg.VerifyAttemptWindow,
		clock.New(),
	)
	return l, func() { _ = l.Close() }, nil
}
