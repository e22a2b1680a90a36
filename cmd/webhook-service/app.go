package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"inbox/internal/config"
	"inbox/internal/ingestion"
	"inbox/internal/logger"
	"inbox/internal/messages"
	"inbox/migrations"
	"inbox/pkg/bootstrap"
	"inbox/pkg/health"
	"inbox/pkg/metrics"
	"inbox/pkg/middleware"
	"inbox/pkg/ratelimit"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logger.Logger
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redisClient *redis.Client
	metrics     *metrics.Registry
	server      *http.Server
	router      *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds * time.Second,
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db); err != nil {
			return err
		}
		a.logger.InfowCtx(ctx, "Migrations applied")
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		// The stats cache is an optimization; run without it.
		a.logger.WarnwCtx(ctx, "Redis connection failed, continuing without stats cache", "error", err)
	} else {
		a.redisClient = rdb
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	a.metrics = metrics.NewRegistry()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.MetricsMiddleware(a.metrics))

	repo := messages.NewRepository(a.db)
	store := messages.NewCircuitBreakerRepository(repo, a.config.CircuitBreaker, a.metrics)

	opts := []messages.ServiceOption{}
	if a.redisClient != nil {
		ttl := time.Duration(a.config.Database.Redis.TTLSeconds) * time.Second
		opts = append(opts, messages.WithStatsCache(messages.NewStatsCache(a.redisClient, ttl)))
	}
	queryService := messages.NewService(store, opts...)

	pipeline := ingestion.NewPipeline(a.config.Webhook.Secret, store, a.metrics, a.logger)

	var ingestMiddleware []gin.HandlerFunc
	if a.config.Ingestion.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Ingestion.RateLimit.RPS,
			Burst:           a.config.Ingestion.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Ingestion.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Ingestion.RateLimit.MaxAge) * time.Second,
		}
		ingestMiddleware = append(ingestMiddleware, ratelimit.RateLimitMiddleware(rateLimitConfig, a.metrics))
		a.logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	ingestionHandler := ingestion.NewHandler(pipeline, a.config.Webhook.SignatureHeader, a.logger)
	ingestionHandler.RegisterRoutes(router, ingestMiddleware...)

	messagesHandler := messages.NewHandler(queryService, a.logger)
	messagesHandler.RegisterRoutes(router)

	readinessRegistry := health.NewCheckerRegistry()
	readinessRegistry.Register(health.NewSecretChecker(a.config.SecretConfigured))
	readinessRegistry.Register(health.NewPostgreSQLChecker(a.db))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		h := readinessRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.ShutdownDatabases(a.db, a.redisClient)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}
