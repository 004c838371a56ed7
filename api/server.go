package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"portscan/config"
	_ "portscan/docs"
	"portscan/scanner"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the HTTP handler. A nil redisClient disables rate limiting.
func NewRouter(cfg *config.Config, store TaskStore, redisClient *redis.Client, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), RequestLoggingMiddleware(logger), SecurityHeadersMiddleware())

	router.GET("/healthz", healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.APIKey, logger))
	if redisClient != nil {
		v1.Use(RateLimitMiddleware(redisClient, cfg.RateLimit, cfg.RateWindow, logger))
	}

	server := NewServer(store, Defaults{Timeout: cfg.ScanTimeout, Concurrency: cfg.ScanConcurrency}, logger)
	server.RegisterRoutes(v1)

	return router
}

// Run initializes dependencies and serves the API until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		store       TaskStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = NewRedisStore(redisClient)
		logger.Info("using redis task store", "addr", cfg.RedisAddr)
	} else {
		store = NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, using in-memory task store without rate limiting")
	}

	gin.SetMode(gin.ReleaseMode)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	engine := scanner.NewEngine(scanner.TCPProbe, logger)
	workers := StartWorkers(workerCtx, store, engine, logger, cfg.ScanWorkers)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewRouter(cfg, store, redisClient, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stopWorkers()
		workers.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	stopWorkers()
	workers.Wait()
	return err
}
