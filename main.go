// File: deviceinventory/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deviceinventory/config"
	"deviceinventory/cron"
	"deviceinventory/database/repository"
	"deviceinventory/handlers"
	"deviceinventory/middleware"
	"deviceinventory/routes"
	"deviceinventory/services/device"
	"deviceinventory/services/dispatch"
	"deviceinventory/services/events"
	"deviceinventory/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Optional Redis read-through cache.
	var cacheClient *redis.Client
	if cfg.CacheEnabled {
		client, err := utils.NewCacheClient(cfg)
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		cacheClient = client
		defer cacheClient.Close()
	}

	store, err := repository.Open(ctx, cfg, cacheClient, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open device store: %v", err)
	}

	// Lifecycle events and the audit worker that consumes them.
	var publisher events.Publisher = events.NopPublisher{}
	var eventWorker *asynq.Server
	if cfg.EventsEnabled {
		redisOpts := asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisEventsDB,
		}
		asynqPublisher := events.NewAsynqPublisher(redisOpts)
		defer asynqPublisher.Close()
		publisher = asynqPublisher

		eventWorker, err = cron.StartLifecycleWorker(redisOpts, cfg.EventWorkerConcurrency, logger)
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
	}

	pool := dispatch.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize, logger)
	deviceService := device.NewDeviceService(store.Devices, pool, publisher, logger)

	var redisPingers []utils.Pinger
	if cacheClient != nil {
		redisPingers = append(redisPingers, func(ctx context.Context) error { return cacheClient.Ping(ctx).Err() })
	}
	monitor := utils.NewHealthMonitor(store.Ping, redisPingers, 30*time.Second)
	monitor.Start(ctx)

	handlerBundle := handlers.NewHandlerBundle(handlers.NewDeviceHandler(deviceService), monitor)
	router, err := newRouter(cfg, logger, handlerBundle)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	// Start the HTTP server.
	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.AppPort,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	// Drain in-flight device operations before closing the store under them.
	deviceService.Close()
	if eventWorker != nil {
		eventWorker.Shutdown()
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("main: failed to close device store", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// newRouter builds the gin engine: middleware chain first, then every route.
func newRouter(cfg config.Config, logger *zap.Logger, hb *handlers.HandlerBundle) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	router.Use(utils.ErrorHandler(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.NewRateLimiter(cfg.MaxRequestsPerMin).Middleware())

	routes.RegisterRoutes(router, hb)
	return router, nil
}
