package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-service/internal/breaker"
	"order-service/internal/cache"
	"order-service/internal/client"
	"order-service/internal/config"
	"order-service/internal/database"
	"order-service/internal/dispatch"
	"order-service/internal/handler"
	"order-service/internal/lock"
	"order-service/internal/metrics"
	"order-service/internal/notify"
	"order-service/internal/repository"
	"order-service/internal/router"
	"order-service/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting order-service API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	orderRepo := repository.NewOrderRepository(pool, logger)
	recorder := metrics.NewRecorder()

	healthChecks := map[string]handler.Check{
		"database": func(ctx context.Context) error {
			return database.HealthCheck(ctx, pool, 2*time.Second)
		},
	}

	// Redis backs the read cache and the cross-instance checkout lock
	var (
		orderCache cache.OrderCache = cache.NopCache{}
		locker     lock.Locker
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer rdb.Close()

		orderCache = cache.NewRedisOrderCache(rdb, cfg.Redis.CacheTTL, logger)
		locker = lock.NewRedisLocker(rdb, cfg.Checkout.LockTTL)
		healthChecks["redis"] = redisCheck(rdb)
	} else {
		locker = lock.NewLocalLocker(cfg.Checkout.LockTTL)
		logger.Info().Msg("redis disabled, using in-process checkout lock and no order cache")
	}

	// Collaborator clients, each behind its own breaker
	collab := cfg.Collaborators
	newBreaker := func(name string) *breaker.Breaker {
		return breaker.New(name, collab.BreakerMaxFailures, collab.BreakerResetTimeout)
	}
	cartClient := client.NewCartClient(client.Options{
		BaseURL: collab.CartServiceURL,
		Timeout: collab.RequestTimeout,
		Breaker: newBreaker("cart"),
	}, logger)
	productClient := client.NewProductClient(client.Options{
		BaseURL: collab.ProductServiceURL,
		Timeout: collab.ReservationTimeout,
		Breaker: newBreaker("product"),
	}, logger)

	notifier, closeNotifier, err := newNotifier(cfg, newBreaker("notification"), logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var archiver notify.ReceiptArchiver
	if cfg.S3.Enabled {
		s3Archiver, err := notify.NewS3ReceiptArchiver(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise S3 receipt archive, receipts will not be stored")
		} else {
			archiver = s3Archiver
		}
	}

	dispatcher := dispatch.New(dispatch.Config{
		Workers:   cfg.Checkout.DispatchWorkers,
		QueueSize: cfg.Checkout.DispatchQueueSize,
		Timeout:   cfg.Checkout.DispatchTimeout,
	}, recorder, logger)

	// Initialize services
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Orders:     orderRepo,
		Cart:       cartClient,
		Stock:      productClient,
		Locker:     locker,
		Cache:      orderCache,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Archiver:   archiver,
		Metrics:    recorder,
	}, service.CheckoutOptions{
		ReservationTimeout: collab.ReservationTimeout,
		CartClearTimeout:   collab.RequestTimeout,
	}, logger)
	queryService := service.NewOrderQueryService(orderRepo, orderCache, logger)
	statusService := service.NewOrderStatusService(orderRepo, orderCache, logger)

	// Initialize HTTP handlers
	orderHandler := handler.NewOrderHandler(checkoutService, queryService, statusService, logger)
	healthHandler := handler.NewHealthHandler(healthChecks, 3*time.Second, logger)

	// Initialize router
	mux := router.New(orderHandler, healthHandler, recorder.Handler(), recorder, cfg.Auth.APIKey, logger)

	// Create HTTP server. Writes must outlive the longest checkout.
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Checkout.LockTTL + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		// Let queued confirmations and receipts finish before the notifier closes
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("background tasks abandoned at shutdown")
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newNotifier builds the confirmation transport selected by configuration.
// The returned close function is always safe to call.
func newNotifier(cfg *config.Config, b *breaker.Breaker, logger zerolog.Logger) (notify.Notifier, func(), error) {
	switch cfg.Notification.Transport {
	case config.TransportKafka:
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.ConfirmationTopic, logger)
		closeFn := func() {
			if err := kn.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka writer")
			}
		}
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.ConfirmationTopic).
			Msg("order confirmations published to kafka")
		return kn, closeFn, nil

	case config.TransportHTTP:
		nc := client.NewNotificationClient(client.Options{
			BaseURL: cfg.Collaborators.NotificationServiceURL,
			Timeout: cfg.Collaborators.RequestTimeout,
			Breaker: b,
		}, logger)
		return nc, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unsupported notification transport %q", cfg.Notification.Transport)
}

func redisCheck(rdb *redis.Client) handler.Check {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
		return nil
	}
}
