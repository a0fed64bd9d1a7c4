package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tair/payment-reconciler/docs"
	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/internal/payment"
	"github.com/tair/payment-reconciler/internal/payment/cache"
	"github.com/tair/payment-reconciler/internal/payment/handler"
	"github.com/tair/payment-reconciler/internal/payment/repository/inmemory"
	"github.com/tair/payment-reconciler/kafka"
	"github.com/tair/payment-reconciler/pkg/database"
	"github.com/tair/payment-reconciler/pkg/logger"
	"github.com/tair/payment-reconciler/pkg/tracing"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("payment-service", true)
		logger.Logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.ServiceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Str("store_driver", cfg.StoreDriver).
		Msg("Starting payment service")

	// Initialize tracer
	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	extras := payment.Extras{Registry: registry}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		cancel()
		if err != nil {
			logger.Logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, processed-event cache and rate limiting disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			extras.Cache = cache.NewRedisEventCache(redisClient, cfg.EventCacheTTL)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers)
		if err != nil {
			logger.Logger.Warn().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("Kafka unavailable, reconciled events will not be published")
		} else {
			defer publisher.Close()
			extras.Publisher = publisher
		}
	}

	var (
		paymentHandler *handler.PaymentHandler
		healthCheck    handler.HealthCheck
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Logger.Warn().Msg("Using in-memory store; ledger and entitlements are lost on restart")
		paymentHandler, err = payment.InitializeMemoryHandler(inmemory.NewStore(), cfg, extras)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
		}
	default:
		db, err := database.NewGormConnection(cfg.Database)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
		}

		sqlDB, err := db.DB()
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
		}
		defer sqlDB.Close()

		// Run migrations
		if err := payment.Migrate(db); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
		}

		logger.Logger.Info().Msg("Database initialized successfully")

		paymentHandler, err = payment.InitializeHandler(db, cfg, extras)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
		}
		healthCheck = sqlDB.PingContext
	}

	if redisClient != nil {
		paymentHandler.UseCheckoutRateLimiter(handler.NewRateLimiter(redisClient, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newRouter(paymentHandler, healthCheck, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTPPort).
			Str("metrics_endpoint", "/metrics").
			Str("swagger_endpoint", "/swagger/index.html").
			Msg("HTTP server started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
}

func newRouter(paymentHandler *handler.PaymentHandler, healthCheck handler.HealthCheck, registry *prometheus.Registry) http.Handler {
	// Setup router
	router := mux.NewRouter()

	// Get middleware configuration
	middlewareConfig := paymentHandler.GetMiddlewareConfig()

	// Register all middlewares using middleware registration system
	handler.RegisterMiddlewares(router, middlewareConfig)

	// Register routes
	paymentHandler.RegisterRoutes(router)

	// Health check endpoint
	paymentHandler.RegisterHealthCheck(router, healthCheck)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Swagger UI
	handler.RegisterSwaggerDocs(router, httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
	))

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(router)
}
