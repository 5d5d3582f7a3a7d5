package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-commerce-analytics/internal/config"
	"github.com/niaga-platform/service-commerce-analytics/internal/database"
	"github.com/niaga-platform/service-commerce-analytics/internal/events"
	"github.com/niaga-platform/service-commerce-analytics/internal/handlers"
	applog "github.com/niaga-platform/service-commerce-analytics/internal/logger"
	"github.com/niaga-platform/service-commerce-analytics/internal/middleware"
	"github.com/niaga-platform/service-commerce-analytics/internal/providers/shopify"
	"github.com/niaga-platform/service-commerce-analytics/internal/repository"
	"github.com/niaga-platform/service-commerce-analytics/internal/routes"
	"github.com/niaga-platform/service-commerce-analytics/internal/services"
)

const cachePurgeInterval = time.Hour

func main() {
	// Load .env file in development
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := applog.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Sentry for error tracking
	sentryEnabled, err := middleware.InitSentry(middleware.SentryOptions{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		ServiceName:      cfg.App.Name,
		TracesSampleRate: 0.1,
	})
	if err != nil {
		logger.Warn("Failed to initialize Sentry", zap.Error(err))
	}
	if sentryEnabled {
		defer middleware.FlushSentry(2 * time.Second)
	}

	settings, err := cfg.Analytics.Settings()
	if err != nil {
		logger.Fatal("Invalid analytics configuration", zap.Error(err))
	}
	historyStart, err := cfg.Analytics.HistoryStartTime(settings.Location)
	if err != nil {
		logger.Fatal("Invalid analytics configuration", zap.Error(err))
	}

	// Background work started below stops with rootCtx.
	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Cache backend
	var cacheBackend services.CacheBackend
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(rootCtx).Err(); err != nil {
			logger.Warn("Redis unreachable, reports will be recomputed until it recovers", zap.Error(err))
		}
		cacheBackend = repository.NewRedisCache(redisClient, cfg.Cache.Namespace)
		logger.Info("Using Redis analytics cache", zap.String("addr", cfg.Redis.Addr()))
	case config.CacheBackendPostgres:
		db, err := database.Connect(cfg.Database.DSN(), database.DefaultPool(), logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		repo := repository.NewCacheRepository(db)
		go purgeExpiredCache(rootCtx, repo, logger)
		cacheBackend = repo
		logger.Info("Using Postgres analytics cache")
	default:
		logger.Info("Analytics cache disabled")
	}
	cacheService := services.NewAnalyticsCacheService(cacheBackend, logger)

	// Shopify Admin API
	shopifyClient, err := shopify.NewClient(&shopify.ClientConfig{
		Shop:              cfg.Shopify.Shop,
		AccessToken:       cfg.Shopify.AccessToken,
		APIVersion:        cfg.Shopify.APIVersion,
		RequestsPerSecond: cfg.Shopify.RequestsPerSecond,
		Burst:             cfg.Shopify.Burst,
		RequestTimeout:    cfg.Shopify.RequestTimeout,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Shopify client", zap.Error(err))
	}

	// Connect to NATS (optional - only if configured)
	var natsConn *nats.Conn
	var eventPublisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.App.Name))
		if err != nil {
			logger.Warn("Failed to connect to NATS, events disabled", zap.Error(err))
			natsConn = nil
		} else {
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
			eventPublisher = events.NewPublisher(natsConn, logger)
		}
	}

	// A nil *events.Publisher must not become a non-nil interface.
	var reportPublisher services.ReportPublisher
	var ordersPublisher handlers.OrdersChangedPublisher
	if eventPublisher != nil {
		reportPublisher = eventPublisher
		ordersPublisher = eventPublisher
	}

	analyticsService := services.NewAnalyticsService(
		shopify.NewOrderSource(shopifyClient),
		shopify.NewCatalogSource(shopifyClient),
		cacheService,
		reportPublisher,
		settings,
		services.AnalyticsServiceConfig{
			Pages:                   cfg.Analytics.Pages,
			TTL:                     cfg.Cache.TTL,
			HistoryStart:            historyStart,
			WriteTimeout:            cfg.Cache.WriteTimeout,
			DefaultBrandMonths:      cfg.Analytics.DefaultBrandMonths,
			DefaultProjectionMonths: cfg.Analytics.DefaultProjectionMonths,
		},
		logger,
	)

	var eventSubscriber *events.Subscriber
	if natsConn != nil {
		eventSubscriber = events.NewSubscriber(natsConn, analyticsService, logger)
		if err := eventSubscriber.Start(); err != nil {
			logger.Warn("Failed to start event subscriber", zap.Error(err))
		}
	}

	// Initialize handlers
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, settings.Location, logger)
	webhookHandler := handlers.NewWebhookHandler(cfg.Shopify.WebhookSecret, ordersPublisher, analyticsService, logger)

	// Set Gin mode
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	if sentryEnabled {
		router.Use(middleware.Sentry())
	}
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	routes.SetupRoutes(router, &routes.RouteConfig{
		ServiceName:      cfg.App.Name,
		AnalyticsHandler: analyticsHandler,
		WebhookHandler:   webhookHandler,
	})

	// Create server. Full collections can take a while, so the write
	// timeout is generous.
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Commerce analytics service starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if eventSubscriber != nil {
		eventSubscriber.Stop()
	}
	if err := analyticsService.Drain(ctx); err != nil {
		logger.Warn("Pending cache writes abandoned", zap.Error(err))
	}
	stopBackground()
	if natsConn != nil {
		_ = natsConn.Drain()
	}

	logger.Info("Server exited")
}

// purgeExpiredCache deletes expired cache rows until ctx ends.
func purgeExpiredCache(ctx context.Context, repo *repository.CacheRepository, logger *zap.Logger) {
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.PurgeExpired(ctx, now)
			if err != nil {
				logger.Warn("Failed to purge expired cache entries", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("Purged expired cache entries", zap.Int64("rows", n))
			}
		}
	}
}
