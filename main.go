package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/api"
	"github.com/SigNoz/ecommerce-checkout/internal/auth"
	"github.com/SigNoz/ecommerce-checkout/internal/cache"
	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/logging"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.OTELServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.UsesDefaultJWTSecret() {
		if cfg.OTELDeploymentEnvironment == "production" {
			logger.Fatal("JWT_SECRET must be set in production")
		}
		logger.Warn("JWT_SECRET is not set, signing tokens with the insecure default secret",
			zap.String("environment", cfg.OTELDeploymentEnvironment))
	}

	ctx := context.Background()

	// Initialize OpenTelemetry metrics
	appMetrics := metrics.NewNoop(cfg.OTELServiceName)
	if cfg.OTELMetricsEnabled {
		m, meterProvider, err := metrics.InitMetrics(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialize metrics", zap.Error(err))
		}
		appMetrics = m
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("error shutting down meter provider", zap.Error(err))
			}
		}()
		logger.Info("metrics exporter configured", zap.String("endpoint", cfg.OTELExporterOTLPEndpoint))
	}

	// Storage backend
	var (
		backing store.Store
		pinger  api.Pinger
	)
	switch cfg.StorageBackend {
	case "mysql":
		database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		if err := database.Migrate(); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		backing = store.NewMySQLStore(database, appMetrics, logger)
		pinger = database
	case "memory":
		backing = store.NewMemoryStore()
	default:
		logger.Fatal("unknown storage backend", zap.String("backend", cfg.StorageBackend))
	}

	var carts store.CartStore = backing
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			// the decorator tolerates an unreachable cache, so keep going
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()

		carts = cache.NewCartStore(backing, cache.NewRedisCartCache(client, cfg.RedisCartTTL), appMetrics, logger)
		logger.Info("cart cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.RedisCartTTL))
	}

	// Initialize services
	productService := services.NewProductService(backing, appMetrics, logger)
	cartService := services.NewCartService(carts, productService, appMetrics, logger)
	checkoutService := services.NewCheckoutService(backing, productService, cartService, cfg.Checkout, appMetrics, logger)
	orderService := services.NewOrderService(backing, productService, appMetrics, logger)

	if cfg.SeedProductsFile != "" {
		if _, err := productService.SeedProducts(ctx, cfg.SeedProductsFile); err != nil {
			logger.Fatal("failed to seed products", zap.Error(err))
		}
	}

	app := api.NewApp(appMetrics, logger, auth.NewResolver(cfg.JWTSecret), pinger, cartService, checkoutService, orderService)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server exited")
}
