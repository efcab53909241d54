// Package main runs the PCOS assessment REST API backed by PostgreSQL and Redis.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pcos-assessment-server/internal/api"
	"github.com/pcos-assessment-server/internal/cache"
	"github.com/pcos-assessment-server/internal/catalog"
	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/database"
	"github.com/pcos-assessment-server/internal/domain"
	"github.com/pcos-assessment-server/internal/middleware"
	"github.com/pcos-assessment-server/internal/service"
	"github.com/pcos-assessment-server/internal/tracker"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	cat, err := catalog.LoadOrDefault(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	scorer, err := service.NewClinicalScorer(cat, logger)
	if err != nil {
		return err
	}

	if cfg.Database.RunMigrations {
		if err := migrate(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := tracker.NewPostgresStore(db.SQL())
	if err != nil {
		return err
	}

	resultCache := newResultCache(cfg.Cache, logger)
	defer resultCache.Close()

	svc := service.NewAssessmentService(logger, scorer, resultCache, store)

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHealthCheck("database", true, db.Health),
		api.WithHealthCheck("cache", false, resultCache.Ping),
	}
	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithRateLimiter(limiter))
	}

	logger.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"catalog_source":  cat.Source(),
		"catalog_version": cat.Version(),
		"config_file":     configManager.ConfigFileUsed(),
	}).Info("Starting PCOS assessment server")

	return api.NewServer(cfg.Server, svc, opts...).Start(ctx)
}

func migrate(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}

// newResultCache prefers Redis and falls back to an in-process cache when Redis
// is not configured or unreachable.
func newResultCache(cfg domain.CacheConfig, logger *logrus.Logger) cache.Cache {
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg, logger)
		if err == nil {
			return redisCache
		}
		logger.WithError(err).Warn("Redis unavailable, using in-memory result cache")
	}

	memCache, err := cache.NewMemoryCache(cfg.MemoryItems, cfg.DefaultTTL)
	if err != nil {
		// Validate already rejects non-positive sizes.
		logger.WithError(err).Fatal("Failed to create memory cache")
	}
	return memCache
}
