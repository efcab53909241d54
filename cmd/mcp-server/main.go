// Package main runs the MCP server against the shared PostgreSQL patient tracker,
// configured the same way as the REST API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/database"
	"github.com/pcos-assessment-server/internal/mcp"
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
	liteCfg := config.LiteConfigFrom(cfg)

	// Logs go to stderr so stdout stays free for the stdio transport.
	logger, err := config.NewLogger(liteCfg.Logging())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	databaseURL := configManager.GetDatabaseURL()
	if cfg.Database.RunMigrations {
		runner, err := database.NewMigrationRunner(databaseURL, cfg.Database.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		err = runner.Up(ctx)
		runner.Close()
		if err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
	}

	store, err := tracker.NewPostgresStoreFromURL(databaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to assessment store")
	}

	server, err := mcp.NewLiteServer(liteCfg,
		mcp.WithLogger(logger),
		mcp.WithStore(store),
		mcp.WithImplementation(cfg.MCP.ServerName, cfg.MCP.ServerVersion),
	)
	if err != nil {
		store.Close()
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		server.Close()
		logger.WithError(err).Fatal("MCP server failed")
	}
	logger.Info("PCOS assessment MCP server stopped")
}
