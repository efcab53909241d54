// Package main provides the lightweight entry point for the PCOS assessment MCP server.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	log.Printf("Starting PCOS assessment MCP server (lite) with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	log.Println("PCOS assessment MCP server (lite) stopped")
}

// run serves until ctx is done. The server is closed before run returns.
func run(ctx context.Context, cfg *config.LiteConfig) error {
	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	return server.Start(ctx)
}
