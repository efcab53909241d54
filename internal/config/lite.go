// Package config provides configuration management for the assessment server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pcos-assessment-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite tracker and exports

	// Empty selects the embedded criteria catalog.
	CatalogPath string

	// Cache settings
	CacheMaxItems int           // Maximum results in the memory cache
	CacheTTL      time.Duration // Result TTL, 0 disables expiry

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPHost  string // HTTP bind address (if transport is http)
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pcos-assessment")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Transport:     "stdio",
		HTTPHost:      "127.0.0.1",
		HTTPPort:      8081,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Invalid or unset values keep their defaults.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("PCOS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.CatalogPath = os.Getenv("PCOS_CATALOG_PATH")

	if v := os.Getenv("PCOS_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PCOS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("PCOS_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("PCOS_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("PCOS_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 65535 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("PCOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PCOS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// Logging returns the logging settings. The lite server always logs to stderr so
// stdout stays free for the stdio transport.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// AssessmentDBPath returns the path to the tracker SQLite database.
func (c *LiteConfig) AssessmentDBPath() string {
	return filepath.Join(c.DataDir, "assessments.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// LiteConfigFrom derives the MCP settings of a full deployment. Only the transport,
// logging and catalog are taken from cfg; the data directory keeps its default.
func LiteConfigFrom(cfg *domain.Config) *LiteConfig {
	lite := DefaultLiteConfig()
	lite.CatalogPath = cfg.Catalog.Path
	lite.CacheMaxItems = cfg.Cache.MemoryItems
	lite.CacheTTL = cfg.Cache.DefaultTTL
	lite.Transport = cfg.MCP.TransportType
	lite.HTTPHost = cfg.MCP.HTTPHost
	lite.HTTPPort = cfg.MCP.HTTPPort
	lite.LogLevel = cfg.Logging.Level
	lite.LogFormat = cfg.Logging.Format
	return lite
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
