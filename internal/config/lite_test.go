package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcos-assessment-server/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, ".pcos-assessment", filepath.Base(cfg.DataDir))
	assert.Empty(t, cfg.CatalogPath)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "stdio", cfg.Transport)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PCOS_DATA_DIR", "/tmp/test-pcos")
	t.Setenv("PCOS_CATALOG_PATH", "/etc/pcos/catalog.yaml")
	t.Setenv("PCOS_CACHE_MAX_ITEMS", "500")
	t.Setenv("PCOS_CACHE_TTL", "12h")
	t.Setenv("PCOS_TRANSPORT", "http")
	t.Setenv("PCOS_HTTP_HOST", "0.0.0.0")
	t.Setenv("PCOS_HTTP_PORT", "9090")
	t.Setenv("PCOS_LOG_LEVEL", "debug")
	t.Setenv("PCOS_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-pcos", cfg.DataDir)
	assert.Equal(t, "/etc/pcos/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, "0.0.0.0", cfg.HTTPHost)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PCOS_CACHE_MAX_ITEMS", "-5")
	t.Setenv("PCOS_CACHE_TTL", "soon")
	t.Setenv("PCOS_HTTP_PORT", "70000")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 8081, cfg.HTTPPort)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.pcos-assessment"}

	assert.Equal(t, "/home/user/.pcos-assessment/assessments.db", cfg.AssessmentDBPath())
	assert.Equal(t, "/home/user/.pcos-assessment/exports", cfg.ExportDir())
}

func TestLiteConfig_Logging(t *testing.T) {
	cfg := &LiteConfig{LogLevel: "warn", LogFormat: "text"}

	logging := cfg.Logging()
	assert.Equal(t, "warn", logging.Level)
	assert.Equal(t, "text", logging.Format)
	assert.Equal(t, "stderr", logging.Output)
}

func TestLiteConfigFrom(t *testing.T) {
	cfg := &domain.Config{
		Cache:   domain.CacheConfig{MemoryItems: 250, DefaultTTL: time.Hour},
		Logging: domain.LoggingConfig{Level: "warn", Format: "text", Output: "stdout"},
		Catalog: domain.CatalogConfig{Path: "catalog.json"},
		MCP:     domain.MCPConfig{TransportType: "http", HTTPHost: "0.0.0.0", HTTPPort: 9191},
	}

	lite := LiteConfigFrom(cfg)

	assert.Equal(t, "catalog.json", lite.CatalogPath)
	assert.Equal(t, 250, lite.CacheMaxItems)
	assert.Equal(t, time.Hour, lite.CacheTTL)
	assert.Equal(t, "http", lite.Transport)
	assert.Equal(t, "0.0.0.0", lite.HTTPHost)
	assert.Equal(t, 9191, lite.HTTPPort)
	assert.Equal(t, "stderr", lite.Logging().Output)
	assert.Equal(t, DefaultLiteConfig().DataDir, lite.DataDir)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "pcos")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"PCOS_DATA_DIR",
		"PCOS_CATALOG_PATH",
		"PCOS_CACHE_MAX_ITEMS",
		"PCOS_CACHE_TTL",
		"PCOS_TRANSPORT",
		"PCOS_HTTP_HOST",
		"PCOS_HTTP_PORT",
		"PCOS_LOG_LEVEL",
		"PCOS_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the original value after the test.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
