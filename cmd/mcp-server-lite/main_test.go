package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcos-assessment-server/internal/config"
)

func TestRunReturnsStartError(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.Transport = "websocket"

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}

func TestRunReturnsSetupError(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.CatalogPath = filepath.Join(cfg.DataDir, "missing-catalog.yaml")

	assert.Error(t, run(context.Background(), cfg))
}
