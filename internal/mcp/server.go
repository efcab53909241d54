// Package mcp exposes the assessment service as Model Context Protocol tools.
// The lite server needs no external databases: it keeps results in an in-memory
// cache and patient records in SQLite.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pcos-assessment-server/internal/cache"
	"github.com/pcos-assessment-server/internal/catalog"
	litecfg "github.com/pcos-assessment-server/internal/config"
	"github.com/pcos-assessment-server/internal/service"
	"github.com/pcos-assessment-server/internal/tracker"
)

// Server identity reported during initialization.
const (
	ServerName    = "pcos-assessment-server-lite"
	ServerVersion = "v1.0.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	svc       *service.AssessmentService
	scorer    *service.ClinicalScorer
	store     tracker.Store
	cache     *cache.MemoryCache
	catalog   *catalog.Catalog
	logger    *logrus.Logger

	name    string
	version string
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithStore sets a custom assessment store.
func WithStore(store tracker.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithCatalog sets the criteria catalog instead of loading cfg.CatalogPath.
func WithCatalog(cat *catalog.Catalog) LiteServerOption {
	return func(s *LiteServer) error {
		if cat == nil {
			return errors.New("catalog is nil")
		}
		s.catalog = cat
		return nil
	}
}

// WithImplementation overrides the server name and version reported to clients.
func WithImplementation(name, version string) LiteServerOption {
	return func(s *LiteServer) error {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg, name: ServerName, version: ServerVersion}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := litecfg.NewLogger(cfg.Logging())
		if err != nil {
			return nil, err
		}
		server.logger = logger
	}

	if server.catalog == nil {
		cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		server.catalog = cat
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	memCache, err := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	server.cache = memCache

	if server.store == nil {
		store, err := tracker.NewSQLiteStore(cfg.AssessmentDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create assessment store: %w", err)
		}
		server.store = store
	}

	scorer, err := service.NewClinicalScorer(server.catalog, server.logger)
	if err != nil {
		return nil, err
	}
	server.scorer = scorer
	server.svc = service.NewAssessmentService(server.logger, scorer, memCache, server.store)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    server.name,
		Version: server.version,
	}, nil)
	server.registerTools()
	server.registerResources()
	server.registerPrompts()

	server.logger.WithFields(logrus.Fields{
		"catalog_source":  server.catalog.Source(),
		"catalog_version": server.catalog.Version(),
		"data_dir":        cfg.DataDir,
		"server_name":     server.name,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start runs the server on the configured transport until ctx is cancelled or
// the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.WithField("transport_type", s.config.Transport).Info("Starting PCOS assessment MCP server (lite)")

	switch s.config.Transport {
	case "", "stdio":
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case "http":
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unsupported transport: %s", s.config.Transport)
	}
}

func (s *LiteServer) serveHTTP(ctx context.Context) error {
	host := s.config.HTTPHost
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(s.config.HTTPPort))
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("MCP streamable HTTP transport listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close assessment store")
			return err
		}
	}
	return nil
}

// Store returns the assessment store.
func (s *LiteServer) Store() tracker.Store {
	return s.store
}

// Cache returns the memory cache.
func (s *LiteServer) Cache() *cache.MemoryCache {
	return s.cache
}
