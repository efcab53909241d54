package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pcos-assessment-server/internal/domain"
	"github.com/pcos-assessment-server/internal/middleware"
	"github.com/pcos-assessment-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type component struct {
	name     string
	check    HealthCheck
	critical bool
}

// Server represents the HTTP server
type Server struct {
	cfg         domain.ServerConfig
	logger      *logrus.Logger
	svc         *service.AssessmentService
	rateLimiter *middleware.RateLimiter
	components  []component
	router      *gin.Engine
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and error logs.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimiter limits requests per client IP.
func WithRateLimiter(rl *middleware.RateLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

// WithHealthCheck adds a component to the health report. A failing critical
// component makes the service unhealthy; any other failure only degrades it.
func WithHealthCheck(name string, critical bool, check HealthCheck) Option {
	return func(s *Server) {
		s.components = append(s.components, component{name: name, check: check, critical: critical})
	}
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, svc *service.AssessmentService, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(s.logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	if s.rateLimiter != nil {
		router.Use(s.rateLimiter.Middleware())
	}
	router.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	s.router = router
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  s.cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if s.cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/catalog", s.handleCatalog)
		v1.POST("/evaluate", s.handleEvaluate)

		assessments := v1.Group("/assessments")
		assessments.POST("", s.handleCreateAssessment)
		assessments.GET("", s.handleListAssessments)
		assessments.GET("/summary", s.handleSummary)
		assessments.GET("/export", s.handleExport)
		assessments.GET("/:id", s.handleGetAssessment)
		assessments.DELETE("/:id", s.handleDeleteAssessment)
	}
}
