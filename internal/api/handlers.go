package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pcos-assessment-server/internal/domain"
	"github.com/pcos-assessment-server/internal/middleware"
	"github.com/pcos-assessment-server/internal/service"
)

// MaxListLimit caps the page size of the assessments listing.
const MaxListLimit = 500

const healthCheckTimeout = 2 * time.Second

// ComponentHealth is the health of one dependency.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string                     `json:"status"`
	Timestamp      time.Time                  `json:"timestamp"`
	Version        string                     `json:"version"`
	CatalogVersion string                     `json:"catalog_version"`
	Components     map[string]ComponentHealth `json:"components"`
}

// ListResponse is returned by GET /api/v1/assessments.
type ListResponse struct {
	Assessments []*domain.AssessmentRecord `json:"assessments"`
	Limit       int                        `json:"limit"`
	Offset      int                        `json:"offset"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC(),
		Version:        Version,
		CatalogVersion: s.svc.Catalog().Version(),
		Components:     make(map[string]ComponentHealth, len(s.components)),
	}
	code := http.StatusOK

	for _, comp := range s.components {
		if err := comp.check(ctx); err != nil {
			resp.Components[comp.name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			if comp.critical {
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[comp.name] = ComponentHealth{Status: "healthy"}
	}

	c.JSON(code, resp)
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Catalog().Document())
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var input domain.AssessmentInput
	if !s.bindJSON(c, &input) {
		return
	}

	result, err := s.svc.Evaluate(c.Request.Context(), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateAssessment(c *gin.Context) {
	var req domain.AssessmentRequest
	if !s.bindJSON(c, &req) {
		return
	}

	record, err := s.svc.Assess(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Location", "/api/v1/assessments/"+record.ID)
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if limit > MaxListLimit {
		s.writeError(c, domain.NewValidationError("limit", fmt.Sprintf("must not exceed %d", MaxListLimit), limit))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	records, err := s.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Assessments: records, Limit: limit, Offset: offset})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.svc.Summary(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleExport(c *gin.Context) {
	// Buffered so a failed export still gets a proper error response.
	var buf bytes.Buffer
	if err := s.svc.Export(c.Request.Context(), &buf); err != nil {
		s.writeError(c, err)
		return
	}
	filename := fmt.Sprintf("assessments-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	record, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleDeleteAssessment(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindJSON decodes the request body, writing a 400 or 422 response on failure.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.writeError(c, vErr)
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "Malformed request body", err.Error(), c.GetString(middleware.CorrelationIDKey)))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", raw)
	}
	if n < 0 {
		return 0, domain.NewValidationError(name, "must not be negative", n)
	}
	return n, nil
}

// writeError maps service errors onto status codes and the APIError envelope.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		details, _ := json.Marshal(vErr)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			domain.NewAPIError(domain.ErrValidation, vErr.Error(), string(details), requestID))
	case errors.Is(err, domain.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound,
			domain.NewAPIError(domain.ErrNotFoundCode, "Assessment not found", "", requestID))
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrExportUnsupported):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			domain.NewAPIError(domain.ErrUnavailable, err.Error(), "", requestID))
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusGatewayTimeout,
			domain.NewAPIError(domain.ErrTimeout, "Request timed out", "", requestID))
	default:
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			domain.NewAPIError(domain.ErrInternalServer, "Internal server error", "", requestID))
	}
}
