package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pcos-assessment-server/internal/cache"
	"github.com/pcos-assessment-server/internal/catalog"
	"github.com/pcos-assessment-server/internal/domain"
)

var (
	// ErrStoreUnavailable is returned by record operations when no store is configured.
	ErrStoreUnavailable = errors.New("assessment store not configured")

	// ErrExportUnsupported is returned when the store cannot export records.
	ErrExportUnsupported = errors.New("assessment store does not support export")
)

// EvaluateResult is the response of a stateless evaluation.
type EvaluateResult struct {
	Result           *domain.AssessmentResult `json:"result"`
	CatalogVersion   string                   `json:"catalog_version"`
	Cached           bool                     `json:"cached"`
	ProcessingTimeMS int64                    `json:"processing_time_ms"`
}

// AssessmentService evaluates inputs and manages tracked assessments. The cache and
// repository are optional.
type AssessmentService struct {
	logger *logrus.Logger
	scorer *ClinicalScorer
	cache  cache.Cache
	repo   domain.AssessmentRepository
}

// NewAssessmentService creates the service. cache and repo may be nil.
func NewAssessmentService(logger *logrus.Logger, scorer *ClinicalScorer, resultCache cache.Cache, repo domain.AssessmentRepository) *AssessmentService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AssessmentService{
		logger: logger,
		scorer: scorer,
		cache:  resultCache,
		repo:   repo,
	}
}

// Catalog returns the active criteria catalog.
func (s *AssessmentService) Catalog() *catalog.Catalog {
	return s.scorer.Catalog()
}

// HasStore reports whether record operations are available.
func (s *AssessmentService) HasStore() bool {
	return s.repo != nil
}

// Evaluate scores input without persisting it. Results are cached per catalog
// version; cache failures are logged and never fail the evaluation.
func (s *AssessmentService) Evaluate(ctx context.Context, input domain.AssessmentInput) (*EvaluateResult, error) {
	start := time.Now()
	version := s.scorer.Catalog().Version()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	key, keyErr := cache.Key(version, input)
	if keyErr != nil {
		s.logger.WithError(keyErr).Warn("Failed to derive cache key, evaluating without cache")
	}

	if s.cache != nil && keyErr == nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("Result cache lookup failed")
		} else if ok {
			return &EvaluateResult{
				Result:           cached,
				CatalogVersion:   version,
				Cached:           true,
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			}, nil
		}
	}

	result, err := s.scorer.Assess(input)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && keyErr == nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.WithError(err).Warn("Failed to cache assessment result")
		}
	}

	return &EvaluateResult{
		Result:           result,
		CatalogVersion:   version,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// Assess validates a patient request, evaluates it and stores the record.
func (s *AssessmentService) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentRecord, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "is required", nil)
	}
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	evaluated, err := s.Evaluate(ctx, req.Input)
	if err != nil {
		return nil, err
	}

	record := &domain.AssessmentRecord{
		ID:          uuid.NewString(),
		PatientName: strings.TrimSpace(req.PatientName),
		Age:         req.Age,
		Input:       req.Input,
		Result:      *evaluated.Result,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save assessment: %w", err)
	}

	fields := logrus.Fields(record.Result.LogFields())
	fields["assessment_id"] = record.ID
	s.logger.WithFields(fields).Info("Stored patient assessment")
	return record, nil
}

// Get returns a stored assessment.
func (s *AssessmentService) Get(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("id", "is required", id)
	}
	return s.repo.Get(ctx, id)
}

// List returns stored assessments newest first.
func (s *AssessmentService) List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	if limit < 0 {
		return nil, domain.NewValidationError("limit", "must not be negative", limit)
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative", offset)
	}
	records, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.AssessmentRecord{}
	}
	return records, nil
}

// Delete removes a stored assessment.
func (s *AssessmentService) Delete(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrStoreUnavailable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("assessment_id", id).Info("Deleted patient assessment")
	return nil
}

// Summary aggregates stored assessments.
func (s *AssessmentService) Summary(ctx context.Context) (*domain.TrackerSummary, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	return s.repo.Summary(ctx)
}

// Export writes every stored assessment to writer as a JSON export document.
func (s *AssessmentService) Export(ctx context.Context, writer io.Writer) error {
	if s.repo == nil {
		return ErrStoreUnavailable
	}
	exporter, ok := s.repo.(domain.AssessmentExporter)
	if !ok {
		return ErrExportUnsupported
	}
	return exporter.ExportJSON(ctx, writer)
}
