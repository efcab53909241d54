package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pcos-assessment-server/internal/domain"
)

// SymptomParams mirrors domain.SymptomInput for tool input schemas.
type SymptomParams struct {
	PeriodsPerYear       int  `json:"periods_per_year" jsonschema:"menstrual periods in the last 12 months, 0 to 13"`
	CycleLengthDays      int  `json:"cycle_length_days" jsonschema:"average cycle length in days, at least 1"`
	Hirsutism            bool `json:"hirsutism,omitempty" jsonschema:"excess hair growth"`
	Acne                 bool `json:"acne,omitempty" jsonschema:"persistent acne"`
	HairLoss             bool `json:"hair_loss,omitempty" jsonschema:"male-pattern hair loss"`
	TestosteroneElevated bool `json:"testosterone_elevated,omitempty" jsonschema:"elevated testosterone on lab work"`
}

// HistoryParams mirrors domain.PatientHistory.
type HistoryParams struct {
	BMI               float64 `json:"bmi" jsonschema:"body mass index, positive"`
	FamilyHistory     bool    `json:"family_history,omitempty" jsonschema:"first-degree relative with PCOS"`
	InsulinResistance bool    `json:"insulin_resistance,omitempty" jsonschema:"diagnosed insulin resistance"`
	MetabolicSyndrome bool    `json:"metabolic_syndrome,omitempty" jsonschema:"diagnosed metabolic syndrome"`
}

// UltrasoundParams mirrors domain.UltrasoundFinding with a string status.
type UltrasoundParams struct {
	Status         string `json:"status,omitempty" jsonschema:"positive, negative or not_provided"`
	FollicleCount  int    `json:"follicle_count,omitempty" jsonschema:"follicles per ovary for a positive scan"`
	VolumeEstimate string `json:"volume_estimate,omitempty" jsonschema:"ovarian volume, e.g. 12 ml"`
}

// EvaluateCriteriaParams defines parameters for the evaluate_criteria tool
type EvaluateCriteriaParams struct {
	Symptoms   SymptomParams     `json:"symptoms"`
	Ultrasound *UltrasoundParams `json:"ultrasound,omitempty"`
}

// AssessPCOSParams defines parameters for the assess_pcos tool
type AssessPCOSParams struct {
	Symptoms    SymptomParams     `json:"symptoms"`
	History     HistoryParams     `json:"history"`
	Ultrasound  *UltrasoundParams `json:"ultrasound,omitempty"`
	Save        bool              `json:"save,omitempty" jsonschema:"store the assessment in the patient tracker"`
	PatientName string            `json:"patient_name,omitempty" jsonschema:"required when save is true"`
	Age         int               `json:"age,omitempty" jsonschema:"patient age in years, 0 when unknown"`
}

// GetAssessmentParams defines parameters for the get_assessment tool
type GetAssessmentParams struct {
	ID string `json:"id" jsonschema:"assessment id"`
}

// ListAssessmentsParams defines parameters for the list_assessments tool
type ListAssessmentsParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 50"`
	Offset int `json:"offset,omitempty" jsonschema:"records to skip"`
}

// NoParams is the input of tools without parameters.
type NoParams struct{}

// EvaluateCriteriaResult is the output of evaluate_criteria.
type EvaluateCriteriaResult struct {
	CriteriaMet      []domain.Criterion         `json:"criteria_met"`
	RotterdamScore   int                        `json:"rotterdam_score"`
	RotterdamDisplay string                     `json:"rotterdam_display"`
	Diagnosis        domain.Diagnosis           `json:"diagnosis"`
	Phenotype        *domain.Phenotype          `json:"phenotype"`
	Evidence         []domain.CriterionEvidence `json:"evidence"`
}

// AssessPCOSResult is the output of assess_pcos.
type AssessPCOSResult struct {
	Result         *domain.AssessmentResult `json:"result"`
	CatalogVersion string                   `json:"catalog_version"`
	Cached         bool                     `json:"cached"`
	AssessmentID   string                   `json:"assessment_id,omitempty"`
}

// ListAssessmentsResult is the output of list_assessments.
type ListAssessmentsResult struct {
	Assessments []*domain.AssessmentRecord `json:"assessments"`
	Total       int64                      `json:"total"`
}

// ExportAssessmentsResult is the output of export_assessments.
type ExportAssessmentsResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
}

func (p SymptomParams) toDomain() domain.SymptomInput {
	return domain.SymptomInput{
		PeriodsPerYear:       p.PeriodsPerYear,
		CycleLengthDays:      p.CycleLengthDays,
		Hirsutism:            p.Hirsutism,
		Acne:                 p.Acne,
		HairLoss:             p.HairLoss,
		TestosteroneElevated: p.TestosteroneElevated,
	}
}

func (p HistoryParams) toDomain() domain.PatientHistory {
	return domain.PatientHistory{
		BMI:               p.BMI,
		FamilyHistory:     p.FamilyHistory,
		InsulinResistance: p.InsulinResistance,
		MetabolicSyndrome: p.MetabolicSyndrome,
	}
}

func (p *UltrasoundParams) toDomain() (domain.UltrasoundFinding, error) {
	if p == nil {
		return domain.NoUltrasound(), nil
	}
	var status domain.UltrasoundStatus
	if err := status.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(p.Status)))); err != nil {
		return domain.UltrasoundFinding{}, err
	}
	finding := domain.UltrasoundFinding{Status: status}
	if status == domain.UltrasoundPositive {
		finding.FollicleCount = p.FollicleCount
		finding.VolumeEstimate = p.VolumeEstimate
	}
	return finding, finding.Validate()
}

// registerTools registers every tool with the MCP SDK.
func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_pcos",
		Description: "Run a full Rotterdam PCOS assessment: criteria, diagnosis, phenotype, metabolic risk score and recommendations. Set save to store it in the patient tracker.",
	}, s.handleAssessPCOS)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_criteria",
		Description: "Evaluate only the three Rotterdam criteria and return the per-criterion evidence, score and phenotype.",
	}, s.handleEvaluateCriteria)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_assessment",
		Description: "Fetch a stored patient assessment by id.",
	}, s.handleGetAssessment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_assessments",
		Description: "List stored patient assessments, newest first.",
	}, s.handleListAssessments)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assessment_summary",
		Description: "Summarize the patient tracker: totals, PCOS diagnoses, high risk patients, counts per phenotype and risk level.",
	}, s.handleAssessmentSummary)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_criteria_catalog",
		Description: "Return the active criteria catalog: criteria, phenotype definitions and risk factor points.",
	}, s.handleGetCatalog)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_assessments",
		Description: "Export all stored assessments to a JSON file in the data directory.",
	}, s.handleExportAssessments)

	s.logger.WithField("tool_count", 7).Info("Successfully registered all tools")
}

func (s *LiteServer) handleAssessPCOS(ctx context.Context, req *mcp.CallToolRequest, params AssessPCOSParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assess_pcos").Debug("Tool invoked")

	ultrasound, err := params.Ultrasound.toDomain()
	if err != nil {
		return s.toolError(err)
	}
	input := domain.AssessmentInput{
		Symptoms:   params.Symptoms.toDomain(),
		History:    params.History.toDomain(),
		Ultrasound: ultrasound,
	}

	if params.Save {
		record, err := s.svc.Assess(ctx, &domain.AssessmentRequest{
			PatientName: params.PatientName,
			Age:         params.Age,
			Input:       input,
		})
		if err != nil {
			return s.toolError(err)
		}
		out := AssessPCOSResult{
			Result:         &record.Result,
			CatalogVersion: s.catalog.Version(),
			AssessmentID:   record.ID,
		}
		return s.toolResult(summarizeResult(&record.Result)+fmt.Sprintf(" Saved as %s.", record.ID), out)
	}

	evaluated, err := s.svc.Evaluate(ctx, input)
	if err != nil {
		return s.toolError(err)
	}
	out := AssessPCOSResult{
		Result:         evaluated.Result,
		CatalogVersion: evaluated.CatalogVersion,
		Cached:         evaluated.Cached,
	}
	return s.toolResult(summarizeResult(evaluated.Result), out)
}

func (s *LiteServer) handleEvaluateCriteria(ctx context.Context, req *mcp.CallToolRequest, params EvaluateCriteriaParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "evaluate_criteria").Debug("Tool invoked")

	symptoms := params.Symptoms.toDomain()
	if err := symptoms.Validate(); err != nil {
		return s.toolError(err)
	}
	ultrasound, err := params.Ultrasound.toDomain()
	if err != nil {
		return s.toolError(err)
	}

	met, evidence := s.scorer.EvaluateCriteria(symptoms, ultrasound)
	diagnosis := domain.DiagnosisNotPCOS
	var phenotype *domain.Phenotype
	if len(met) >= 2 {
		diagnosis = domain.DiagnosisPCOS
		phenotype = s.scorer.ClassifyPhenotype(met)
	}

	out := EvaluateCriteriaResult{
		CriteriaMet:      met,
		RotterdamScore:   len(met),
		RotterdamDisplay: fmt.Sprintf("%d/3", len(met)),
		Diagnosis:        diagnosis,
		Phenotype:        phenotype,
		Evidence:         evidence,
	}
	return s.toolResult(fmt.Sprintf("Rotterdam criteria met: %s (%s).", out.RotterdamDisplay, diagnosis), out)
}

func (s *LiteServer) handleGetAssessment(ctx context.Context, req *mcp.CallToolRequest, params GetAssessmentParams) (*mcp.CallToolResult, any, error) {
	record, err := s.svc.Get(ctx, params.ID)
	if err != nil {
		return s.toolError(err)
	}
	return s.toolResult(fmt.Sprintf("Assessment %s for %s: %s", record.ID, record.PatientName, summarizeResult(&record.Result)), record)
}

func (s *LiteServer) handleListAssessments(ctx context.Context, req *mcp.CallToolRequest, params ListAssessmentsParams) (*mcp.CallToolResult, any, error) {
	records, err := s.svc.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.toolError(err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return s.toolError(err)
	}
	out := ListAssessmentsResult{Assessments: records, Total: total}
	return s.toolResult(fmt.Sprintf("Returned %d of %d stored assessments.", len(records), total), out)
}

func (s *LiteServer) handleAssessmentSummary(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	summary, err := s.svc.Summary(ctx)
	if err != nil {
		return s.toolError(err)
	}
	text := fmt.Sprintf("%d assessments, %d PCOS diagnosed, %d high risk.", summary.Total, summary.PCOSDiagnosed, summary.HighRisk)
	return s.toolResult(text, summary)
}

func (s *LiteServer) handleGetCatalog(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	doc := s.catalog.Document()
	return s.toolResult(fmt.Sprintf("Criteria catalog version %s from %s.", doc.Version, s.catalog.Source()), doc)
}

func (s *LiteServer) handleExportAssessments(ctx context.Context, req *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	exportDir := s.config.ExportDir()
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return s.toolError(fmt.Errorf("failed to create export directory: %w", err))
	}

	filePath := filepath.Join(exportDir, fmt.Sprintf("assessments_export_%s.json", time.Now().Format("20060102_150405")))
	if err := s.writeExport(ctx, filePath); err != nil {
		return s.toolError(err)
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return s.toolError(err)
	}

	out := ExportAssessmentsResult{FilePath: filePath, Count: count}
	return s.toolResult(fmt.Sprintf("Exported %d assessments to %s.", count, filePath), out)
}

// writeExport writes the export next to path and renames it into place, so a
// failed export leaves no file behind.
func (s *LiteServer) writeExport(ctx context.Context, path string) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".assessments_export_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	tmpPath := file.Name()

	if err := s.svc.Export(ctx, file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move export file into place: %w", err)
	}
	return nil
}

// toolResult returns a summary line followed by the JSON payload, with the payload
// also set as structured content.
func (s *LiteServer) toolResult(summary string, payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, payload, nil
}

// toolError reports user-facing failures as tool errors so the model can correct
// its input; anything else is logged and returned as a generic failure.
func (s *LiteServer) toolError(err error) (*mcp.CallToolResult, any, error) {
	var vErr *domain.ValidationError
	var msg string
	switch {
	case errors.As(err, &vErr):
		msg = "Invalid input: " + vErr.Error()
	case errors.Is(err, domain.ErrNotFound):
		msg = "Assessment not found"
	default:
		s.logger.WithError(err).Error("Tool call failed")
		msg = "Tool call failed: " + err.Error()
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}, nil, nil
}

func summarizeResult(r *domain.AssessmentResult) string {
	return fmt.Sprintf("%s (Rotterdam %s, phenotype %s), risk score %d (%s).",
		r.Diagnosis, r.RotterdamDisplay, r.PhenotypeLabel(), r.RiskScore, r.RiskLevel)
}
