package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Patient field bounds.
const (
	MaxPatientNameLength = 200
	MaxPatientAge        = 120
)

// AssessmentRequest is a patient-scoped assessment submitted for persistence.
type AssessmentRequest struct {
	PatientName string          `json:"patient_name"`
	Age         int             `json:"age,omitempty"`
	Input       AssessmentInput `json:"input"`
}

// Validate checks patient fields and the clinical input.
func (r *AssessmentRequest) Validate() error {
	name := strings.TrimSpace(r.PatientName)
	if name == "" {
		return NewValidationError("patient_name", "is required", r.PatientName)
	}
	if utf8.RuneCountInString(name) > MaxPatientNameLength {
		return NewValidationError("patient_name", "is too long", utf8.RuneCountInString(name))
	}
	if r.Age < 0 || r.Age > MaxPatientAge {
		return NewValidationError("age", "must be between 0 and 120", r.Age)
	}
	return r.Input.Validate()
}

// AssessmentRecord is a stored assessment in the patient tracker.
type AssessmentRecord struct {
	ID          string           `json:"id"`
	PatientName string           `json:"patient_name"`
	Age         int              `json:"age,omitempty"`
	Input       AssessmentInput  `json:"input"`
	Result      AssessmentResult `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TrackerSummary aggregates stored assessments for the patient tracker view.
type TrackerSummary struct {
	Total         int64               `json:"total"`
	PCOSDiagnosed int64               `json:"pcos_diagnosed"`
	HighRisk      int64               `json:"high_risk"`
	ByPhenotype   map[string]int64    `json:"by_phenotype"`
	ByRiskLevel   map[RiskLevel]int64 `json:"by_risk_level"`
}

// NewTrackerSummary returns an empty summary with initialized maps.
func NewTrackerSummary() *TrackerSummary {
	return &TrackerSummary{
		ByPhenotype: make(map[string]int64),
		ByRiskLevel: make(map[RiskLevel]int64),
	}
}
