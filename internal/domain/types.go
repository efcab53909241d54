// Package domain contains the core clinical entities for PCOS (Polycystic Ovary Syndrome)
// assessment following the Rotterdam consensus criteria.
//
// Reference: Rotterdam ESHRE/ASRM-Sponsored PCOS Consensus Workshop Group (2004).
// Revised 2003 consensus on diagnostic criteria and long-term health risks related to
// polycystic ovary syndrome. Fertil Steril. 81(1):19-25.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Criterion identifies one of the three Rotterdam diagnostic criteria.
type Criterion string

const (
	Oligoanovulation  Criterion = "oligoanovulation"
	Hyperandrogenism  Criterion = "hyperandrogenism"
	PolycysticOvaries Criterion = "polycystic_ovaries"
)

// RotterdamCriteria lists the criteria in evaluation order. Evidence and criteria_met
// are always reported in this order.
var RotterdamCriteria = []Criterion{Oligoanovulation, Hyperandrogenism, PolycysticOvaries}

// IsValid reports whether c is one of the Rotterdam criteria.
func (c Criterion) IsValid() bool {
	switch c {
	case Oligoanovulation, Hyperandrogenism, PolycysticOvaries:
		return true
	default:
		return false
	}
}

// String returns the criterion key.
func (c Criterion) String() string {
	return string(c)
}

// Phenotype is one of the four standard PCOS subtypes.
type Phenotype string

const (
	PhenotypeA Phenotype = "A"
	PhenotypeB Phenotype = "B"
	PhenotypeC Phenotype = "C"
	PhenotypeD Phenotype = "D"
)

// Phenotypes lists every phenotype the catalog must define.
var Phenotypes = []Phenotype{PhenotypeA, PhenotypeB, PhenotypeC, PhenotypeD}

// IsValid reports whether p is a known phenotype.
func (p Phenotype) IsValid() bool {
	switch p {
	case PhenotypeA, PhenotypeB, PhenotypeC, PhenotypeD:
		return true
	default:
		return false
	}
}

// String returns the phenotype letter.
func (p Phenotype) String() string {
	return string(p)
}

// RiskFactor identifies a catalog-driven risk score contribution.
type RiskFactor string

const (
	RiskFamilyHistory     RiskFactor = "family_history"
	RiskObesity           RiskFactor = "obesity"
	RiskInsulinResistance RiskFactor = "insulin_resistance"
	RiskMetabolicSyndrome RiskFactor = "metabolic_syndrome"
)

// RiskFactors lists every risk factor the catalog must define.
var RiskFactors = []RiskFactor{RiskFamilyHistory, RiskObesity, RiskInsulinResistance, RiskMetabolicSyndrome}

// IsValid reports whether f is a known risk factor.
func (f RiskFactor) IsValid() bool {
	switch f {
	case RiskFamilyHistory, RiskObesity, RiskInsulinResistance, RiskMetabolicSyndrome:
		return true
	default:
		return false
	}
}

// Severity grades a phenotype's clinical severity.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// MetabolicRisk grades a phenotype's long-term metabolic risk.
type MetabolicRisk string

const (
	MetabolicRiskLow      MetabolicRisk = "low"
	MetabolicRiskModerate MetabolicRisk = "moderate"
	MetabolicRiskHigh     MetabolicRisk = "high"
)

// IsValid reports whether m is a known metabolic risk grade.
func (m MetabolicRisk) IsValid() bool {
	switch m {
	case MetabolicRiskLow, MetabolicRiskModerate, MetabolicRiskHigh:
		return true
	default:
		return false
	}
}

// Diagnosis is the outcome of the Rotterdam rule (two of three criteria).
type Diagnosis string

const (
	DiagnosisPCOS    Diagnosis = "PCOS"
	DiagnosisNotPCOS Diagnosis = "Not PCOS"
)

// IsValid reports whether d is a known diagnosis.
func (d Diagnosis) IsValid() bool {
	return d == DiagnosisPCOS || d == DiagnosisNotPCOS
}

// String returns the diagnosis label.
func (d Diagnosis) String() string {
	return string(d)
}

// RiskLevel stratifies the composite risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Risk score range and risk level lower bounds.
const (
	MaxRiskScore        = 100
	HighRiskThreshold   = 70
	MediumRiskThreshold = 40
)

// RiskLevelForScore stratifies a risk score. Lower bounds are inclusive.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// IsValid reports whether r is a known risk level.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// String returns the risk level label.
func (r RiskLevel) String() string {
	return string(r)
}

// Domain bounds for symptom and history input.
const (
	MinPeriodsPerYear = 0
	MaxPeriodsPerYear = 13
	MinCycleLength    = 1
)

// ErrNotFound is returned by record lookups that match nothing.
var ErrNotFound = errors.New("not found")

// SymptomInput is a per-assessment snapshot of menstrual and androgen-related signs.
type SymptomInput struct {
	PeriodsPerYear       int  `json:"periods_per_year"`
	CycleLengthDays      int  `json:"cycle_length_days"`
	Hirsutism            bool `json:"hirsutism"`
	Acne                 bool `json:"acne"`
	HairLoss             bool `json:"hair_loss"`
	TestosteroneElevated bool `json:"testosterone_elevated"`
}

// Validate checks the symptom fields against their documented domains.
func (s SymptomInput) Validate() error {
	if s.PeriodsPerYear < MinPeriodsPerYear || s.PeriodsPerYear > MaxPeriodsPerYear {
		return NewValidationError("periods_per_year",
			fmt.Sprintf("must be between %d and %d", MinPeriodsPerYear, MaxPeriodsPerYear), s.PeriodsPerYear)
	}
	if s.CycleLengthDays < MinCycleLength {
		return NewValidationError("cycle_length_days",
			fmt.Sprintf("must be at least %d", MinCycleLength), s.CycleLengthDays)
	}
	return nil
}

// symptomFields mirrors SymptomInput with the numeric fields as pointers so an
// absent field is not read as zero.
type symptomFields struct {
	PeriodsPerYear       *int `json:"periods_per_year"`
	CycleLengthDays      *int `json:"cycle_length_days"`
	Hirsutism            bool `json:"hirsutism"`
	Acne                 bool `json:"acne"`
	HairLoss             bool `json:"hair_loss"`
	TestosteroneElevated bool `json:"testosterone_elevated"`
}

// UnmarshalJSON decodes a symptom object. periods_per_year and cycle_length_days
// are required; a missing one yields a *ValidationError.
func (s *SymptomInput) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var f symptomFields
	if err := decodeStrict(data, &f); err != nil {
		return err
	}
	if f.PeriodsPerYear == nil {
		return NewValidationError("periods_per_year", "is required", nil)
	}
	if f.CycleLengthDays == nil {
		return NewValidationError("cycle_length_days", "is required", nil)
	}
	*s = SymptomInput{
		PeriodsPerYear:       *f.PeriodsPerYear,
		CycleLengthDays:      *f.CycleLengthDays,
		Hirsutism:            f.Hirsutism,
		Acne:                 f.Acne,
		HairLoss:             f.HairLoss,
		TestosteroneElevated: f.TestosteroneElevated,
	}
	return nil
}

// PatientHistory holds the auxiliary risk factors used by the risk score.
type PatientHistory struct {
	BMI               float64 `json:"bmi"`
	FamilyHistory     bool    `json:"family_history"`
	InsulinResistance bool    `json:"insulin_resistance"`
	MetabolicSyndrome bool    `json:"metabolic_syndrome"`
}

// Validate checks the history fields against their documented domains.
func (h PatientHistory) Validate() error {
	if math.IsNaN(h.BMI) || math.IsInf(h.BMI, 0) || h.BMI <= 0 {
		return NewValidationError("bmi", "must be a positive finite number", h.BMI)
	}
	return nil
}

type historyFields struct {
	BMI               *float64 `json:"bmi"`
	FamilyHistory     bool     `json:"family_history"`
	InsulinResistance bool     `json:"insulin_resistance"`
	MetabolicSyndrome bool     `json:"metabolic_syndrome"`
}

// UnmarshalJSON decodes a history object; bmi is required.
func (h *PatientHistory) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var f historyFields
	if err := decodeStrict(data, &f); err != nil {
		return err
	}
	if f.BMI == nil {
		return NewValidationError("bmi", "is required", nil)
	}
	*h = PatientHistory{
		BMI:               *f.BMI,
		FamilyHistory:     f.FamilyHistory,
		InsulinResistance: f.InsulinResistance,
		MetabolicSyndrome: f.MetabolicSyndrome,
	}
	return nil
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// decodeStrict decodes data into v, rejecting unknown keys.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// AssessmentInput bundles everything the scorer reads for one evaluation.
type AssessmentInput struct {
	Symptoms   SymptomInput      `json:"symptoms"`
	History    PatientHistory    `json:"history"`
	Ultrasound UltrasoundFinding `json:"ultrasound"`
}

// Validate validates every part of the input, returning the first violation.
func (in AssessmentInput) Validate() error {
	if err := in.Symptoms.Validate(); err != nil {
		return err
	}
	if err := in.History.Validate(); err != nil {
		return err
	}
	return in.Ultrasound.Validate()
}

// CriterionEvidence is the justification recorded for one criterion, met or not.
type CriterionEvidence struct {
	Criterion Criterion `json:"criterion"`
	Met       bool      `json:"met"`
	Text      string    `json:"text"`
}

// AssessmentResult is the immutable output of one evaluation.
type AssessmentResult struct {
	CriteriaMet      []Criterion         `json:"criteria_met"`
	RotterdamScore   int                 `json:"rotterdam_score"`
	RotterdamDisplay string              `json:"rotterdam_display"`
	Diagnosis        Diagnosis           `json:"diagnosis"`
	Phenotype        *Phenotype          `json:"phenotype"`
	RiskScore        int                 `json:"risk_score"`
	RiskLevel        RiskLevel           `json:"risk_level"`
	Evidence         []CriterionEvidence `json:"evidence"`
	Recommendations  []string            `json:"recommendations"`
}

// HasCriterion reports whether c was met.
func (r *AssessmentResult) HasCriterion(c Criterion) bool {
	for _, met := range r.CriteriaMet {
		if met == c {
			return true
		}
	}
	return false
}

// EvidenceFor returns the evidence entry recorded for c.
func (r *AssessmentResult) EvidenceFor(c Criterion) (CriterionEvidence, bool) {
	for _, ev := range r.Evidence {
		if ev.Criterion == c {
			return ev, true
		}
	}
	return CriterionEvidence{}, false
}

// PhenotypeLabel returns the phenotype letter or "N/A" when none matched.
func (r *AssessmentResult) PhenotypeLabel() string {
	if r.Phenotype == nil {
		return "N/A"
	}
	return r.Phenotype.String()
}

// Validate checks that the result is internally consistent: the Rotterdam score
// matches the criteria met, the diagnosis follows the two-of-three rule, the risk
// level matches the score and there is one evidence entry per criterion. It does
// not re-run the scoring, so catalog-dependent values are only range checked.
func (r *AssessmentResult) Validate() error {
	met := make(map[Criterion]bool, len(r.CriteriaMet))
	next := 0
	for _, c := range r.CriteriaMet {
		idx := slices.Index(RotterdamCriteria, c)
		if idx < next {
			return NewValidationError("result.criteria_met", "must list known criteria once, in evaluation order", r.CriteriaMet)
		}
		met[c] = true
		next = idx + 1
	}

	if r.RotterdamScore != len(r.CriteriaMet) {
		return NewValidationError("result.rotterdam_score", "must equal the number of criteria met", r.RotterdamScore)
	}
	if want := fmt.Sprintf("%d/%d", r.RotterdamScore, len(RotterdamCriteria)); r.RotterdamDisplay != want {
		return NewValidationError("result.rotterdam_display", "must be "+want, r.RotterdamDisplay)
	}

	wantDiagnosis := DiagnosisNotPCOS
	if r.RotterdamScore >= 2 {
		wantDiagnosis = DiagnosisPCOS
	}
	if r.Diagnosis != wantDiagnosis {
		return NewValidationError("result.diagnosis", "does not match the Rotterdam score", r.Diagnosis)
	}
	if r.Phenotype != nil {
		if !r.Phenotype.IsValid() {
			return NewValidationError("result.phenotype", "unknown phenotype", *r.Phenotype)
		}
		if r.Diagnosis != DiagnosisPCOS {
			return NewValidationError("result.phenotype", "is only set for a PCOS diagnosis", *r.Phenotype)
		}
	}

	if r.RiskScore < 0 || r.RiskScore > MaxRiskScore {
		return NewValidationError("result.risk_score", fmt.Sprintf("must be between 0 and %d", MaxRiskScore), r.RiskScore)
	}
	if r.RiskLevel != RiskLevelForScore(r.RiskScore) {
		return NewValidationError("result.risk_level", "does not match the risk score", r.RiskLevel)
	}

	if len(r.Evidence) != len(RotterdamCriteria) {
		return NewValidationError("result.evidence", "must hold one entry per criterion", len(r.Evidence))
	}
	for i, ev := range r.Evidence {
		if ev.Criterion != RotterdamCriteria[i] {
			return NewValidationError("result.evidence", "must follow evaluation order", ev.Criterion)
		}
		if ev.Met != met[ev.Criterion] {
			return NewValidationError("result.evidence", "disagrees with criteria_met", ev.Criterion)
		}
	}
	return nil
}

// LogFields returns structured logging fields for audit trails.
func (r *AssessmentResult) LogFields() map[string]any {
	return map[string]any{
		"diagnosis":       string(r.Diagnosis),
		"rotterdam_score": r.RotterdamDisplay,
		"phenotype":       r.PhenotypeLabel(),
		"risk_score":      r.RiskScore,
		"risk_level":      string(r.RiskLevel),
	}
}
