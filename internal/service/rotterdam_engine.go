package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pcos-assessment-server/internal/catalog"
	"github.com/pcos-assessment-server/internal/domain"
)

// Thresholds of the Rotterdam 2003 consensus as used for symptom screening.
const (
	OligoPeriodsThreshold     = 9  // fewer periods per year indicates oligo-ovulation
	OligoCycleLengthThreshold = 35 // longer average cycles indicate irregular ovulation
	ObesityBMIThreshold       = 30.0
)

// Fixed risk points that are not catalog driven.
const (
	IrregularPeriodsRiskPoints = 15
	HirsutismRiskPoints        = 10
	AcneRiskPoints             = 10
	MaxRiskScore               = domain.MaxRiskScore
)

// Risk level lower bounds.
const (
	HighRiskThreshold   = domain.HighRiskThreshold
	MediumRiskThreshold = domain.MediumRiskThreshold
)

// FollowUpRiskThreshold is the score a Not PCOS assessment must exceed to get the
// moderate-risk follow-up recommendations.
const FollowUpRiskThreshold = 40

// Recommendation templates.
const (
	RecPCOSConfirmed   = "PCOS diagnosis confirmed - consider comprehensive metabolic workup"
	RecSeverePhenotype = "Severe phenotype - consider aggressive lifestyle intervention and possible metformin therapy"
	RecHighMetabolic   = "High metabolic risk - screen for insulin resistance, diabetes, and cardiovascular risk factors"
	RecNutrition       = "Prescribe personalized low-GI, high-protein nutrition plan"
	RecExercise        = "Recommend 150 minutes/week moderate-intensity exercise"
	RecInositol        = "Consider inositol supplementation (4g/day) for insulin sensitivity"
	RecWeight          = "Monitor weight - 5-10% reduction can restore ovulation"

	RecModerateRisk   = "PCOS not confirmed, but moderate risk factors present"
	RecReassess       = "Consider repeating assessment in 6 months if symptoms persist"
	RecLifestyle      = "Lifestyle modifications still beneficial for symptom management"
	RecLowProbability = "Low probability of PCOS based on current criteria"
	RecDifferentials  = "Consider other differential diagnoses for presented symptoms"
)

var lifestyleRecommendations = []string{RecNutrition, RecExercise, RecInositol, RecWeight}

// hyperandrogenism signs in declaration order.
var androgenSigns = []struct {
	label   string
	present func(domain.SymptomInput) bool
}{
	{"hirsutism (excess facial/body hair)", func(s domain.SymptomInput) bool { return s.Hirsutism }},
	{"acne (especially jawline/chest)", func(s domain.SymptomInput) bool { return s.Acne }},
	{"androgenic alopecia (hair thinning)", func(s domain.SymptomInput) bool { return s.HairLoss }},
	{"elevated testosterone (biochemical)", func(s domain.SymptomInput) bool { return s.TestosteroneElevated }},
}

// ClinicalScorer applies the Rotterdam criteria, phenotype table and risk model of a
// catalog. It holds no per-call state and is safe for concurrent use.
type ClinicalScorer struct {
	logger  *logrus.Logger
	catalog *catalog.Catalog
}

// NewClinicalScorer creates a scorer bound to a validated catalog.
func NewClinicalScorer(cat *catalog.Catalog, logger *logrus.Logger) (*ClinicalScorer, error) {
	if cat == nil {
		return nil, errors.New("clinical scorer requires a catalog")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ClinicalScorer{logger: logger, catalog: cat}, nil
}

// Catalog returns the catalog the scorer was built with.
func (s *ClinicalScorer) Catalog() *catalog.Catalog {
	return s.catalog
}

// Assess validates input and produces a complete assessment.
func (s *ClinicalScorer) Assess(input domain.AssessmentInput) (*domain.AssessmentResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	criteriaMet, evidence := s.EvaluateCriteria(input.Symptoms, input.Ultrasound)
	score := len(criteriaMet)

	diagnosis := domain.DiagnosisNotPCOS
	var phenotype *domain.Phenotype
	if score >= 2 {
		diagnosis = domain.DiagnosisPCOS
		phenotype = s.ClassifyPhenotype(criteriaMet)
		if phenotype == nil {
			s.logger.WithFields(logrus.Fields{
				"criteria_met":    criteriaMet,
				"catalog_version": s.catalog.Version(),
			}).Warn("PCOS criteria met but no catalog phenotype matches the criteria set")
		}
	}

	riskScore := s.ComputeRiskScore(input.Symptoms, input.History)
	result := &domain.AssessmentResult{
		CriteriaMet:      criteriaMet,
		RotterdamScore:   score,
		RotterdamDisplay: fmt.Sprintf("%d/%d", score, len(domain.RotterdamCriteria)),
		Diagnosis:        diagnosis,
		Phenotype:        phenotype,
		RiskScore:        riskScore,
		RiskLevel:        RiskLevelFor(riskScore),
		Evidence:         evidence,
		Recommendations:  s.Recommend(diagnosis, phenotype, riskScore),
	}

	s.logger.WithFields(logrus.Fields(result.LogFields())).Debug("Completed Rotterdam assessment")
	return result, nil
}

// EvaluateCriteria evaluates the three criteria in order. Every criterion yields
// exactly one evidence entry whether or not it is met.
func (s *ClinicalScorer) EvaluateCriteria(symptoms domain.SymptomInput, ultrasound domain.UltrasoundFinding) ([]domain.Criterion, []domain.CriterionEvidence) {
	evidence := []domain.CriterionEvidence{
		evaluateOligoanovulation(symptoms),
		evaluateHyperandrogenism(symptoms),
		evaluatePolycysticOvaries(ultrasound),
	}

	met := make([]domain.Criterion, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Met {
			met = append(met, ev.Criterion)
		}
	}
	return met, evidence
}

// The periods-per-year explanation wins when both triggers hold.
func evaluateOligoanovulation(s domain.SymptomInput) domain.CriterionEvidence {
	ev := domain.CriterionEvidence{Criterion: domain.Oligoanovulation}
	switch {
	case s.PeriodsPerYear < OligoPeriodsThreshold:
		ev.Met = true
		ev.Text = fmt.Sprintf("Irregular menstrual cycles - only %d periods per year (< %d indicates oligo-ovulation)",
			s.PeriodsPerYear, OligoPeriodsThreshold)
	case s.CycleLengthDays > OligoCycleLengthThreshold:
		ev.Met = true
		ev.Text = fmt.Sprintf("Prolonged menstrual cycles - average %d days (> %d days indicates irregular ovulation)",
			s.CycleLengthDays, OligoCycleLengthThreshold)
	default:
		ev.Text = "Regular menstrual cycles - criterion not met"
	}
	return ev
}

func evaluateHyperandrogenism(s domain.SymptomInput) domain.CriterionEvidence {
	var signs []string
	for _, sign := range androgenSigns {
		if sign.present(s) {
			signs = append(signs, sign.label)
		}
	}

	if len(signs) == 0 {
		return domain.CriterionEvidence{
			Criterion: domain.Hyperandrogenism,
			Text:      "No clinical or biochemical signs of hyperandrogenism - criterion not met",
		}
	}
	return domain.CriterionEvidence{
		Criterion: domain.Hyperandrogenism,
		Met:       true,
		Text:      "Clinical/biochemical signs present: " + strings.Join(signs, ", "),
	}
}

func evaluatePolycysticOvaries(u domain.UltrasoundFinding) domain.CriterionEvidence {
	ev := domain.CriterionEvidence{Criterion: domain.PolycysticOvaries}
	switch u.Status {
	case domain.UltrasoundPositive:
		count := "unknown"
		if u.FollicleCount > 0 {
			count = strconv.Itoa(u.FollicleCount)
		}
		volume := strings.TrimSpace(u.VolumeEstimate)
		if volume == "" {
			volume = "unknown"
		}
		ev.Met = true
		ev.Text = fmt.Sprintf("Ultrasound shows polycystic morphology - %s follicles, %s", count, volume)
	case domain.UltrasoundNegative:
		ev.Text = "Ultrasound does not show polycystic morphology - criterion not met"
	default:
		ev.Text = "No ultrasound provided - criterion cannot be evaluated"
	}
	return ev
}

// ClassifyPhenotype returns the catalog phenotype whose criteria set equals
// criteriaMet exactly, or nil.
func (s *ClinicalScorer) ClassifyPhenotype(criteriaMet []domain.Criterion) *domain.Phenotype {
	id, ok := s.catalog.MatchPhenotype(criteriaMet)
	if !ok {
		return nil
	}
	return &id
}

// ComputeRiskScore sums the independent risk contributions. The running total
// saturates at 100 so it never leaves [0, 100].
func (s *ClinicalScorer) ComputeRiskScore(symptoms domain.SymptomInput, history domain.PatientHistory) int {
	score := 0
	add := func(points int) {
		score = min(MaxRiskScore, score+max(0, points))
	}

	if history.FamilyHistory {
		add(s.catalog.RiskIncrease(domain.RiskFamilyHistory))
	}
	if history.BMI >= ObesityBMIThreshold {
		add(s.catalog.RiskIncrease(domain.RiskObesity))
	}
	if history.InsulinResistance {
		add(s.catalog.RiskIncrease(domain.RiskInsulinResistance))
	}
	if history.MetabolicSyndrome {
		add(s.catalog.RiskIncrease(domain.RiskMetabolicSyndrome))
	}
	if symptoms.PeriodsPerYear < OligoPeriodsThreshold {
		add(IrregularPeriodsRiskPoints)
	}
	if symptoms.Hirsutism {
		add(HirsutismRiskPoints)
	}
	if symptoms.Acne {
		add(AcneRiskPoints)
	}
	return score
}

// RiskLevelFor stratifies a risk score. Lower bounds are inclusive.
func RiskLevelFor(score int) domain.RiskLevel {
	return domain.RiskLevelForScore(score)
}

// Recommend selects the recommendation templates for an assessment outcome.
func (s *ClinicalScorer) Recommend(diagnosis domain.Diagnosis, phenotype *domain.Phenotype, riskScore int) []string {
	if diagnosis != domain.DiagnosisPCOS {
		if riskScore > FollowUpRiskThreshold {
			return []string{RecModerateRisk, RecReassess, RecLifestyle}
		}
		return []string{RecLowProbability, RecDifferentials}
	}

	recs := []string{RecPCOSConfirmed}
	if phenotype != nil {
		if def, ok := s.catalog.Phenotype(*phenotype); ok {
			if def.Severity == domain.SeveritySevere {
				recs = append(recs, RecSeverePhenotype)
			}
			if def.MetabolicRisk == domain.MetabolicRiskHigh {
				recs = append(recs, RecHighMetabolic)
			}
		}
	}
	return append(recs, lifestyleRecommendations...)
}

var _ domain.Scorer = (*ClinicalScorer)(nil)
