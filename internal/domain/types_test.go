package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestCriterionConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Criterion
		expected string
	}{
		{"Oligoanovulation", Oligoanovulation, "oligoanovulation"},
		{"Hyperandrogenism", Hyperandrogenism, "hyperandrogenism"},
		{"Polycystic ovaries", PolycysticOvaries, "polycystic_ovaries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if Criterion("ovulation").IsValid() {
		t.Errorf("Expected unknown criterion to be invalid")
	}
}

func TestRotterdamCriteriaOrder(t *testing.T) {
	expected := []Criterion{Oligoanovulation, Hyperandrogenism, PolycysticOvaries}
	if len(RotterdamCriteria) != len(expected) {
		t.Fatalf("Expected %d criteria, got %d", len(expected), len(RotterdamCriteria))
	}
	for i, c := range expected {
		if RotterdamCriteria[i] != c {
			t.Errorf("Position %d: expected %s, got %s", i, c, RotterdamCriteria[i])
		}
	}
}

func TestEnumValidity(t *testing.T) {
	for _, p := range Phenotypes {
		if !p.IsValid() {
			t.Errorf("Expected phenotype %s to be valid", p)
		}
	}
	if Phenotype("E").IsValid() {
		t.Errorf("Expected phenotype E to be invalid")
	}

	for _, f := range RiskFactors {
		if !f.IsValid() {
			t.Errorf("Expected risk factor %s to be valid", f)
		}
	}
	if RiskFactor("smoking").IsValid() {
		t.Errorf("Expected unknown risk factor to be invalid")
	}

	if !SeveritySevere.IsValid() || Severity("extreme").IsValid() {
		t.Errorf("Severity validity mismatch")
	}
	if !MetabolicRiskHigh.IsValid() || MetabolicRisk("unknown").IsValid() {
		t.Errorf("MetabolicRisk validity mismatch")
	}
	if !DiagnosisPCOS.IsValid() || !DiagnosisNotPCOS.IsValid() || Diagnosis("Maybe").IsValid() {
		t.Errorf("Diagnosis validity mismatch")
	}
	if !RiskHigh.IsValid() || RiskLevel("Severe").IsValid() {
		t.Errorf("RiskLevel validity mismatch")
	}
}

func TestSymptomInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     SymptomInput
		wantField string
	}{
		{"valid lower bound", SymptomInput{PeriodsPerYear: 0, CycleLengthDays: 1}, ""},
		{"valid upper bound", SymptomInput{PeriodsPerYear: 13, CycleLengthDays: 28}, ""},
		{"negative periods", SymptomInput{PeriodsPerYear: -1, CycleLengthDays: 28}, "periods_per_year"},
		{"too many periods", SymptomInput{PeriodsPerYear: 14, CycleLengthDays: 28}, "periods_per_year"},
		{"zero cycle length", SymptomInput{PeriodsPerYear: 12, CycleLengthDays: 0}, "cycle_length_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}

func TestAssessmentInputJSONRequiresNumericFields(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing periods", `{"symptoms":{"cycle_length_days":28,"hirsutism":true},"history":{"bmi":22}}`, "periods_per_year"},
		{"null periods", `{"symptoms":{"periods_per_year":null,"cycle_length_days":28},"history":{"bmi":22}}`, "periods_per_year"},
		{"missing cycle length", `{"symptoms":{"periods_per_year":12},"history":{"bmi":22}}`, "cycle_length_days"},
		{"missing bmi", `{"symptoms":{"periods_per_year":12,"cycle_length_days":28},"history":{"family_history":true}}`, "bmi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in AssessmentInput
			err := json.Unmarshal([]byte(tt.body), &in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, vErr.Field)
			}
			if vErr.Message != "is required" {
				t.Errorf("Expected 'is required', got %s", vErr.Message)
			}
		})
	}
}

func TestAssessmentInputJSONKeepsExplicitZero(t *testing.T) {
	var in AssessmentInput
	body := `{"symptoms":{"periods_per_year":0,"cycle_length_days":120,"acne":true},"history":{"bmi":31.5,"insulin_resistance":true}}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := AssessmentInput{
		Symptoms: SymptomInput{PeriodsPerYear: 0, CycleLengthDays: 120, Acne: true},
		History:  PatientHistory{BMI: 31.5, InsulinResistance: true},
	}
	if in != want {
		t.Errorf("Expected %+v, got %+v", want, in)
	}
}

func TestAssessmentInputJSONRejectsUnknownNestedFields(t *testing.T) {
	var in AssessmentInput
	err := json.Unmarshal([]byte(`{"symptoms":{"periods_per_year":12,"cycle_length_days":28,"weight":70},"history":{"bmi":22}}`), &in)
	if err == nil {
		t.Fatal("Expected an error for an unknown symptom field")
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		t.Errorf("Expected a decode error, got validation error %v", vErr)
	}
}

func TestPatientHistoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		bmi     float64
		wantErr bool
	}{
		{"normal", 22.5, false},
		{"small positive", 0.1, false},
		{"zero", 0, true},
		{"negative", -3, true},
		{"NaN", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PatientHistory{BMI: tt.bmi}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUltrasoundFindingJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    UltrasoundFinding
		wantErr bool
	}{
		{"positive", `{"status":"positive","follicle_count":15,"volume_estimate":"12 ml"}`, PositiveUltrasound(15, "12 ml"), false},
		{"negative", `{"status":"negative"}`, NegativeUltrasound(), false},
		{"explicit not provided", `{"status":"not_provided"}`, NoUltrasound(), false},
		{"missing status", `{}`, NoUltrasound(), false},
		{"unknown status", `{"status":"maybe"}`, UltrasoundFinding{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got UltrasoundFinding
			err := json.Unmarshal([]byte(tt.payload), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}

	out, err := json.Marshal(NegativeUltrasound())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(out) != `{"status":"negative"}` {
		t.Errorf("Unexpected encoding %s", out)
	}
}

func TestUltrasoundFindingValidate(t *testing.T) {
	if err := PositiveUltrasound(-1, "").Validate(); err == nil {
		t.Errorf("Expected negative follicle count to be rejected")
	}
	if err := PositiveUltrasound(0, "").Validate(); err != nil {
		t.Errorf("Expected zero follicle count to be accepted, got %v", err)
	}
	if err := (UltrasoundFinding{Status: UltrasoundStatus(9)}).Validate(); err == nil {
		t.Errorf("Expected unknown status to be rejected")
	}
	if NegativeUltrasound().IsPositive() || NoUltrasound().IsPositive() {
		t.Errorf("Only positive findings satisfy the morphology criterion")
	}
}

func TestAssessmentResultHelpers(t *testing.T) {
	p := PhenotypeA
	r := &AssessmentResult{
		CriteriaMet: []Criterion{Oligoanovulation, Hyperandrogenism},
		Phenotype:   &p,
		Evidence: []CriterionEvidence{
			{Criterion: Oligoanovulation, Met: true, Text: "irregular"},
			{Criterion: Hyperandrogenism, Met: true, Text: "hirsutism"},
			{Criterion: PolycysticOvaries, Met: false, Text: "no ultrasound"},
		},
	}

	if !r.HasCriterion(Hyperandrogenism) || r.HasCriterion(PolycysticOvaries) {
		t.Errorf("HasCriterion mismatch")
	}
	ev, ok := r.EvidenceFor(PolycysticOvaries)
	if !ok || ev.Met || ev.Text != "no ultrasound" {
		t.Errorf("EvidenceFor returned %+v, %v", ev, ok)
	}
	if r.PhenotypeLabel() != "A" {
		t.Errorf("Expected phenotype label A, got %s", r.PhenotypeLabel())
	}
	r.Phenotype = nil
	if r.PhenotypeLabel() != "N/A" {
		t.Errorf("Expected N/A, got %s", r.PhenotypeLabel())
	}
}

func TestAssessmentResultValidate(t *testing.T) {
	valid := func() AssessmentResult {
		b := PhenotypeB
		return AssessmentResult{
			CriteriaMet:      []Criterion{Oligoanovulation, Hyperandrogenism},
			RotterdamScore:   2,
			RotterdamDisplay: "2/3",
			Diagnosis:        DiagnosisPCOS,
			Phenotype:        &b,
			RiskScore:        45,
			RiskLevel:        RiskMedium,
			Evidence: []CriterionEvidence{
				{Criterion: Oligoanovulation, Met: true},
				{Criterion: Hyperandrogenism, Met: true},
				{Criterion: PolycysticOvaries, Met: false},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*AssessmentResult)
		wantField string
	}{
		{"consistent", func(*AssessmentResult) {}, ""},
		{"unmatched phenotype", func(r *AssessmentResult) { r.Phenotype = nil }, ""},
		{"criteria out of order", func(r *AssessmentResult) {
			r.CriteriaMet = []Criterion{Hyperandrogenism, Oligoanovulation}
		}, "result.criteria_met"},
		{"duplicate criterion", func(r *AssessmentResult) {
			r.CriteriaMet = []Criterion{Oligoanovulation, Oligoanovulation}
		}, "result.criteria_met"},
		{"unknown criterion", func(r *AssessmentResult) {
			r.CriteriaMet = []Criterion{Oligoanovulation, "insulin"}
		}, "result.criteria_met"},
		{"wrong display", func(r *AssessmentResult) { r.RotterdamDisplay = "3/3" }, "result.rotterdam_display"},
		{"diagnosis below threshold", func(r *AssessmentResult) { r.Diagnosis = DiagnosisNotPCOS }, "result.diagnosis"},
		{"unknown phenotype", func(r *AssessmentResult) { e := Phenotype("E"); r.Phenotype = &e }, "result.phenotype"},
		{"negative risk", func(r *AssessmentResult) { r.RiskScore = -2; r.RiskLevel = RiskLow }, "result.risk_score"},
		{"risk above range", func(r *AssessmentResult) { r.RiskScore = 500; r.RiskLevel = RiskHigh }, "result.risk_score"},
		{"risk level mismatch", func(r *AssessmentResult) { r.RiskLevel = RiskHigh }, "result.risk_level"},
		{"evidence disagrees", func(r *AssessmentResult) { r.Evidence[2].Met = true }, "result.evidence"},
		{"evidence missing", func(r *AssessmentResult) { r.Evidence = r.Evidence[:2] }, "result.evidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLow}, {39, RiskLow}, {40, RiskMedium}, {69, RiskMedium}, {70, RiskHigh}, {100, RiskHigh},
	}
	for _, tt := range tests {
		if got := RiskLevelForScore(tt.score); got != tt.want {
			t.Errorf("RiskLevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestAssessmentRequestValidate(t *testing.T) {
	valid := AssessmentInput{
		Symptoms: SymptomInput{PeriodsPerYear: 12, CycleLengthDays: 28},
		History:  PatientHistory{BMI: 23},
	}

	tests := []struct {
		name      string
		req       AssessmentRequest
		wantField string
	}{
		{"valid", AssessmentRequest{PatientName: "Jane Doe", Age: 28, Input: valid}, ""},
		{"blank name", AssessmentRequest{PatientName: "   ", Input: valid}, "patient_name"},
		{"age too high", AssessmentRequest{PatientName: "Jane", Age: 121, Input: valid}, "age"},
		{"bad input", AssessmentRequest{PatientName: "Jane", Input: AssessmentInput{
			Symptoms: SymptomInput{PeriodsPerYear: 12, CycleLengthDays: 28},
		}}, "bmi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}
