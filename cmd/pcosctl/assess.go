package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pcos-assessment-server/internal/domain"
	"github.com/pcos-assessment-server/internal/service"
)

func newAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one patient from a YAML or JSON input file",
		Long: `Assess reads symptoms, history and an optional ultrasound finding and prints the
Rotterdam diagnosis, phenotype, risk score and recommendations.

Use --input - to read from stdin. With --save the result is stored in the patient
tracker selected by --db or --database-url.`,
		RunE: runAssess,
	}

	cmd.Flags().StringP("input", "i", "", "Input file (.yaml, .yml or .json), - for stdin")
	cmd.Flags().Bool("save", false, "Store the assessment in the patient tracker")
	cmd.Flags().String("name", "", "Patient name, required with --save")
	cmd.Flags().Int("age", 0, "Patient age in years")
	cmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	addStoreFlags(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runAssess(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("input")
	input, err := readAssessmentInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	scorer, err := service.NewClinicalScorer(cat, logger)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")
	if !save {
		svc := service.NewAssessmentService(logger, scorer, nil, nil)
		evaluated, err := svc.Evaluate(cmd.Context(), input)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), output, evaluated, evaluated.Result)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	name, _ := cmd.Flags().GetString("name")
	age, _ := cmd.Flags().GetInt("age")
	svc := service.NewAssessmentService(logger, scorer, nil, store)
	record, err := svc.Assess(cmd.Context(), &domain.AssessmentRequest{PatientName: name, Age: age, Input: input})
	if err != nil {
		return err
	}
	if output == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved assessment %s for %s\n", record.ID, record.PatientName)
	}
	return printResult(cmd.OutOrStdout(), output, record, &record.Result)
}

// readAssessmentInput decodes a JSON or YAML input document. YAML is converted to
// JSON first so both formats share the JSON field names and enum decoding.
func readAssessmentInput(stdin io.Reader, path string) (domain.AssessmentInput, error) {
	var input domain.AssessmentInput

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return input, fmt.Errorf("failed to read input: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return input, fmt.Errorf("malformed YAML input: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return input, fmt.Errorf("failed to convert YAML input: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return input, vErr
		}
		return input, fmt.Errorf("malformed input: %w", err)
	}
	return input, nil
}

func printResult(w io.Writer, output string, payload any, result *domain.AssessmentResult) error {
	switch output {
	case "json":
		return writeJSON(w, payload)
	case "text":
		printText(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func printText(w io.Writer, r *domain.AssessmentResult) {
	fmt.Fprintf(w, "Diagnosis:       %s\n", r.Diagnosis)
	fmt.Fprintf(w, "Rotterdam score: %s\n", r.RotterdamDisplay)
	fmt.Fprintf(w, "Phenotype:       %s\n", r.PhenotypeLabel())
	fmt.Fprintf(w, "Risk score:      %d (%s)\n", r.RiskScore, r.RiskLevel)

	fmt.Fprintln(w, "\nEvidence:")
	for _, ev := range r.Evidence {
		mark := " "
		if ev.Met {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", mark, ev.Criterion, ev.Text)
	}

	fmt.Fprintln(w, "\nRecommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
