package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *LiteServer) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        "pcos_intake",
		Description: "Guide a structured intake interview and run assess_pcos with the collected answers",
		Arguments: []*mcp.PromptArgument{
			{Name: "patient_name", Description: "Patient name, enables saving the assessment"},
		},
	}, s.intakePrompt)

	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        "explain_assessment",
		Description: "Explain a stored assessment to the patient in plain language",
		Arguments: []*mcp.PromptArgument{
			{Name: "id", Description: "Assessment id", Required: true},
		},
	}, s.explainPrompt)
}

func (s *LiteServer) intakePrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var b strings.Builder
	b.WriteString("You are collecting information for a Rotterdam criteria PCOS screening.\n\n")
	b.WriteString("The assessment evaluates these criteria:\n")
	for _, c := range s.catalog.Criteria() {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	b.WriteString(`
Ask the patient, one topic at a time:
1. How many menstrual periods in the last 12 months, and the usual cycle length in days.
2. Excess facial or body hair, persistent acne, scalp hair thinning, and any lab result showing elevated testosterone.
3. Height and weight or a recent BMI.
4. Whether a parent or sibling has PCOS or type 2 diabetes, and any diagnosis of insulin resistance or metabolic syndrome.
5. Whether a pelvic ultrasound was done. If it showed polycystic ovaries, ask for the follicle count and ovarian volume if known.

Keep "no ultrasound" and "normal ultrasound" apart: omit the ultrasound when none was done, use status negative for a normal scan.
`)

	name := ""
	if req.Params != nil {
		name = strings.TrimSpace(req.Params.Arguments["patient_name"])
	}
	if name != "" {
		fmt.Fprintf(&b, "\nWhen the answers are complete, call assess_pcos with save set to true and patient_name %q.", name)
	} else {
		b.WriteString("\nWhen the answers are complete, call assess_pcos. Do not save the result.")
	}
	b.WriteString(" Present the diagnosis, phenotype and recommendations, and remind the patient that this screening does not replace a clinical diagnosis.")

	return &mcp.GetPromptResult{
		Description: "PCOS intake interview",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}

func (s *LiteServer) explainPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := ""
	if req.Params != nil {
		id = strings.TrimSpace(req.Params.Arguments["id"])
	}
	record, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r := &record.Result

	var b strings.Builder
	fmt.Fprintf(&b, "Explain this PCOS screening result to %s in plain, supportive language.\n\n", record.PatientName)
	fmt.Fprintf(&b, "Result: %s, %s Rotterdam criteria met, phenotype %s.\n", r.Diagnosis, r.RotterdamDisplay, r.PhenotypeLabel())
	if r.Phenotype != nil {
		if def, ok := s.catalog.Phenotype(*r.Phenotype); ok {
			fmt.Fprintf(&b, "Phenotype %s (%s): %s. Severity %s, metabolic risk %s.\n",
				def.ID, def.Name, def.Description, def.Severity, def.MetabolicRisk)
		}
	}
	fmt.Fprintf(&b, "Metabolic risk score: %d of 100 (%s).\n\nFindings:\n", r.RiskScore, r.RiskLevel)
	for _, ev := range r.Evidence {
		fmt.Fprintf(&b, "- %s\n", ev.Text)
	}
	b.WriteString("\nRecommendations:\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	b.WriteString("\nDo not add diagnoses or treatments beyond these recommendations.")

	return &mcp.GetPromptResult{
		Description: "Explanation of assessment " + record.ID,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}
