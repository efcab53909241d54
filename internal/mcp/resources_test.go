package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcos-assessment-server/internal/catalog"
	"github.com/pcos-assessment-server/internal/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func promptRequest(args map[string]string) *mcp.GetPromptRequest {
	return &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Arguments: args}}
}

func saveTestAssessment(t *testing.T, server *LiteServer, name string) string {
	t.Helper()
	params := pcosParams()
	params.Save = true
	params.PatientName = name

	_, out, err := server.handleAssessPCOS(context.Background(), nil, params)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out.(AssessPCOSResult).AssessmentID
}

func TestReadCatalog(t *testing.T) {
	server := newTestLiteServer(t)

	res, err := server.readCatalog(context.Background(), readRequest(CatalogURI))
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, CatalogURI, res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var doc catalog.Document
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &doc))
	assert.Equal(t, server.catalog.Version(), doc.Version)
	assert.Len(t, doc.Criteria, 3)
}

func TestReadAssessmentAndSummary(t *testing.T) {
	server := newTestLiteServer(t)
	id := saveTestAssessment(t, server, "Resource Patient")

	res, err := server.readAssessment(context.Background(), readRequest("pcos://assessments/"+id))
	require.NoError(t, err)
	var record domain.AssessmentRecord
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &record))
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "Resource Patient", record.PatientName)

	res, err = server.readSummary(context.Background(), readRequest(SummaryURI))
	require.NoError(t, err)
	var summary domain.TrackerSummary
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &summary))
	assert.EqualValues(t, 1, summary.Total)
}

func TestReadAssessment_Errors(t *testing.T) {
	server := newTestLiteServer(t)

	tests := []struct {
		name string
		uri  string
	}{
		{"unknown id", "pcos://assessments/does-not-exist"},
		{"missing id", "pcos://assessments/"},
		{"nested path", "pcos://assessments/a/b"},
		{"wrong scheme", "file:///etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.readAssessment(context.Background(), readRequest(tt.uri))
			assert.Error(t, err)
		})
	}

	_, err := server.readAssessment(context.Background(), readRequest("pcos://assessments/does-not-exist"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntakePrompt(t *testing.T) {
	server := newTestLiteServer(t)

	res, err := server.intakePrompt(context.Background(), promptRequest(nil))
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Polycystic ovarian morphology")
	assert.Contains(t, text, "Do not save the result")

	res, err = server.intakePrompt(context.Background(), promptRequest(map[string]string{"patient_name": "Jane Doe"}))
	require.NoError(t, err)
	text = res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, `patient_name "Jane Doe"`)
}

func TestExplainPrompt(t *testing.T) {
	server := newTestLiteServer(t)
	id := saveTestAssessment(t, server, "Prompt Patient")

	res, err := server.explainPrompt(context.Background(), promptRequest(map[string]string{"id": id}))
	require.NoError(t, err)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Prompt Patient")
	assert.Contains(t, text, "PCOS, 3/3 Rotterdam criteria met, phenotype A")
	assert.Contains(t, text, "Phenotype A (Full phenotype)")
	assert.Contains(t, text, "60 of 100 (Medium)")

	_, err = server.explainPrompt(context.Background(), promptRequest(map[string]string{"id": "missing"}))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = server.explainPrompt(context.Background(), promptRequest(nil))
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
