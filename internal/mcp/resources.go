package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	CatalogURI            = "pcos://catalog"
	SummaryURI            = "pcos://assessments/summary"
	AssessmentURITemplate = "pcos://assessments/{id}"

	assessmentURIPrefix = "pcos://assessments/"
	jsonMIMEType        = "application/json"
)

func (s *LiteServer) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         CatalogURI,
		Name:        "criteria-catalog",
		Description: "Rotterdam criteria, phenotype definitions and risk factor points",
		MIMEType:    jsonMIMEType,
	}, s.readCatalog)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         SummaryURI,
		Name:        "tracker-summary",
		Description: "Patient tracker totals by diagnosis, phenotype and risk level",
		MIMEType:    jsonMIMEType,
	}, s.readSummary)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: AssessmentURITemplate,
		Name:        "assessment",
		Description: "A stored patient assessment",
		MIMEType:    jsonMIMEType,
	}, s.readAssessment)
}

func (s *LiteServer) readCatalog(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.catalog.Document())
}

func (s *LiteServer) readSummary(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	summary, err := s.svc.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, summary)
}

func (s *LiteServer) readAssessment(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, assessmentURIPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid assessment URI %q", uri)
	}

	record, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, record)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(data),
		}},
	}, nil
}
