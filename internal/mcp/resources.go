package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"airexport/internal/etl"
)

const (
	kindsURI       = "airexport://kinds"
	runsURIPrefix  = "airexport://runs/"
	runsURIPattern = runsURIPrefix + "{kind}"
)

func (s *Server) registerResources() {
	// ── airexport://kinds ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		kindsURI,
		"Export Kinds",
		mcp.WithResourceDescription("Built-in export kinds and their reference mappings"),
		mcp.WithMIMEType("application/json"),
	), s.handleKindsResource)

	// ── airexport://runs/{kind} ────────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			runsURIPattern,
			"Recent Runs of a Kind",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleRunsResource,
	)
}

func (s *Server) handleKindsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.kindInfos(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      kindsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	kind := kindFromRunsURI(uri)
	if _, err := etl.GetKind(kind); err != nil {
		return nil, fmt.Errorf("resource %s: %w", uri, err)
	}

	logs, err := s.exports.ListRunLogs(ctx, kind, 20)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []etl.RunLog{}
	}
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// kindFromRunsURI extracts the kind from "airexport://runs/{kind}".
func kindFromRunsURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, runsURIPrefix)
	if !ok {
		return ""
	}
	return strings.Trim(rest, "/")
}
