package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"airexport/internal/etl"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("list_kinds",
		mcp.WithDescription("List export kinds: source table and view, output file, archive prefix, and which link columns resolve to which table.field"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListKinds)

	s.mcp.AddTool(mcp.NewTool("describe_schema",
		mcp.WithDescription("Fetch a kind's table without writing anything and return its unified columns, their shapes, and warnings for lookup columns that are missing or not list-shaped"),
		mcp.WithString("kind", mcp.Description("Kind name (see list_kinds)"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleDescribeSchema)

	s.mcp.AddTool(mcp.NewTool("run_export",
		mcp.WithDescription("🛑 DESTRUCTIVE: Export kinds to CSV, replacing the previous files, the mirror tables and uploading to S3. Returns one result per kind."),
		mcp.WithString("kinds", mcp.Description("Comma-separated kind names (optional, defaults to every enabled kind)")),
		mcp.WithBoolean("noUpload", mcp.Description("Skip the S3 upload")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunExport)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded export runs, newest first"),
		mcp.WithString("kind", mcp.Description("Filter by kind (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRuns)
}

// kindInfo is the list_kinds view of a KindSpec.
type kindInfo struct {
	Name         string                   `json:"name"`
	Table        string                   `json:"table"`
	View         string                   `json:"view"`
	FileName     string                   `json:"fileName"`
	UploadPrefix string                   `json:"uploadPrefix"`
	Enabled      bool                     `json:"enabled"`
	References   map[string]etl.Reference `json:"references"`
}

func (s *Server) kindInfos() []kindInfo {
	enabled := make(map[string]bool, len(s.enabled))
	for _, k := range s.enabled {
		enabled[k.Name] = true
	}
	var infos []kindInfo
	for _, k := range etl.Kinds() {
		infos = append(infos, kindInfo{
			Name:         k.Name,
			Table:        k.Table,
			View:         k.View,
			FileName:     k.FileName,
			UploadPrefix: k.UploadPrefix,
			Enabled:      enabled[k.Name],
			References:   k.References,
		})
	}
	return infos
}

func (s *Server) handleListKinds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.kindInfos())
}

func (s *Server) handleDescribeSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := etl.GetKind(req.GetString("kind", ""))
	if err != nil {
		return errorResult(err), nil
	}

	engine, closeEngine, err := s.engine(ctx, true)
	if err != nil {
		return errorResult(fmt.Errorf("build engine: %w", err)), nil
	}
	defer closeEngine()

	schema, rows, err := engine.Discover(ctx, kind)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(etl.DescribeSchema(kind, schema, rows))
}

func (s *Server) handleRunExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kinds, err := s.parseKinds(req.GetString("kinds", ""))
	if err != nil {
		return errorResult(err), nil
	}

	engine, closeEngine, err := s.engine(ctx, req.GetBool("noUpload", false))
	if err != nil {
		return errorResult(fmt.Errorf("build engine: %w", err)), nil
	}
	defer closeEngine()

	s.logger.Info("export requested", "kinds", len(kinds))
	results, runErr := s.exports.RunKinds(ctx, engine, kinds)
	if len(results) == 0 && runErr != nil {
		return errorResult(runErr), nil
	}
	res, err := jsonResult(results)
	if err != nil {
		return nil, err
	}
	res.IsError = runErr != nil
	return res, nil
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	if kind != "" {
		if _, err := etl.GetKind(kind); err != nil {
			return errorResult(err), nil
		}
	}
	logs, err := s.exports.ListRunLogs(ctx, kind, req.GetInt("limit", 20))
	if err != nil {
		return errorResult(err), nil
	}
	if logs == nil {
		logs = []etl.RunLog{}
	}
	return jsonResult(logs)
}

// parseKinds resolves a comma-separated list into kinds in run order.
// An empty list selects the enabled kinds.
func (s *Server) parseKinds(list string) ([]*etl.KindSpec, error) {
	wanted := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := etl.GetKind(name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}
	if len(wanted) == 0 {
		if len(s.enabled) == 0 {
			return nil, errors.New("no kinds are enabled")
		}
		return s.enabled, nil
	}
	var kinds []*etl.KindSpec
	for _, k := range etl.Kinds() {
		if wanted[k.Name] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
