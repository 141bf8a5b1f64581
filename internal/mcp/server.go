package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"airexport/internal/etl"
	"airexport/internal/service"
)

// EngineFactory builds an engine for one tool call. The returned function
// releases it. Upload is skipped when noUpload is set.
type EngineFactory func(ctx context.Context, noUpload bool) (*etl.Engine, func() error, error)

// Server is the MCP server for airexport. It exposes exports, schema
// discovery and run history as tools so agents can drive the exporter.
type Server struct {
	mcp     *server.MCPServer
	exports *service.ExportService
	engine  EngineFactory
	enabled []*etl.KindSpec
	logger  *slog.Logger
}

// Deps holds everything the server needs from the CLI layer.
type Deps struct {
	Exports *service.ExportService
	Engine  EngineFactory
	Enabled []*etl.KindSpec // exported when run_export names no kinds
	Logger  *slog.Logger
	Version string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		exports: deps.Exports,
		engine:  deps.Engine,
		enabled: deps.Enabled,
		logger:  logger.With("component", "mcp"),
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s.mcp = server.NewMCPServer(
		"airexport",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerExportTools()
	s.registerResources()
	return s
}

// Serve runs the server over in/out until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer, errLog io.Writer) error {
	s.logger.Info("starting stdio server")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(errLog, "mcp: ", log.LstdFlags))
	return stdio.Listen(ctx, in, out)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errorResult reports a failure the agent should see, not a protocol error.
func errorResult(err error) *mcp.CallToolResult {
	r := textResult(err.Error())
	r.IsError = true
	return r
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
