package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"airexport/internal/etl"
	mcpserver "airexport/internal/mcp"
	"airexport/internal/service"
)

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve export tools to agents over MCP (stdio)",
		Long: `MCP runs a Model Context Protocol server on stdin/stdout. Agents can
list kinds, inspect a kind's live schema, run exports and read the run
history. Logs go to stderr.

Example client config:
  {"command": "airexport", "args": ["mcp", "--config", "/path/airexport.yaml"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, opts)
		},
	}
}

func runMCP(cmd *cobra.Command, opts *options) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	runs, closeHistory, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	enabled, err := a.selectKinds(nil)
	if err != nil {
		a.logger.Warn("no kinds enabled; run_export needs explicit kinds", "error", err)
	}

	srv := mcpserver.New(mcpserver.Deps{
		Exports: service.NewExportService(runs, nil, a.logger),
		Engine: func(ctx context.Context, noUpload bool) (*etl.Engine, func() error, error) {
			return a.buildEngine(ctx, nil, engineOptions{noUpload: noUpload})
		},
		Enabled: enabled,
		Logger:  a.logger,
		Version: Version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil && !errors.Is(err, context.Canceled) {
		return NewCommandError("mcp", err)
	}
	return nil
}
