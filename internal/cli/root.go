// Package cli implements the airexport command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options holds the global flag values shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// NewRootCmd builds the airexport command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "airexport",
		Short: "Export linked Airtable tables to flat CSV files",
		Long: `airexport fetches the tables behind each export kind, resolves linked
record ids into readable values, and writes one CSV per kind. Finished
files can be archived to S3 and mirrored into a database.

Configuration is read from --config, ./airexport.yaml or
$XDG_CONFIG_HOME/airexport/config.yaml. Every key can be overridden with
an AIREXPORT_ environment variable.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./airexport.yaml or $XDG_CONFIG_HOME/airexport/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(
		newExportCmd(opts),
		newScheduleCmd(opts),
		newSchemaCmd(opts),
		newCheckCmd(opts),
		newRunsCmd(opts),
		newConfigCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}
