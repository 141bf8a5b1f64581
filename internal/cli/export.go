package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"airexport/internal/etl"
	"airexport/internal/service"
)

type exportFlags struct {
	outputDir string
	noUpload  bool
	noMirror  bool
	noHistory bool
}

func newExportCmd(opts *options) *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export [kind...]",
		Short: "Export kinds to CSV",
		Long: `Export fetches each kind's table and the tables its link columns point
at, resolves linked record ids into readable values and writes one CSV
per kind. Without arguments every enabled kind is exported.

Reference tables are fetched once and shared between the kinds of one
run. A kind that fails does not stop the others; the command exits with
status 2 if any kind failed. Upload and mirror failures are reported but
do not fail the kind.

Example:
  airexport export
  airexport export enrollments
  airexport export --output-dir /tmp/out --no-upload
  airexport export --json`,
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "override output_dir")
	cmd.Flags().BoolVar(&flags.noUpload, "no-upload", false, "skip the S3 upload")
	cmd.Flags().BoolVar(&flags.noMirror, "no-mirror", false, "skip the database mirror")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "do not record the run in history")
	return cmd
}

func runExport(cmd *cobra.Command, opts *options, flags *exportFlags, args []string) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	kinds, err := a.selectKinds(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, closeEngine, err := a.buildEngine(ctx, nil, engineOptions{
		outputDir: flags.outputDir,
		noUpload:  flags.noUpload,
		noMirror:  flags.noMirror,
	})
	if err != nil {
		return err
	}
	defer closeEngine()

	var store service.RunStore
	if !flags.noHistory {
		runs, closeHistory, err := a.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()
		store = runs
	}

	svc := service.NewExportService(store, nil, a.logger)
	results, runErr := svc.RunKinds(ctx, engine, kinds)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if err := printJSON(out, results); err != nil {
			return NewCommandError("export", err)
		}
	} else {
		printResults(out, results)
	}

	if runErr != nil {
		return NewCommandError("export", runErr)
	}
	return nil
}

func printResults(w io.Writer, results []*etl.ExportResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "Nothing exported.")
		return
	}
	t := newTable("KIND", "STATUS", "FETCHED", "WRITTEN", "COLUMNS", "DANGLING", "FILE", "UPLOAD")
	for _, r := range results {
		t.row(r.Kind, r.Status, r.RowsFetched, r.RowsWritten, r.Columns, r.DanglingRefs, orDash(r.FilePath), orDash(r.UploadKey))
	}
	t.print(w)

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Kind, r.Error)
		}
		if r.UploadError != "" {
			fmt.Fprintf(w, "%s: upload failed: %s\n", r.Kind, r.UploadError)
		}
		if r.MirrorError != "" {
			fmt.Fprintf(w, "%s: mirror failed: %s\n", r.Kind, r.MirrorError)
		}
	}
}

func kindNames() []string {
	var names []string
	for _, k := range etl.Kinds() {
		names = append(names, k.Name)
	}
	return names
}
