package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"airexport/internal/etl"
)

type runsFlags struct {
	kind  string
	limit int
	last  bool
}

func newRunsCmd(opts *options) *cobra.Command {
	flags := &runsFlags{}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List export run history",
		Long: `Runs lists recorded exports, newest first.

Use --kind to filter by kind and --last to show only the most recent
run of each kind.

Example:
  airexport runs
  airexport runs --kind enrollments --limit 5
  airexport runs --last --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, opts, flags)
		},
	}
	cmd.Flags().StringVar(&flags.kind, "kind", "", "filter by kind")
	cmd.Flags().IntVar(&flags.limit, "limit", 20, "maximum number of runs (0 = no limit)")
	cmd.Flags().BoolVar(&flags.last, "last", false, "show the most recent run of each kind")
	return cmd
}

func runRuns(cmd *cobra.Command, opts *options, flags *runsFlags) error {
	if flags.kind != "" {
		if _, err := etl.GetKind(flags.kind); err != nil {
			return NewConfigError("kind", err)
		}
	}
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	store, closeHistory, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	ctx := cmd.Context()
	var logs []etl.RunLog
	if flags.last {
		for _, k := range etl.Kinds() {
			if flags.kind != "" && k.Name != flags.kind {
				continue
			}
			l, err := store.LastRun(ctx, k.Name)
			if err != nil {
				return NewCommandError("runs", err)
			}
			if l != nil {
				logs = append(logs, *l)
			}
		}
	} else {
		logs, err = store.ListRunLogs(ctx, flags.kind, flags.limit)
		if err != nil {
			return NewCommandError("runs", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if logs == nil {
			logs = []etl.RunLog{}
		}
		if err := printJSON(out, logs); err != nil {
			return NewCommandError("runs", err)
		}
		return nil
	}
	printRunLogs(out, logs)
	return nil
}

func printRunLogs(w io.Writer, logs []etl.RunLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	t := newTable("ID", "KIND", "STARTED", "DURATION", "STATUS", "ROWS", "DANGLING", "UPLOAD")
	for _, l := range logs {
		t.row(shortID(l.ID), l.Kind,
			l.StartedAt.Local().Format("2006-01-02 15:04:05"),
			l.FinishedAt.Sub(l.StartedAt).Round(10*time.Millisecond),
			l.Status, l.RowsWritten, l.DanglingRefs, orDash(l.UploadKey))
	}
	t.print(w)
	fmt.Fprintf(w, "Total: %d run(s)\n", len(logs))

	for _, l := range logs {
		if l.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", shortID(l.ID), l.Kind, l.Error)
		}
	}
}

// shortID truncates a run id to its first 8 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
