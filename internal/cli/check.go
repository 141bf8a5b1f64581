package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"airexport/internal/etl"
	"airexport/internal/upload"
)

// checkResult is one line of `check` output.
type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func newCheckCmd(opts *options) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, kinds and connections",
		Long: `Check validates the configuration file and the built-in kind mappings,
reads the API token, opens the run history and, when enabled, connects
to the mirror database and loads AWS credentials.

With --remote it also fetches every enabled kind's table and reports
lookup columns missing from the live schema.

Example:
  airexport check
  airexport check --remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, remote)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also fetch each enabled kind's table")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *options, remote bool) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	var results []checkResult
	add := func(name string, err error, detail string) {
		r := checkResult{Name: name, OK: err == nil, Detail: detail}
		if err != nil {
			r.Detail = err.Error()
		}
		results = append(results, r)
	}

	add("config", nil, orDefault(a.configFile, "defaults"))
	add("kinds", etl.ValidateKinds(etl.Kinds()), fmt.Sprintf("%d built-in", len(etl.Kinds())))
	add("source", checkSourceType(a.cfg.Source.Type), a.cfg.Source.Type)

	if a.cfg.Source.Type == "airtable" {
		_, err := a.token()
		add("token", err, a.cfg.Source.TokenSource+":"+a.cfg.Source.TokenEnv)
	}

	if runs, closeHistory, err := a.openHistory(); err != nil {
		add("history", err, "")
	} else {
		_, err := runs.ListRunLogs(ctx, "", 1)
		add("history", err, a.cfg.History.Path)
		closeHistory()
	}

	if a.cfg.Mirror.Enabled {
		add("mirror", checkMirror(ctx, a), a.cfg.Mirror.Driver)
	}

	if a.cfg.Upload.Enabled {
		_, err := upload.NewS3Uploader(ctx, upload.Config{
			Bucket:   a.cfg.Upload.Bucket,
			Region:   a.cfg.Upload.Region,
			Profile:  a.cfg.Upload.Profile,
			Endpoint: a.cfg.Upload.Endpoint,
		}, nil)
		add("upload", err, "s3://"+a.cfg.Upload.Bucket)
	}

	if remote {
		results = append(results, checkRemote(ctx, a)...)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if err := printJSON(out, results); err != nil {
			return NewCommandError("check", err)
		}
	} else {
		printChecks(out, results)
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	if failed > 0 {
		return NewConfigError("", fmt.Errorf("%d check(s) failed", failed))
	}
	return nil
}

func checkMirror(ctx context.Context, a *app) error {
	mirror, err := a.newMirror()
	if err != nil {
		return err
	}
	defer mirror.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mirror.Ping(pingCtx)
}

// checkRemote discovers every enabled kind's table and fails a kind when
// any of its lookup columns is missing or not list-shaped.
func checkRemote(ctx context.Context, a *app) []checkResult {
	kinds, err := a.selectKinds(nil)
	if err != nil {
		return []checkResult{{Name: "remote", Detail: err.Error()}}
	}
	engine, closeEngine, err := a.buildEngine(ctx, nil, engineOptions{noUpload: true, noMirror: true})
	if err != nil {
		return []checkResult{{Name: "remote", Detail: err.Error()}}
	}
	defer closeEngine()

	var results []checkResult
	for _, k := range kinds {
		name := "remote:" + k.Name
		schema, rows, err := engine.Discover(ctx, k)
		if err != nil {
			results = append(results, checkResult{Name: name, Detail: err.Error()})
			continue
		}
		report := etl.DescribeSchema(k, schema, rows)
		if len(report.Warnings) > 0 {
			results = append(results, checkResult{Name: name, Detail: report.Warnings[0]})
			continue
		}
		results = append(results, checkResult{
			Name: name, OK: true,
			Detail: fmt.Sprintf("%d rows, %d columns", rows, len(schema.Fields)),
		})
	}
	return results
}

func printChecks(w io.Writer, results []checkResult) {
	t := newTable("CHECK", "STATUS", "DETAIL")
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "FAIL"
		}
		t.row(r.Name, status, orDash(r.Detail))
	}
	t.print(w)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// checkSourceType reports whether typ has a registered source factory.
func checkSourceType(typ string) error {
	registered := etl.ListSources()
	if !slices.Contains(registered, typ) {
		return fmt.Errorf("source type %q is not registered (have %s)", typ, strings.Join(registered, ", "))
	}
	return nil
}
