package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airexport/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

var fixtureTables = map[string]string{
	"Enrollments": `{"records": [
		{"id": "recE1", "fields": {"Email": ["recS1"], "Course": ["recC1"], "Cohort": ["recH1", "recMissing"], "Notes": "first", "Tags": [1, 2]}},
		{"id": "recE2", "fields": {"Email": ["recS2"]}}
	]}`,
	"Students": `[
		{"records": [{"id": "recS1", "fields": {"Email": "a@x.com"}}], "offset": "p2"},
		{"records": [{"id": "recS2", "fields": {"Email": "b@x.com"}}]}
	]`,
	"Courses": `{"records": [{"id": "recC1", "fields": {"Name": "Data Analytics"}}]}`,
	"Cohorts": `{"records": [{"id": "recH1", "fields": {"Name": "Fall"}}]}`,
}

type workspace struct {
	dir        string
	configPath string
	outputDir  string
}

// newWorkspace writes fixtures and a json_dir config with only the
// enrollments kind enabled.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures")
	require.NoError(t, os.MkdirAll(fixtures, 0o755))
	for table, body := range fixtureTables {
		require.NoError(t, os.WriteFile(filepath.Join(fixtures, table+".json"), []byte(body), 0o644))
	}

	ws := &workspace{
		dir:        dir,
		configPath: filepath.Join(dir, "airexport.yaml"),
		outputDir:  filepath.Join(dir, "out"),
	}
	ws.writeConfig(t, "")
	return ws
}

func (ws *workspace) writeConfig(t *testing.T, extra string) {
	t.Helper()
	cfg := fmt.Sprintf(`source:
  type: json_dir
  fixtures_dir: %q
output_dir: %q
history:
  path: %q
log:
  level: error
kinds:
  purchases:
    enabled: false
  enrollments:
    enabled: true
    schedule: "0 6 * * *"
%s`, filepath.Join(ws.dir, "fixtures"), ws.outputDir, filepath.Join(ws.dir, "history.db"), extra)
	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

// syncBuffer is a bytes.Buffer safe for a command writing in one
// goroutine while the test reads in another.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ─────────────────────────────────────────────────────────────
// export
// ─────────────────────────────────────────────────────────────

func TestExport_WritesResolvedCSV(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "enrollments")
	assert.Contains(t, out, "success")

	records := readCSV(t, filepath.Join(ws.outputDir, "enrollments.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Cohort", "Course", "Email", "Notes", "Tags"}, records[0])
	assert.Equal(t, []string{"Fall", "Data Analytics", "a@x.com", "first", "1, 2"}, records[1])
	assert.Equal(t, []string{"", "", "b@x.com", "", ""}, records[2])
}

func TestExport_JSONAndHistory(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "--json", "export", "enrollments")
	require.NoError(t, err)

	var results []etl.ExportResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, etl.StatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].RowsFetched)
	assert.Equal(t, 2, results[0].RowsWritten)
	assert.Equal(t, 5, results[0].Columns)
	assert.Equal(t, 1, results[0].DanglingRefs)

	out, err = execute(t, "--config", ws.configPath, "--json", "runs")
	require.NoError(t, err)
	var logs []etl.RunLog
	require.NoError(t, json.Unmarshal([]byte(out), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, results[0].RunID, logs[0].ID)
	assert.Equal(t, "enrollments", logs[0].Kind)
}

func TestExport_NoHistory(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.configPath, "export", "--no-history")
	require.NoError(t, err)

	out, err := execute(t, "--config", ws.configPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestExport_OutputDirOverride(t *testing.T) {
	ws := newWorkspace(t)
	other := filepath.Join(ws.dir, "elsewhere")

	_, err := execute(t, "--config", ws.configPath, "export", "--output-dir", other)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "enrollments.csv"))
	assert.NoFileExists(t, filepath.Join(ws.outputDir, "enrollments.csv"))
}

func TestExport_FailedKindIsSystemError(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "export", "purchases", "enrollments")
	require.Error(t, err)
	assert.Equal(t, exitSysError, exitCode(err))
	assert.Contains(t, out, "purchases")
	assert.FileExists(t, filepath.Join(ws.outputDir, "enrollments.csv"))

	out, err = execute(t, "--config", ws.configPath, "runs", "--kind", "purchases")
	require.NoError(t, err)
	assert.Contains(t, out, etl.StatusError)
}

func TestExport_UnknownKindIsUserError(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.configPath, "export", "refunds")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestExport_InvalidConfigIsUserError(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeConfig(t, "upload:\n  enabled: true\n")

	_, err := execute(t, "--config", ws.configPath, "export")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
	assert.Contains(t, err.Error(), "upload.bucket")
}

// ─────────────────────────────────────────────────────────────
// runs
// ─────────────────────────────────────────────────────────────

func TestRuns_Last(t *testing.T) {
	ws := newWorkspace(t)
	for i := 0; i < 2; i++ {
		_, err := execute(t, "--config", ws.configPath, "export", "--no-upload")
		require.NoError(t, err)
	}

	out, err := execute(t, "--config", ws.configPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 2 run(s)")

	out, err = execute(t, "--config", ws.configPath, "runs", "--last")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 run(s)")
}

// ─────────────────────────────────────────────────────────────
// schema
// ─────────────────────────────────────────────────────────────

func TestSchema_PrintsColumnsAndReferences(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "schema", "enrollments")
	require.NoError(t, err)
	assert.Contains(t, out, "Table: Enrollments (view AWS Download)")
	assert.Contains(t, out, "Rows:  2")
	assert.Contains(t, out, "Cohorts.Name")
	assert.Contains(t, out, "Total: 5 column(s)")
	assert.NotContains(t, out, "Warning")
	assert.NoFileExists(t, filepath.Join(ws.outputDir, "enrollments.csv"))
}

func TestSchema_RequiresKnownKind(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.configPath, "schema", "refunds")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

// ─────────────────────────────────────────────────────────────
// check
// ─────────────────────────────────────────────────────────────

func TestCheck_Passes(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "check", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "history")
	assert.Contains(t, out, "remote:enrollments")
	assert.Contains(t, out, "json_dir")
	assert.NotContains(t, out, "FAIL")
}

func TestCheckSourceType(t *testing.T) {
	assert.NoError(t, checkSourceType("airtable"))
	assert.NoError(t, checkSourceType("json_dir"))

	err := checkSourceType("csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"csv"`)
	assert.Contains(t, err.Error(), "airtable, json_dir")
}

func TestCheck_MissingToken(t *testing.T) {
	ws := newWorkspace(t)
	cfg := fmt.Sprintf(`source:
  type: airtable
  token_env: AIREXPORT_CLI_TEST_UNSET_TOKEN
history:
  path: %q
`, filepath.Join(ws.dir, "history.db"))
	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0o644))
	t.Setenv("AIREXPORT_CLI_TEST_UNSET_TOKEN", "")

	out, err := execute(t, "--config", ws.configPath, "--json", "check")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))

	var results []checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	var token *checkResult
	for i := range results {
		if results[i].Name == "token" {
			token = &results[i]
		}
	}
	require.NotNil(t, token)
	assert.False(t, token.OK)
}

// ─────────────────────────────────────────────────────────────
// schedule
// ─────────────────────────────────────────────────────────────

func TestSchedule_RunsUntilCancelled(t *testing.T) {
	ws := newWorkspace(t)

	root := NewRootCmd()
	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", ws.configPath, "schedule", "--shutdown-timeout", "1s"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Scheduled: enrollments")
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

// ─────────────────────────────────────────────────────────────
// config / version
// ─────────────────────────────────────────────────────────────

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "airexport.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestConfigShow_PrintsEffectiveConfig(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.configPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# source: "+ws.configPath)
	assert.Contains(t, out, "type: json_dir")
	assert.Contains(t, out, "base_id: appBRLEUdTlfhgkUZ")
}

func TestConfigSetToken_EmptyStdin(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.configPath, "config", "set-token")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "airexport "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, exitUserError, exitCode(NewConfigError("kinds", errors.New("x"))))
	assert.Equal(t, exitSysError, exitCode(fmt.Errorf("wrapped: %w", NewCommandError("export", errors.New("x")))))
}
