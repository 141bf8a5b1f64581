package mcpserver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airexport/internal/etl"
	"airexport/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────

type mapSource map[string][]etl.Row

func (m mapSource) Fetch(_ context.Context, table, _ string) ([]etl.Row, error) {
	rows, ok := m[table]
	if !ok {
		return nil, &etl.FetchError{Table: table, StatusCode: 404}
	}
	return rows, nil
}

type countingDest struct {
	mu     sync.Mutex
	writes map[string]int
}

func (d *countingDest) Write(_ context.Context, name string, _ *etl.Schema, rows []etl.ExportRow) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writes == nil {
		d.writes = make(map[string]int)
	}
	d.writes[name] = len(rows)
	return len(rows), nil
}

type memStore struct {
	mu   sync.Mutex
	logs []etl.RunLog
}

func (m *memStore) CreateRunLog(_ context.Context, l *etl.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append([]etl.RunLog{*l}, m.logs...)
	return nil
}

func (m *memStore) ListRunLogs(_ context.Context, kind string, limit int) ([]etl.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []etl.RunLog
	for _, l := range m.logs {
		if kind == "" || l.Kind == kind {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fixture struct {
	srv      *Server
	dest     *countingDest
	noUpload []bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := mapSource{
		"Enrollments": {
			{ID: "e1", Fields: map[string]any{"Email": []any{"s1"}, "Course": []any{"c1"}, "Cohort": []any{"h1"}}},
			{ID: "e2", Fields: map[string]any{"Email": []any{"missing"}}},
		},
		"Students": {{ID: "s1", Fields: map[string]any{"Email": "a@x.com"}}},
		"Courses":  {{ID: "c1", Fields: map[string]any{"Name": "Data"}}},
		"Cohorts":  {{ID: "h1", Fields: map[string]any{"Name": "Fall"}}},
	}
	f := &fixture{dest: &countingDest{}}
	f.srv = New(Deps{
		Exports: service.NewExportService(&memStore{}, nil, nil),
		Engine: func(_ context.Context, noUpload bool) (*etl.Engine, func() error, error) {
			f.noUpload = append(f.noUpload, noUpload)
			return &etl.Engine{Source: src, Dest: f.dest}, func() error { return nil }, nil
		},
		Enabled: []*etl.KindSpec{etl.Enrollments},
	})
	return f
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

// ─────────────────────────────────────────────────────────────
// Tools
// ─────────────────────────────────────────────────────────────

func TestListKinds(t *testing.T) {
	f := newFixture(t)

	_, text := call(t, f.srv.handleListKinds, nil)

	var infos []kindInfo
	require.NoError(t, json.Unmarshal([]byte(text), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "purchases", infos[0].Name)
	assert.False(t, infos[0].Enabled)
	assert.Equal(t, "enrollments", infos[1].Name)
	assert.True(t, infos[1].Enabled)
	assert.Equal(t, etl.Reference{Table: "Students", Field: "Email"}, infos[1].References["Email"])
}

func TestDescribeSchema(t *testing.T) {
	f := newFixture(t)

	res, text := call(t, f.srv.handleDescribeSchema, map[string]any{"kind": "enrollments"})

	assert.False(t, res.IsError)
	var report etl.SchemaReport
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, 2, report.Rows)
	assert.Len(t, report.Columns, 3)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, []bool{true}, f.noUpload)
	assert.Empty(t, f.dest.writes)
}

func TestDescribeSchema_UnknownKind(t *testing.T) {
	f := newFixture(t)

	res, text := call(t, f.srv.handleDescribeSchema, map[string]any{"kind": "refunds"})

	assert.True(t, res.IsError)
	assert.Contains(t, text, "refunds")
}

func TestRunExport_DefaultsToEnabledKinds(t *testing.T) {
	f := newFixture(t)

	res, text := call(t, f.srv.handleRunExport, map[string]any{"noUpload": true})

	assert.False(t, res.IsError)
	var results []etl.ExportResult
	require.NoError(t, json.Unmarshal([]byte(text), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "enrollments", results[0].Kind)
	assert.Equal(t, 1, results[0].DanglingRefs)
	assert.Equal(t, 2, f.dest.writes["enrollments.csv"])
	assert.Equal(t, []bool{true}, f.noUpload)

	_, text = call(t, f.srv.handleListRuns, map[string]any{"kind": "enrollments", "limit": float64(5)})
	var logs []etl.RunLog
	require.NoError(t, json.Unmarshal([]byte(text), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, results[0].RunID, logs[0].ID)
}

func TestRunExport_FailedKindIsToolError(t *testing.T) {
	f := newFixture(t)

	res, text := call(t, f.srv.handleRunExport, map[string]any{"kinds": "purchases, enrollments"})

	assert.True(t, res.IsError)
	var results []etl.ExportResult
	require.NoError(t, json.Unmarshal([]byte(text), &results))
	require.Len(t, results, 2)
	assert.Equal(t, etl.StatusError, results[0].Status)
	assert.Equal(t, etl.StatusSuccess, results[1].Status)
}

func TestRunExport_UnknownKind(t *testing.T) {
	f := newFixture(t)

	res, _ := call(t, f.srv.handleRunExport, map[string]any{"kinds": "refunds"})

	assert.True(t, res.IsError)
	assert.Empty(t, f.noUpload, "no engine should be built")
}

func TestListRuns_Empty(t *testing.T) {
	f := newFixture(t)

	_, text := call(t, f.srv.handleListRuns, nil)
	assert.JSONEq(t, "[]", text)
}

// ─────────────────────────────────────────────────────────────
// Resources
// ─────────────────────────────────────────────────────────────

func TestKindFromRunsURI(t *testing.T) {
	assert.Equal(t, "enrollments", kindFromRunsURI("airexport://runs/enrollments"))
	assert.Equal(t, "purchases", kindFromRunsURI("airexport://runs/purchases/"))
	assert.Equal(t, "", kindFromRunsURI("airexport://kinds"))
}

func TestRunsResource(t *testing.T) {
	f := newFixture(t)
	call(t, f.srv.handleRunExport, nil)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "airexport://runs/enrollments"
	contents, err := f.srv.handleRunsResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	var logs []etl.RunLog
	require.NoError(t, json.Unmarshal([]byte(text.Text), &logs))
	assert.Len(t, logs, 1)

	req.Params.URI = "airexport://runs/refunds"
	_, err = f.srv.handleRunsResource(context.Background(), req)
	assert.Error(t, err)
}
