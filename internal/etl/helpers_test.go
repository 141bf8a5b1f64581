package etl_test

import (
	"context"
	"encoding/json"
	"errors"

	"airexport/internal/etl"
)

// fakeSource serves fixed tables and counts fetches per table.
type fakeSource struct {
	tables map[string][]etl.Row
	fails  map[string]error
	calls  map[string]int
	views  map[string]string
}

func newFakeSource(tables map[string][]etl.Row) *fakeSource {
	return &fakeSource{
		tables: tables,
		fails:  map[string]error{},
		calls:  map[string]int{},
		views:  map[string]string{},
	}
}

func (f *fakeSource) Fetch(_ context.Context, table, view string) ([]etl.Row, error) {
	f.calls[table]++
	f.views[table] = view
	if err, ok := f.fails[table]; ok {
		return nil, err
	}
	rows, ok := f.tables[table]
	if !ok {
		return nil, &etl.FetchError{Table: table, StatusCode: 404, Body: "NOT_FOUND"}
	}
	return rows, nil
}

// fakeUploader records uploads and optionally fails.
type fakeUploader struct {
	err     error
	uploads map[string]string // key → local path
}

func (u *fakeUploader) Upload(_ context.Context, localPath, key string) error {
	if u.err != nil {
		return u.err
	}
	if u.uploads == nil {
		u.uploads = map[string]string{}
	}
	u.uploads[key] = localPath
	return nil
}

// memDestination keeps written rows in memory.
type memDestination struct {
	err    error
	name   string
	schema *etl.Schema
	rows   []etl.ExportRow
}

func (d *memDestination) Write(_ context.Context, name string, schema *etl.Schema, rows []etl.ExportRow) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.name, d.schema, d.rows = name, schema, rows
	return len(rows), nil
}

var errBoom = errors.New("boom")

func row(id string, fields map[string]any) etl.Row {
	if fields == nil {
		fields = map[string]any{}
	}
	return etl.Row{ID: id, Fields: fields}
}

func ids(v ...string) []any {
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	return out
}

func num(s string) json.Number { return json.Number(s) }

// enrollmentsKind is a small kind with a single link column.
func enrollmentsKind() *etl.KindSpec {
	return &etl.KindSpec{
		Name:         "enrollments",
		Table:        "Enrollments",
		View:         "AWS Download",
		FileName:     "enrollments.csv",
		UploadPrefix: "enrollments",
		MirrorTable:  "enrollments",
		LookupFields: []string{"Email"},
		References: map[string]etl.Reference{
			"Email": {Table: "Students", Field: "Email"},
		},
	}
}
