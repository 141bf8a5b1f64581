package etl_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airexport/internal/etl"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_HeaderAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &etl.CSVWriter{Dir: dir}
	schema := &etl.Schema{Fields: []etl.Field{{Name: "Email"}, {Name: "Notes"}, {Name: "Tags"}}}
	rows := []etl.ExportRow{
		{"Email": "a@x.com", "Notes": "hello, world", "Tags": "1, 2"},
		{"Email": "", "Tags": "x"},
	}

	n, err := w.Write(context.Background(), "enrollments.csv", schema, rows)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{
		{"Email", "Notes", "Tags"},
		{"a@x.com", "hello, world", "1, 2"},
		{"", "", "x"},
	}, readCSV(t, w.Path("enrollments.csv")))

	_, err = os.Stat(w.Path("enrollments.csv") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCSVWriter_EmptyTableWritesHeaderOnly(t *testing.T) {
	w := &etl.CSVWriter{Dir: t.TempDir()}

	n, err := w.Write(context.Background(), "empty.csv", &etl.Schema{}, nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	data, err := os.ReadFile(w.Path("empty.csv"))
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))
}

func TestCSVWriter_CancelledContextLeavesNoFile(t *testing.T) {
	w := &etl.CSVWriter{Dir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	schema := &etl.Schema{Fields: []etl.Field{{Name: "A"}}}

	_, err := w.Write(ctx, "x.csv", schema, []etl.ExportRow{{"A": "1"}})

	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(w.Path("x.csv"))
	assert.True(t, os.IsNotExist(statErr))
}
