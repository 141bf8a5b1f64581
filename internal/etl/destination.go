package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes one table export into a target system.
// The CSV file writer is the primary sink; the database mirror in
// internal/dbclient implements the same interface.

// Destination writes a table export and returns the number of rows written.
type Destination interface {
	Write(ctx context.Context, name string, schema *Schema, rows []ExportRow) (int, error)
}

// Uploader archives a finished file under a remote key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// ── CSV File Destination ───────────────────────────────────

// CSVWriter writes exports as CSV files inside Dir.
type CSVWriter struct {
	Dir string
}

// Path returns the local path a file named name is written to.
func (w *CSVWriter) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Write writes one header line from the schema followed by one line per
// row. Absent fields render as empty cells. The file is written to a
// temporary name and renamed into place so a failed write never leaves
// a truncated export behind.
func (w *CSVWriter) Write(ctx context.Context, name string, schema *Schema, rows []ExportRow) (int, error) {
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	path := w.Path(name)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, err := writeCSV(ctx, f, schema, rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return written, nil
}

func writeCSV(ctx context.Context, f *os.File, schema *Schema, rows []ExportRow) (int, error) {
	writer := csv.NewWriter(f)

	header := schema.FieldNames()
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	written := 0
	for i, row := range rows {
		if i%500 == 0 {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			default:
			}
		}
		for j, col := range header {
			record[j] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return written, fmt.Errorf("write row %d: %w", i, err)
		}
		written++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("flush: %w", err)
	}
	return written, nil
}
