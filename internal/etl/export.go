package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
)

// ── Export ─────────────────────────────────────────────────
// Orchestrates, per kind: load reference tables → fetch → unify schema →
// normalize → write CSV → mirror → upload.

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExportResult is the outcome of exporting one kind.
type ExportResult struct {
	RunID        string        `json:"runId"`
	Kind         string        `json:"kind"`
	Status       string        `json:"status"`
	RowsFetched  int           `json:"rowsFetched"`
	RowsWritten  int           `json:"rowsWritten"`
	Columns      int           `json:"columns"`
	DanglingRefs int           `json:"danglingRefs"`
	FilePath     string        `json:"filePath,omitempty"`
	UploadKey    string        `json:"uploadKey,omitempty"`
	UploadError  string        `json:"uploadError,omitempty"`
	MirrorError  string        `json:"mirrorError,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// RunLog is a historical record of one export.
type RunLog struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Status       string    `json:"status"`
	RowsFetched  int       `json:"rowsFetched"`
	RowsWritten  int       `json:"rowsWritten"`
	DanglingRefs int       `json:"danglingRefs"`
	FilePath     string    `json:"filePath"`
	UploadKey    string    `json:"uploadKey"`
	Error        string    `json:"error,omitempty"`
}

// NewRunLog converts a result into its history record.
func NewRunLog(r *ExportResult) *RunLog {
	return &RunLog{
		ID:           r.RunID,
		Kind:         r.Kind,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.StartedAt.Add(r.Duration),
		Status:       r.Status,
		RowsFetched:  r.RowsFetched,
		RowsWritten:  r.RowsWritten,
		DanglingRefs: r.DanglingRefs,
		FilePath:     r.FilePath,
		UploadKey:    r.UploadKey,
		Error:        r.Error,
	}
}

// Recorder observes fetches and finished exports (metrics).
type Recorder interface {
	TableFetched(table string, rows int)
	ExportFinished(r *ExportResult)
}

// pather is implemented by destinations that write local files.
type pather interface {
	Path(name string) string
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs exports using a source and a destination.
type Engine struct {
	Source   Source
	Dest     Destination
	Mirror   Destination // optional
	Uploader Uploader    // optional
	Recorder Recorder    // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// Run exports kinds in the order given. All kinds share one catalog so
// a reference table is fetched at most once per run. A failing kind does
// not stop the ones after it; the errors are joined.
func (e *Engine) Run(ctx context.Context, kinds []*KindSpec) ([]*ExportResult, error) {
	catalog := NewCatalog()
	results := make([]*ExportResult, 0, len(kinds))
	var errs []error
	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := e.RunExport(ctx, catalog, k)
		results = append(results, result)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

// RunExport exports one kind end-to-end. Reference tables are loaded into
// catalog before the kind's own table is normalized.
func (e *Engine) RunExport(ctx context.Context, catalog *Catalog, kind *KindSpec) (*ExportResult, error) {
	log := e.logger().With("kind", kind.Name)
	start := e.now()
	result := &ExportResult{RunID: uuid.New().String(), Kind: kind.Name, StartedAt: start}

	fail := func(err error) (*ExportResult, error) {
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = e.now().Sub(start)
		log.Error("export failed", "error", err)
		e.record(result)
		return result, err
	}

	// 1. Load every reference table first.
	for _, dep := range kind.Dependencies() {
		if err := e.load(ctx, catalog, dep); err != nil {
			return fail(err)
		}
	}

	// 2. Fetch the kind's own table through its view.
	rows, err := e.Source.Fetch(ctx, kind.Table, kind.View)
	if err != nil {
		return fail(err)
	}
	result.RowsFetched = len(rows)
	e.fetched(kind.Table, len(rows))
	log.Info("table fetched", "table", kind.Table, "view", kind.View, "rows", len(rows))

	// 3. Unify schema.
	schema := UnifySchema(rows)
	result.Columns = len(schema.Fields)

	// 4. Normalize.
	resolver := NewResolver(catalog, log)
	exportRows, err := NewNormalizer(kind, resolver).NormalizeAll(rows, schema)
	result.DanglingRefs = resolver.Dangling()
	if err != nil {
		return fail(err)
	}

	// 5. Write.
	written, err := e.Dest.Write(ctx, kind.FileName, schema, exportRows)
	if err != nil {
		return fail(NewSinkError("write", kind.FileName, err))
	}
	result.RowsWritten = written
	if p, ok := e.Dest.(pather); ok {
		result.FilePath = p.Path(kind.FileName)
	}
	log.Info("export written", "file", kind.FileName, "rows", written, "columns", len(schema.Fields), "dangling", result.DanglingRefs)

	// 6. Mirror (non-fatal).
	if e.Mirror != nil {
		if _, err := e.Mirror.Write(ctx, kind.MirrorTable, schema, exportRows); err != nil {
			serr := NewSinkError("mirror", kind.MirrorTable, err)
			result.MirrorError = serr.Error()
			log.Warn("mirror failed", "error", serr)
		}
	}

	// 7. Upload (non-fatal).
	if e.Uploader != nil {
		e.upload(ctx, log, kind, result)
	}

	result.Status = StatusSuccess
	result.Duration = e.now().Sub(start)
	e.record(result)
	return result, nil
}

func (e *Engine) upload(ctx context.Context, log *slog.Logger, kind *KindSpec, result *ExportResult) {
	if result.FilePath == "" {
		log.Warn("upload skipped: destination has no local file")
		return
	}
	key := UploadKey(kind, result.StartedAt)
	if err := e.Uploader.Upload(ctx, result.FilePath, key); err != nil {
		serr := NewSinkError("upload", key, err)
		result.UploadError = serr.Error()
		log.Warn("upload failed", "error", serr)
		return
	}
	result.UploadKey = key
	log.Info("export uploaded", "key", key)
}

// load fetches a reference table unless the catalog already holds it.
func (e *Engine) load(ctx context.Context, catalog *Catalog, name string) error {
	if _, ok := catalog.Table(name); ok {
		return nil
	}
	rows, err := e.Source.Fetch(ctx, name, "")
	if err != nil {
		return err
	}
	catalog.Put(NewTable(name, rows))
	e.fetched(name, len(rows))
	e.logger().Debug("reference table loaded", "table", name, "rows", len(rows))
	return nil
}

// UploadKey returns the archive key for kind's file exported at t.
func UploadKey(kind *KindSpec, t time.Time) string {
	return path.Join(kind.UploadPrefix, t.Format("2006-01-02"), kind.FileName)
}

func (e *Engine) fetched(table string, rows int) {
	if e.Recorder != nil {
		e.Recorder.TableFetched(table, rows)
	}
}

func (e *Engine) record(r *ExportResult) {
	if e.Recorder != nil {
		e.Recorder.ExportFinished(r)
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return nopLogger()
}

// Discover fetches kind's table and returns its unified schema and the
// number of rows seen. Nothing is written.
func (e *Engine) Discover(ctx context.Context, kind *KindSpec) (*Schema, int, error) {
	rows, err := e.Source.Fetch(ctx, kind.Table, kind.View)
	if err != nil {
		return nil, 0, err
	}
	e.fetched(kind.Table, len(rows))
	return UnifySchema(rows), len(rows), nil
}
