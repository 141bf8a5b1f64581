package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"airexport/internal/etl"
)

// ── JSON Directory Source ───────────────────────────────────
// Reads tables from <dir>/<table>.json. A file holds either one API page
// ({"records": [...]}) or an array of pages as captured from a paginated
// fetch. Views cannot be applied offline and are ignored.

type jsonDirSource struct {
	dir string
}

func init() { etl.RegisterSource("json_dir", newJSONDirSource) }

func newJSONDirSource(cfg etl.SourceConfig) (etl.Source, error) {
	dir := cfg.String("dir")
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	return &jsonDirSource{dir: dir}, nil
}

func (s *jsonDirSource) Fetch(ctx context.Context, table, view string) ([]etl.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &etl.FetchError{Table: table, Cause: err}
	}

	data, err := os.ReadFile(filepath.Join(s.dir, table+".json"))
	if err != nil {
		return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("read file: %w", err)}
	}

	pages, err := decodePages(data)
	if err != nil {
		return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("parse json: %w", err)}
	}

	var rows []etl.Row
	for _, p := range pages {
		rows = append(rows, p.Records...)
	}
	return rows, nil
}

func decodePages(data []byte) ([]page, error) {
	trimmed := bytes.TrimSpace(data)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var pages []page
		if err := dec.Decode(&pages); err != nil {
			return nil, err
		}
		return pages, nil
	}

	var p page
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return []page{p}, nil
}
