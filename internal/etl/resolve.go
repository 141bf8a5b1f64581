package etl

import (
	"log/slog"
	"strings"
)

// ── Reference Resolver ─────────────────────────────────────
// Replaces linked record ids with a display value taken from the
// referenced table. Dangling ids are tolerated: they are skipped and
// counted, never reported as errors.

const (
	// Delimiter joins list elements and resolved values.
	Delimiter = ", "

	// NoneValue marks a referenced row that exists but has no value for
	// the target field, and a list whose first element is null.
	NoneValue = "None"
)

// ResolveIn looks up each id in target and returns the target field's
// values joined with Delimiter, in the order the ids were given. Ids with
// no matching row are skipped; their count is returned as dangling.
func ResolveIn(target *Table, field string, ids []string) (resolved string, dangling int) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		row, ok := target.Lookup(id)
		if !ok {
			dangling++
			continue
		}
		v, ok := row.Fields[field]
		if !ok || v == nil {
			parts = append(parts, NoneValue)
			continue
		}
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, Delimiter), dangling
}

// Resolver resolves link columns against the tables of one run's catalog.
type Resolver struct {
	catalog  *Catalog
	logger   *slog.Logger
	dangling int
}

// NewResolver creates a Resolver over catalog. A nil logger discards.
func NewResolver(catalog *Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = nopLogger()
	}
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve resolves ids taken from column of kind's table. It fails with
// *UnsupportedColumnError when the column has no reference mapping and
// with *MissingTableError when the target table was never loaded.
func (r *Resolver) Resolve(kind *KindSpec, column string, ids []string) (string, error) {
	ref, ok := kind.References[column]
	if !ok {
		return "", &UnsupportedColumnError{Kind: kind.Name, Table: kind.Table, Column: column}
	}
	target, ok := r.catalog.Table(ref.Table)
	if !ok {
		return "", &MissingTableError{Table: ref.Table}
	}
	if len(ids) == 0 {
		return "", nil
	}

	resolved, dangling := ResolveIn(target, ref.Field, ids)
	if dangling > 0 {
		r.dangling += dangling
		r.logger.Debug("dangling references skipped",
			"kind", kind.Name, "column", column, "target", ref.Table, "count", dangling)
	}
	return resolved, nil
}

// Dangling returns the number of ids skipped so far.
func (r *Resolver) Dangling() int { return r.dangling }

func nopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
