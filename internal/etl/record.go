package etl

import "sort"

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Sources emit Rows, the normalizer turns them into ExportRows,
// destinations consume ExportRows.

// Row is one record of a source table. Field presence is row-specific:
// two rows of the same table may carry disjoint field sets.
//
// Field values are what encoding/json produces with UseNumber:
// nil, string, json.Number, bool, []any or map[string]any.
type Row struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// ExportRow is a normalized row. A missing key is an explicit absence
// and renders as an empty cell.
type ExportRow map[string]string

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "list" | "object" | "empty"
}

// Schema describes the unified column set of one table export.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the schema contains a column named name.
func (s *Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ── Table / Catalog ────────────────────────────────────────

// Table is a named, ordered, read-only collection of rows fetched in full
// for the duration of one export run.
type Table struct {
	Name string
	Rows []Row

	index map[string]int
}

// NewTable builds a Table and its ID index. When an ID repeats, the first
// row wins.
func NewTable(name string, rows []Row) *Table {
	t := &Table{Name: name, Rows: rows, index: make(map[string]int, len(rows))}
	for i, r := range rows {
		if _, dup := t.index[r.ID]; !dup {
			t.index[r.ID] = i
		}
	}
	return t
}

// Lookup returns the row with the given ID.
func (t *Table) Lookup(id string) (Row, bool) {
	i, ok := t.index[id]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Catalog holds every table fetched during one export run, keyed by
// table name. It is the resolution context handed to the Resolver and
// is discarded when the run ends.
type Catalog struct {
	tables map[string]*Table
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// Put adds or replaces a table.
func (c *Catalog) Put(t *Table) {
	c.tables[t.Name] = t
}

// Table returns the named table if it has been loaded.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Names returns the loaded table names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
