package etl

import "fmt"

// SchemaReport describes the live column set of a kind's table.
type SchemaReport struct {
	Kind     string         `json:"kind"`
	Table    string         `json:"table"`
	View     string         `json:"view"`
	Rows     int            `json:"rows"`
	Columns  []SchemaColumn `json:"columns"`
	Warnings []string       `json:"warnings,omitempty"`
}

// SchemaColumn is one unified column. Reference is "Table.Field" for
// link columns.
type SchemaColumn struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Reference string `json:"reference,omitempty"`
}

// DescribeSchema compares a discovered schema with kind's mapping. Lookup
// columns that are missing, or present but not list-shaped, become
// warnings: the first means the view dropped a column, the second that
// normalization would fail with a LinkShapeError.
func DescribeSchema(kind *KindSpec, schema *Schema, rows int) *SchemaReport {
	report := &SchemaReport{Kind: kind.Name, Table: kind.Table, View: kind.View, Rows: rows}
	for _, f := range schema.Fields {
		col := SchemaColumn{Name: f.Name, Type: f.Type}
		if ref, ok := kind.References[f.Name]; ok {
			col.Reference = ref.Table + "." + ref.Field
			if f.Type != "list" && f.Type != "empty" {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("lookup column %q is %s, expected a list of record ids", f.Name, f.Type))
			}
		}
		report.Columns = append(report.Columns, col)
	}
	for _, lf := range kind.LookupFields {
		if !schema.Has(lf) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("lookup column %q not present in any row", lf))
		}
	}
	return report
}
