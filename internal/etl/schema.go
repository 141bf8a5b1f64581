package etl

import (
	"encoding/json"
	"sort"
)

// UnifySchema computes the union of field names present in any row of
// the batch. Fields are sorted by name so the emitted header is stable
// across runs. Each field's Type is the shape of the first non-nil value
// seen for it.
func UnifySchema(rows []Row) *Schema {
	fieldSet := make(map[string]string) // name → type
	for _, r := range rows {
		for k, v := range r.Fields {
			typ, seen := fieldSet[k]
			if !seen || typ == "empty" {
				fieldSet[k] = inferType(v)
			}
		}
	}

	names := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := &Schema{Fields: make([]Field, 0, len(names))}
	for _, name := range names {
		schema.Fields = append(schema.Fields, Field{Name: name, Type: fieldSet[name]})
	}
	return schema
}

func inferType(v any) string {
	switch v.(type) {
	case nil:
		return "empty"
	case json.Number, float64, float32, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	default:
		return "text"
	}
}
