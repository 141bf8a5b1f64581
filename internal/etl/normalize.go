package etl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ── Row Normalizer ─────────────────────────────────────────
// Turns a raw Row into an ExportRow: list values are flattened into
// delimited strings, link columns are replaced by resolver output and
// every other value is rendered as its scalar string form.

// Normalizer normalizes the rows of one kind's table.
type Normalizer struct {
	Kind     *KindSpec
	Resolver *Resolver

	lookups map[string]bool
}

// NewNormalizer creates a Normalizer for kind.
func NewNormalizer(kind *KindSpec, resolver *Resolver) *Normalizer {
	lookups := make(map[string]bool, len(kind.LookupFields))
	for _, f := range kind.LookupFields {
		lookups[f] = true
	}
	return &Normalizer{Kind: kind, Resolver: resolver, lookups: lookups}
}

// Normalize converts one row. Every column of schema that is present on
// the row gets exactly one string; absent columns get no entry. On error
// no row is returned.
func (n *Normalizer) Normalize(row Row, schema *Schema) (ExportRow, error) {
	out := make(ExportRow, len(row.Fields))
	for _, f := range schema.Fields {
		raw, ok := row.Fields[f.Name]
		if !ok {
			continue
		}

		if list, isList := raw.([]any); isList {
			out[f.Name] = flattenList(list)
		} else {
			out[f.Name] = stringify(raw)
		}

		// A null link, or a link list led by null, keeps the flattened
		// NoneValue and never reaches the resolver.
		if !n.lookups[f.Name] || isNullLink(raw) {
			continue
		}
		ids, ok := linkIDs(raw)
		if !ok {
			return nil, &LinkShapeError{Kind: n.Kind.Name, Column: f.Name, RowID: row.ID, Value: raw}
		}
		resolved, err := n.Resolver.Resolve(n.Kind, f.Name, ids)
		if err != nil {
			return nil, err
		}
		out[f.Name] = resolved
	}
	return out, nil
}

// NormalizeAll normalizes every row in order. The first error aborts the
// whole batch so no partial table is ever exported.
func (n *Normalizer) NormalizeAll(rows []Row, schema *Schema) ([]ExportRow, error) {
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		er, err := n.Normalize(r, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, er)
	}
	return out, nil
}

// ── Helpers ────────────────────────────────────────────────

// flattenList joins list elements with Delimiter. A list whose first
// element is null collapses to NoneValue.
func flattenList(list []any) string {
	if len(list) == 0 {
		return ""
	}
	if list[0] == nil {
		return NoneValue
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = stringify(v)
	}
	return strings.Join(parts, Delimiter)
}

// stringify renders a single raw value. Objects are serialized as
// compact JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return NoneValue
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		return flattenList(val)
	case []string:
		return strings.Join(val, Delimiter)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func isNullLink(v any) bool {
	if v == nil {
		return true
	}
	list, ok := v.([]any)
	return ok && len(list) > 0 && list[0] == nil
}

// linkIDs extracts record ids from a link value. Link values are lists
// by contract; anything else reports false.
func linkIDs(v any) ([]string, bool) {
	switch val := v.(type) {
	case []any:
		ids := make([]string, len(val))
		for i, e := range val {
			ids[i] = stringify(e)
		}
		return ids, true
	case []string:
		return val, true
	default:
		return nil, false
	}
}
