package etl

import (
	"errors"
	"fmt"
	"sort"
)

// ── Kinds ──────────────────────────────────────────────────
// A kind is one export variant. It names the source table and view,
// the output file, the archive prefix, and the static reference mapping
// used to resolve its link columns.

// Reference points a link column at the table and field whose value
// replaces each linked record id.
type Reference struct {
	Table string `json:"table" yaml:"table"`
	Field string `json:"field" yaml:"field"`
}

// KindSpec describes one export kind.
type KindSpec struct {
	Name         string
	Table        string // source table exported by this kind
	View         string // source view restricting the exported rows
	FileName     string // local CSV file name
	UploadPrefix string // archive key namespace
	MirrorTable  string // table/collection name used by the database mirror

	// LookupFields are the columns eligible for link resolution.
	LookupFields []string

	// References maps a lookup column to its resolution target.
	References map[string]Reference
}

// IsLookup reports whether column is one of the kind's link columns.
func (k *KindSpec) IsLookup(column string) bool {
	for _, f := range k.LookupFields {
		if f == column {
			return true
		}
	}
	return false
}

// Dependencies returns the distinct reference target tables, sorted.
// They must all be loaded before the kind's table is normalized.
func (k *KindSpec) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, ref := range k.References {
		if !seen[ref.Table] {
			seen[ref.Table] = true
			deps = append(deps, ref.Table)
		}
	}
	sort.Strings(deps)
	return deps
}

// Validate checks that the lookup field list and the reference mapping
// describe exactly the same columns.
func (k *KindSpec) Validate() error {
	var errs []error
	if k.Name == "" {
		errs = append(errs, errors.New("kind name is empty"))
	}
	if k.Table == "" {
		errs = append(errs, fmt.Errorf("kind %s: table is empty", k.Name))
	}
	if k.FileName == "" {
		errs = append(errs, fmt.Errorf("kind %s: file name is empty", k.Name))
	}
	for _, col := range k.LookupFields {
		ref, ok := k.References[col]
		if !ok {
			errs = append(errs, &UnsupportedColumnError{Kind: k.Name, Table: k.Table, Column: col})
			continue
		}
		if ref.Table == "" || ref.Field == "" {
			errs = append(errs, fmt.Errorf("kind %s: reference for %q is incomplete", k.Name, col))
		}
		if ref.Table == k.Table {
			errs = append(errs, fmt.Errorf("kind %s: column %q references its own table", k.Name, col))
		}
	}
	for col := range k.References {
		if !k.IsLookup(col) {
			errs = append(errs, fmt.Errorf("kind %s: reference for %q has no matching lookup field", k.Name, col))
		}
	}
	return errors.Join(errs...)
}

// Built-in kind names.
const (
	KindPurchases   = "purchases"
	KindEnrollments = "enrollments"
)

// Purchases exports certificate purchases.
var Purchases = &KindSpec{
	Name:         KindPurchases,
	Table:        "Certificate Purchases",
	View:         "AWS Download",
	FileName:     "certificate_purchases.csv",
	UploadPrefix: "certificate-purchases",
	MirrorTable:  "certificate_purchases",
	LookupFields: []string{"Student", "Certificate", "Partner"},
	References: map[string]Reference{
		"Student":     {Table: "Students", Field: "Email"},
		"Certificate": {Table: "Certificates", Field: "Name"},
		"Partner":     {Table: "Partners", Field: "Name"},
	},
}

// Enrollments exports course enrollments.
var Enrollments = &KindSpec{
	Name:         KindEnrollments,
	Table:        "Enrollments",
	View:         "AWS Download",
	FileName:     "enrollments.csv",
	UploadPrefix: "enrollments",
	MirrorTable:  "enrollments",
	LookupFields: []string{"Email", "Course", "Cohort"},
	References: map[string]Reference{
		"Email":  {Table: "Students", Field: "Email"},
		"Course": {Table: "Courses", Field: "Name"},
		"Cohort": {Table: "Cohorts", Field: "Name"},
	},
}

// builtinKinds is the fixed run order.
var builtinKinds = []*KindSpec{Purchases, Enrollments}

// Kinds returns the built-in kinds in run order.
func Kinds() []*KindSpec {
	out := make([]*KindSpec, len(builtinKinds))
	copy(out, builtinKinds)
	return out
}

// GetKind returns a built-in kind by name.
func GetKind(name string) (*KindSpec, error) {
	for _, k := range builtinKinds {
		if k.Name == name {
			return k, nil
		}
	}
	return nil, fmt.Errorf("unknown export kind: %q", name)
}

// ValidateKinds validates every kind and checks names are unique.
// Run it at startup so mapping drift fails before any fetch.
func ValidateKinds(kinds []*KindSpec) error {
	var errs []error
	names := make(map[string]bool)
	for _, k := range kinds {
		if names[k.Name] {
			errs = append(errs, fmt.Errorf("duplicate kind %q", k.Name))
		}
		names[k.Name] = true
		if err := k.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
