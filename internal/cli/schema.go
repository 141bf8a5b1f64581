package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"airexport/internal/etl"
)

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <kind>",
		Short: "Show the live column set of a kind's table",
		Long: `Schema fetches a kind's table without writing anything and prints the
unified column set: every field present in any row, its shape, and for
link columns the table and field their ids resolve to.

Lookup columns missing from the live table, or present but not
list-shaped, are reported as warnings.

Example:
  airexport schema enrollments
  airexport schema purchases --json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, opts, args[0])
		},
	}
}

func runSchema(cmd *cobra.Command, opts *options, name string) error {
	kind, err := etl.GetKind(name)
	if err != nil {
		return NewConfigError("kind", err)
	}
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	engine, closeEngine, err := a.buildEngine(cmd.Context(), nil, engineOptions{noUpload: true, noMirror: true})
	if err != nil {
		return err
	}
	defer closeEngine()

	schema, rows, err := engine.Discover(cmd.Context(), kind)
	if err != nil {
		return NewCommandError("schema", err)
	}
	report := etl.DescribeSchema(kind, schema, rows)

	if opts.jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return NewCommandError("schema", err)
		}
		return nil
	}
	printSchemaReport(cmd.OutOrStdout(), report)
	return nil
}

func printSchemaReport(w io.Writer, r *etl.SchemaReport) {
	fmt.Fprintf(w, "Kind:  %s\n", r.Kind)
	if r.View != "" {
		fmt.Fprintf(w, "Table: %s (view %s)\n", r.Table, r.View)
	} else {
		fmt.Fprintf(w, "Table: %s\n", r.Table)
	}
	fmt.Fprintf(w, "Rows:  %d\n\n", r.Rows)

	if len(r.Columns) == 0 {
		fmt.Fprintln(w, "No columns.")
	} else {
		t := newTable("COLUMN", "TYPE", "REFERENCE")
		for _, c := range r.Columns {
			t.row(c.Name, c.Type, orDash(c.Reference))
		}
		t.print(w)
		fmt.Fprintf(w, "Total: %d column(s)\n", len(r.Columns))
	}

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}
