package dbclient

import (
	"context"
	"log/slog"

	"airexport/internal/etl"
)

// Mirror writes exports into a database through a Connector. It
// implements etl.Destination so the engine treats it like the CSV sink.
type Mirror struct {
	conn   Connector
	logger *slog.Logger
}

// NewMirror wraps conn. A nil logger discards.
func NewMirror(conn Connector, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{conn: conn, logger: logger}
}

// Write replaces table name with rows. Columns follow the schema order;
// a column absent from a row is stored as NULL rather than "".
func (m *Mirror) Write(ctx context.Context, name string, schema *etl.Schema, rows []etl.ExportRow) (int, error) {
	columns := schema.FieldNames()
	values := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(columns))
		for j, col := range columns {
			if v, ok := row[col]; ok {
				vals[j] = v
			}
		}
		values[i] = vals
	}

	n, err := m.conn.ReplaceTable(ctx, name, columns, values)
	if err != nil {
		return 0, err
	}
	m.logger.Info("mirror table replaced", "table", name, "rows", n, "columns", len(columns))
	return n, nil
}

// Ping checks the database is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.conn.TestConnection(ctx)
}

// Close closes the underlying connection.
func (m *Mirror) Close() error {
	return m.conn.Close()
}
