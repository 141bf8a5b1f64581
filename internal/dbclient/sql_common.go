package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dialect captures the SQL differences between the supported engines.
type dialect struct {
	quote       func(ident string) string
	placeholder func(n int) string // n is 1-based
}

var questionMark = func(int) string { return "?" }

var sqliteDialect = dialect{
	quote:       func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	placeholder: questionMark,
}

var mysqlDialect = dialect{
	quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	placeholder: questionMark,
}

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
	dialect    dialect
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string, d dialect) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db, dialect: d}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// ReplaceTable runs drop, create and inserts in one transaction so readers
// never see a half-written mirror. All columns are TEXT. A table with no
// columns cannot be created; it is only dropped.
func (c *sqlConnector) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := c.dialect.quote
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(table)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}
	if len(columns) == 0 {
		return 0, tx.Commit()
	}

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		names[i] = q(col)
		defs[i] = q(col) + " TEXT"
		marks[i] = c.dialect.placeholder(i + 1)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", q(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		q(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }
