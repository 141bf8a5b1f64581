package dbclient

import (
	"context"
	"fmt"

	"airexport/internal/domain"
)

// Connector abstracts the mirror database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// ReplaceTable drops table (or collection) and recreates it holding
	// exactly rows. Every value is a string or nil; nil is stored as NULL
	// (SQL) or left out of the document (Mongo). It returns the number of
	// rows stored.
	ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int, error)

	// Close closes the connection.
	Close() error
}

// NewConnector creates a Connector for the given mirror connection.
func NewConnector(conn *domain.MirrorConnection) (Connector, error) {
	if conn.DSN == "" {
		return nil, fmt.Errorf("%s mirror: dsn is empty", conn.Driver)
	}
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		dsn, err := buildMySQLDSN(conn)
		if err != nil {
			return nil, err
		}
		return newSQLConnector("mysql", dsn, mysqlDialect)
	case domain.DatabaseDriverPostgres:
		dsn, err := buildPostgresDSN(conn)
		if err != nil {
			return nil, err
		}
		return newSQLConnector("postgres", dsn, postgresDialect)
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
