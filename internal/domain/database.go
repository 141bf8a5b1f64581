package domain

import (
	"fmt"
	"strings"
)

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// ParseDatabaseDriver normalizes a configured driver name.
func ParseDatabaseDriver(s string) (DatabaseDriver, error) {
	switch d := DatabaseDriver(strings.ToLower(strings.TrimSpace(s))); d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB, DatabaseDriverSQLite:
		return d, nil
	case "postgresql":
		return DatabaseDriverPostgres, nil
	case "mongo":
		return DatabaseDriverMongoDB, nil
	case "sqlite3":
		return DatabaseDriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver: %q", s)
	}
}

// MirrorConnection holds what is needed to reach the mirror database.
// DSN is driver specific: a file path for sqlite, a go-sql-driver DSN for
// mysql, a URL or key=value string for postgres, a mongodb:// URI for mongo.
type MirrorConnection struct {
	Driver   DatabaseDriver `json:"driver" yaml:"driver"`
	DSN      string         `json:"dsn" yaml:"dsn"`
	Database string         `json:"database,omitempty" yaml:"database,omitempty"` // mongo only; overrides the URI path
}
