package dbclient

import (
	"strings"

	"airexport/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector creates a connector for a local SQLite file.
// Opens in WAL mode with busy timeout for concurrent access.
func newSQLiteConnector(conn *domain.MirrorConnection) (*sqlConnector, error) {
	dsn := conn.DSN
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return newSQLConnector("sqlite", dsn, sqliteDialect)
}
