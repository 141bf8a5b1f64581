package dbclient

import (
	"fmt"
	"strings"

	"airexport/internal/domain"

	"github.com/lib/pq"
)

var postgresDialect = dialect{
	quote:       pq.QuoteIdentifier,
	placeholder: dollarPlaceholder,
}

// buildPostgresDSN accepts a postgres:// URL or a key=value string and
// returns the key=value form, defaulting sslmode to disable.
func buildPostgresDSN(conn *domain.MirrorConnection) (string, error) {
	dsn := conn.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		kv, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres url: %w", err)
		}
		dsn = kv
	}
	if !strings.Contains(dsn, "sslmode=") {
		dsn += " sslmode=disable"
	}
	return strings.TrimSpace(dsn), nil
}
