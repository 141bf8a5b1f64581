package dbclient

import (
	"fmt"

	"airexport/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// buildMySQLDSN validates the configured DSN and forces utf8mb4 so
// non-ASCII field values survive the mirror.
func buildMySQLDSN(conn *domain.MirrorConnection) (string, error) {
	cfg, err := mysql.ParseDSN(conn.DSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
