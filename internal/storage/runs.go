package storage

import (
	"context"
	"fmt"

	"airexport/internal/etl"

	"github.com/google/uuid"
)

// RunStore persists export run logs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRunLog inserts log, assigning an id when it has none.
func (s *RunStore) CreateRunLog(ctx context.Context, log *etl.RunLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO export_runs (id, kind, started_at, finished_at, status,
		 rows_fetched, rows_written, dangling_refs, file_path, upload_key, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Kind, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.Status,
		log.RowsFetched, log.RowsWritten, log.DanglingRefs, log.FilePath, log.UploadKey, log.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// ListRunLogs returns the most recent runs first. An empty kind lists
// every kind; limit <= 0 means no limit.
func (s *RunStore) ListRunLogs(ctx context.Context, kind string, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, kind, started_at, finished_at, status, rows_fetched, rows_written,
		 dangling_refs, file_path, upload_key, error
		 FROM export_runs WHERE (? = '' OR kind = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		kind, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(&l.ID, &l.Kind, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.RowsFetched, &l.RowsWritten, &l.DanglingRefs, &l.FilePath, &l.UploadKey, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// LastRun returns the most recent run of kind, or nil when it never ran.
func (s *RunStore) LastRun(ctx context.Context, kind string) (*etl.RunLog, error) {
	logs, err := s.ListRunLogs(ctx, kind, 1)
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return &logs[0], nil
}
