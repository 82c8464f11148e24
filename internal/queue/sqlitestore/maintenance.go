package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"lintfix/internal/queue"
)

// snapshotTx opens a read-only transaction. Every query in it sees one WAL
// snapshot, and it begins deferred so writers are not held behind it.
func (s *Store) snapshotTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
}

// Stats aggregates the queue, scoped to sessionID when it is set.
func (s *Store) Stats(ctx context.Context, sessionID string) (queue.Stats, error) {
	ctx = ensureContext(ctx)
	scope := ""
	var scopeArgs []any
	if sessionID != "" {
		scope = ` AND session_id = ?`
		scopeArgs = []any{sessionID}
	}
	withScope := func(args ...any) []any {
		return append(args, scopeArgs...)
	}

	tx, err := s.snapshotTx(ctx)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := queue.Stats{SessionID: sessionID, Counts: make(map[queue.Status]int)}

	rows, err := tx.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items WHERE 1 = 1`+scope+` GROUP BY status`, scopeArgs...)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return queue.Stats{}, err
		}
		stats.Counts[queue.Status(status)] = count
		stats.Total += count
	}
	if err := rows.Close(); err != nil {
		return queue.Stats{}, err
	}

	var (
		completed int
		succeeded sql.NullInt64
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1), SUM(result_success) FROM work_items WHERE status = ?`+scope,
		withScope(queue.StatusCompleted)...,
	).Scan(&completed, &succeeded); err != nil {
		return queue.Stats{}, fmt.Errorf("success rate: %w", err)
	}
	if completed > 0 {
		stats.SuccessRate = float64(succeeded.Int64) / float64(completed)
	}

	var average sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(result_confidence), AVG(result_confidence) FROM work_items
         WHERE status IN (?, ?, ?) AND result_confidence IS NOT NULL`+scope,
		withScope(queue.StatusCompleted, queue.StatusSkipped, queue.StatusFailed)...,
	).Scan(&stats.ConfidenceSamples, &average); err != nil {
		return queue.Stats{}, fmt.Errorf("average confidence: %w", err)
	}
	stats.AverageConfidence = average.Float64

	failRows, err := tx.QueryContext(ctx,
		`SELECT id, session_id, file_path, line, col, issue_code, COALESCE(last_error, result_detail, ''), updated_at
         FROM work_items WHERE status = ?`+scope+`
         ORDER BY updated_at DESC, id ASC LIMIT ?`,
		append(withScope(queue.StatusFailed), queue.MaxFailureDetails)...,
	)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("failure details: %w", err)
	}
	defer failRows.Close()
	for failRows.Next() {
		var (
			id       int64
			detail   queue.FailureDetail
			failedAt int64
		)
		if err := failRows.Scan(
			&id,
			&detail.SessionID,
			&detail.Location.FilePath,
			&detail.Location.Line,
			&detail.Location.Column,
			&detail.IssueCode,
			&detail.Error,
			&failedAt,
		); err != nil {
			return queue.Stats{}, err
		}
		detail.ID = formatID(id)
		detail.FailedAt = fromMicros(failedAt)
		stats.Failures = append(stats.Failures, detail)
	}
	if err := failRows.Err(); err != nil {
		return queue.Stats{}, err
	}
	return stats, nil
}

// RetryFailed moves failed items back to pending with a fresh retry budget.
// Items whose identity key is held by a newer non-terminal item stay failed.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	query := `UPDATE OR IGNORE work_items
        SET status = ?, retry_count = 0, last_error = NULL,
            result_success = NULL, result_detail = NULL, result_confidence = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{queue.StatusPending, toMicros(queue.Now()), queue.StatusFailed}
	if len(ids) > 0 {
		rowIDs := make([]any, 0, len(ids))
		for _, id := range ids {
			rowID, err := parseID(id)
			if err != nil {
				continue
			}
			rowIDs = append(rowIDs, rowID)
		}
		if len(rowIDs) == 0 {
			return 0, nil
		}
		query += ` AND id IN (` + makePlaceholders(len(rowIDs)) + `)`
		args = append(args, rowIDs...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes terminal items last updated before cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM work_items WHERE status IN (?, ?, ?) AND updated_at < ?`,
		queue.StatusCompleted,
		queue.StatusSkipped,
		queue.StatusFailed,
		toMicros(before),
	)
	if err != nil {
		return 0, fmt.Errorf("prune work items: %w", err)
	}
	return res.RowsAffected()
}

// DatabaseHealth describes the state of the queue database file.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalItems       int    `json:"total_items"`
	Error            string `json:"error,omitempty"`
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	var tables int
	if err := s.db.QueryRowContext(connCtx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'work_items'",
	).Scan(&tables); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = tables > 0
	if health.TableExists {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM work_items").Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count work items: %w", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = integrity
	}
	return health, nil
}
