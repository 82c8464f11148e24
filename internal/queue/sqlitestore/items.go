package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lintfix/internal/queue"
)

const insertItemSQL = `INSERT INTO work_items (
    session_id, file_path, line, col, issue_code, priority, payload_json,
    status, retry_count, max_retries, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertItem reports false without error when a non-terminal item already
// holds the identity key.
func insertItem(ctx context.Context, exec execer, item *queue.WorkItem) (bool, error) {
	payload, err := queue.EncodePayload(item.Payload)
	if err != nil {
		return false, err
	}
	res, err := exec.ExecContext(
		ctx,
		insertItemSQL,
		item.SessionID,
		item.Location.FilePath,
		item.Location.Line,
		item.Location.Column,
		item.IssueCode,
		item.Priority,
		payload,
		queue.StatusPending,
		0,
		item.MaxRetries,
		toMicros(item.CreatedAt),
		toMicros(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = formatID(id)
	return true, nil
}

// Enqueue inserts item unless its identity key is already queued.
func (s *Store) Enqueue(ctx context.Context, item *queue.WorkItem) (bool, error) {
	ctx = ensureContext(ctx)
	if err := item.PrepareEnqueue(queue.Now()); err != nil {
		return false, err
	}
	var created bool
	err := retryOnBusy(ctx, func() error {
		var insertErr error
		created, insertErr = insertItem(ctx, s.db, item)
		return insertErr
	})
	if err != nil {
		return false, fmt.Errorf("enqueue item: %w", err)
	}
	return created, nil
}

// EnqueueBatch inserts items for sessionID in one transaction.
func (s *Store) EnqueueBatch(ctx context.Context, sessionID string, items []*queue.WorkItem) (int, error) {
	ctx = ensureContext(ctx)
	if len(items) == 0 {
		return 0, nil
	}
	now := queue.Now()
	for _, item := range items {
		if item != nil && strings.TrimSpace(sessionID) != "" {
			item.SessionID = sessionID
		}
		if err := item.PrepareEnqueue(now); err != nil {
			return 0, err
		}
	}

	var created int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		created = 0
		for _, item := range items {
			item.ID = ""
			ok, err := insertItem(ctx, tx, item)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue batch: %w", err)
	}
	return created, nil
}

// Get fetches a work item by identifier.
func (s *Store) Get(ctx context.Context, id string) (*queue.WorkItem, error) {
	ctx = ensureContext(ctx)
	rowID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, rowID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns items matching filter ordered by creation time.
func (s *Store) List(ctx context.Context, filter queue.ListFilter) ([]*queue.WorkItem, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
		args = append(args, stringArgs(filter.Statuses)...)
	}
	if filter.SessionID != "" {
		clauses = append(clauses, `session_id = ?`)
		args = append(args, filter.SessionID)
	}

	query := `SELECT ` + itemColumns + ` FROM work_items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return scanItems(rows)
}
