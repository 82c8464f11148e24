package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lintfix/internal/queue"
)

// Claim assigns up to limit pending items to workerID.
func (s *Store) Claim(ctx context.Context, limit int, workerID string, filter queue.ClaimFilter) ([]*queue.WorkItem, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}

	query := `SELECT ` + itemColumns + ` FROM work_items WHERE status = ?`
	args := []any{queue.StatusPending}
	if !filter.Empty() {
		query += ` AND issue_code IN (` + makePlaceholders(len(filter.IssueCodes)) + `)`
		args = append(args, stringArgs(filter.IssueCodes)...)
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	var claimed []*queue.WorkItem
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		claimed = nil
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		candidates, err := scanItems(rows)
		if err != nil {
			return err
		}

		now := queue.Now()
		for _, item := range candidates {
			token := uuid.NewString()
			res, err := tx.ExecContext(
				ctx,
				`UPDATE work_items
                 SET status = ?, assigned_worker = ?, claimed_at = ?, claim_token = ?, updated_at = ?
                 WHERE id = ? AND status = ?`,
				queue.StatusClaimed,
				workerID,
				toMicros(now),
				token,
				toMicros(now),
				mustParseID(item.ID),
				queue.StatusPending,
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				continue
			}
			claimedAt := now
			item.Status = queue.StatusClaimed
			item.AssignedWorker = workerID
			item.ClaimedAt = &claimedAt
			item.ClaimToken = token
			item.UpdatedAt = now
			claimed = append(claimed, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}
	return claimed, nil
}

// Complete records result on the claimed item.
func (s *Store) Complete(ctx context.Context, claim queue.Claim, result queue.Result) error {
	ctx = ensureContext(ctx)
	id, err := parseID(claim.ItemID)
	if err != nil {
		return err
	}
	now := queue.Now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_items
             SET status = ?, result_success = ?, result_detail = ?, result_confidence = ?,
                 assigned_worker = NULL, claimed_at = NULL, claim_token = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND assigned_worker = ? AND claim_token = ?`,
			queue.CompletionStatus(result),
			boolToInt(result.Success),
			nullableString(result.Detail),
			nullableConfidence(&result),
			toMicros(now),
			id,
			queue.StatusClaimed,
			claim.WorkerID,
			claim.Token,
		)
		if err != nil {
			return err
		}
		return checkClaimApplied(ctx, tx, res, id)
	})
	if err != nil {
		return fmt.Errorf("complete item %s: %w", claim.ItemID, err)
	}
	return nil
}

// Fail applies the retry policy to the claimed item.
func (s *Store) Fail(ctx context.Context, claim queue.Claim, detail string) (queue.Status, error) {
	ctx = ensureContext(ctx)
	id, err := parseID(claim.ItemID)
	if err != nil {
		return "", err
	}
	var status queue.Status
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
		item, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", queue.ErrNotFound, claim.ItemID)
		}
		if err != nil {
			return err
		}
		if !queue.ClaimMatches(*item, claim) {
			return queue.ErrStaleClaim
		}
		decision := queue.DecideFailure(*item, detail)
		if err := applyFailure(ctx, tx, id, claim.Token, decision, queue.Now()); err != nil {
			return err
		}
		status = decision.Status
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fail item %s: %w", claim.ItemID, err)
	}
	return status, nil
}

// ReclaimStale treats claims older than timeout as failed attempts.
func (s *Store) ReclaimStale(ctx context.Context, timeout time.Duration) (queue.ReclaimReport, error) {
	ctx = ensureContext(ctx)
	var report queue.ReclaimReport
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		report = queue.ReclaimReport{}
		now := queue.Now()
		cutoff := now.Add(-timeout)
		rows, err := tx.QueryContext(
			ctx,
			`SELECT `+itemColumns+` FROM work_items WHERE status = ? AND claimed_at < ? ORDER BY claimed_at ASC`,
			queue.StatusClaimed,
			toMicros(cutoff),
		)
		if err != nil {
			return err
		}
		stale, err := scanItems(rows)
		if err != nil {
			return err
		}
		for _, item := range stale {
			decision := queue.DecideFailure(*item, queue.ProcessingTimeoutDetail)
			if err := applyFailure(ctx, tx, mustParseID(item.ID), item.ClaimToken, decision, now); err != nil {
				return err
			}
			if decision.Requeued() {
				report.Requeued++
			} else {
				report.Failed++
			}
		}
		return nil
	})
	if err != nil {
		return queue.ReclaimReport{}, fmt.Errorf("reclaim stale claims: %w", err)
	}
	return report, nil
}

func applyFailure(ctx context.Context, tx *sql.Tx, id int64, token string, decision queue.FailureDecision, now time.Time) error {
	var (
		resultSuccess any
		resultDetail  any
	)
	if decision.Result != nil {
		resultSuccess = boolToInt(decision.Result.Success)
		resultDetail = nullableString(decision.Result.Detail)
	}
	res, err := tx.ExecContext(
		ctx,
		`UPDATE work_items
         SET status = ?, retry_count = ?, priority = ?, last_error = ?,
             result_success = ?, result_detail = ?, result_confidence = NULL,
             assigned_worker = NULL, claimed_at = NULL, claim_token = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND claim_token = ?`,
		decision.Status,
		decision.RetryCount,
		decision.Priority,
		nullableString(decision.LastError),
		resultSuccess,
		resultDetail,
		toMicros(now),
		id,
		queue.StatusClaimed,
		token,
	)
	if err != nil {
		return err
	}
	return checkClaimApplied(ctx, tx, res, id)
}

// checkClaimApplied converts a guarded update that matched no row into
// ErrNotFound or ErrStaleClaim.
func checkClaimApplied(ctx context.Context, tx *sql.Tx, res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %d", queue.ErrNotFound, id)
	}
	return queue.ErrStaleClaim
}

func mustParseID(id string) int64 {
	value, _ := parseID(id)
	return value
}
