package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lintfix/internal/queue"
)

// Claim assigns up to limit pending items to workerID.
func (s *Store) Claim(ctx context.Context, limit int, workerID string, filter queue.ClaimFilter) ([]*queue.WorkItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}

	now := queue.Now()
	args := make([]any, 0, 5+len(filter.IssueCodes)+limit)
	args = append(args, s.keys.ItemPrefix, workerID, micros(now), limit, len(filter.IssueCodes))
	for _, code := range filter.IssueCodes {
		args = append(args, code)
	}
	for i := 0; i < limit; i++ {
		args = append(args, uuid.NewString())
	}

	replies, err := claimScript.Run(ctx, s.client, []string{s.keys.Pending, s.keys.Claimed}, args...).Slice()
	if err != nil {
		return nil, wrapErr("claim items", err)
	}
	if len(replies) == 0 {
		return nil, nil
	}

	items := make([]*queue.WorkItem, 0, len(replies))
	for _, reply := range replies {
		rec, found, err := decodeClaimed(reply)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		item, err := rec.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// decodeClaimed turns one flat HGETALL reply from claimScript into a record.
// An empty reply means the item hash was gone.
func decodeClaimed(reply any) (itemRecord, bool, error) {
	fields, ok := reply.([]any)
	if !ok || len(fields)%2 != 0 {
		return itemRecord{}, false, fmt.Errorf("decode claimed item: unexpected reply %T", reply)
	}
	if len(fields) == 0 {
		return itemRecord{}, false, nil
	}
	values := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key, _ := fields[i].(string)
		value, _ := fields[i+1].(string)
		values[key] = value
	}
	var rec itemRecord
	if err := redis.NewMapStringStringResult(values, nil).Scan(&rec); err != nil {
		return itemRecord{}, false, fmt.Errorf("decode claimed item %s: %w", values["id"], err)
	}
	return rec, true, nil
}

// Complete records result on the claimed item.
func (s *Store) Complete(ctx context.Context, claim queue.Claim, result queue.Result) error {
	encoded, err := queue.EncodeResult(&result)
	if err != nil {
		return err
	}
	outcome, err := completeScript.Run(ctx, s.client,
		[]string{s.keys.Item(claim.ItemID), s.keys.Claimed, s.keys.Completed, s.keys.Identity},
		claim.WorkerID,
		claim.Token,
		string(queue.CompletionStatus(result)),
		encoded,
		micros(queue.Now()),
		claim.ItemID,
	).Int64()
	if err != nil {
		return wrapErr("complete item "+claim.ItemID, err)
	}
	return scriptOutcome("complete item", claim.ItemID, outcome)
}

// Fail applies the retry policy to the claimed item.
func (s *Store) Fail(ctx context.Context, claim queue.Claim, detail string) (queue.Status, error) {
	rec, found, err := s.loadRecord(ctx, claim.ItemID)
	if err != nil {
		return "", wrapErr("fail item "+claim.ItemID, err)
	}
	if !found {
		return "", fmt.Errorf("fail item %s: %w", claim.ItemID, queue.ErrNotFound)
	}
	item, err := rec.toItem()
	if err != nil {
		return "", err
	}
	if !queue.ClaimMatches(*item, claim) {
		return "", fmt.Errorf("fail item %s: %w", claim.ItemID, queue.ErrStaleClaim)
	}
	decision := queue.DecideFailure(*item, detail)
	if err := s.applyFailure(ctx, rec, claim.Token, decision); err != nil {
		return "", err
	}
	return decision.Status, nil
}

// ReclaimStale treats claims older than timeout as failed attempts.
func (s *Store) ReclaimStale(ctx context.Context, timeout time.Duration) (queue.ReclaimReport, error) {
	var report queue.ReclaimReport
	ids, err := s.client.HKeys(ctx, s.keys.Claimed).Result()
	if err != nil {
		return report, wrapErr("reclaim stale claims", err)
	}
	records, err := s.loadRecords(ctx, ids)
	if err != nil {
		return report, wrapErr("reclaim stale claims", err)
	}

	cutoff := queue.Now().Add(-timeout).UnixMicro()
	for _, rec := range records {
		if rec.Status != string(queue.StatusClaimed) || rec.ClaimedAt == 0 || rec.ClaimedAt >= cutoff {
			continue
		}
		item, err := rec.toItem()
		if err != nil {
			return report, err
		}
		decision := queue.DecideFailure(*item, queue.ProcessingTimeoutDetail)
		err = s.applyFailure(ctx, rec, rec.Token, decision)
		if errors.Is(err, queue.ErrStaleClaim) || errors.Is(err, queue.ErrNotFound) {
			// Completed or reclaimed by someone else since the snapshot.
			continue
		}
		if err != nil {
			return report, err
		}
		if decision.Requeued() {
			report.Requeued++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (s *Store) applyFailure(ctx context.Context, rec itemRecord, token string, decision queue.FailureDecision) error {
	result, err := queue.EncodeResult(decision.Result)
	if err != nil {
		return err
	}
	outcome, err := failScript.Run(ctx, s.client,
		[]string{s.keys.Item(rec.ID), s.keys.Claimed, s.keys.Pending, s.keys.Failed, s.keys.Identity},
		token,
		string(decision.Status),
		strconv.Itoa(decision.RetryCount),
		strconv.Itoa(decision.Priority),
		decision.LastError,
		result,
		micros(queue.Now()),
		rec.ID,
		pendingScore(decision.Priority, rec.Seq),
	).Int64()
	if err != nil {
		return wrapErr("fail item "+rec.ID, err)
	}
	return scriptOutcome("fail item", rec.ID, outcome)
}

func scriptOutcome(op, id string, outcome int64) error {
	switch outcome {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%s %s: %w", op, id, queue.ErrStaleClaim)
	default:
		return fmt.Errorf("%s %s: %w", op, id, queue.ErrNotFound)
	}
}
