package redisstore

import (
	"context"

	"lintfix/internal/queue"
)

// Stats aggregates the queue, scoped to sessionID when it is set.
func (s *Store) Stats(ctx context.Context, sessionID string) (queue.Stats, error) {
	items, err := s.snapshot(ctx)
	if err != nil {
		return queue.Stats{}, wrapErr("queue stats", err)
	}
	builder := queue.NewStatsBuilder(sessionID)
	for _, item := range items {
		builder.Add(item)
	}
	return builder.Build(), nil
}

// RetryFailed moves failed items back to pending with a fresh retry budget.
// Items whose identity key is held by a newer non-terminal item stay failed.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		all, err := s.client.HKeys(ctx, s.keys.Failed).Result()
		if err != nil {
			return 0, wrapErr("retry failed items", err)
		}
		ids = all
	}
	records, err := s.loadRecords(ctx, ids)
	if err != nil {
		return 0, wrapErr("retry failed items", err)
	}

	now := micros(queue.Now())
	var reset int64
	for _, rec := range records {
		if rec.Status != string(queue.StatusFailed) {
			continue
		}
		n, err := retryScript.Run(ctx, s.client,
			[]string{s.keys.Item(rec.ID), s.keys.Failed, s.keys.Pending, s.keys.Identity},
			rec.ID, now, pendingScore(rec.Priority, rec.Seq),
		).Int64()
		if err != nil {
			return reset, wrapErr("retry failed items", err)
		}
		reset += n
	}
	return reset, nil
}
