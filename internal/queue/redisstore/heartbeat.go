package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lintfix/internal/queue"
)

// Heartbeat records that workerID is alive. Reclamation never reads it.
func (s *Store) Heartbeat(ctx context.Context, workerID string) error {
	if strings.TrimSpace(workerID) == "" {
		return fmt.Errorf("heartbeat: worker id is required")
	}
	return wrapErr("heartbeat", s.client.HSet(ctx, s.keys.Heartbeats, workerID, micros(queue.Now())).Err())
}

// Workers returns the last heartbeat of every worker that has sent one.
func (s *Store) Workers(ctx context.Context) (map[string]time.Time, error) {
	values, err := s.client.HGetAll(ctx, s.keys.Heartbeats).Result()
	if err != nil {
		return nil, wrapErr("list workers", err)
	}
	workers := make(map[string]time.Time, len(values))
	for worker, raw := range values {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		workers[worker] = fromMicros(v)
	}
	return workers, nil
}

// ForgetWorker drops a worker's heartbeat entry.
func (s *Store) ForgetWorker(ctx context.Context, workerID string) error {
	return wrapErr("forget worker", s.client.HDel(ctx, s.keys.Heartbeats, workerID).Err())
}
