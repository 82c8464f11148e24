package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lintfix/internal/queue"
)

// Enqueue inserts item unless its identity key is already queued.
func (s *Store) Enqueue(ctx context.Context, item *queue.WorkItem) (bool, error) {
	if err := item.PrepareEnqueue(queue.Now()); err != nil {
		return false, err
	}
	return s.enqueue(ctx, item)
}

func (s *Store) enqueue(ctx context.Context, item *queue.WorkItem) (bool, error) {
	// Sequence numbers only order items; gaps from rejected duplicates are harmless.
	seq, err := s.client.Incr(ctx, s.keys.Seq).Result()
	if err != nil {
		return false, wrapErr("enqueue item", err)
	}
	id := uuid.NewString()
	item.ID = id
	rec, err := newRecord(item, seq)
	if err != nil {
		item.ID = ""
		return false, err
	}

	args := []any{rec.Identity, id, pendingScore(rec.Priority, seq)}
	args = append(args, rec.fields()...)
	created, err := enqueueScript.Run(ctx, s.client,
		[]string{s.keys.Identity, s.keys.Index, s.keys.Pending, s.keys.Item(id)},
		args...,
	).Int64()
	if err != nil {
		item.ID = ""
		return false, wrapErr("enqueue item", err)
	}
	if created == 0 {
		item.ID = ""
		return false, nil
	}
	return true, nil
}

// EnqueueBatch enqueues items for sessionID and returns how many were new.
// Each item is inserted atomically; the batch as a whole is not.
func (s *Store) EnqueueBatch(ctx context.Context, sessionID string, items []*queue.WorkItem) (int, error) {
	now := queue.Now()
	for _, item := range items {
		if item != nil && strings.TrimSpace(sessionID) != "" {
			item.SessionID = sessionID
		}
		if err := item.PrepareEnqueue(now); err != nil {
			return 0, err
		}
	}
	created := 0
	for _, item := range items {
		ok, err := s.enqueue(ctx, item)
		if err != nil {
			return created, fmt.Errorf("enqueue batch: %w", err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// Get fetches a work item by identifier.
func (s *Store) Get(ctx context.Context, id string) (*queue.WorkItem, error) {
	rec, found, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, wrapErr("get item", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return rec.toItem()
}

// List returns items matching filter ordered by creation time.
func (s *Store) List(ctx context.Context, filter queue.ListFilter) ([]*queue.WorkItem, error) {
	items, err := s.snapshot(ctx)
	if err != nil {
		return nil, wrapErr("list work items", err)
	}
	out := items[:0]
	for _, item := range items {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	sortByCreation(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func sortByCreation(items []*queue.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// Prune deletes terminal items last updated before cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	items, err := s.snapshot(ctx)
	if err != nil {
		return 0, wrapErr("prune work items", err)
	}
	cutoff := micros(before)
	var pruned int64
	for _, item := range items {
		if !item.Status.IsTerminal() || !item.UpdatedAt.Before(before) {
			continue
		}
		deleted, err := pruneScript.Run(ctx, s.client,
			[]string{s.keys.Item(item.ID), s.keys.Index, s.keys.Completed, s.keys.Failed},
			item.ID, cutoff,
		).Int64()
		if err != nil {
			return pruned, wrapErr("prune work items", err)
		}
		pruned += deleted
	}
	return pruned, nil
}
