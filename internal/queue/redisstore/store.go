package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/redis/go-redis/v9"

	"lintfix/internal/queue"
)

// Store is the Redis-backed work queue.
type Store struct {
	client redis.UniversalClient
	keys   Keys
}

var (
	_ queue.Store          = (*Store)(nil)
	_ queue.HeartbeatStore = (*Store)(nil)
)

// Options configures a Store.
type Options struct {
	// KeyPrefix namespaces every key. Untagged prefixes are wrapped as
	// "{prefix}" so all keys land in one cluster slot.
	KeyPrefix string
}

// New wraps an existing client. The store owns the client and closes it on Close.
func New(client redis.UniversalClient, opts Options) *Store {
	return &Store{client: client, keys: KeysForPrefix(opts.KeyPrefix)}
}

// Connect dials Redis and verifies the connection before returning a Store.
func Connect(ctx context.Context, redisOpts *redis.UniversalOptions, opts Options) (*Store, error) {
	client := redis.NewUniversalClient(redisOpts)
	store := New(client, opts)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// Keys exposes the key layout, mainly for diagnostics.
func (s *Store) Keys() Keys {
	return s.keys
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrapErr("ping redis", s.client.Ping(ctx).Err())
}

// Close releases the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// wrapErr marks connection failures as queue.UnavailableError.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) {
		return &queue.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// loadRecord returns found=false when the item hash does not exist.
func (s *Store) loadRecord(ctx context.Context, id string) (itemRecord, bool, error) {
	cmd := s.client.HGetAll(ctx, s.keys.Item(id))
	values, err := cmd.Result()
	if err != nil {
		return itemRecord{}, false, err
	}
	if len(values) == 0 {
		return itemRecord{}, false, nil
	}
	var rec itemRecord
	if err := cmd.Scan(&rec); err != nil {
		return itemRecord{}, false, fmt.Errorf("decode item %s: %w", id, err)
	}
	return rec, true, nil
}

// loadRecords fetches many items in one MULTI so they share a snapshot.
// Missing ids are skipped.
func (s *Store) loadRecords(ctx context.Context, ids []string) ([]itemRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.keys.Item(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	records := make([]itemRecord, 0, len(ids))
	for i, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		var rec itemRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// snapshot loads every item in the index.
func (s *Store) snapshot(ctx context.Context) ([]*queue.WorkItem, error) {
	ids, err := s.client.SMembers(ctx, s.keys.Index).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	records, err := s.loadRecords(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]*queue.WorkItem, 0, len(records))
	for _, rec := range records {
		item, err := rec.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
