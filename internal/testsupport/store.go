package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lintfix/internal/queue"
	"lintfix/internal/queue/redisstore"
	"lintfix/internal/queue/sqlitestore"
)

// MustOpenSQLite opens a SQLite queue in a temp directory and registers cleanup.
func MustOpenSQLite(t testing.TB) *sqlitestore.Store {
	t.Helper()

	store, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"), sqlitestore.Options{})
	if err != nil {
		t.Fatalf("sqlitestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRedis starts an in-process Redis server and returns a store on it.
func MustOpenRedis(t testing.TB) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store := redisstore.New(client, redisstore.Options{KeyPrefix: "{lintfix-test}"})
	t.Cleanup(func() {
		store.Close()
	})
	return store, server
}

// MustEnqueue enqueues items under session and fails the test on error.
func MustEnqueue(t testing.TB, store queue.Store, session string, items ...*queue.WorkItem) int {
	t.Helper()

	created, err := store.EnqueueBatch(context.Background(), session, items)
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	return created
}

// MustGet fetches an item and fails the test on error.
func MustGet(t testing.TB, store queue.Store, id string) *queue.WorkItem {
	t.Helper()

	item, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return item
}
