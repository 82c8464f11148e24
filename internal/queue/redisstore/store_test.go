package redisstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/queue/redisstore"
)

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(client, redisstore.Options{})
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStoreContract(t *testing.T) {
	queuetest.Run(t, func(t *testing.T) queue.Store {
		store, _ := newStore(t)
		return store
	})
}

func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	item := queuetest.NewItem("s1", "a.py", 1, "E501", 2)
	if created, err := store.Enqueue(ctx, item); err != nil || !created {
		t.Fatalf("Enqueue: created=%v err=%v", created, err)
	}
	keys := store.Keys()

	if !mr.Exists(keys.Item(item.ID)) {
		t.Fatalf("expected item hash %s", keys.Item(item.ID))
	}
	if got := mr.HGet(keys.Identity, item.Identity().String()); got != item.ID {
		t.Fatalf("identity hash holds %q, want %q", got, item.ID)
	}
	if ok, _ := mr.SIsMember(keys.Index, item.ID); !ok {
		t.Fatal("item missing from index")
	}
	members, err := mr.ZMembers(keys.Pending)
	if err != nil || len(members) != 1 || members[0] != item.ID {
		t.Fatalf("unexpected pending members %v err=%v", members, err)
	}

	claimed, err := store.Claim(ctx, 1, "w1", queue.ClaimFilter{})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("Claim: %d err=%v", len(claimed), err)
	}
	if got := mr.HGet(keys.Claimed, item.ID); got != "w1" {
		t.Fatalf("claimed hash holds %q", got)
	}
	if mr.Exists(keys.Pending) {
		if members, _ := mr.ZMembers(keys.Pending); len(members) != 0 {
			t.Fatalf("pending should be empty, got %v", members)
		}
	}

	if err := store.Complete(ctx, claimed[0].Claim(), queue.Succeeded("ok", 1)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := mr.HGet(keys.Completed, item.ID); got == "" {
		t.Fatal("expected result in completed hash")
	}
	if got := mr.HGet(keys.Identity, item.Identity().String()); got != "" {
		t.Fatalf("identity must be released on completion, got %q", got)
	}
	if got := mr.HGet(keys.Claimed, item.ID); got != "" {
		t.Fatalf("claimed entry must be removed, got %q", got)
	}
}

func TestCustomPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := redisstore.New(client, redisstore.Options{KeyPrefix: "{a}"})
	b := redisstore.New(client, redisstore.Options{KeyPrefix: "{b}"})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := a.Enqueue(ctx, queuetest.NewItem("s1", "a.py", 1, "E501", 0)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	items, err := b.Claim(ctx, 1, "w1", queue.ClaimFilter{})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(items) != 0 {
		t.Fatal("queues with different prefixes must be isolated")
	}
}

func TestKeysForPrefixAddsHashTag(t *testing.T) {
	cases := map[string]string{
		"plain":       "{plain}",
		"{tagged}":    "{tagged}",
		"app:{q1}:v2": "app:{q1}:v2",
		"{}empty":     "{{}empty}",
		"":            redisstore.DefaultKeyPrefix,
	}
	for in, want := range cases {
		keys := redisstore.KeysForPrefix(in)
		if keys.Prefix != want {
			t.Fatalf("KeysForPrefix(%q).Prefix = %q, want %q", in, keys.Prefix, want)
		}
		if keys.Pending != want+":pending" {
			t.Fatalf("KeysForPrefix(%q).Pending = %q", in, keys.Pending)
		}
		if keys.Item("x") != want+":item:x" {
			t.Fatalf("KeysForPrefix(%q).Item = %q", in, keys.Item("x"))
		}
	}
}

func TestClaimReturnsStoredClaim(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	first := queuetest.NewItem("s1", "a.py", 1, "E501", 5)
	second := queuetest.NewItem("s1", "b.py", 2, "E302", 1)
	for _, item := range []*queue.WorkItem{first, second} {
		if _, err := store.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	claimed, err := store.Claim(ctx, 5, "w1", queue.ClaimFilter{})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != 2 || claimed[0].ID != first.ID || claimed[1].ID != second.ID {
		t.Fatalf("unexpected claim order %+v", claimed)
	}
	keys := store.Keys()
	for _, item := range claimed {
		if item.Status != queue.StatusClaimed || item.AssignedWorker != "w1" {
			t.Fatalf("item %s returned as %s by %q", item.ID, item.Status, item.AssignedWorker)
		}
		if item.ClaimToken == "" || item.ClaimedAt == nil {
			t.Fatalf("item %s missing claim token or time", item.ID)
		}
		if got := mr.HGet(keys.Item(item.ID), "token"); got != item.ClaimToken {
			t.Fatalf("stored token %q, returned %q", got, item.ClaimToken)
		}
		if got := mr.HGet(keys.Item(item.ID), "worker"); got != "w1" {
			t.Fatalf("stored worker %q", got)
		}
	}
	if err := store.Complete(ctx, claimed[1].Claim(), queue.Succeeded("ok", 1)); err != nil {
		t.Fatalf("returned claim must be current: %v", err)
	}
}

func TestHeartbeats(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	before := time.Now().Add(-time.Second)
	if err := store.Heartbeat(ctx, "w1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := store.Heartbeat(ctx, "w2"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	workers, err := store.Workers(ctx)
	if err != nil {
		t.Fatalf("Workers: %v", err)
	}
	if len(workers) != 2 || workers["w1"].Before(before) {
		t.Fatalf("unexpected workers %v", workers)
	}
	if err := store.ForgetWorker(ctx, "w1"); err != nil {
		t.Fatalf("ForgetWorker: %v", err)
	}
	workers, err = store.Workers(ctx)
	if err != nil {
		t.Fatalf("Workers: %v", err)
	}
	if _, ok := workers["w1"]; ok {
		t.Fatal("forgotten worker still listed")
	}
}

func TestUnavailableWhenServerGone(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()
	_, err := store.Claim(context.Background(), 1, "w1", queue.ClaimFilter{})
	if err == nil {
		t.Fatal("expected an error with the server stopped")
	}
	if !queue.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	var unavailable *queue.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *queue.UnavailableError, got %T", err)
	}
}
