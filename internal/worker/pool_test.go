package worker_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/testsupport"
	"lintfix/internal/worker"
)

func TestPoolProcessesEachItemOnce(t *testing.T) {
	store, _ := testsupport.MustOpenRedis(t)
	const total = 30
	items := make([]*queue.WorkItem, 0, total)
	for i := 0; i < total; i++ {
		items = append(items, queuetest.NewItem("s1", "pkg/mod.py", i+1, "F401", i%4))
	}
	testsupport.MustEnqueue(t, store, "s1", items...)

	var mu sync.Mutex
	byItem := map[string]int{}
	byWorker := map[string]int{}
	proc := worker.ProcessorFunc(func(ctx context.Context, item *queue.WorkItem) queue.Result {
		mu.Lock()
		byItem[item.ID]++
		byWorker[item.AssignedWorker]++
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return queue.Succeeded("ok", 0.5)
	})

	reclaimer, err := worker.NewReclaimer(store, worker.ReclaimerOptions{Interval: 20 * time.Millisecond, ClaimTimeout: time.Minute})
	if err != nil {
		t.Fatalf("NewReclaimer: %v", err)
	}
	pool, err := worker.NewPool(store, proc, worker.PoolOptions{
		Concurrency: 4,
		Worker:      fastOptions("pool"),
		Reclaimer:   reclaimer,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if len(pool.Workers()) != 4 {
		t.Fatalf("expected 4 workers, got %d", len(pool.Workers()))
	}
	for i, w := range pool.Workers() {
		if want := fmt.Sprintf("pool-%d", i+1); w.ID() != want {
			t.Fatalf("worker %d id %q, want %q", i, w.ID(), want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, 10*time.Second, func() bool { return countStatus(t, store, queue.StatusCompleted) == total })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pool.Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(byItem) != total {
		t.Fatalf("expected %d distinct items, got %d", total, len(byItem))
	}
	for id, n := range byItem {
		if n != 1 {
			t.Fatalf("item %s processed %d times", id, n)
		}
	}
	for id := range byWorker {
		if !strings.HasPrefix(id, "pool-") {
			t.Fatalf("unexpected worker id %q", id)
		}
	}
}

func TestSingleWorkerPoolKeepsBaseID(t *testing.T) {
	store := testsupport.MustOpenSQLite(t)
	pool, err := worker.NewPool(store, worker.ProcessorFunc(func(context.Context, *queue.WorkItem) queue.Result {
		return queue.Succeeded("ok", 1)
	}), worker.PoolOptions{Worker: worker.Options{ID: "solo"}})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if ws := pool.Workers(); len(ws) != 1 || ws[0].ID() != "solo" {
		t.Fatalf("unexpected workers %v", ws)
	}
}
