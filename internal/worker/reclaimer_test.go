package worker_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/testsupport"
	"lintfix/internal/worker"
)

func TestNewReclaimerRequiresTimeout(t *testing.T) {
	store := testsupport.MustOpenSQLite(t)
	if _, err := worker.NewReclaimer(store, worker.ReclaimerOptions{}); err == nil {
		t.Fatal("expected error for zero claim timeout")
	}
	if _, err := worker.NewReclaimer(nil, worker.ReclaimerOptions{ClaimTimeout: time.Second}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestReclaimerSweepRecoversAbandonedClaims(t *testing.T) {
	for name, open := range map[string]func(t *testing.T) queue.Store{
		"sqlite": func(t *testing.T) queue.Store { return testsupport.MustOpenSQLite(t) },
		"redis": func(t *testing.T) queue.Store {
			store, _ := testsupport.MustOpenRedis(t)
			return store
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			retry := queuetest.NewItem("s1", "a.py", 1, "F401", 3)
			last := queuetest.NewItem("s1", "b.py", 1, "F401", 1)
			last.MaxRetries = 0
			testsupport.MustEnqueue(t, store, "s1", retry, last)

			claimed, err := store.Claim(ctx, 2, "crashed-worker", queue.ClaimFilter{})
			if err != nil || len(claimed) != 2 {
				t.Fatalf("Claim: %d items, %v", len(claimed), err)
			}

			rec := &recordingObserver{}
			r, err := worker.NewReclaimer(store, worker.ReclaimerOptions{ClaimTimeout: 40 * time.Millisecond, Observer: rec})
			if err != nil {
				t.Fatalf("NewReclaimer: %v", err)
			}
			report, err := r.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			if report.Total() != 0 {
				t.Fatalf("fresh claims should not be reclaimed: %+v", report)
			}

			time.Sleep(60 * time.Millisecond)
			report, err = r.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			if report.Requeued != 1 || report.Failed != 1 {
				t.Fatalf("unexpected report %+v", report)
			}

			got := testsupport.MustGet(t, store, retry.ID)
			if got.Status != queue.StatusPending || got.RetryCount != 1 || got.AssignedWorker != "" {
				t.Fatalf("unexpected requeued item %+v", got)
			}
			if got := testsupport.MustGet(t, store, last.ID); got.Status != queue.StatusFailed || got.LastError != queue.ProcessingTimeoutDetail {
				t.Fatalf("unexpected failed item %+v", got)
			}

			rec.mu.Lock()
			defer rec.mu.Unlock()
			if rec.reclaimed.Requeued != 1 || rec.reclaimed.Failed != 1 {
				t.Fatalf("observer saw %+v", rec.reclaimed)
			}
		})
	}
}

func TestReclaimerReportsSilentWorkers(t *testing.T) {
	store, server := testsupport.MustOpenRedis(t)
	ctx := context.Background()
	if err := store.Heartbeat(ctx, "alive"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	old := time.Now().Add(-time.Hour).UTC().UnixMicro()
	server.HSet(store.Keys().Heartbeats, "gone", strconv.FormatInt(old, 10))

	r, err := worker.NewReclaimer(store, worker.ReclaimerOptions{
		ClaimTimeout:        time.Minute,
		DeadWorkerThreshold: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReclaimer: %v", err)
	}
	silent, err := r.SilentWorkers(ctx)
	if err != nil {
		t.Fatalf("SilentWorkers: %v", err)
	}
	if len(silent) != 1 || silent[0].ID != "gone" {
		t.Fatalf("unexpected silent workers %+v", silent)
	}
	if silent[0].Silence < 59*time.Minute {
		t.Fatalf("unexpected silence %s", silent[0].Silence)
	}
}

func TestReclaimerWithoutHeartbeatsListsNothing(t *testing.T) {
	store := testsupport.MustOpenSQLite(t)
	r, err := worker.NewReclaimer(store, worker.ReclaimerOptions{ClaimTimeout: time.Minute, DeadWorkerThreshold: time.Second})
	if err != nil {
		t.Fatalf("NewReclaimer: %v", err)
	}
	silent, err := r.SilentWorkers(context.Background())
	if err != nil || silent != nil {
		t.Fatalf("expected no silent workers for sqlite, got %v, %v", silent, err)
	}
}

func TestSilentSinceOrdersBySilence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	workers := map[string]time.Time{
		"a": now.Add(-2 * time.Minute),
		"b": now.Add(-10 * time.Second),
		"c": now.Add(-5 * time.Minute),
	}
	silent := worker.SilentSince(workers, now, time.Minute)
	if len(silent) != 2 || silent[0].ID != "c" || silent[1].ID != "a" {
		t.Fatalf("unexpected order %+v", silent)
	}
}

func TestReclaimerRunStopsOnCancel(t *testing.T) {
	store := testsupport.MustOpenSQLite(t)
	rec := &recordingObserver{}
	r, err := worker.NewReclaimer(store, worker.ReclaimerOptions{
		Interval:     10 * time.Millisecond,
		ClaimTimeout: time.Minute,
		Observer:     rec,
	})
	if err != nil {
		t.Fatalf("NewReclaimer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = r.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()
	if runErr != nil {
		t.Fatalf("Run returned %v", runErr)
	}
}
