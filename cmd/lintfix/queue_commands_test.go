package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/testsupport"
)

const sampleLint = `src/app.py:10:1: F401 ` + "`sys`" + ` imported but unused
src/app.py:22:89: E501 Line too long (101 > 88)
.venv/lib/site.py:1:1: E501 Line too long (200 > 88)
Found 3 errors.
`

func TestEnqueueAndInspect(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, sampleLint, "enqueue", "--session", "run-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Session run-1")
	requireContains(t, out, "Queued 2 of 3 issues")
	requireContains(t, out, "1 excluded")

	out, _, err = runCLI(t, env.configPath, sampleLint, "enqueue", "--session", "run-1", "--json")
	if err != nil {
		t.Fatalf("enqueue --json: %v", err)
	}
	var summary enqueueSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.Queued != 0 || summary.Duplicates != 2 || summary.Ignored != 1 {
		t.Fatalf("unexpected second summary %+v", summary)
	}

	out, _, err = runCLI(t, env.configPath, "", "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "Total: 2")

	out, _, err = runCLI(t, env.configPath, "", "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var items []itemView
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list %q: %v", out, err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	var f401 itemView
	for _, item := range items {
		if item.IssueCode == "F401" {
			f401 = item
		}
	}
	if f401.Priority != 30 || f401.File != "src/app.py" || f401.Line != 10 || f401.Payload.Linter != "ruff" {
		t.Fatalf("unexpected F401 item %+v", f401)
	}

	out, _, err = runCLI(t, env.configPath, "", "queue", "show", f401.ID)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "src/app.py:10:1")
	requireContains(t, out, "imported but unused")

	if _, _, err := runCLI(t, env.configPath, "", "queue", "show", "99999"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}

	out, _, err = runCLI(t, env.configPath, "", "queue", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("queue list --status failed: %v", err)
	}
	requireContains(t, out, "No matching items")

	if _, _, err := runCLI(t, env.configPath, "", "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestEnqueueFromFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.baseDir + "/lint.txt"
	testsupport.WriteFile(t, path, "a.py:1:1: W291 trailing whitespace\n")

	out, _, err := runCLI(t, env.configPath, "", "enqueue", path)
	if err != nil {
		t.Fatalf("enqueue file: %v", err)
	}
	requireContains(t, out, "Queued 1 of 1 issues")
}

func TestQueueReclaimRetryPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	store := openStore(t, env.cfg)
	ctx := context.Background()

	item := queuetest.NewItem("s1", "a.py", 3, "E501", 0)
	item.MaxRetries = 0
	testsupport.MustEnqueue(t, store, "s1", item)
	claimed, err := store.Claim(ctx, 1, "crashed-worker", queue.ClaimFilter{})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("Claim: %v (%d items)", err, len(claimed))
	}

	out, _, err := runCLI(t, env.configPath, "", "queue", "reclaim", "--timeout", "1ns")
	if err != nil {
		t.Fatalf("queue reclaim: %v", err)
	}
	requireContains(t, out, "Reclaimed 1 stale claims (0 requeued, 1 failed)")

	out, _, err = runCLI(t, env.configPath, "", "queue", "status", "--json")
	if err != nil {
		t.Fatalf("queue status --json: %v", err)
	}
	var stats statsView
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Counts["failed"] != 1 || len(stats.Failures) != 1 || stats.Failures[0].Error != queue.ProcessingTimeoutDetail {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, _, err := runCLI(t, env.configPath, "", "queue", "retry"); err == nil {
		t.Fatal("expected retry without ids to fail")
	}
	out, _, err = runCLI(t, env.configPath, "", "queue", "retry", "--all")
	if err != nil {
		t.Fatalf("queue retry --all: %v", err)
	}
	requireContains(t, out, "Reset 1 failed items")
	if got := testsupport.MustGet(t, store, claimed[0].ID); got.Status != queue.StatusPending || got.RetryCount != 0 {
		t.Fatalf("expected pending item with fresh budget, got %s retries=%d", got.Status, got.RetryCount)
	}

	claimed, err = store.Claim(ctx, 1, "w1", queue.ClaimFilter{})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("second Claim: %v (%d items)", err, len(claimed))
	}
	if err := store.Complete(ctx, claimed[0].Claim(), queue.Succeeded("fixed", 0.9)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	out, _, err = runCLI(t, env.configPath, "", "queue", "prune", "--older-than", "0s")
	if err != nil {
		t.Fatalf("queue prune: %v", err)
	}
	requireContains(t, out, "Pruned 1 items")
}

func TestQueueWorkersRequiresHeartbeats(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env.configPath, "", "queue", "workers")
	if err == nil || !strings.Contains(err.Error(), "does not track worker heartbeats") {
		t.Fatalf("expected heartbeat support error, got %v", err)
	}
}

func TestQueueWorkersRedis(t *testing.T) {
	server := miniredis.RunT(t)
	env := setupCLITestEnv(t, testsupport.WithRedis(server.Addr()))
	store := openStore(t, env.cfg)
	hs, ok := store.(queue.HeartbeatStore)
	if !ok {
		t.Fatal("redis store should track heartbeats")
	}
	if err := hs.Heartbeat(context.Background(), "host-1-abcd"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "", "queue", "workers", "--json")
	if err != nil {
		t.Fatalf("queue workers: %v", err)
	}
	var workers []struct {
		ID     string `json:"id"`
		Silent bool   `json:"silent"`
	}
	if err := json.Unmarshal([]byte(out), &workers); err != nil {
		t.Fatalf("decode workers %q: %v", out, err)
	}
	if len(workers) != 1 || workers[0].ID != "host-1-abcd" || workers[0].Silent {
		t.Fatalf("unexpected workers %+v", workers)
	}
}

func TestQueueHealthSQLite(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, sampleLint, "enqueue", "--session", "run-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "", "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Database path: "+env.cfg.SQLite.Path)
	requireContains(t, out, "Integrity check: yes")
	requireContains(t, out, "work_items table present: yes")
	requireContains(t, out, "Total items: 2")

	out, _, err = runCLI(t, env.configPath, "", "queue", "health", "--json")
	if err != nil {
		t.Fatalf("queue health --json: %v", err)
	}
	var health struct {
		IntegrityCheck bool `json:"integrity_check"`
		TotalItems     int  `json:"total_items"`
	}
	if err := json.Unmarshal([]byte(out), &health); err != nil {
		t.Fatalf("decode health %q: %v", out, err)
	}
	if !health.IntegrityCheck || health.TotalItems != 2 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestQueueHealthRedis(t *testing.T) {
	server := miniredis.RunT(t)
	env := setupCLITestEnv(t, testsupport.WithRedis(server.Addr()))
	store := openStore(t, env.cfg)
	if _, err := store.Enqueue(context.Background(), queuetest.NewItem("s1", "a.py", 1, "E501", 0)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "", "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Key prefix: {lintfix-test}")
	requireContains(t, out, "Redis reachable: yes")
	requireContains(t, out, "Total items: 1")
}
