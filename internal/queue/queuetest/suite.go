// Package queuetest holds the behavioural suite every queue.Store backend
// must pass. Backend tests call Run with a factory returning a fresh, empty
// store per subtest.
package queuetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lintfix/internal/queue"
)

// Factory opens an empty store. It should register its own cleanup.
type Factory func(t *testing.T) queue.Store

// Run executes the full suite against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(*testing.T, queue.Store)
	}{
		{"EnqueueRoundTrip", testEnqueueRoundTrip},
		{"EnqueueUniqueness", testEnqueueUniqueness},
		{"EnqueueBatch", testEnqueueBatch},
		{"EnqueueRejectsInvalid", testEnqueueRejectsInvalid},
		{"PriorityOrdering", testPriorityOrdering},
		{"MutualExclusion", testMutualExclusion},
		{"ClaimFilter", testClaimFilter},
		{"ClaimEmpty", testClaimEmpty},
		{"RetryBound", testRetryBound},
		{"StaleReclamation", testStaleReclamation},
		{"ReclaimExhausted", testReclaimExhausted},
		{"DoubleCompletion", testDoubleCompletion},
		{"StaleClaimAfterReclaim", testStaleClaimAfterReclaim},
		{"CompleteUnknownItem", testCompleteUnknownItem},
		{"Skipped", testSkipped},
		{"StatsIdempotent", testStatsIdempotent},
		{"StatsSessionScope", testStatsSessionScope},
		{"ReenqueueAfterTerminal", testReenqueueAfterTerminal},
		{"RetryFailed", testRetryFailed},
		{"Prune", testPrune},
		{"List", testList},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, factory(t))
		})
	}
}

// NewItem builds a valid pending item for session at file:line.
func NewItem(session, file string, line int, code string, priority int) *queue.WorkItem {
	return &queue.WorkItem{
		SessionID:  session,
		Location:   queue.Location{FilePath: file, Line: line, Column: 1},
		IssueCode:  code,
		Priority:   priority,
		MaxRetries: queue.DefaultMaxRetries,
		Payload: queue.Payload{
			Message:  fmt.Sprintf("%s at %s:%d", code, file, line),
			Linter:   "ruff",
			Metadata: map[string]string{"rule": code},
		},
	}
}

func mustEnqueue(t *testing.T, store queue.Store, item *queue.WorkItem) {
	t.Helper()
	created, err := store.Enqueue(context.Background(), item)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !created {
		t.Fatalf("Enqueue %s: expected new item", item.Location)
	}
}

func mustClaimOne(t *testing.T, store queue.Store, worker string) *queue.WorkItem {
	t.Helper()
	items, err := store.Claim(context.Background(), 1, worker, queue.ClaimFilter{})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Claim: expected 1 item, got %d", len(items))
	}
	return items[0]
}

func mustGet(t *testing.T, store queue.Store, id string) *queue.WorkItem {
	t.Helper()
	item, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return item
}

func testEnqueueRoundTrip(t *testing.T, store queue.Store) {
	ctx := context.Background()
	item := NewItem("s1", "pkg/a.py", 10, "E501", 5)
	item.Location.Column = 80
	mustEnqueue(t, store, item)
	if item.ID == "" {
		t.Fatal("expected Enqueue to assign an id")
	}

	got := mustGet(t, store, item.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.SessionID != "s1" || got.Location != item.Location || got.IssueCode != "E501" || got.Priority != 5 {
		t.Fatalf("identity fields did not round trip: %#v", got)
	}
	if got.Payload.SchemaVersion != queue.PayloadSchemaVersion || got.Payload.Message != item.Payload.Message {
		t.Fatalf("payload did not round trip: %#v", got.Payload)
	}
	if got.Payload.Metadata["rule"] != "E501" {
		t.Fatalf("payload metadata lost: %#v", got.Payload.Metadata)
	}
	if got.MaxRetries != queue.DefaultMaxRetries || got.RetryCount != 0 {
		t.Fatalf("unexpected retry fields %d/%d", got.RetryCount, got.MaxRetries)
	}
	if got.CreatedAt.IsZero() || got.AssignedWorker != "" || got.ClaimedAt != nil || got.ClaimToken != "" {
		t.Fatalf("unexpected claim state on pending item: %#v", got)
	}

	claimed := mustClaimOne(t, store, "w1")
	result := queue.Succeeded("rewrote line", 0.87)
	if err := store.Complete(ctx, claimed.Claim(), result); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	done := mustGet(t, store, item.ID)
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Result == nil || !done.Result.Success || done.Result.Detail != "rewrote line" {
		t.Fatalf("unexpected result %#v", done.Result)
	}
	if done.Result.Confidence == nil || *done.Result.Confidence != 0.87 {
		t.Fatalf("confidence did not round trip: %#v", done.Result.Confidence)
	}
	if done.AssignedWorker != "" || done.ClaimedAt != nil || done.ClaimToken != "" {
		t.Fatalf("claim fields must be cleared on completion: %#v", done)
	}
	if !done.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("created_at changed: %v != %v", done.CreatedAt, got.CreatedAt)
	}

	if _, err := store.Get(ctx, "does-not-exist"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testEnqueueUniqueness(t *testing.T, store queue.Store) {
	ctx := context.Background()
	first := NewItem("s1", "a.py", 1, "E501", 0)
	mustEnqueue(t, store, first)

	dup := NewItem("s1", "a.py", 1, "E501", 9)
	created, err := store.Enqueue(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate Enqueue: %v", err)
	}
	if created {
		t.Fatal("duplicate identity must not create a record")
	}

	// Claimed items still hold their identity.
	mustClaimOne(t, store, "w1")
	created, err = store.Enqueue(ctx, NewItem("s1", "a.py", 1, "E501", 0))
	if err != nil {
		t.Fatalf("Enqueue while claimed: %v", err)
	}
	if created {
		t.Fatal("claimed item must block a duplicate enqueue")
	}

	for _, variant := range []*queue.WorkItem{
		NewItem("s2", "a.py", 1, "E501", 0),
		NewItem("s1", "b.py", 1, "E501", 0),
		NewItem("s1", "a.py", 2, "E501", 0),
		NewItem("s1", "a.py", 1, "W291", 0),
	} {
		mustEnqueue(t, store, variant)
	}

	stats, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 5 {
		t.Fatalf("expected 5 items, got %d", stats.Total)
	}
}

func testEnqueueBatch(t *testing.T, store queue.Store) {
	ctx := context.Background()
	items := []*queue.WorkItem{
		NewItem("", "a.py", 1, "E501", 0),
		NewItem("", "a.py", 2, "E501", 0),
		NewItem("", "a.py", 1, "E501", 0),
	}
	created, err := store.EnqueueBatch(ctx, "batch", items)
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 new items, got %d", created)
	}
	again, err := store.EnqueueBatch(ctx, "batch", []*queue.WorkItem{NewItem("", "a.py", 2, "E501", 0)})
	if err != nil {
		t.Fatalf("EnqueueBatch repeat: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected repeat batch to be a no-op, got %d", again)
	}
	stats, err := store.Stats(ctx, "batch")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count(queue.StatusPending) != 2 {
		t.Fatalf("expected 2 pending in batch session, got %d", stats.Count(queue.StatusPending))
	}
}

func testEnqueueRejectsInvalid(t *testing.T, store queue.Store) {
	item := NewItem("s1", "", 1, "E501", 0)
	if _, err := store.Enqueue(context.Background(), item); !errors.Is(err, queue.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
}

func testPriorityOrdering(t *testing.T, store queue.Store) {
	ctx := context.Background()
	first := NewItem("s1", "a.py", 1, "E501", 5)
	second := NewItem("s1", "a.py", 2, "E501", 8)
	third := NewItem("s1", "a.py", 3, "E501", 5)
	for _, item := range []*queue.WorkItem{first, second, third} {
		mustEnqueue(t, store, item)
		// Distinct created_at values at microsecond precision.
		time.Sleep(2 * time.Millisecond)
	}

	var order []string
	for i := 0; i < 3; i++ {
		order = append(order, mustClaimOne(t, store, "w1").ID)
	}
	want := []string{second.ID, first.ID, third.ID}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("claim order %v, want %v", order, want)
		}
	}

	batch, err := store.Claim(ctx, 5, "w1", queue.ClaimFilter{})
	if err != nil {
		t.Fatalf("Claim on drained queue: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty claim, got %d", len(batch))
	}
}

func testMutualExclusion(t *testing.T, store queue.Store) {
	ctx := context.Background()
	const total = 40
	for i := 0; i < total; i++ {
		mustEnqueue(t, store, NewItem("s1", "a.py", i+1, "E501", i%4))
	}

	const workers = 8
	var (
		mu      sync.Mutex
		owners  = make(map[string]string, total)
		wg      sync.WaitGroup
		errs    = make(chan error, workers)
		claimed int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		workerID := fmt.Sprintf("w%d", w)
		go func() {
			defer wg.Done()
			for {
				items, err := store.Claim(ctx, 3, workerID, queue.ClaimFilter{})
				if err != nil {
					errs <- err
					return
				}
				if len(items) == 0 {
					return
				}
				mu.Lock()
				for _, item := range items {
					if prev, ok := owners[item.ID]; ok {
						mu.Unlock()
						errs <- fmt.Errorf("item %s claimed by %s and %s", item.ID, prev, workerID)
						return
					}
					owners[item.ID] = workerID
					claimed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if claimed != total {
		t.Fatalf("expected %d claims, got %d", total, claimed)
	}

	for id, worker := range owners {
		item := mustGet(t, store, id)
		if item.Status != queue.StatusClaimed || item.AssignedWorker != worker || item.ClaimedAt == nil || item.ClaimToken == "" {
			t.Fatalf("item %s has inconsistent claim state: %#v", id, item)
		}
	}
}

func testClaimFilter(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 9))
	mustEnqueue(t, store, NewItem("s1", "a.py", 2, "W291", 1))
	mustEnqueue(t, store, NewItem("s1", "a.py", 3, "F401", 5))

	items, err := store.Claim(ctx, 10, "w1", queue.ClaimFilter{IssueCodes: []string{"W291", "F401"}})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 filtered items, got %d", len(items))
	}
	if items[0].IssueCode != "F401" || items[1].IssueCode != "W291" {
		t.Fatalf("filtered claim out of priority order: %s, %s", items[0].IssueCode, items[1].IssueCode)
	}

	rest := mustClaimOne(t, store, "w2")
	if rest.IssueCode != "E501" {
		t.Fatalf("expected remaining E501, got %s", rest.IssueCode)
	}
}

func testClaimEmpty(t *testing.T, store queue.Store) {
	items, err := store.Claim(context.Background(), 4, "w1", queue.ClaimFilter{})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	items, err = store.Claim(context.Background(), 0, "w1", queue.ClaimFilter{})
	if err != nil || len(items) != 0 {
		t.Fatalf("zero limit: items=%d err=%v", len(items), err)
	}
}

func testRetryBound(t *testing.T, store queue.Store) {
	ctx := context.Background()
	item := NewItem("s1", "a.py", 1, "E501", 10)
	item.MaxRetries = 3
	mustEnqueue(t, store, item)

	for attempt := 1; attempt <= 3; attempt++ {
		claimed := mustClaimOne(t, store, "w1")
		status, err := store.Fail(ctx, claimed.Claim(), fmt.Sprintf("attempt %d", attempt))
		if err != nil {
			t.Fatalf("Fail %d: %v", attempt, err)
		}
		if status != queue.StatusPending {
			t.Fatalf("attempt %d: expected pending, got %s", attempt, status)
		}
		got := mustGet(t, store, item.ID)
		if got.RetryCount != attempt || got.Priority != 10-attempt {
			t.Fatalf("attempt %d: retry=%d priority=%d", attempt, got.RetryCount, got.Priority)
		}
		if got.AssignedWorker != "" || got.ClaimedAt != nil || got.ClaimToken != "" {
			t.Fatalf("attempt %d: claim fields not cleared", attempt)
		}
		if got.LastError != fmt.Sprintf("attempt %d", attempt) {
			t.Fatalf("attempt %d: last error %q", attempt, got.LastError)
		}
	}

	claimed := mustClaimOne(t, store, "w1")
	status, err := store.Fail(ctx, claimed.Claim(), "final")
	if err != nil {
		t.Fatalf("final Fail: %v", err)
	}
	if status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	got := mustGet(t, store, item.ID)
	if got.Status != queue.StatusFailed || got.RetryCount != 3 {
		t.Fatalf("unexpected terminal state status=%s retry=%d", got.Status, got.RetryCount)
	}
	if got.Result == nil || got.Result.Success || got.Result.Detail != "final" {
		t.Fatalf("unexpected terminal result %#v", got.Result)
	}

	stats, err := store.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count(queue.StatusFailed) != 1 || len(stats.Failures) != 1 || stats.Failures[0].Error != "final" {
		t.Fatalf("failure not surfaced in stats: %#v", stats)
	}
}

func testStaleReclamation(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	mustEnqueue(t, store, NewItem("s1", "a.py", 2, "E501", 0))
	stale := mustClaimOne(t, store, "w1")

	time.Sleep(60 * time.Millisecond)
	fresh := mustClaimOne(t, store, "w2")

	report, err := store.ReclaimStale(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if report.Requeued != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %#v", report)
	}

	got := mustGet(t, store, stale.ID)
	if got.Status != queue.StatusPending || got.RetryCount != 1 || got.LastError != queue.ProcessingTimeoutDetail {
		t.Fatalf("stale item not requeued: %#v", got)
	}
	if got.AssignedWorker != "" || got.ClaimedAt != nil {
		t.Fatalf("stale claim fields not cleared: %#v", got)
	}
	if held := mustGet(t, store, fresh.ID); held.Status != queue.StatusClaimed || held.AssignedWorker != "w2" {
		t.Fatalf("fresh claim must be untouched: %#v", held)
	}

	again, err := store.ReclaimStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReclaimStale second pass: %v", err)
	}
	if again.Total() != 0 {
		t.Fatalf("expected nothing to reclaim, got %#v", again)
	}
}

func testReclaimExhausted(t *testing.T, store queue.Store) {
	ctx := context.Background()
	item := NewItem("s1", "a.py", 1, "E501", 0)
	item.MaxRetries = 0
	mustEnqueue(t, store, item)
	mustClaimOne(t, store, "w1")
	time.Sleep(20 * time.Millisecond)

	report, err := store.ReclaimStale(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one terminal failure, got %#v", report)
	}
	got := mustGet(t, store, item.ID)
	if got.Status != queue.StatusFailed || got.Result == nil || got.Result.Detail != queue.ProcessingTimeoutDetail {
		t.Fatalf("unexpected state after exhausted reclaim: %#v", got)
	}
}

func testDoubleCompletion(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	claimed := mustClaimOne(t, store, "w1")

	if err := store.Complete(ctx, claimed.Claim(), queue.Succeeded("first", 0.9)); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	before, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	err = store.Complete(ctx, claimed.Claim(), queue.Failed("second"))
	if !errors.Is(err, queue.ErrStaleClaim) {
		t.Fatalf("expected ErrStaleClaim on second completion, got %v", err)
	}
	if _, err := store.Fail(ctx, claimed.Claim(), "late failure"); !errors.Is(err, queue.ErrStaleClaim) {
		t.Fatalf("expected ErrStaleClaim on late failure, got %v", err)
	}

	got := mustGet(t, store, claimed.ID)
	if got.Status != queue.StatusCompleted || got.Result == nil || got.Result.Detail != "first" {
		t.Fatalf("second report changed state: %#v", got)
	}
	after, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if after.Count(queue.StatusCompleted) != before.Count(queue.StatusCompleted) || after.Total != before.Total {
		t.Fatalf("stats changed after rejected report: %#v vs %#v", before, after)
	}
}

func testStaleClaimAfterReclaim(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	first := mustClaimOne(t, store, "w1")
	time.Sleep(20 * time.Millisecond)
	if _, err := store.ReclaimStale(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}

	second := mustClaimOne(t, store, "w2")
	if second.ID != first.ID {
		t.Fatalf("expected reclaimed item to be reclaimed, got %s", second.ID)
	}
	if second.ClaimToken == first.ClaimToken {
		t.Fatal("a new claim must mint a new token")
	}

	if err := store.Complete(ctx, first.Claim(), queue.Succeeded("late", 1)); !errors.Is(err, queue.ErrStaleClaim) {
		t.Fatalf("expected ErrStaleClaim for the original worker, got %v", err)
	}
	// Same worker id, outdated token.
	reused := queue.Claim{ItemID: second.ID, WorkerID: "w2", Token: first.ClaimToken}
	if _, err := store.Fail(ctx, reused, "x"); !errors.Is(err, queue.ErrStaleClaim) {
		t.Fatalf("expected ErrStaleClaim for an outdated token, got %v", err)
	}
	if err := store.Complete(ctx, second.Claim(), queue.Succeeded("ok", 1)); err != nil {
		t.Fatalf("Complete current claim: %v", err)
	}
}

func testCompleteUnknownItem(t *testing.T, store queue.Store) {
	claim := queue.Claim{ItemID: "424242", WorkerID: "w1", Token: "t"}
	if err := store.Complete(context.Background(), claim, queue.Succeeded("", 1)); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Fail(context.Background(), claim, "x"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSkipped(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	claimed := mustClaimOne(t, store, "w1")
	if err := store.Complete(ctx, claimed.Claim(), queue.Skip("generated file")); err != nil {
		t.Fatalf("Complete skipped: %v", err)
	}
	got := mustGet(t, store, claimed.ID)
	if got.Status != queue.StatusSkipped || got.Result == nil || !got.Result.Skipped {
		t.Fatalf("expected skipped, got %#v", got)
	}
	stats, err := store.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count(queue.StatusSkipped) != 1 || stats.Count(queue.StatusCompleted) != 0 {
		t.Fatalf("unexpected counts %#v", stats.Counts)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("skipped items must not count toward success rate, got %v", stats.SuccessRate)
	}
}

func testStatsIdempotent(t *testing.T, store queue.Store) {
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		mustEnqueue(t, store, NewItem("s1", "a.py", i, "E501", 0))
	}
	a := mustClaimOne(t, store, "w1")
	b := mustClaimOne(t, store, "w1")
	if err := store.Complete(ctx, a.Claim(), queue.Succeeded("ok", 0.8)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := store.Complete(ctx, b.Claim(), queue.Result{Success: false, Detail: "no fix", Confidence: floatPtr(0.4)}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	first, err := store.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	second, err := store.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("stats not idempotent:\n%v\n%v", first, second)
	}
	if first.Total != 4 || first.Count(queue.StatusPending) != 2 || first.Count(queue.StatusCompleted) != 2 {
		t.Fatalf("unexpected counts %#v", first.Counts)
	}
	if first.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", first.SuccessRate)
	}
	if first.ConfidenceSamples != 2 || first.AverageConfidence < 0.599 || first.AverageConfidence > 0.601 {
		t.Fatalf("unexpected confidence %v over %d", first.AverageConfidence, first.ConfidenceSamples)
	}
	if got := mustGet(t, store, a.ID); got.Status != queue.StatusCompleted {
		t.Fatalf("stats mutated state: %s", got.Status)
	}
}

func testStatsSessionScope(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	mustEnqueue(t, store, NewItem("s2", "a.py", 1, "E501", 0))
	mustEnqueue(t, store, NewItem("s2", "a.py", 2, "E501", 0))

	s2, err := store.Stats(ctx, "s2")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s2.Total != 2 || s2.SessionID != "s2" {
		t.Fatalf("unexpected session stats %#v", s2)
	}
	all, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 items overall, got %d", all.Total)
	}
}

func testReenqueueAfterTerminal(t *testing.T, store queue.Store) {
	ctx := context.Background()
	original := NewItem("s1", "a.py", 1, "E501", 0)
	mustEnqueue(t, store, original)
	claimed := mustClaimOne(t, store, "w1")
	if err := store.Complete(ctx, claimed.Claim(), queue.Succeeded("ok", 1)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	again := NewItem("s1", "a.py", 1, "E501", 0)
	mustEnqueue(t, store, again)
	if again.ID == original.ID {
		t.Fatal("re-enqueue after a terminal state must create a new item")
	}
	if got := mustGet(t, store, original.ID); got.Status != queue.StatusCompleted {
		t.Fatalf("terminal item changed: %s", got.Status)
	}
}

func testRetryFailed(t *testing.T, store queue.Store) {
	ctx := context.Background()
	failOnce := func(session string, line int) *queue.WorkItem {
		item := NewItem(session, "a.py", line, "E501", 3)
		item.MaxRetries = 0
		mustEnqueue(t, store, item)
		claimed := mustClaimOne(t, store, "w1")
		status, err := store.Fail(ctx, claimed.Claim(), "boom")
		if err != nil || status != queue.StatusFailed {
			t.Fatalf("Fail: status=%s err=%v", status, err)
		}
		return item
	}
	a := failOnce("s1", 1)
	b := failOnce("s1", 2)

	n, err := store.RetryFailed(ctx, a.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset, got %d", n)
	}
	got := mustGet(t, store, a.ID)
	if got.Status != queue.StatusPending || got.RetryCount != 0 || got.Result != nil {
		t.Fatalf("unexpected reset state %#v", got)
	}
	if still := mustGet(t, store, b.ID); still.Status != queue.StatusFailed {
		t.Fatalf("untargeted item changed: %s", still.Status)
	}

	// A fresh item holding b's identity blocks b's reset.
	mustEnqueue(t, store, NewItem("s1", "a.py", 2, "E501", 0))
	n, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected reset to be skipped for occupied identity, got %d", n)
	}
	if still := mustGet(t, store, b.ID); still.Status != queue.StatusFailed {
		t.Fatalf("occupied identity must stay failed: %s", still.Status)
	}

	claimed := mustClaimOne(t, store, "w2")
	if claimed.ID != a.ID {
		t.Fatalf("expected reset item (priority 3) first, got %s", claimed.ID)
	}
}

func testPrune(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 1))
	mustEnqueue(t, store, NewItem("s1", "a.py", 2, "E501", 0))
	done := mustClaimOne(t, store, "w1")
	if err := store.Complete(ctx, done.Claim(), queue.Succeeded("ok", 1)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if n, err := store.Prune(ctx, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("Prune with old cutoff: n=%d err=%v", n, err)
	}
	time.Sleep(5 * time.Millisecond)
	n, err := store.Prune(ctx, time.Now())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned item, got %d", n)
	}
	if _, err := store.Get(ctx, done.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected pruned item to be gone, got %v", err)
	}
	stats, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.Count(queue.StatusPending) != 1 {
		t.Fatalf("pending item must survive prune: %#v", stats.Counts)
	}
}

func testList(t *testing.T, store queue.Store) {
	ctx := context.Background()
	mustEnqueue(t, store, NewItem("s1", "a.py", 1, "E501", 0))
	mustEnqueue(t, store, NewItem("s1", "a.py", 2, "E501", 0))
	mustEnqueue(t, store, NewItem("s2", "a.py", 1, "E501", 0))
	mustClaimOne(t, store, "w1")

	all, err := store.List(ctx, queue.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}

	pending, err := store.List(ctx, queue.ListFilter{Statuses: []queue.Status{queue.StatusPending}})
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	s2, err := store.List(ctx, queue.ListFilter{SessionID: "s2"})
	if err != nil {
		t.Fatalf("List session: %v", err)
	}
	if len(s2) != 1 || s2[0].SessionID != "s2" {
		t.Fatalf("unexpected session listing %#v", s2)
	}

	limited, err := store.List(ctx, queue.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatalf("List must return items oldest first: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func floatPtr(v float64) *float64 { return &v }
