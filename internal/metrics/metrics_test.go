package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lintfix/internal/metrics"
	"lintfix/internal/queue"
	"lintfix/internal/queue/queuetest"
	"lintfix/internal/testsupport"
)

func TestObserverCounts(t *testing.T) {
	m := metrics.New()
	item := queuetest.NewItem("s", "a.py", 1, "E501", 0)

	m.ItemClaimed("w1", item)
	m.ItemClaimed("w1", item)
	m.ItemReported("w1", item, queue.StatusCompleted, 2*time.Second)
	m.ItemReported("w1", item, queue.StatusPending, time.Second)
	m.StoreError("complete", &queue.UnavailableError{Op: "complete", Err: errors.New("refused")})
	m.StoreError("fail", queue.ErrStaleClaim)
	m.Reclaimed(queue.ReclaimReport{Requeued: 2, Failed: 1})

	body := scrape(t, m)
	for _, want := range []string{
		`lintfix_items_claimed_total{issue_code="E501"} 2`,
		`lintfix_items_reported_total{status="completed"} 1`,
		`lintfix_items_reported_total{status="pending"} 1`,
		`lintfix_store_errors_total{kind="unavailable",op="complete"} 1`,
		`lintfix_store_errors_total{kind="stale_claim",op="fail"} 1`,
		`lintfix_items_reclaimed_total{outcome="requeued"} 2`,
		`lintfix_items_reclaimed_total{outcome="failed"} 1`,
		`lintfix_processing_duration_seconds_count{status="completed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestQueueCollectorReportsDepth(t *testing.T) {
	store := testsupport.MustOpenSQLite(t)
	testsupport.MustEnqueue(t, store, "s1",
		queuetest.NewItem("s1", "a.py", 1, "E501", 0),
		queuetest.NewItem("s1", "a.py", 2, "E501", 0),
	)
	ctx := context.Background()
	claimed, err := store.Claim(ctx, 1, "w1", queue.ClaimFilter{})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("Claim: %v (%d items)", err, len(claimed))
	}

	collector := metrics.NewQueueCollector(store, nil)
	if got := testutil.CollectAndCount(collector, "lintfix_queue_items"); got != len(queue.AllStatuses()) {
		t.Fatalf("expected one series per status, got %d", got)
	}

	m := metrics.New()
	if err := m.Register(collector); err != nil {
		t.Fatalf("Register: %v", err)
	}
	body := scrape(t, m)
	for _, want := range []string{
		`lintfix_queue_items{status="pending"} 1`,
		`lintfix_queue_items{status="claimed"} 1`,
		`lintfix_queue_items{status="failed"} 0`,
		`lintfix_queue_up 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

type brokenStats struct{}

func (brokenStats) Stats(context.Context, string) (queue.Stats, error) {
	return queue.Stats{}, errors.New("database is closed")
}

func TestQueueCollectorMarksDown(t *testing.T) {
	collector := metrics.NewQueueCollector(brokenStats{}, nil)
	expected := `
# HELP lintfix_queue_up Whether the last queue snapshot succeeded.
# TYPE lintfix_queue_up gauge
lintfix_queue_up 0
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "lintfix_queue_up"); err != nil {
		t.Fatalf("unexpected output: %v", err)
	}
}

func TestServerServesMetrics(t *testing.T) {
	m := metrics.New()
	m.ItemClaimed("w1", queuetest.NewItem("s", "a.py", 1, "W291", 0))

	srv, err := metrics.NewServer("127.0.0.1:0", m, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `issue_code="W291"`) {
		t.Fatalf("unexpected response %d:\n%s", resp.StatusCode, data)
	}

	health, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", health.StatusCode)
	}
}

func TestNewServerRequiresBind(t *testing.T) {
	if _, err := metrics.NewServer(" ", metrics.New(), nil); err == nil {
		t.Fatal("expected error for empty bind")
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	return rec.Body.String()
}
