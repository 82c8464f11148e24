package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lintfix/internal/queue"
	"lintfix/internal/worker"
)

const namespace = "lintfix"

// Metrics records worker events. It implements worker.Observer.
type Metrics struct {
	registry *prometheus.Registry

	claimed     *prometheus.CounterVec
	reported    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	reclaimed   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ worker.Observer = (*Metrics)(nil)

// New creates metrics on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		claimed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_claimed_total",
			Help:      "Work items claimed by workers.",
		}, []string{"issue_code"}),
		reported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_reported_total",
			Help:      "Processing attempts reported, by resulting status.",
		}, []string{"status"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Queue store operations that returned an error.",
		}, []string{"op", "kind"}),
		reclaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_reclaimed_total",
			Help:      "Stale claims recovered by the reclaimer, by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time from claim to report for one attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"status"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register adds extra collectors, such as a QueueCollector.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	var errs []error
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ItemClaimed(_ string, item *queue.WorkItem) {
	m.claimed.WithLabelValues(item.IssueCode).Inc()
}

func (m *Metrics) ItemReported(_ string, _ *queue.WorkItem, status queue.Status, elapsed time.Duration) {
	m.reported.WithLabelValues(string(status)).Inc()
	m.duration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) StoreError(op string, err error) {
	kind := "error"
	switch {
	case queue.IsUnavailable(err):
		kind = "unavailable"
	case errors.Is(err, queue.ErrStaleClaim):
		kind = "stale_claim"
	}
	m.storeErrors.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) Reclaimed(report queue.ReclaimReport) {
	if report.Requeued > 0 {
		m.reclaimed.WithLabelValues("requeued").Add(float64(report.Requeued))
	}
	if report.Failed > 0 {
		m.reclaimed.WithLabelValues("failed").Add(float64(report.Failed))
	}
}
