package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lintfix/internal/logging"
	"lintfix/internal/queue"
)

const collectTimeout = 5 * time.Second

// StatsReader is the slice of queue.Store read at scrape time.
type StatsReader interface {
	Stats(ctx context.Context, sessionID string) (queue.Stats, error)
}

// QueueCollector reports queue depth by status from a store snapshot taken
// on every scrape.
type QueueCollector struct {
	store  StatsReader
	logger *slog.Logger

	items       *prometheus.Desc
	successRate *prometheus.Desc
	confidence  *prometheus.Desc
	up          *prometheus.Desc
}

// NewQueueCollector builds a collector over store.
func NewQueueCollector(store StatsReader, logger *slog.Logger) *QueueCollector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QueueCollector{
		store:  store,
		logger: logger,
		items: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "items"),
			"Work items currently in the queue, by status.",
			[]string{"status"}, nil,
		),
		successRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "success_rate"),
			"Share of completed items whose result reported success.",
			nil, nil,
		),
		confidence: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "average_confidence"),
			"Average reported confidence over terminal items.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "up"),
			"Whether the last queue snapshot succeeded.",
			nil, nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.items
	ch <- c.successRate
	ch <- c.confidence
	ch <- c.up
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.store.Stats(ctx, "")
	if err != nil {
		logging.WarnWithContext(c.logger, "queue snapshot failed", "metrics_collect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store connectivity"),
		)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for _, status := range queue.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(stats.Count(status)), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, stats.SuccessRate)
	if stats.ConfidenceSamples > 0 {
		ch <- prometheus.MustNewConstMetric(c.confidence, prometheus.GaugeValue, stats.AverageConfidence)
	}
}
