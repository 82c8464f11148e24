package worker

import (
	"time"

	"lintfix/internal/queue"
)

// Observer receives worker and reclaimer events, typically for metrics.
// Methods are called synchronously from the loop and must not block.
type Observer interface {
	ItemClaimed(workerID string, item *queue.WorkItem)
	ItemReported(workerID string, item *queue.WorkItem, status queue.Status, elapsed time.Duration)
	StoreError(op string, err error)
	Reclaimed(report queue.ReclaimReport)
}

type nopObserver struct{}

func (nopObserver) ItemClaimed(string, *queue.WorkItem) {}

func (nopObserver) ItemReported(string, *queue.WorkItem, queue.Status, time.Duration) {}

func (nopObserver) StoreError(string, error) {}

func (nopObserver) Reclaimed(queue.ReclaimReport) {}
