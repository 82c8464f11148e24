package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lintfix/internal/logging"
	"lintfix/internal/queue"
)

const defaultReclaimInterval = time.Minute

// ReclaimerOptions configures a Reclaimer.
type ReclaimerOptions struct {
	// Interval between sweeps in Run.
	Interval time.Duration
	// ClaimTimeout is the claim age after which an item counts as abandoned.
	ClaimTimeout time.Duration
	// DeadWorkerThreshold reports workers whose last heartbeat is older.
	// Zero disables the check. The check only logs.
	DeadWorkerThreshold time.Duration
	Logger              *slog.Logger
	Observer            Observer
}

// Reclaimer periodically returns stale claims to the queue. It can run in
// any process, not only alongside the workers whose claims it recovers.
type Reclaimer struct {
	store    queue.Store
	opts     ReclaimerOptions
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	reported map[string]time.Time
}

// SilentWorker is a worker whose heartbeat is older than the threshold.
type SilentWorker struct {
	ID       string
	LastSeen time.Time
	Silence  time.Duration
}

// NewReclaimer validates options and returns a Reclaimer.
func NewReclaimer(store queue.Store, opts ReclaimerOptions) (*Reclaimer, error) {
	if store == nil {
		return nil, errors.New("reclaimer: store is required")
	}
	if opts.ClaimTimeout <= 0 {
		return nil, errors.New("reclaimer: claim timeout must be positive")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultReclaimInterval
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reclaimer{
		store:    store,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "reclaimer"),
		observer: observer,
		reported: make(map[string]time.Time),
	}, nil
}

// Sweep reclaims stale claims once and reports silent workers.
func (r *Reclaimer) Sweep(ctx context.Context) (queue.ReclaimReport, error) {
	report, err := r.store.ReclaimStale(ctx, r.opts.ClaimTimeout)
	if err != nil {
		r.observer.StoreError("reclaim", err)
		return report, err
	}
	r.observer.Reclaimed(report)
	if report.Total() > 0 {
		r.logger.Info("reclaimed stale claims",
			logging.Int("requeued", report.Requeued),
			logging.Int("failed", report.Failed),
			logging.Duration("claim_timeout", r.opts.ClaimTimeout),
		)
	}

	silent, err := r.SilentWorkers(ctx)
	if err != nil {
		logging.WarnWithContext(r.logger, "list worker heartbeats failed", "heartbeat_list_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "silent workers are not reported this sweep"),
		)
		return report, nil
	}
	r.reportSilent(silent)
	return report, nil
}

// SilentWorkers lists workers whose last heartbeat is older than
// DeadWorkerThreshold, most silent first. Stores without heartbeats return nil.
func (r *Reclaimer) SilentWorkers(ctx context.Context) ([]SilentWorker, error) {
	hs, ok := r.store.(queue.HeartbeatStore)
	if !ok || r.opts.DeadWorkerThreshold <= 0 {
		return nil, nil
	}
	workers, err := hs.Workers(ctx)
	if err != nil {
		return nil, err
	}
	return SilentSince(workers, time.Now(), r.opts.DeadWorkerThreshold), nil
}

// SilentSince filters heartbeats older than threshold relative to now.
func SilentSince(workers map[string]time.Time, now time.Time, threshold time.Duration) []SilentWorker {
	var silent []SilentWorker
	for id, seen := range workers {
		if gap := now.Sub(seen); gap > threshold {
			silent = append(silent, SilentWorker{ID: id, LastSeen: seen, Silence: gap})
		}
	}
	sort.Slice(silent, func(i, j int) bool {
		if silent[i].Silence != silent[j].Silence {
			return silent[i].Silence > silent[j].Silence
		}
		return silent[i].ID < silent[j].ID
	})
	return silent
}

// reportSilent logs each silent worker once per observed heartbeat.
func (r *Reclaimer) reportSilent(silent []SilentWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, worker := range silent {
		if last, ok := r.reported[worker.ID]; ok && last.Equal(worker.LastSeen) {
			continue
		}
		r.reported[worker.ID] = worker.LastSeen
		logging.WarnWithContext(r.logger, "worker heartbeat is stale", "worker_silent",
			logging.String(logging.FieldWorkerID, worker.ID),
			logging.Duration("silence", worker.Silence),
			logging.String(logging.FieldErrorHint, "check whether the worker process is still running"),
			logging.String(logging.FieldImpact, "its claims are recovered once they exceed the claim timeout"),
		)
	}
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
// Sweep errors are logged and retried on the next tick.
func (r *Reclaimer) Run(ctx context.Context) error {
	r.logger.Info("reclaimer started",
		logging.Duration("interval", r.opts.Interval),
		logging.Duration("claim_timeout", r.opts.ClaimTimeout),
	)
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(r.logger, "reclaim sweep failed", "reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue store access"),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
