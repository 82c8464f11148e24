package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lintfix/internal/logging"
	"lintfix/internal/queue"
)

// State is the position of a worker in its loop.
type State int32

const (
	StateIdle State = iota
	StateClaiming
	StateProcessing
	StateReporting
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClaiming:
		return "claiming"
	case StateProcessing:
		return "processing"
	case StateReporting:
		return "reporting"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	defaultPollInterval = 2 * time.Second
	defaultErrorBackoff = 10 * time.Second
	reportAttempts      = 3
	defaultFailDetail   = "processing failed"
)

// Options configures a Worker. Zero durations fall back to defaults, except
// ClaimWait (zero means one claim attempt per iteration) and
// HeartbeatInterval (zero disables heartbeats).
type Options struct {
	ID                string
	PollInterval      time.Duration
	ClaimWait         time.Duration
	ErrorBackoff      time.Duration
	HeartbeatInterval time.Duration
	Filter            queue.ClaimFilter
	Logger            *slog.Logger
	Observer          Observer
}

// Worker claims items one at a time and reports their results.
type Worker struct {
	store     queue.Store
	processor Processor
	opts      Options
	logger    *slog.Logger
	observer  Observer
	state     atomic.Int32
	processed atomic.Int64
}

type workerForgetter interface {
	ForgetWorker(ctx context.Context, workerID string) error
}

// DefaultID builds a worker identifier unique across hosts.
func DefaultID() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// New validates options and returns an idle worker.
func New(store queue.Store, processor Processor, opts Options) (*Worker, error) {
	if store == nil {
		return nil, errors.New("worker: store is required")
	}
	if processor == nil {
		return nil, errors.New("worker: processor is required")
	}
	if strings.TrimSpace(opts.ID) == "" {
		opts.ID = DefaultID()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = defaultErrorBackoff
	}
	if opts.ClaimWait < 0 {
		opts.ClaimWait = 0
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Worker{
		store:     store,
		processor: processor,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "worker"),
		observer:  observer,
	}, nil
}

// ID returns the worker identifier used for claims and heartbeats.
func (w *Worker) ID() string { return w.opts.ID }

// State returns the current loop state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Processed returns how many items this worker has reported.
func (w *Worker) Processed() int64 { return w.processed.Load() }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// Run loops until ctx is cancelled. Cancellation is checked between
// iterations; an item already claimed is processed and reported on a
// context that ignores cancellation. Run returns nil on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logging.WithWorkerID(ctx, w.opts.ID)
	logger := logging.WithContext(ctx, w.logger)

	var wg sync.WaitGroup
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	if hs, ok := w.store.(queue.HeartbeatStore); ok && w.opts.HeartbeatInterval > 0 {
		wg.Add(1)
		go w.heartbeatLoop(hbCtx, &wg, hs, logger)
	}
	defer func() {
		stopHeartbeat()
		wg.Wait()
		w.forget(logger)
	}()

	logger.Info("worker started",
		logging.Duration("poll_interval", w.opts.PollInterval),
		logging.Duration("claim_wait", w.opts.ClaimWait),
		logging.Any("issue_codes", w.opts.Filter.IssueCodes),
	)
	w.setState(StateIdle)

	for {
		select {
		case <-ctx.Done():
			w.setState(StateStopping)
			logger.Info("worker stopping", logging.Int64("processed", w.processed.Load()))
			return nil
		default:
		}

		item, err := w.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.handleClaimError(ctx, logger, err)
			continue
		}
		if item == nil {
			continue
		}
		w.handleItem(ctx, item)
	}
}

// claim polls until an item is claimed, ClaimWait elapses, or ctx is done.
func (w *Worker) claim(ctx context.Context) (*queue.WorkItem, error) {
	w.setState(StateClaiming)
	defer func() {
		if w.State() == StateClaiming {
			w.setState(StateIdle)
		}
	}()

	deadline := time.Now().Add(w.opts.ClaimWait)
	for {
		items, err := w.store.Claim(ctx, 1, w.opts.ID, w.opts.Filter)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items[0], nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(w.opts.PollInterval):
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
	}
}

func (w *Worker) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	w.observer.StoreError("claim", err)
	hint := "check queue store configuration"
	if queue.IsUnavailable(err) {
		hint = "check that the queue database or redis server is reachable"
	}
	logging.ErrorWithContext(logger, "failed to claim work item", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.Duration("retry_in", w.opts.ErrorBackoff),
	)
	select {
	case <-ctx.Done():
	case <-time.After(w.opts.ErrorBackoff):
	}
}

func (w *Worker) handleItem(ctx context.Context, item *queue.WorkItem) {
	itemCtx := logging.WithItem(context.WithoutCancel(ctx), item.ID, item.SessionID, item.IssueCode)
	logger := logging.WithContext(itemCtx, w.logger)

	w.observer.ItemClaimed(w.opts.ID, item)
	logger.Debug("claimed work item",
		logging.String(logging.FieldFile, item.Location.String()),
		logging.Int("priority", item.Priority),
		logging.Int("retry_count", item.RetryCount),
	)

	w.setState(StateProcessing)
	start := time.Now()
	result := w.process(itemCtx, logger, item)

	w.setState(StateReporting)
	status, err := w.report(itemCtx, logger, item, result)
	elapsed := time.Since(start)
	w.setState(StateIdle)

	switch {
	case errors.Is(err, queue.ErrStaleClaim), errors.Is(err, queue.ErrNotFound):
		logging.WarnWithContext(logger, "claim no longer current; result discarded", "queue_stale_report",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise reclaim.claim_timeout above the slowest fix"),
			logging.String(logging.FieldImpact, "the item was reclaimed and will be attempted again"),
		)
		w.observer.StoreError("report", err)
		return
	case err != nil:
		logging.ErrorWithContext(logger, "failed to report work item", "queue_report_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the claim will be recovered by the reclaimer"),
		)
		w.observer.StoreError("report", err)
		return
	}

	w.processed.Add(1)
	w.observer.ItemReported(w.opts.ID, item, status, elapsed)
	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Duration("elapsed", elapsed),
	}
	if detail := strings.TrimSpace(result.Detail); detail != "" {
		attrs = append(attrs, logging.String("detail", detail))
	}
	if status == queue.StatusFailed {
		logging.WarnWithContext(logger, "work item failed permanently", "item_failed",
			append(attrs,
				logging.String(logging.FieldErrorHint, "inspect with 'lintfix queue show' and reset with 'lintfix queue retry'"),
				logging.String(logging.FieldImpact, "issue left unfixed"),
			)...,
		)
		return
	}
	logger.Info("work item reported", logging.Args(attrs...)...)
}

// process runs the processor, converting a panic into a failed result.
func (w *Worker) process(ctx context.Context, logger *slog.Logger, item *queue.WorkItem) (result queue.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("processor panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "processor_panic"),
			)
			result = queue.Failed(fmt.Sprintf("processor panic: %v", r))
		}
	}()
	return w.processor.Process(ctx, item)
}

// report sends the result, retrying only when the store is unreachable.
func (w *Worker) report(ctx context.Context, logger *slog.Logger, item *queue.WorkItem, result queue.Result) (queue.Status, error) {
	claim := item.Claim()
	var lastErr error
	for attempt := 1; attempt <= reportAttempts; attempt++ {
		status, err := w.reportOnce(ctx, claim, result)
		if err == nil || !queue.IsUnavailable(err) {
			return status, err
		}
		lastErr = err
		if attempt < reportAttempts {
			logger.Warn("queue store unavailable while reporting; retrying",
				logging.Error(err),
				logging.Int("attempt", attempt),
				logging.String(logging.FieldEventType, "queue_report_retry"),
			)
			time.Sleep(w.opts.ErrorBackoff)
		}
	}
	return "", lastErr
}

func (w *Worker) reportOnce(ctx context.Context, claim queue.Claim, result queue.Result) (queue.Status, error) {
	if result.Success || result.Skipped {
		if err := w.store.Complete(ctx, claim, result); err != nil {
			return "", err
		}
		return queue.CompletionStatus(result), nil
	}
	detail := strings.TrimSpace(result.Detail)
	if detail == "" {
		detail = defaultFailDetail
	}
	return w.store.Fail(ctx, claim, detail)
}

func (w *Worker) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, store queue.HeartbeatStore, logger *slog.Logger) {
	defer wg.Done()
	logger = logger.With(logging.String(logging.FieldComponent, "worker-heartbeat"))

	beat := func() {
		if err := store.Heartbeat(ctx, w.opts.ID); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("heartbeat update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_failed"),
				logging.String(logging.FieldImpact, "worker may be listed as silent; claims are unaffected"),
			)
		}
	}

	beat()
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

// forget removes the heartbeat entry of a cleanly stopped worker.
func (w *Worker) forget(logger *slog.Logger) {
	forgetter, ok := w.store.(workerForgetter)
	if !ok || w.opts.HeartbeatInterval <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := forgetter.ForgetWorker(ctx, w.opts.ID); err != nil {
		logger.Debug("forget worker heartbeat failed", logging.Error(err))
	}
}
