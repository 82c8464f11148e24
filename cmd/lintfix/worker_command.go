package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lintfix/internal/config"
	"lintfix/internal/deps"
	"lintfix/internal/logging"
	"lintfix/internal/metrics"
	"lintfix/internal/processor"
	"lintfix/internal/queue"
	"lintfix/internal/queueaccess"
	"lintfix/internal/worker"
)

type workerFlags struct {
	id          string
	concurrency int
	issueCodes  []string
	noReclaim   bool
	drain       bool
	metricsBind string
	workDir     string
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var flags workerFlags

	cmd := &cobra.Command{
		Use:   "worker [-- fixer-command args...]",
		Short: "Run fixer workers against the queue",
		Long: "Claim queued issues and hand each one to the fixer command.\n\n" +
			"The fixer reads a JSON request on stdin and prints a JSON result\n" +
			"({\"success\":true,\"detail\":\"...\",\"confidence\":0.9}) on stdout.\n" +
			"The command comes from worker.fixer_command unless given after --.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return runWorkers(commandContextOrBackground(cmd), cfg, logger, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.id, "id", "", "Worker id (default: host-pid-random)")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "n", 0, "Number of workers (overrides worker.concurrency)")
	cmd.Flags().StringSliceVar(&flags.issueCodes, "issue-code", nil, "Only claim these issue codes (repeatable)")
	cmd.Flags().BoolVar(&flags.noReclaim, "no-reclaim", false, "Do not run the stale-claim reclaimer in this process")
	cmd.Flags().BoolVar(&flags.drain, "drain", false, "Exit once no pending or claimed items remain")
	cmd.Flags().StringVar(&flags.metricsBind, "metrics-bind", "", "Serve Prometheus metrics on this address (enables metrics)")
	cmd.Flags().StringVar(&flags.workDir, "workdir", "", "Directory the fixer command runs in")
	return cmd
}

func runWorkers(ctx context.Context, cfg *config.Config, logger *slog.Logger, flags workerFlags, fixerArgs []string) error {
	argv := cfg.Worker.FixerCommand
	if len(fixerArgs) > 0 {
		argv = fixerArgs
	}
	if len(argv) == 0 {
		return errors.New("no fixer command configured; set worker.fixer_command or pass one after --")
	}
	if err := deps.Require("fixer command", argv[0], "runs once per claimed work item"); err != nil {
		return err
	}
	fixer, err := processor.NewCommand(argv, cfg.Worker.FixerTimeoutDuration(), processor.WithDir(flags.workDir))
	if err != nil {
		return err
	}

	session, err := queueaccess.OpenSession(ctx, cfg, queueaccess.SessionOptions{Exclusive: true})
	if err != nil {
		if errors.Is(err, queueaccess.ErrLocked) {
			return fmt.Errorf("%w: %s (use the redis backend to run workers in several processes)", err, cfg.SQLite.LockPath)
		}
		return fmt.Errorf("open queue (%s): %w", queueaccess.Describe(cfg), err)
	}
	defer session.Close()
	store := session.Store

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var observer worker.Observer
	bind := strings.TrimSpace(flags.metricsBind)
	if bind == "" && cfg.Metrics.Enabled {
		bind = cfg.Metrics.Bind
	}
	if bind != "" {
		m := metrics.New()
		if err := m.Register(metrics.NewQueueCollector(store, logger)); err != nil {
			return fmt.Errorf("register queue collector: %w", err)
		}
		srv, err := metrics.NewServer(bind, m, logger)
		if err != nil {
			return err
		}
		if err := srv.Start(runCtx); err != nil {
			return err
		}
		observer = m
	}

	var reclaimer *worker.Reclaimer
	if !flags.noReclaim {
		reclaimer, err = worker.NewReclaimer(store, worker.ReclaimerOptions{
			Interval:            cfg.Reclaim.IntervalDuration(),
			ClaimTimeout:        cfg.Reclaim.ClaimTimeoutDuration(),
			DeadWorkerThreshold: cfg.Reclaim.DeadWorkerDuration(),
			Logger:              logger,
			Observer:            observer,
		})
		if err != nil {
			return err
		}
	}

	codes := flags.issueCodes
	if len(codes) == 0 {
		codes = cfg.Worker.IssueCodes
	}
	concurrency := cfg.Worker.Concurrency
	if flags.concurrency > 0 {
		concurrency = flags.concurrency
	}
	pool, err := worker.NewPool(store, fixer, worker.PoolOptions{
		Concurrency: concurrency,
		Worker: worker.Options{
			ID:                strings.TrimSpace(flags.id),
			PollInterval:      cfg.Worker.PollIntervalDuration(),
			ClaimWait:         cfg.Worker.ClaimWaitDuration(),
			ErrorBackoff:      cfg.Worker.ErrorRetryDuration(),
			HeartbeatInterval: cfg.Worker.HeartbeatDuration(),
			Filter:            queue.ClaimFilter{IssueCodes: codes},
			Logger:            logger,
			Observer:          observer,
		},
		Reclaimer: reclaimer,
	})
	if err != nil {
		return err
	}

	logger.Info("worker pool starting",
		logging.String("queue", queueaccess.Describe(cfg)),
		logging.Int("concurrency", len(pool.Workers())),
		logging.Any("fixer", argv),
		logging.Bool("drain", flags.drain),
	)
	if flags.drain {
		go drainWatcher(runCtx, cancel, store, cfg.Worker.PollIntervalDuration(), logger)
	}
	return pool.Run(runCtx)
}

// drainWatcher cancels the pool once the queue holds no pending or claimed
// items.
func drainWatcher(ctx context.Context, cancel context.CancelFunc, store queue.Store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats, err := store.Stats(ctx, "")
		if err != nil {
			if ctx.Err() == nil {
				logging.WarnWithContext(logger, "drain check failed", "drain_check_failed", logging.Error(err))
			}
			continue
		}
		if stats.Count(queue.StatusPending) == 0 && stats.Count(queue.StatusClaimed) == 0 {
			logger.Info("queue drained; stopping workers", logging.Int("total", stats.Total))
			cancel()
			return
		}
	}
}
