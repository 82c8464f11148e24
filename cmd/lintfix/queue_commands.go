package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lintfix/internal/queue"
	"lintfix/internal/worker"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReclaimCommand(ctx))
	queueCmd.AddCommand(newQueuePruneCommand(ctx))
	queueCmd.AddCommand(newQueueWorkersCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue counts, success rate, and recent failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				stats, err := store.Stats(runCtx, strings.TrimSpace(sessionID))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, newStatsView(stats))
				}

				out := cmd.OutOrStdout()
				if stats.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Status", "Count"}, buildStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintf(out, "Total: %d\n", stats.Total)
				fmt.Fprintf(out, "Success rate: %s\n", formatPercent(stats.SuccessRate))
				if stats.ConfidenceSamples > 0 {
					fmt.Fprintf(out, "Average confidence: %.2f (%d results)\n", stats.AverageConfidence, stats.ConfidenceSamples)
				}
				if len(stats.Failures) > 0 {
					fmt.Fprintln(out, "Failures:")
					fmt.Fprint(out, renderTable(out, []string{"ID", "Location", "Code", "Error"}, buildFailureRows(stats.Failures), nil))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Limit to one session")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var sessionID string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				items, err := store.List(runCtx, queue.ListFilter{
					Statuses:  statuses,
					SessionID: strings.TrimSpace(sessionID),
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]itemView, 0, len(items))
					for _, item := range items {
						views = append(views, newItemView(item))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No matching items")
					return nil
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Status", "Priority", "Location", "Code", "Retries", "Worker", "Updated"},
					buildListRows(items, time.Now()),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Limit to one session")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum items to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				item, err := store.Get(runCtx, strings.TrimSpace(args[0]))
				if err != nil {
					if errors.Is(err, queue.ErrNotFound) {
						return fmt.Errorf("item %s not found", args[0])
					}
					return err
				}
				view := newItemView(item)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				printItem(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func printItem(cmd *cobra.Command, v itemView) {
	out := cmd.OutOrStdout()
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-12s %s\n", label+":", value)
		}
	}
	field("ID", v.ID)
	field("Session", v.SessionID)
	field("Location", fmt.Sprintf("%s:%d:%d", v.File, v.Line, v.Column))
	field("Code", v.IssueCode)
	field("Message", v.Payload.Message)
	field("Linter", v.Payload.Linter)
	field("Status", v.Status)
	field("Priority", fmt.Sprintf("%d", v.Priority))
	field("Retries", fmt.Sprintf("%d/%d", v.RetryCount, v.MaxRetries))
	field("Worker", v.AssignedWorker)
	field("Claimed", v.ClaimedAt)
	field("Last error", v.LastError)
	if v.Result != nil {
		outcome := "success"
		switch {
		case v.Result.Skipped:
			outcome = "skipped"
		case !v.Result.Success:
			outcome = "failure"
		}
		if v.Result.Confidence != nil {
			outcome = fmt.Sprintf("%s (confidence %.2f)", outcome, *v.Result.Confidence)
		}
		field("Result", outcome)
		field("Detail", v.Result.Detail)
	}
	field("Created", v.CreatedAt)
	field("Updated", v.UpdatedAt)
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed items to pending with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("pass item ids or --all")
			}
			if len(args) > 0 && all {
				return errors.New("pass item ids or --all, not both")
			}
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				reset, err := store.RetryFailed(runCtx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed items\n", reset)
				if len(args) > 0 && reset < int64(len(args)) {
					fmt.Fprintf(cmd.OutOrStdout(), "%d items were not failed or are already queued again\n", int64(len(args))-reset)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed item")
	return cmd
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Recover claims older than the claim timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.Reclaim.ClaimTimeoutDuration()
			}
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				report, err := store.ReclaimStale(runCtx, timeout)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale claims (%d requeued, %d failed)\n",
					report.Total(), report.Requeued, report.Failed)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Claim age to treat as abandoned (default reclaim.claim_timeout)")
	return cmd
}

func newQueuePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed, skipped, and failed items past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := olderThan
			if !cmd.Flags().Changed("older-than") {
				age = cfg.Queue.Retention()
			}
			if age < 0 {
				return errors.New("--older-than must not be negative")
			}
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				pruned, err := store.Prune(runCtx, time.Now().Add(-age))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d items last updated more than %s ago\n", pruned, age)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff (default queue.retention_days)")
	return cmd
}

func newQueueWorkersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "workers",
		Short: "List worker heartbeats (redis backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				hs, ok := store.(queue.HeartbeatStore)
				if !ok {
					return fmt.Errorf("the %s backend does not track worker heartbeats", cfg.Store.Backend)
				}
				seen, err := hs.Workers(runCtx)
				if err != nil {
					return err
				}
				threshold := cfg.Reclaim.DeadWorkerDuration()
				now := time.Now()
				all := make([]worker.SilentWorker, 0, len(seen))
				for id, last := range seen {
					all = append(all, worker.SilentWorker{ID: id, LastSeen: last, Silence: now.Sub(last)})
				}
				sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
				type workerView struct {
					ID       string `json:"id"`
					LastSeen string `json:"last_seen"`
					Silent   bool   `json:"silent"`
				}
				views := make([]workerView, 0, len(all))
				rows := make([][]string, 0, len(all))
				for _, w := range all {
					silent := threshold > 0 && w.Silence > threshold
					views = append(views, workerView{ID: w.ID, LastSeen: w.LastSeen.Format(time.RFC3339), Silent: silent})
					state := "alive"
					if silent {
						state = "silent"
					}
					rows = append(rows, []string{w.ID, formatAge(now, w.LastSeen), state})
				}
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No workers have reported a heartbeat")
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Worker", "Last seen", "State"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}
