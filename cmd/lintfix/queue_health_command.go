package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lintfix/internal/queue"
	"lintfix/internal/queue/redisstore"
	"lintfix/internal/queue/sqlitestore"
)

type redisHealthView struct {
	Prefix     string `json:"prefix"`
	Reachable  bool   `json:"reachable"`
	TotalItems int    `json:"total_items"`
	Error      string `json:"error,omitempty"`
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the queue backend (schema and integrity for sqlite, reachability for redis)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				out := cmd.OutOrStdout()
				switch s := store.(type) {
				case *sqlitestore.Store:
					health, err := s.CheckHealth(runCtx)
					if err != nil {
						return err
					}
					if jsonOutput {
						return writeJSON(cmd, health)
					}
					fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
					fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
					fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
					fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
					fmt.Fprintf(out, "work_items table present: %s\n", yesNo(health.TableExists))
					fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
					fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
					if health.Error != "" {
						fmt.Fprintf(out, "Error: %s\n", health.Error)
					}
					return nil
				case *redisstore.Store:
					view := redisHealthView{Prefix: s.Keys().Prefix}
					if err := s.Ping(runCtx); err != nil {
						view.Error = err.Error()
					} else {
						view.Reachable = true
						stats, err := s.Stats(runCtx, "")
						if err != nil {
							view.Error = err.Error()
						}
						view.TotalItems = stats.Total
					}
					if jsonOutput {
						return writeJSON(cmd, view)
					}
					fmt.Fprintf(out, "Key prefix: %s\n", view.Prefix)
					fmt.Fprintf(out, "Redis reachable: %s\n", yesNo(view.Reachable))
					fmt.Fprintf(out, "Total items: %d\n", view.TotalItems)
					if view.Error != "" {
						fmt.Fprintf(out, "Error: %s\n", view.Error)
					}
					return nil
				default:
					return fmt.Errorf("health checks are not supported for %T", store)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
