package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lintfix/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var filter logs.Filter
	var level string
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show entries from the JSON log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(cfg.Logging.File)
			if path == "" {
				return errors.New("logging.file is not configured; set it to record worker logs")
			}
			if level != "" {
				if err := filter.MinLevel.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
			} else {
				filter.MinLevel = slog.LevelDebug
			}

			entries, offset, err := logs.Read(path, filter, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, entry := range entries {
				fmt.Fprintln(out, entry.Format())
			}
			if !follow {
				if len(entries) == 0 {
					fmt.Fprintln(out, "No matching log entries")
				}
				return nil
			}
			return logs.Follow(commandContextOrBackground(cmd), path, offset, filter, 0, func(entry logs.Entry) {
				fmt.Fprintln(out, entry.Format())
			})
		},
	}

	cmd.Flags().StringVar(&filter.ItemID, "item", "", "Only entries for this item")
	cmd.Flags().StringVar(&filter.WorkerID, "worker", "", "Only entries from this worker")
	cmd.Flags().StringVarP(&filter.SessionID, "session", "s", "", "Only entries for this session")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	return cmd
}
