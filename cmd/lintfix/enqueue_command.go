package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lintfix/internal/config"
	"lintfix/internal/producer"
	"lintfix/internal/queue"
)

type enqueueSummary struct {
	SessionID  string `json:"session_id"`
	Parsed     int    `json:"parsed"`
	Queued     int    `json:"queued"`
	Duplicates int    `json:"duplicates"`
	Excluded   int    `json:"excluded"`
	Ignored    int    `json:"ignored_lines"`
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var inputPath string
	var linter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "enqueue [linter-output-file]",
		Short: "Queue issues from linter output (path:line:col: CODE message)",
		Long: "Parse linter output and queue one work item per issue.\n\n" +
			"Output is read from the given file, or from stdin when the file is \"-\" or omitted:\n\n" +
			"  ruff check --output-format concise . | lintfix enqueue",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				inputPath = args[0]
			}
			input, closeInput, err := openInput(cmd, inputPath)
			if err != nil {
				return err
			}
			defer closeInput()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(linter) != "" {
				cfgCopy := *cfg
				cfgCopy.Producer.Linter = strings.TrimSpace(linter)
				cfg = &cfgCopy
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			return ctx.withStore(cmd, func(runCtx context.Context, store queue.Store) error {
				prod, err := producer.New(store, cfg, logger)
				if err != nil {
					return err
				}
				report, err := prod.Enqueue(runCtx, sessionID, input)
				if err != nil {
					return err
				}
				summary := enqueueSummary{
					SessionID:  report.SessionID,
					Parsed:     report.Parsed,
					Queued:     report.Queued,
					Duplicates: report.Duplicates,
					Excluded:   report.Excluded,
					Ignored:    report.Ignored,
				}
				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				printEnqueueSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to enqueue under (default: new session)")
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "Read linter output from this file instead of stdin")
	cmd.Flags().StringVar(&linter, "linter", "", "Linter name recorded on each item (overrides producer.linter)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve input path: %w", err)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, nil, fmt.Errorf("open linter output: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func printEnqueueSummary(out io.Writer, s enqueueSummary) {
	fmt.Fprintf(out, "Session %s\n", s.SessionID)
	fmt.Fprintf(out, "Queued %d of %d issues", s.Queued, s.Parsed)
	var extras []string
	if s.Duplicates > 0 {
		extras = append(extras, fmt.Sprintf("%d already queued", s.Duplicates))
	}
	if s.Excluded > 0 {
		extras = append(extras, fmt.Sprintf("%d excluded", s.Excluded))
	}
	if s.Ignored > 0 {
		extras = append(extras, fmt.Sprintf("%d non-issue lines ignored", s.Ignored))
	}
	if len(extras) > 0 {
		fmt.Fprintf(out, " (%s)", strings.Join(extras, ", "))
	}
	fmt.Fprintln(out)
}
