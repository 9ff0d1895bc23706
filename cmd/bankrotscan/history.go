package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/bankrotscan/internal/config"
	"github.com/nao1215/bankrotscan/internal/database"
	"github.com/nao1215/bankrotscan/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// historyOptions holds the history command settings.
type historyOptions struct {
	dbDir    string
	limit    int
	records  bool
	json     bool
	markdown bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past collection runs",
		Long: `History lists past collection runs recorded in the ledger, newest first,
with the rows added and skipped by each run.

Examples:
  # Show the last 20 runs
  bankrotscan history

  # Show the last 5 runs with per-sheet record totals
  bankrotscan history -l 5 --records

  # Output as JSON
  bankrotscan history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of runs to show (0 for all)")
	cmd.Flags().Bool("records", false, "Also show record totals per sheet")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", "", "Ledger directory (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts := historyOptions{dbDir: config.XDGDataDir()}
	var err error

	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.records, err = cmd.Flags().GetBool("records"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	if dir, err := cmd.Flags().GetString("db-dir"); err != nil {
		return err
	} else if dir != "" {
		opts.dbDir = dir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return runHistory(ctx, opts, cmd.OutOrStdout())
}

// runHistory reads the ledger and writes the history in the chosen format.
func runHistory(ctx context.Context, opts historyOptions, out io.Writer) error {
	ledger, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("no run ledger found (run 'bankrotscan collect' first): %w", err)
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(ctx, opts.limit)
	if err != nil {
		return err
	}
	history := &report.History{Runs: runs}
	if opts.records {
		if history.Totals, err = ledger.Totals(ctx); err != nil {
			return err
		}
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err = w.WriteHistory(history)
	return err
}
