package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/bankrotscan/internal/log"
)

// NewRootCmd creates the root command for bankrotscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bankrotscan",
		Short: "Collect bankruptcy registry records into an xlsx workbook",
		Long: `bankrotscan collects bankrupt legal entities and individuals from the
fedresurs bankruptcy registry, enriches every record from the detail
resources of the registry and appends new records to an xlsx workbook.

Records already present in the workbook are skipped, so repeated runs only
add what is new. Every run is also recorded in a local SQLite ledger.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "", "Log format: text, json or color (default text)")

	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the structured logger. The --log-format flag wins
// over the configured format.
func setupLogger(cmd *cobra.Command, configured string) (*slog.Logger, error) {
	name := configured
	if flag := cmd.Flags().Lookup("log-format"); flag != nil && flag.Changed {
		name = flag.Value.String()
	}
	format, err := log.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(cmd.ErrOrStderr(), format, getVerboseFlag(cmd)), nil
}
