// Command apdupes finds likely duplicate invoices in accounts-payable
// ledger exports from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/apdupes/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Commands are built fresh per call so
// tests never share flag state.
func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		noColor   bool
	)

	root := &cobra.Command{
		Use:   "apdupes",
		Short: "Find duplicate invoices in AP ledger exports",
		Long: `apdupes reads accounts-payable ledger CSV exports and reports invoices that
were probably entered more than once.

Rows are first grouped on an exact match of vendor, invoice number and amount
(High confidence when every row carries a vendor ID). The remaining rows are
grouped on vendor and invoice number when their amounts and invoice dates fall
within the configured tolerance (Medium confidence).

Example Usage:
  apdupes headers ledger.csv
  apdupes analyze ledger.csv --vendor-id "Vendor ID" --invoice-number Invoice --amount Amount
  apdupes analyze jan.csv feb.csv --profile netsuite.yaml --xlsx duplicates.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout is reserved for reports
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, logFormat))
			if noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newHeadersCmd(),
		newAnalyzeCmd(),
		newProfileCmd(),
		newVersionCmd(),
	)
	return root
}
