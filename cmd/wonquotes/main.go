// Package main implements the wonquotes CLI: ingest award history, search
// it, and price RFQ line items from the command line or over MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "wonquotes",
		Short: "Won-quotes knowledge base and pricing oracle",
		Long: `wonquotes keeps a local history of won government purchase awards and
turns it into bid price recommendations.

Examples:
  # Load award history exported from procurement records
  wonquotes ingest awards.json --source scprs_bulk

  # Price a single item
  wonquotes price --code 6515-001 --desc "nitrile gloves" --cost 80

  # Serve the tools over MCP stdio
  wonquotes serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate(versionString() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/wonquotes/config.yaml)")
	pf.StringVarP(&opts.output, "output", "o", formatTable, "output format: table or json")
	pf.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newIngestCmd(opts),
		newSearchCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newWinProbCmd(opts),
		newPriceCmd(opts),
		newBatchCmd(opts),
		newHealthCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("wonquotes %s (commit %s, built %s)", version, gitCommit, buildDate)
}

// withApp wires the application for the duration of fn and renders through a
// printer bound to the command's stdout.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app, p *printer) error) error {
	p, err := newPrinter(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a, p)
	closeErr := a.Close(ctx)
	if runErr != nil {
		return runErr
	}
	return closeErr
}
