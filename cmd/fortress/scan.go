package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MarketFortress/internal/model"
	"MarketFortress/internal/strategy"
)

var (
	flagUniverse    string
	flagMinStrength float64
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a universe and print momentum signals",
	Long: `Resolve bars for every ticker in the universe through the cache, compute RSI, stochastic
and MACD, and classify the latest bar as BUY, SELL or NEUTRAL.

Uses universe.default from config unless overridden with --universe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.sched.RunScan(cmd.Context(), flagUniverse)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		out := cmd.OutOrStdout()
		printResults(out, report.Run)
		printSignals(out, strategy.Filter(report.Signals, "", flagMinStrength))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&flagUniverse, "universe", "", "universe or watchlist name (e.g. sp500, custom)")
	scanCmd.Flags().Float64Var(&flagMinStrength, "min-strength", 0, "only print signals at least this strong")
}

func printResults(out io.Writer, run *model.ScanRun) {
	counts := run.Counts()
	fmt.Fprintf(out, "Run %s: %d symbols, ok %d, stale %d, failed %d in %s\n\n",
		run.ID, len(run.Results), counts[model.StatusOK], counts[model.StatusStale], counts[model.StatusFailed],
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATUS\tCACHE\tBARS\tLATENCY\tERROR")
	for _, r := range run.Results {
		cached := ""
		if r.CacheHit {
			cached = "hit"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.Symbol, r.Status, cached, len(r.Bars), r.Latency.Round(time.Millisecond), r.Error())
	}
	tw.Flush()
}

func printSignals(out io.Writer, signals []model.Signal) {
	if len(signals) == 0 {
		fmt.Fprintln(out, "\nNo signals.")
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSIGNAL\tSTRENGTH\tCLOSE\tRSI\t%K\tMACD HIST\tREASON")
	for _, s := range signals {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.2f\t%.1f\t%.1f\t%+.4f\t%s\n",
			s.Symbol, s.Type, s.Strength, s.Close, s.RSI, s.StochK, s.MACDHist, s.Reason)
	}
	tw.Flush()
}
