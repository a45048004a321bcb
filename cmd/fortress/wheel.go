package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MarketFortress/internal/model"
	"MarketFortress/internal/wheel"
)

var wheelCmd = &cobra.Command{
	Use:   "wheel [symbols...]",
	Short: "Evaluate the wheel strategy",
	Long: `Fetch the underlying price and this/next week's option chains, then run one wheel cycle
per symbol. Uses wheel.symbols from config when no symbols are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		decisions, err := a.sched.RunWheel(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("wheel: %w", err)
		}
		printDecisions(cmd.OutOrStdout(), decisions)
		return nil
	},
}

var wheelPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List persisted wheel positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		positions, err := a.wheel.Positions()
		if err != nil {
			return err
		}
		printPositions(cmd.OutOrStdout(), positions)
		return nil
	},
}

var wheelEventCmd = &cobra.Command{
	Use:   "event SYMBOL assigned|expired|called_away",
	Short: "Record an assignment or expiry reported by the broker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseEvent(args[1])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.wheel.ApplyEvent(cmd.Context(), strings.ToUpper(args[0]), wheel.Event{Kind: kind, At: time.Now()})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", d.Symbol, d.From, d.To)
		return nil
	},
}

func init() {
	wheelCmd.AddCommand(wheelPositionsCmd)
	wheelCmd.AddCommand(wheelEventCmd)
}

func parseEvent(s string) (wheel.EventKind, error) {
	switch strings.ToLower(s) {
	case "assigned":
		return wheel.EventAssigned, nil
	case "expired", "expired_worthless":
		return wheel.EventExpired, nil
	case "called_away", "called-away":
		return wheel.EventCalledAway, nil
	default:
		return "", fmt.Errorf("unknown event %q (want assigned, expired or called_away)", s)
	}
}

func printDecisions(out io.Writer, decisions []model.WheelDecision) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tACTION\tFROM\tTO\tCONTRACT\tROI\tREASON")
	for _, d := range decisions {
		contract, roi := "", ""
		if d.Contract != nil {
			contract = d.Contract.Symbol
		}
		if d.ROI > 0 {
			roi = fmt.Sprintf("%.1f%%", d.ROI)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", d.Symbol, d.Action, d.From, d.To, contract, roi, d.Reason)
	}
	tw.Flush()
}

func printPositions(out io.Writer, positions []model.WheelPosition) {
	if len(positions) == 0 {
		fmt.Fprintln(out, "No positions.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATE\tCONTRACT\tSTRIKE\tEXPIRES\tPROFIT\tCOST BASIS\tCYCLES")
	for _, p := range positions {
		expires := ""
		if !p.Expiration.IsZero() {
			expires = p.Expiration.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%.2f/%.2f\t%.2f\t%d\n",
			p.Symbol, p.State, p.Contract, p.Strike, expires, p.RealizedProfit, p.MaxProfit, p.CostBasis, p.Cycles)
	}
	tw.Flush()
}
