package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/universe"
)

var (
	flagClearSymbol   string
	flagClearInterval string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local market data cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache: %s\n", cfg.Cache.Path)
		fmt.Fprintf(out, "Entries: %d (bars %d, option chains %d)\n", st.Entries, st.BarEntries, st.ChainEntries)
		fmt.Fprintf(out, "Symbols: %d\n", st.Symbols)
		fmt.Fprintf(out, "Size: %s\n", formatBytes(st.SizeBytes))
		if st.Entries > 0 {
			fmt.Fprintf(out, "Oldest: %s\nNewest: %s\n", st.Oldest.Local().Format("2006-01-02 15:04"), st.Newest.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries",
	Long: `Delete cached entries. With no flags everything is removed.

--interval options removes every cached option chain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer store.Close()

		filter := cache.Filter{Interval: flagClearInterval}
		if flagClearSymbol != "" {
			filter.Symbol = strings.ToUpper(strings.TrimSpace(flagClearSymbol))
		}
		n, err := store.Clear(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clear.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entr%s.\n", n, plural(n, "y", "ies"))
		}
		return nil
	},
}

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage scan universes and watchlists",
}

var universeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List preset universes and saved watchlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		um := universe.NewManager(cfg.Universe.WatchlistDir, cfg.Universe.CustomWatchlist, zap.NewNop())
		infos, err := um.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-9s %3d tickers %s\n", info.Name, info.Type, info.Count, info.Path)
		}
		return nil
	},
}

var universeSaveCmd = &cobra.Command{
	Use:   "save NAME TICKER...",
	Short: "Save a watchlist",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		um := universe.NewManager(cfg.Universe.WatchlistDir, cfg.Universe.CustomWatchlist, zap.NewNop())
		path, err := um.Save(args[0], args[1:], "")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&flagClearSymbol, "symbol", "", "only clear this symbol")
	cacheClearCmd.Flags().StringVar(&flagClearInterval, "interval", "", "only clear this interval (1d, 1h, options, ...)")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	universeCmd.AddCommand(universeListCmd)
	universeCmd.AddCommand(universeSaveCmd)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
