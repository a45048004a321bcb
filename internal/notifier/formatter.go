package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"MarketFortress/internal/cache"
	"MarketFortress/internal/model"
)

// FormatScanSummary reports status counts and the directional signals of one run.
func FormatScanSummary(run *model.ScanRun, signals []model.Signal) string {
	var b strings.Builder
	counts := run.Counts()

	b.WriteString(fmt.Sprintf("📊 <b>MarketFortress scan</b> | %s | %s %s\n\n",
		run.FinishedAt.Format("2006-01-02 15:04"), html.EscapeString(run.Universe), run.Interval))
	b.WriteString(fmt.Sprintf("Symbols: %d | ok %d | stale %d | failed %d\n",
		len(run.Results), counts[model.StatusOK], counts[model.StatusStale], counts[model.StatusFailed]))
	b.WriteString(fmt.Sprintf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(100*time.Millisecond)))

	buys := bySignal(signals, model.SignalBuy)
	sells := bySignal(signals, model.SignalSell)

	if len(buys) > 0 {
		b.WriteString("\n🟢 <b>BUY</b>\n")
		for _, s := range buys {
			writeSignal(&b, s)
		}
	}
	if len(sells) > 0 {
		b.WriteString("\n🔴 <b>SELL</b>\n")
		for _, s := range sells {
			writeSignal(&b, s)
		}
	}
	if len(buys) == 0 && len(sells) == 0 {
		b.WriteString("\nNo directional signals.\n")
	}

	var failed []string
	for _, r := range run.Results {
		if r.Status == model.StatusFailed {
			failed = append(failed, r.Symbol)
		}
	}
	if len(failed) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ Failed: %s\n", strings.Join(failed, ", ")))
	}
	return b.String()
}

func bySignal(signals []model.Signal, typ model.SignalType) []model.Signal {
	var out []model.Signal
	for _, s := range signals {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

func writeSignal(b *strings.Builder, s model.Signal) {
	b.WriteString(fmt.Sprintf("  %s %.2f | strength %.0f | RSI %.0f | %%K %.0f | hist %+.3f\n",
		s.Symbol, s.Close, s.Strength, s.RSI, s.StochK, s.MACDHist))
}

// FormatWheelDecisions lists the actionable wheel decisions of one cycle. Holds and no-actions are summarized.
func FormatWheelDecisions(decisions []model.WheelDecision) string {
	var b strings.Builder
	b.WriteString("🛞 <b>Wheel</b>\n\n")

	quiet := 0
	for _, d := range decisions {
		switch d.Action {
		case model.ActionSellPut, model.ActionSellCall:
			c := d.Contract
			if c == nil {
				continue
			}
			b.WriteString(fmt.Sprintf("📝 %s %s: %s strike %.2f exp %s bid %.2f ROI %.1f%%\n",
				d.Symbol, d.Action, c.Symbol, c.Strike, c.Expiration.Format("01-02"), c.Bid, d.ROI))
		case model.ActionClose:
			b.WriteString(fmt.Sprintf("✅ %s close (%s): profit %.2f of %.2f\n",
				d.Symbol, d.Exit, d.Position.RealizedProfit, d.Position.MaxProfit))
		default:
			if d.From != d.To {
				b.WriteString(fmt.Sprintf("🔁 %s %s → %s: %s\n", d.Symbol, d.From, d.To, html.EscapeString(d.Reason)))
				continue
			}
			quiet++
		}
	}
	if quiet > 0 {
		b.WriteString(fmt.Sprintf("\n%d symbol(s) unchanged\n", quiet))
	}
	return b.String()
}

// FormatPositions formats the persisted wheel positions.
func FormatPositions(positions []model.WheelPosition) string {
	var b strings.Builder
	b.WriteString("📦 <b>Wheel positions</b>\n\n")
	if len(positions) == 0 {
		b.WriteString("none\n")
		return b.String()
	}
	for _, p := range positions {
		b.WriteString(fmt.Sprintf("%s: %s", p.Symbol, p.State))
		if p.Open() {
			b.WriteString(fmt.Sprintf(" %s strike %.2f exp %s | %.0f%% of max",
				p.Contract, p.Strike, p.Expiration.Format("2006-01-02"), p.ProfitRatio()*100))
		}
		if p.Assigned {
			b.WriteString(fmt.Sprintf(" | cost basis %.2f", p.CostBasis))
		}
		b.WriteString(fmt.Sprintf(" | cycles %d\n", p.Cycles))
	}
	return b.String()
}

// FormatCacheStats formats cache contents and resolve counters.
func FormatCacheStats(st cache.ManagerStats) string {
	var b strings.Builder
	b.WriteString("🗄 <b>Cache</b>\n\n")
	b.WriteString(fmt.Sprintf("Entries: %d (bars %d, chains %d) over %d symbols\n",
		st.Store.Entries, st.Store.BarEntries, st.Store.ChainEntries, st.Store.Symbols))
	b.WriteString(fmt.Sprintf("Size: %.1f KiB\n", float64(st.Store.SizeBytes)/1024))
	if !st.Store.Oldest.IsZero() {
		b.WriteString(fmt.Sprintf("Oldest: %s | Newest: %s\n",
			st.Store.Oldest.Format("2006-01-02 15:04"), st.Store.Newest.Format("2006-01-02 15:04")))
	}
	b.WriteString(fmt.Sprintf("Hits %d | Misses %d | Stale %d | Failures %d\n", st.Hits, st.Misses, st.Stale, st.Failures))
	return b.String()
}
