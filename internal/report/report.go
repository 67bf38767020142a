// Package report renders human-readable run summaries for the log and the
// manual trigger path.
package report

import (
	"fmt"
	"strings"

	"IndexForge/internal/model"
	"IndexForge/internal/pipeline"
)

// FormatRunSummary renders one pipeline run as a multi-line text block.
func FormatRunSummary(s *pipeline.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "refresh %s | index %s | as of %s\n",
		s.RunID[:8], s.IndexID, s.AsOf.Format("2006-01-02"))

	for _, st := range s.Stages {
		status := "ok"
		if !st.OK {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "  %-12s %s", st.Stage, status)
		if st.Detail != "" {
			fmt.Fprintf(&b, " (%s)", st.Detail)
		}
		b.WriteByte('\n')
	}

	if s.SkipReason != "" {
		fmt.Fprintf(&b, "  rebalance skipped: %s\n", s.SkipReason)
	} else if s.Rebalanced {
		b.WriteString(FormatAllocation(s.Allocation))
	}

	if s.LatestValue.Value > 0 {
		fmt.Fprintf(&b, "  index %.4f (%+.2f%% cumulative)",
			s.LatestValue.Value, s.LatestValue.CumulativeReturn*100)
		if s.LatestValue.Stale {
			b.WriteString(" [stale prices]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatAllocation renders the committed weights, heaviest first.
func FormatAllocation(a model.Allocation) string {
	if len(a.Weights) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  allocation %s:\n", a.Date.Format("2006-01-02"))
	syms := model.SortedSymbols(a.Weights)
	for _, sym := range syms {
		fmt.Fprintf(&b, "    %-8s %6.2f%%\n", sym, a.Weights[sym]*100)
	}
	return b.String()
}

// FormatRiskMetrics renders one metrics record.
func FormatRiskMetrics(m model.RiskMetrics) string {
	return fmt.Sprintf(
		"%d-day metrics: sharpe %.2f | sortino %.2f | vol %.2f%% | maxdd %.2f%% | VaR95 %.2f%% | VaR99 %.2f%% | beta %.2f",
		m.WindowDays, m.Sharpe, m.Sortino, m.Volatility*100, m.MaxDrawdown*100,
		m.VaR95*100, m.VaR99*100, m.Beta)
}
