// Package report renders pricing and solvency results for analysts, as
// Markdown for review documents and CSV for downstream tooling.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/model"
)

// FormatRiskMarkdown produces a Markdown table of per-route risk metrics.
// Thin-sample routes are marked so an analyst cannot mistake them for
// confident estimates.
func FormatRiskMarkdown(metrics []model.RouteRiskMetrics) string {
	var sb strings.Builder

	sb.WriteString("## Route Risk Report\n\n")
	sb.WriteString("| Route | Samples | P(breach) | 95% CI | P(tier 1) | P(tier 2) | E[payout] | Break-even | Recommended |\n")
	sb.WriteString("|:------|--------:|----------:|:------:|----------:|----------:|----------:|-----------:|------------:|\n")

	for _, m := range metrics {
		route := m.Route
		if m.InsufficientSample {
			route += " ⚠"
		}
		fmt.Fprintf(&sb, "| %s | %d | %.3f | [%.3f, %.3f] | %.3f | %.3f | %.2f | %.2f | %.2f |\n",
			route, m.Samples,
			m.PAnyBreach.Point, m.PAnyBreach.Lower, m.PAnyBreach.Upper,
			m.PTier1.Point, m.PTier2.Point,
			m.ExpectedPayout, m.BreakEvenPremium, m.RecommendedPremium)
	}

	if hasInsufficient(metrics) {
		sb.WriteString("\n⚠ fewer observations than the configured minimum; treat estimates as indicative only.\n")
	}
	return sb.String()
}

// WriteRiskCSV writes per-route metrics as CSV with a header row.
func WriteRiskCSV(w io.Writer, metrics []model.RouteRiskMetrics) error {
	cw := csv.NewWriter(w)
	header := []string{
		"route", "samples", "tier0", "tier1", "tier2",
		"p_any_breach", "p_any_breach_lower", "p_any_breach_upper",
		"p_tier1", "p_tier2",
		"expected_payout", "break_even_premium", "recommended_premium",
		"insufficient_sample",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, m := range metrics {
		row := []string{
			m.Route,
			strconv.Itoa(m.Samples),
			strconv.Itoa(m.Tier0),
			strconv.Itoa(m.Tier1),
			strconv.Itoa(m.Tier2),
			formatFloat(m.PAnyBreach.Point),
			formatFloat(m.PAnyBreach.Lower),
			formatFloat(m.PAnyBreach.Upper),
			formatFloat(m.PTier1.Point),
			formatFloat(m.PTier2.Point),
			formatFloat(m.ExpectedPayout),
			formatFloat(m.BreakEvenPremium),
			formatFloat(m.RecommendedPremium),
			strconv.FormatBool(m.InsufficientSample),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "report: write csv row for route %s", m.Route)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// FormatSimulationMarkdown produces a Markdown solvency report for one
// simulated product.
func FormatSimulationMarkdown(cfg model.ProductConfig, res *model.SimulationResult) string {
	var sb strings.Builder

	sb.WriteString("## Solvency Report\n\n")
	fmt.Fprintf(&sb, "%d policies, breach probability %.3f, %d trials (seed %d)\n\n",
		cfg.Count, cfg.BreachProbability, res.Trials, res.Seed)

	sb.WriteString("| Metric | Locked | Unlocked |\n")
	sb.WriteString("|:-------|-------:|---------:|\n")
	fmt.Fprintf(&sb, "| Worst-case reserve | %.2f | %.2f |\n",
		res.WorstCaseReserve, res.WorstCaseReserveNoLock)
	fmt.Fprintf(&sb, "| Reserve at %.0f%% | %.2f | %.2f |\n",
		res.Confidence*100, res.ReserveAtConfidence, res.ReserveAtConfidenceNoLock)
	fmt.Fprintf(&sb, "| Reserve at 95%% | %.2f | %.2f |\n", res.ReserveAt95, res.ReserveAt95NoLock)
	fmt.Fprintf(&sb, "| Reserve at 99%% | %.2f | %.2f |\n", res.ReserveAt99, res.ReserveAt99NoLock)
	fmt.Fprintf(&sb, "| Deficit probability | %.4f | %.4f |\n",
		res.DeficitProbability, res.DeficitProbabilityNoLock)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- Expected net per policy: %.4f\n", res.ExpectedNetPerPolicy)
	fmt.Fprintf(&sb, "- Expected net, portfolio: %.2f\n", res.ExpectedNetPortfolio)
	fmt.Fprintf(&sb, "- Break-even breach probability: %s\n", formatMaybeInf(res.BreakEvenProbability))
	fmt.Fprintf(&sb, "- Auto-lock coverage of 99%% unlocked reserve: %s\n", formatMaybeInf(res.ReserveCoverageRatio))

	if h := res.NetHistogram; len(h.Counts) > 0 {
		sb.WriteString("\n### Portfolio net distribution\n\n")
		sb.WriteString(formatHistogram(h, res.Trials))
	}
	return sb.String()
}

// formatHistogram renders fixed-width ASCII bars, one per bin.
func formatHistogram(h model.Histogram, trials int) string {
	const barWidth = 40

	peak := 0
	for _, c := range h.Counts {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```\n")
	for i, c := range h.Counts {
		lo := h.Min + float64(i)*h.BinWidth
		hi := lo + h.BinWidth
		bar := strings.Repeat("#", c*barWidth/peak)
		fmt.Fprintf(&sb, "[%12.2f, %12.2f) %-40s %5.1f%%\n",
			lo, hi, bar, 100*float64(c)/float64(trials))
	}
	sb.WriteString("```\n")
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMaybeInf(v float64) string {
	if math.IsInf(v, 1) {
		return "n/a (never at risk)"
	}
	return fmt.Sprintf("%.4f", v)
}

func hasInsufficient(metrics []model.RouteRiskMetrics) bool {
	for _, m := range metrics {
		if m.InsufficientSample {
			return true
		}
	}
	return false
}
