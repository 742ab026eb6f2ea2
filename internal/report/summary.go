package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AElnamaki/simulate/internal/sim"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(1, 2).
			Width(72)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(24)

	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

// RenderSummary formats the run outcome for the terminal.
func RenderSummary(result *sim.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Simulation Result"))
	b.WriteString("\n")

	s := result.Summary
	var exec strings.Builder
	exec.WriteString(sectionStyle.Render("Execution") + "\n")
	exec.WriteString(row("Run ID", s.RunID))
	exec.WriteString(row("State", string(s.State)))
	exec.WriteString(row("Steps", fmt.Sprintf("%d", s.TotalSteps)))
	exec.WriteString(row("Total time", fmt.Sprintf("%.2fs", s.TotalTimeSecs)))
	exec.WriteString(row("Avg step time", fmt.Sprintf("%.4fs", s.AvgStepTimeSecs)))
	exec.WriteString(row("Transactions", fmt.Sprintf("%d", s.TotalTransactions)))
	exec.WriteString(row("Gas used", fmt.Sprintf("%d", s.TotalGasUsed)))
	b.WriteString(boxStyle.Render(exec.String()))
	b.WriteString("\n")

	o := result.Overall
	var market strings.Builder
	market.WriteString(sectionStyle.Render("Market") + "\n")
	market.WriteString(row("Final price", fmt.Sprintf("%.6f", o.FinalPrice)))
	market.WriteString(row("Price range", fmt.Sprintf("%.6f .. %.6f", o.PriceMin, o.PriceMax)))
	market.WriteString(row("Price mean / stddev", fmt.Sprintf("%.6f / %.6f", o.PriceMean, o.PriceStdDev)))
	market.WriteString(row("Cumulative volume", fmt.Sprintf("%d", o.CumulativeVolume)))
	market.WriteString(row("Swaps", fmt.Sprintf("%d", o.TotalSwaps)))
	market.WriteString(row("Liquidity adds/removes", fmt.Sprintf("%d / %d", o.TotalAdds, o.TotalRemoves)))
	market.WriteString(row("Errors", fmt.Sprintf("%d", o.TotalErrors)))
	b.WriteString(boxStyle.Render(market.String()))
	b.WriteString("\n")

	ids := make([]string, 0, len(result.FinalPerformance))
	for id := range result.FinalPerformance {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var agents strings.Builder
	agents.WriteString(sectionStyle.Render("Agents") + "\n")
	for _, id := range ids {
		perf := result.FinalPerformance[id]
		pnl := perf.PnL.StringFixed(4)
		if perf.PnL.IsNegative() {
			pnl = lossStyle.Render(pnl)
		} else {
			pnl = gainStyle.Render(pnl)
		}
		line := fmt.Sprintf("PnL %s, %d trades, %d tx, gas %d", pnl, perf.TradeCount, perf.TxCount, perf.GasUsed)
		if perf.ImpermanentLoss != nil {
			line += fmt.Sprintf(", IL %.4f%%", *perf.ImpermanentLoss*100)
		}
		agents.WriteString(row(id, line))
	}
	b.WriteString(boxStyle.Render(agents.String()))
	b.WriteString("\n")

	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value + "\n"
}
