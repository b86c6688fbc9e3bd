package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// DefaultTextWidth is the plot width used when rendering to a terminal of
// unknown size.
const DefaultTextWidth = 60

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444"))
	noteStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#64748b"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func badge(v types.HealthVerdict) string {
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color(v.Color)).
		Render(string(v.Tier))
}

// BuildText renders a terminal summary: verdict, headline stats, timeline
// plots and an endpoint table. width bounds the plots.
func BuildText(doc types.Document, width int) string {
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Performance Report") + "  " + badge(doc.Verdict) + "\n")
	b.WriteString(labelStyle.Render("target ") + doc.Run.Target + labelStyle.Render("  env ") + doc.Run.Environment + "\n")
	b.WriteString(doc.Verdict.Narrative + "\n\n")

	h := doc.Headline
	stats := []string{
		stat("success", formatPercent(h.SuccessRatePercent)),
		stat("throughput", formatRPS(h.ThroughputRPS)),
		stat("p95", formatMs(h.P95LatencyMs)),
		stat("failures", failStyle.Render(formatCount(h.FailureCount))),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stats...) + "\n\n")

	b.WriteString(titleStyle.Render("Timeline") + "\n")
	b.WriteString(plot(doc.Timeline.RPS, width, "requests/sec") + "\n")
	b.WriteString(plot(doc.Timeline.P95, width, "p95 latency (ms)") + "\n\n")

	b.WriteString(titleStyle.Render("Endpoints") + "\n")
	b.WriteString(endpointBars(doc.Endpoints, width) + "\n")

	c := doc.Capacity
	b.WriteString(titleStyle.Render("Capacity") + "\n")
	b.WriteString(fmt.Sprintf("safe %s  warning %s  projected hourly loss %s\n",
		formatRPS(c.SafeRPS), formatRPS(c.WarningRPS), formatCount(c.ProjectedHourlyLoss)))
	b.WriteString(noteStyle.Render(c.Note) + "\n\n")

	b.WriteString(titleStyle.Render("Findings") + "\n")
	b.WriteString(fmt.Sprintf("peak %s req/s, bottleneck %s\n", formatCount(doc.Insights.PeakRPS), doc.Insights.BottleneckEndpoint))
	for _, r := range doc.Insights.Recommendations {
		b.WriteString("- " + r + "\n")
	}
	for _, w := range doc.Warnings {
		b.WriteString(failStyle.Render("warning") + " " + w.String() + "\n")
	}
	return b.String()
}

func stat(label, value string) string {
	return boxStyle.Render(labelStyle.Render(label) + "\n" + value)
}

func plot(series []float64, width int, caption string) string {
	if len(series) < 2 {
		return noteStyle.Render(fmt.Sprintf("%s: not enough intervals to plot", caption))
	}
	return asciigraph.Plot(series,
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// endpointBars draws one bar per endpoint scaled to the largest p95.
func endpointBars(endpoints []types.EndpointStat, width int) string {
	maxP95 := 0.0
	maxName := 0
	for _, e := range endpoints {
		if e.P95 > maxP95 {
			maxP95 = e.P95
		}
		if len(e.Name) > maxName {
			maxName = len(e.Name)
		}
	}
	if maxP95 == 0 {
		maxP95 = 1
	}
	barWidth := width - maxName - 14
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		n := min(max(int(e.P95/maxP95*float64(barWidth)), 0), barWidth)
		bar := strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
		if e.Slow {
			bar = failStyle.Render(bar)
		}
		lines = append(lines, fmt.Sprintf("%-*s %s %s", maxName, e.Name, bar, formatMs(e.P95)))
	}
	return strings.Join(lines, "\n")
}
