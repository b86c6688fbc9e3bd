package report

import (
	"fmt"
	"strings"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

func BuildMarkdown(doc types.Document) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Performance Report: %s\n\n", doc.Run.Target))
	b.WriteString(fmt.Sprintf("- Verdict: **%s**. %s\n", doc.Verdict.Tier, doc.Verdict.Narrative))
	b.WriteString(fmt.Sprintf("- Environment: `%s`\n", doc.Run.Environment))
	b.WriteString(fmt.Sprintf("- Duration: `%gs`", doc.Run.DurationSeconds))
	if doc.Capacity.DurationSource != "" {
		b.WriteString(fmt.Sprintf(" (%s)", doc.Capacity.DurationSource))
	}
	b.WriteString("\n")
	if doc.SourceDigest != "" {
		b.WriteString(fmt.Sprintf("- Source: `%s`\n", doc.SourceDigest))
	}

	h := doc.Headline
	b.WriteString("\n## Headline\n\n")
	b.WriteString("| Success Rate | Throughput | P95 Latency | Failures |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", formatPercent(h.SuccessRatePercent), formatRPS(h.ThroughputRPS), formatMs(h.P95LatencyMs), formatCount(h.FailureCount)))

	l := doc.LatencyDistribution
	b.WriteString("\n## Latency Distribution\n\n")
	b.WriteString("| Min | Median | P95 | P99 | Max |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", formatMs(l.Min), formatMs(l.Median), formatMs(l.P95), formatMs(l.P99), formatMs(l.Max)))

	b.WriteString("\n## Endpoints\n\n")
	b.WriteString("| Endpoint | P50 | P95 | P99 | Errors | Timeouts | Success | Slow |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---|\n")
	for _, e := range doc.Endpoints {
		slow := ""
		if e.Slow {
			slow = "yes"
		}
		b.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s | %s | %s | %s |\n",
			escapeCell(e.Name), formatMs(e.P50), formatMs(e.P95), formatMs(e.P99),
			formatCount(e.ErrorCount), formatCount(e.TimeoutCount), formatPercent(e.SuccessRatePercent), slow))
	}

	if doc.Timeline.Len() > 0 {
		b.WriteString("\n## Timeline\n\n")
		b.WriteString("| Elapsed | Req/s | P95 |\n")
		b.WriteString("|---|---:|---:|\n")
		for i, label := range doc.Timeline.Labels {
			b.WriteString(fmt.Sprintf("| %s | %g | %s |\n", label, doc.Timeline.RPS[i], formatMs(doc.Timeline.P95[i])))
		}
	}

	c := doc.Capacity
	b.WriteString("\n## Capacity (linear estimate)\n\n")
	b.WriteString(fmt.Sprintf("- Average throughput: `%s`\n", formatRPS(c.AvgRPS)))
	b.WriteString(fmt.Sprintf("- Safe throughput: `%s`\n", formatRPS(c.SafeRPS)))
	b.WriteString(fmt.Sprintf("- Warning threshold: `%s`\n", formatRPS(c.WarningRPS)))
	b.WriteString(fmt.Sprintf("- Projected hourly loss: `%s` requests\n", formatCount(c.ProjectedHourlyLoss)))
	b.WriteString(fmt.Sprintf("\n> %s\n", c.Note))

	b.WriteString("\n## Findings\n\n")
	b.WriteString(fmt.Sprintf("- Peak throughput: %s requests per second.\n", formatCount(doc.Insights.PeakRPS)))
	b.WriteString(fmt.Sprintf("- Bottleneck: `%s` has the highest p95 latency.\n", escapeCell(doc.Insights.BottleneckEndpoint)))
	for _, r := range doc.Insights.Recommendations {
		b.WriteString("- " + r + "\n")
	}

	if len(doc.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range doc.Warnings {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", w.Section, w.Detail))
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
