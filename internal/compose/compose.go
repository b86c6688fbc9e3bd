// Package compose assembles the derived pieces of an assessment into the
// rendering-ready document.
package compose

import (
	"fmt"

	"github.com/ogulcanaydogan/perfreport/internal/capacity"
	"github.com/ogulcanaydogan/perfreport/internal/endpoint"
	"github.com/ogulcanaydogan/perfreport/internal/hash"
	"github.com/ogulcanaydogan/perfreport/internal/health"
	"github.com/ogulcanaydogan/perfreport/internal/timeline"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// NoBottleneck is reported when there are no endpoints to compare.
const NoBottleneck = "N/A"

// Compose builds the document. It performs no I/O and does not modify its
// arguments; slices in the result are copies.
func Compose(raw types.RawReport, endpoints []types.EndpointStat, verdict types.HealthVerdict, series types.TimelineSeries, est types.CapacityEstimate) types.Document {
	agg := raw.Aggregate
	rt := agg.Summary(types.SummaryResponseTime)
	total := agg.Counter(types.CounterRequests)
	ok := agg.Counter(types.CounterCodeOK)
	sourceDigest, _, digestErr := hash.HashCanonicalJSON(raw)

	doc := types.Document{
		SourceDigest: sourceDigest,
		Run: types.RunInfo{
			Target:          raw.Config.Target,
			Environment:     raw.Config.Environment,
			DurationSeconds: est.DurationSeconds,
			Phases:          append([]types.Phase{}, raw.Config.Phases...),
			IntervalCount:   len(raw.Intermediate),
		},
		Verdict: verdict,
		Headline: types.Headline{
			SuccessRatePercent: health.SuccessRate(ok, total),
			ThroughputRPS:      est.AvgRPS,
			P95LatencyMs:       rt.P95,
			FailureCount:       agg.Counter(types.CounterVUsersFailed),
			TotalRequests:      total,
			OKRequests:         ok,
			VUsersCreated:      agg.Counter(types.CounterVUsersCreated),
		},
		LatencyDistribution: rt,
		Endpoints:           append([]types.EndpointStat{}, endpoints...),
		Timeline: types.TimelineSeries{
			Labels: append([]string{}, series.Labels...),
			RPS:    append([]float64{}, series.RPS...),
			P95:    append([]float64{}, series.P95...),
		},
		Capacity: est,
	}
	doc.Insights = types.Insights{
		PeakRPS:            timeline.Peak(series.RPS),
		BottleneckEndpoint: Bottleneck(endpoints),
	}
	doc.Insights.Recommendations = recommendations(doc)
	doc.Warnings = warnings(raw, est, digestErr)
	return doc
}

// Bottleneck returns the name of the endpoint with the largest p95. Ties go
// to the earliest entry.
func Bottleneck(endpoints []types.EndpointStat) string {
	if len(endpoints) == 0 {
		return NoBottleneck
	}
	best := 0
	for i := 1; i < len(endpoints); i++ {
		if endpoints[i].P95 > endpoints[best].P95 {
			best = i
		}
	}
	return endpoints[best].Name
}

// warnings lists the incomplete sections. A report that cannot be hashed,
// for example one holding non-finite numbers, keeps an empty SourceDigest.
func warnings(raw types.RawReport, est types.CapacityEstimate, digestErr error) []types.IncompleteMetricsWarning {
	out := make([]types.IncompleteMetricsWarning, 0)
	add := func(section, format string, args ...any) {
		out = append(out, types.IncompleteMetricsWarning{Section: section, Detail: fmt.Sprintf(format, args...)})
	}
	agg := raw.Aggregate
	if agg.Counter(types.CounterRequests) == 0 {
		add("aggregate.counters", "no %s counter; success rate reported as 0%%", types.CounterRequests)
	}
	rt, hasRT := agg.Summaries[types.SummaryResponseTime]
	switch {
	case !hasRT:
		add("aggregate.summaries", "no %s summary; latency figures are zero", types.SummaryResponseTime)
	case !rt.Ordered():
		add("aggregate.summaries", "%s percentiles are not in ascending order", types.SummaryResponseTime)
	}
	if !endpoint.HasEndpointMetrics(agg.Summaries) {
		add("endpoints", "no per-endpoint summaries; reporting %q from aggregate metrics", endpoint.GenericName)
	}
	if len(raw.Intermediate) == 0 {
		add("intermediate", "no interval metrics; timeline is empty")
	}
	if est.DurationSource == capacity.SourceFallback {
		add("aggregate.period", "run duration unknown; assumed %gs", est.DurationSeconds)
	}
	if digestErr != nil {
		add("source_digest", "report could not be hashed: %v", digestErr)
	}
	return out
}

func recommendations(doc types.Document) []string {
	out := make([]string, 0)
	var timeouts float64
	for _, e := range doc.Endpoints {
		timeouts += e.TimeoutCount
	}
	if timeouts > 0 {
		out = append(out, fmt.Sprintf("%.0f timeouts were recorded; review connection pooling and CDN caching for transient failures during ramp-up.", timeouts))
	}
	for _, e := range doc.Endpoints {
		if e.Name == doc.Insights.BottleneckEndpoint && e.Slow {
			out = append(out, fmt.Sprintf("Profile %s first: its p95 of %.0fms is the highest of all endpoints.", e.Name, e.P95))
			break
		}
	}
	switch doc.Verdict.Tier {
	case types.TierCritical:
		out = append(out, fmt.Sprintf("Keep sustained load below the safe throughput of %.1f req/s until the failure rate is addressed.", doc.Capacity.SafeRPS))
	case types.TierDegraded:
		out = append(out, fmt.Sprintf("Treat %.1f req/s as the warning threshold; add headroom before raising concurrency.", doc.Capacity.WarningRPS))
	}
	if len(out) == 0 {
		out = append(out, "No action required at this load level.")
	}
	return out
}
