package report

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

const namespace = "perfreport"

// Registry exposes doc as gauges in a private registry. Every series carries
// the run's target and environment as constant labels.
func Registry(doc types.Document) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	r := prometheus.WrapRegistererWith(prometheus.Labels{
		"target":      doc.Run.Target,
		"environment": doc.Run.Environment,
	}, reg)

	gauge := func(name, help string, v float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
		g.Set(v)
		r.MustRegister(g)
	}
	vec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
		r.MustRegister(g)
		return g
	}

	h := doc.Headline
	gauge("success_rate_percent", "Share of requests answered with HTTP 200.", h.SuccessRatePercent)
	gauge("throughput_rps", "Average requests per second over the run.", h.ThroughputRPS)
	gauge("requests", "Requests issued during the run.", h.TotalRequests)
	gauge("failed_vusers", "Virtual users that failed.", h.FailureCount)
	gauge("duration_seconds", "Run duration used for rate calculations.", doc.Run.DurationSeconds)
	gauge("peak_rps", "Highest per-interval request rate.", doc.Insights.PeakRPS)
	gauge("projected_hourly_loss", "Failure count extrapolated linearly to one hour.", doc.Capacity.ProjectedHourlyLoss)
	gauge("incomplete_sections", "Report sections that were absent or inconsistent.", float64(len(doc.Warnings)))

	tier := vec("health_tier", "1 for the run's health tier, 0 otherwise.", "tier")
	for _, t := range []types.Tier{types.TierExcellent, types.TierDegraded, types.TierCritical} {
		v := 0.0
		if doc.Verdict.Tier == t {
			v = 1
		}
		tier.WithLabelValues(string(t)).Set(v)
	}

	lat := vec("latency_ms", "Run-wide response time distribution.", "quantile")
	l := doc.LatencyDistribution
	lat.WithLabelValues("min").Set(l.Min)
	lat.WithLabelValues("median").Set(l.Median)
	lat.WithLabelValues("p95").Set(l.P95)
	lat.WithLabelValues("p99").Set(l.P99)
	lat.WithLabelValues("max").Set(l.Max)

	capacity := vec("capacity_rps", "Throughput bounds from the linear capacity estimate.", "bound")
	capacity.WithLabelValues("average").Set(doc.Capacity.AvgRPS)
	capacity.WithLabelValues("safe").Set(doc.Capacity.SafeRPS)
	capacity.WithLabelValues("warning").Set(doc.Capacity.WarningRPS)

	epLat := vec("endpoint_latency_ms", "Per-endpoint response time.", "endpoint", "quantile")
	epErr := vec("endpoint_errors", "Per-endpoint non-200 responses and transport errors.", "endpoint")
	epTimeout := vec("endpoint_timeouts", "Per-endpoint timeouts.", "endpoint")
	epSuccess := vec("endpoint_success_rate_percent", "Per-endpoint success rate.", "endpoint")
	for _, e := range doc.Endpoints {
		epLat.WithLabelValues(e.Name, "p50").Set(e.P50)
		epLat.WithLabelValues(e.Name, "p95").Set(e.P95)
		epLat.WithLabelValues(e.Name, "p99").Set(e.P99)
		epErr.WithLabelValues(e.Name).Set(e.ErrorCount)
		epTimeout.WithLabelValues(e.Name).Set(e.TimeoutCount)
		epSuccess.WithLabelValues(e.Name).Set(e.SuccessRatePercent)
	}
	return reg
}

// BuildPrometheus renders Registry(doc) in the text exposition format.
func BuildPrometheus(doc types.Document) ([]byte, error) {
	families, err := Registry(doc).Gather()
	if err != nil {
		return nil, fmt.Errorf("gather document metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// WritePrometheus writes Registry(doc) to path for the node_exporter
// textfile collector. The file is replaced atomically.
func WritePrometheus(path string, doc types.Document) error {
	return prometheus.WriteToTextfile(path, Registry(doc))
}
