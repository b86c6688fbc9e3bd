// Package endpoint derives per-endpoint latency, error and success records
// from the flat summary and counter maps of a report.
package endpoint

import (
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// GenericName labels the record synthesised from aggregate metrics when the
// report carries no per-endpoint summaries.
const GenericName = "Generic Endpoints (Aggregate)"

type Analyzer struct {
	slowP95Ms float64
}

// NewAnalyzer returns an Analyzer flagging endpoints whose p95 exceeds
// slowP95Ms as slow.
func NewAnalyzer(slowP95Ms float64) Analyzer {
	return Analyzer{slowP95Ms: slowP95Ms}
}

// HasEndpointMetrics reports whether any per-endpoint summary is present.
func HasEndpointMetrics(summaries map[string]types.PercentileStats) bool {
	return len(NewMetrics(summaries, nil).Names()) > 0
}

// Analyze returns one record per endpoint, ordered by name. It never returns
// an empty slice.
func (a Analyzer) Analyze(summaries map[string]types.PercentileStats, counters map[string]float64) []types.EndpointStat {
	m := NewMetrics(summaries, counters)
	names := m.Names()
	if len(names) == 0 {
		return []types.EndpointStat{a.generic(summaries, counters)}
	}

	out := make([]types.EndpointStat, 0, len(names))
	for _, name := range names {
		s, _ := m.ResponseTime(name)
		errs, _ := m.Lookup(name, KindErrors)
		timeouts, _ := m.Lookup(name, KindTimeouts)
		ok, _ := m.Lookup(name, KindOK)
		responses, _ := m.Lookup(name, KindResponses)
		out = append(out, a.stat(name, s, errs, timeouts, ok, responses))
	}
	return out
}

func (a Analyzer) generic(summaries map[string]types.PercentileStats, counters map[string]float64) types.EndpointStat {
	return a.stat(GenericName,
		summaries[types.SummaryResponseTime],
		aggregateLookup(counters, KindErrors),
		aggregateLookup(counters, KindTimeouts),
		aggregateLookup(counters, KindOK),
		aggregateLookup(counters, KindResponses),
	)
}

func (a Analyzer) stat(name string, s types.PercentileStats, errs, timeouts, ok, responses float64) types.EndpointStat {
	return types.EndpointStat{
		Name:               name,
		P50:                s.Median,
		P95:                s.P95,
		P99:                s.P99,
		ErrorCount:         errs,
		TimeoutCount:       timeouts,
		SuccessRatePercent: successRate(ok, responses),
		Slow:               s.P95 > a.slowP95Ms,
	}
}

// successRate treats an endpoint with no recorded responses as fully
// successful.
func successRate(ok, responses float64) float64 {
	if responses <= 0 {
		return 100
	}
	return ok / responses * 100
}
