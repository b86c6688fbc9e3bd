// Package capacity derives throughput bounds and a projected failure volume
// from aggregate run totals.
package capacity

import (
	"math"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// ProjectionNote labels ProjectedHourlyLoss wherever it is surfaced.
const ProjectionNote = "Linear extrapolation of the observed failure count to one hour; an approximation, not a forecast."

// Duration sources recorded in CapacityEstimate.DurationSource.
const (
	SourcePeriod       = "period"
	SourceMetricWindow = "metric_window"
	SourceFallback     = "fallback"
)

type Estimator struct {
	safetyMargin     float64
	fallbackDuration float64
}

// NewEstimator reads the safety margin and fallback duration from d. An
// unusable fallback duration is replaced with the built-in default.
func NewEstimator(d config.Defaults) Estimator {
	e := Estimator{safetyMargin: d.SafetyMargin, fallbackDuration: d.FallbackDurationSeconds}
	if !usable(e.fallbackDuration) {
		e.fallbackDuration = config.Default().FallbackDurationSeconds
	}
	return e
}

// Estimate derives the capacity figures. A non-positive or non-finite
// duration is replaced by the fallback duration.
func (e Estimator) Estimate(totalRequests, durationSeconds, failedCount float64) types.CapacityEstimate {
	source := ""
	if !usable(durationSeconds) {
		durationSeconds = e.fallbackDuration
		source = SourceFallback
	}
	avg := totalRequests / durationSeconds
	return types.CapacityEstimate{
		AvgRPS:              avg,
		SafeRPS:             avg * e.safetyMargin,
		WarningRPS:          avg,
		ProjectedHourlyLoss: failedCount * (3600 / durationSeconds),
		DurationSeconds:     durationSeconds,
		DurationSource:      source,
		Note:                ProjectionNote,
	}
}

// RunDuration resolves the run length in seconds from the aggregate: the
// reported period first, then the first/last metric timestamps. ok is false
// when neither is usable.
func RunDuration(a types.AggregateMetrics) (seconds float64, source string, ok bool) {
	if s := a.Period / 1000; usable(s) {
		return s, SourcePeriod, true
	}
	if s := (a.LastMetricAt - a.FirstMetricAt) / 1000; usable(s) {
		return s, SourceMetricWindow, true
	}
	return 0, SourceFallback, false
}

// EstimateRun resolves the run duration from a and estimates capacity.
func (e Estimator) EstimateRun(a types.AggregateMetrics) types.CapacityEstimate {
	seconds, source, _ := RunDuration(a)
	est := e.Estimate(a.Counter(types.CounterRequests), seconds, a.Counter(types.CounterVUsersFailed))
	if est.DurationSource == "" {
		est.DurationSource = source
	}
	return est
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
