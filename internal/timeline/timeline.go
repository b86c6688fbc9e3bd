// Package timeline turns per-interval metric snapshots into aligned series.
package timeline

import (
	"math"
	"strconv"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// Extract builds the label, requests-per-second and p95 series. Every series
// has len(intervals) entries. bucketWidth is in seconds; a non-positive or
// non-finite width falls back to the default bucket width.
func Extract(intervals []types.IntervalMetrics, bucketWidth float64) types.TimelineSeries {
	if !(bucketWidth > 0) || math.IsInf(bucketWidth, 0) {
		bucketWidth = config.Default().BucketWidthSeconds
	}
	s := types.TimelineSeries{
		Labels: make([]string, 0, len(intervals)),
		RPS:    make([]float64, 0, len(intervals)),
		P95:    make([]float64, 0, len(intervals)),
	}
	for i, im := range intervals {
		s.Labels = append(s.Labels, Label(i, bucketWidth))
		s.RPS = append(s.RPS, im.Counters[types.CounterRequests]/bucketWidth)
		s.P95 = append(s.P95, im.Summaries[types.SummaryResponseTime].P95)
	}
	return s
}

// Label returns the elapsed-time label of interval i, e.g. "30s".
func Label(i int, bucketWidth float64) string {
	return strconv.FormatFloat(float64(i)*bucketWidth, 'f', -1, 64) + "s"
}

// Peak returns the largest value in series, or 0 when it is empty.
func Peak(series []float64) float64 {
	var peak float64
	for i, v := range series {
		if i == 0 || v > peak {
			peak = v
		}
	}
	return peak
}
