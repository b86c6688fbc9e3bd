package types

import "strings"

type EndpointStat struct {
	Name               string  `json:"name"`
	P50                float64 `json:"p50"`
	P95                float64 `json:"p95"`
	P99                float64 `json:"p99"`
	ErrorCount         float64 `json:"error_count"`
	TimeoutCount       float64 `json:"timeout_count"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
	Slow               bool    `json:"slow"`
}

// Tier is the overall health classification, ordered by severity.
type Tier string

const (
	TierExcellent Tier = "Excellent"
	TierDegraded  Tier = "Degraded"
	TierCritical  Tier = "Critical"
)

// Severity orders tiers; higher is worse. Unknown tiers rank below Excellent.
func (t Tier) Severity() int {
	switch t {
	case TierExcellent:
		return 1
	case TierDegraded:
		return 2
	case TierCritical:
		return 3
	default:
		return 0
	}
}

// ParseTier matches a tier name case-insensitively.
func ParseTier(s string) (Tier, bool) {
	for _, t := range []Tier{TierExcellent, TierDegraded, TierCritical} {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

type HealthVerdict struct {
	Tier      Tier   `json:"tier"`
	Color     string `json:"color"`
	Narrative string `json:"narrative"`
}

// TimelineSeries holds three aligned series indexed by interval position.
type TimelineSeries struct {
	Labels []string  `json:"labels"`
	RPS    []float64 `json:"rps"`
	P95    []float64 `json:"p95"`
}

// Len returns the number of intervals.
func (s TimelineSeries) Len() int {
	return len(s.Labels)
}

type CapacityEstimate struct {
	AvgRPS              float64 `json:"avg_rps"`
	SafeRPS             float64 `json:"safe_rps"`
	WarningRPS          float64 `json:"warning_rps"`
	ProjectedHourlyLoss float64 `json:"projected_hourly_loss"`
	DurationSeconds     float64 `json:"duration_seconds"`
	DurationSource      string  `json:"duration_source"`
	Note                string  `json:"note"`
}
