// Package health classifies a run into one of the ordered health tiers.
package health

import (
	"math"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// Signals are the inputs a rule can match on.
type Signals struct {
	SuccessRatePercent float64
	P95Millis          float64
}

// Rule assigns Tier when Matches returns true.
type Rule struct {
	ID      string
	Tier    types.Tier
	Matches func(Signals) bool
}

var verdicts = map[types.Tier]types.HealthVerdict{
	types.TierExcellent: {
		Tier:      types.TierExcellent,
		Color:     "#10b981",
		Narrative: "System is highly responsive and stable.",
	},
	types.TierDegraded: {
		Tier:      types.TierDegraded,
		Color:     "#f59e0b",
		Narrative: "System is slow and dropping connections under peak load.",
	},
	types.TierCritical: {
		Tier:      types.TierCritical,
		Color:     "#ef4444",
		Narrative: "Severe failure rate. Server cannot handle this concurrency level.",
	},
}

// Verdict returns the fixed verdict for tier.
func Verdict(tier types.Tier) types.HealthVerdict {
	return verdicts[tier]
}

// DefaultRules returns the cascade for t, evaluated first match wins. The
// last rule always matches.
func DefaultRules(t config.Thresholds) []Rule {
	return []Rule{
		{
			ID:   "critical-success-rate",
			Tier: types.TierCritical,
			Matches: func(s Signals) bool {
				return s.SuccessRatePercent < t.CriticalSuccessRate
			},
		},
		{
			ID:   "degraded-success-or-latency",
			Tier: types.TierDegraded,
			Matches: func(s Signals) bool {
				return s.SuccessRatePercent < t.DegradedSuccessRate || s.P95Millis > t.DegradedP95Ms
			},
		},
		{
			ID:      "excellent",
			Tier:    types.TierExcellent,
			Matches: func(Signals) bool { return true },
		},
	}
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) Classifier {
	return Classifier{rules: rules}
}

// Classify returns the verdict of the first matching rule. NaN inputs are
// treated as 0 so the result is always one of the defined tiers; if no rule
// matches the most severe tier is returned.
func (c Classifier) Classify(successRatePercent, p95Millis float64) types.HealthVerdict {
	s := Signals{SuccessRatePercent: finite(successRatePercent), P95Millis: finite(p95Millis)}
	for _, r := range c.rules {
		if r.Matches(s) {
			return Verdict(r.Tier)
		}
	}
	return Verdict(types.TierCritical)
}

// SuccessRate returns ok/total as a percentage rounded to two decimals, or 0
// when no requests were made.
func SuccessRate(ok, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(ok/total*100*100) / 100
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
