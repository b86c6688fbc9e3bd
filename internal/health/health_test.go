package health

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

func defaultClassifier() Classifier {
	return NewClassifier(DefaultRules(config.Default().Thresholds))
}

func TestClassify_Boundaries(t *testing.T) {
	c := defaultClassifier()
	tests := []struct {
		name    string
		success float64
		p95     float64
		want    types.Tier
	}{
		{"just below critical", 89.99, 100, types.TierCritical},
		{"exactly 90 is not critical", 90.0, 100, types.TierDegraded},
		{"exactly 98 and 3000 is excellent", 98.0, 3000, types.TierExcellent},
		{"p95 just above 3000", 98.0, 3000.01, types.TierDegraded},
		{"success just below 98", 97.99, 10, types.TierDegraded},
		{"perfect", 100, 50, types.TierExcellent},
		{"critical wins over latency", 50, 9000, types.TierCritical},
		{"zero success", 0, 0, types.TierCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.success, tt.p95)
			assert.Equal(t, tt.want, got.Tier)
		})
	}
}

func TestClassify_Scenarios(t *testing.T) {
	c := defaultClassifier()

	a := SuccessRate(1000, 1000)
	assert.Equal(t, 100.0, a)
	assert.Equal(t, types.TierExcellent, c.Classify(a, 0).Tier)

	b := SuccessRate(850, 1000)
	assert.Equal(t, 85.0, b)
	assert.Equal(t, types.TierCritical, c.Classify(b, 2500).Tier)

	cc := SuccessRate(970, 1000)
	assert.Equal(t, 97.0, cc)
	assert.Equal(t, types.TierDegraded, c.Classify(cc, 3500).Tier)
}

func TestClassify_VerdictCarriesColorAndNarrative(t *testing.T) {
	v := defaultClassifier().Classify(85, 0)
	assert.Equal(t, "#ef4444", v.Color)
	assert.Contains(t, v.Narrative, "Severe failure rate")

	v = defaultClassifier().Classify(100, 0)
	assert.Equal(t, "#10b981", v.Color)
}

func TestClassify_NaNIsTreatedAsZero(t *testing.T) {
	v := defaultClassifier().Classify(math.NaN(), math.NaN())
	assert.Equal(t, types.TierCritical, v.Tier)
}

func TestClassify_NoRulesFallsBackToCritical(t *testing.T) {
	v := NewClassifier(nil).Classify(100, 0)
	assert.Equal(t, types.TierCritical, v.Tier)
}

func TestClassify_InsertedRuleTakesPriority(t *testing.T) {
	rules := append([]Rule{{
		ID:      "latency-critical",
		Tier:    types.TierCritical,
		Matches: func(s Signals) bool { return s.P95Millis > 10000 },
	}}, DefaultRules(config.Default().Thresholds)...)
	c := NewClassifier(rules)
	assert.Equal(t, types.TierCritical, c.Classify(100, 12000).Tier)
	assert.Equal(t, types.TierExcellent, c.Classify(100, 100).Tier)
}

func TestClassify_ExactlyOneTier(t *testing.T) {
	c := defaultClassifier()
	valid := map[types.Tier]bool{types.TierExcellent: true, types.TierDegraded: true, types.TierCritical: true}
	for success := 0.0; success <= 100; success += 0.5 {
		for _, p95 := range []float64{0, 2999, 3000, 3001, 50000} {
			got := c.Classify(success, p95)
			assert.True(t, valid[got.Tier], "tier %q", got.Tier)
		}
	}
}

func TestSuccessRate_ZeroTotal(t *testing.T) {
	assert.Zero(t, SuccessRate(0, 0))
	assert.Zero(t, SuccessRate(10, 0))
	assert.Equal(t, 33.33, SuccessRate(1, 3))
}
