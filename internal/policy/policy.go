// Package policy evaluates YAML gate policies against a generated document,
// turning performance budgets into CI pass/fail decisions.
package policy

import (
	"fmt"
	"os"
	"path"
	"strings"

	goyaml "gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

type Policy struct {
	Version string `yaml:"version"`
	// MaxTier fails the policy when the run is classified worse than it.
	MaxTier string `yaml:"max_tier"`
	Gates   []Gate `yaml:"gates"`
}

// Gate bounds one metric. With Endpoints set the metric is read from every
// endpoint whose name matches one of the patterns; otherwise from the
// run-wide figures.
type Gate struct {
	ID        string   `yaml:"id"`
	Metric    string   `yaml:"metric"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	Endpoints []string `yaml:"endpoints"`
	Message   string   `yaml:"message"`
}

// Run-wide metric names.
var runMetrics = map[string]func(types.Document) float64{
	"success_rate_percent":  func(d types.Document) float64 { return d.Headline.SuccessRatePercent },
	"throughput_rps":        func(d types.Document) float64 { return d.Headline.ThroughputRPS },
	"p95_latency_ms":        func(d types.Document) float64 { return d.Headline.P95LatencyMs },
	"p99_latency_ms":        func(d types.Document) float64 { return d.LatencyDistribution.P99 },
	"failure_count":         func(d types.Document) float64 { return d.Headline.FailureCount },
	"peak_rps":              func(d types.Document) float64 { return d.Insights.PeakRPS },
	"safe_rps":              func(d types.Document) float64 { return d.Capacity.SafeRPS },
	"projected_hourly_loss": func(d types.Document) float64 { return d.Capacity.ProjectedHourlyLoss },
}

// Per-endpoint metric names.
var endpointMetrics = map[string]func(types.EndpointStat) float64{
	"p50":                  func(e types.EndpointStat) float64 { return e.P50 },
	"p95":                  func(e types.EndpointStat) float64 { return e.P95 },
	"p99":                  func(e types.EndpointStat) float64 { return e.P99 },
	"error_count":          func(e types.EndpointStat) float64 { return e.ErrorCount },
	"timeout_count":        func(e types.EndpointStat) float64 { return e.TimeoutCount },
	"success_rate_percent": func(e types.EndpointStat) float64 { return e.SuccessRatePercent },
}

func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	var p Policy
	if err := goyaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects unknown metrics, gates without bounds and unknown tiers.
func (p Policy) Validate() error {
	if p.MaxTier != "" {
		if _, ok := types.ParseTier(p.MaxTier); !ok {
			return fmt.Errorf("unknown max_tier %q", p.MaxTier)
		}
	}
	for i, g := range p.Gates {
		id := g.ID
		if id == "" {
			id = fmt.Sprintf("gates[%d]", i)
		}
		if g.Min == nil && g.Max == nil {
			return fmt.Errorf("%s: one of min or max is required", id)
		}
		if len(g.Endpoints) > 0 {
			if _, ok := endpointMetrics[g.Metric]; !ok {
				return fmt.Errorf("%s: unknown endpoint metric %q", id, g.Metric)
			}
			continue
		}
		if _, ok := runMetrics[g.Metric]; !ok {
			return fmt.Errorf("%s: unknown metric %q", id, g.Metric)
		}
	}
	return nil
}

// Evaluate returns one violation per breached bound, in gate order.
func Evaluate(p Policy, doc types.Document) []string {
	violations := make([]string, 0)
	if p.MaxTier != "" {
		if limit, ok := types.ParseTier(p.MaxTier); ok && doc.Verdict.Tier.Severity() > limit.Severity() {
			violations = append(violations, fmt.Sprintf("tier %s is worse than the allowed %s", doc.Verdict.Tier, limit))
		}
	}
	for _, g := range p.Gates {
		if len(g.Endpoints) == 0 {
			get, ok := runMetrics[g.Metric]
			if !ok {
				continue
			}
			if msg, breached := check(g, g.Metric, get(doc)); breached {
				violations = append(violations, msg)
			}
			continue
		}
		get, ok := endpointMetrics[g.Metric]
		if !ok {
			continue
		}
		for _, e := range doc.Endpoints {
			if !matchAny(e.Name, g.Endpoints) {
				continue
			}
			if msg, breached := check(g, e.Name+" "+g.Metric, get(e)); breached {
				violations = append(violations, msg)
			}
		}
	}
	return violations
}

func check(g Gate, subject string, v float64) (string, bool) {
	var detail string
	switch {
	case g.Min != nil && v < *g.Min:
		detail = fmt.Sprintf("%s %g is below %g", subject, v, *g.Min)
	case g.Max != nil && v > *g.Max:
		detail = fmt.Sprintf("%s %g exceeds %g", subject, v, *g.Max)
	default:
		return "", false
	}
	prefix := g.ID
	if g.Message != "" {
		prefix = strings.TrimSpace(g.ID + " " + g.Message)
	}
	if prefix == "" {
		return detail, true
	}
	return prefix + ": " + detail, true
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if match(name, p) {
			return true
		}
	}
	return false
}

// match supports path.Match globs plus a trailing "/**" for whole subtrees.
// Endpoint names may carry a "METHOD " prefix, which patterns may omit.
func match(name, pattern string) bool {
	if pattern == "*" || pattern == "**" {
		return true
	}
	candidates := []string{name}
	if i := strings.IndexByte(name, ' '); i > 0 && !strings.Contains(pattern, " ") {
		candidates = append(candidates, name[i+1:])
	}
	for _, c := range candidates {
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(c, prefix+"/") || c == prefix {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, c); ok {
			return true
		}
	}
	return false
}
