package endpoint

import (
	"sort"
	"strings"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

const (
	pluginPrefix       = "plugins.metrics-by-endpoint."
	responseTimePrefix = pluginPrefix + "response_time."
	timeoutCode        = "ETIMEDOUT"
	okCode             = "200"
)

// Kind selects a per-endpoint counter family.
type Kind int

const (
	// KindTimeouts is the ETIMEDOUT error counter.
	KindTimeouts Kind = iota
	// KindErrors sums every errors.* counter.
	KindErrors
	// KindOK is the 200 status counter.
	KindOK
	// KindResponses sums every codes.* counter.
	KindResponses
)

func (k Kind) String() string {
	switch k {
	case KindTimeouts:
		return "timeouts"
	case KindErrors:
		return "errors"
	case KindOK:
		return "ok"
	case KindResponses:
		return "responses"
	default:
		return "unknown"
	}
}

// Metrics hides the flat, dot-namespaced key conventions of the
// metrics-by-endpoint plugin behind typed lookups.
type Metrics struct {
	summaries map[string]types.PercentileStats
	counters  map[string]float64
}

func NewMetrics(summaries map[string]types.PercentileStats, counters map[string]float64) Metrics {
	return Metrics{summaries: summaries, counters: counters}
}

// ResponseTimeKey returns the summary key holding name's latency stats.
func ResponseTimeKey(name string) string {
	return responseTimePrefix + name
}

// CounterKey returns the counter key for name with the given suffix, for
// example CounterKey("/api", "codes.200").
func CounterKey(name, suffix string) string {
	return pluginPrefix + name + "." + suffix
}

// Names returns the endpoint names present in the summaries, sorted.
func (m Metrics) Names() []string {
	names := make([]string, 0)
	for k := range m.summaries {
		if name, ok := strings.CutPrefix(k, responseTimePrefix); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResponseTime returns name's latency summary.
func (m Metrics) ResponseTime(name string) (types.PercentileStats, bool) {
	s, ok := m.summaries[ResponseTimeKey(name)]
	return s, ok
}

// Lookup returns the counter value of kind for name. ok is false when no
// matching counter exists.
func (m Metrics) Lookup(name string, kind Kind) (float64, bool) {
	switch kind {
	case KindTimeouts:
		v, ok := m.counters[CounterKey(name, "errors."+timeoutCode)]
		return v, ok
	case KindOK:
		v, ok := m.counters[CounterKey(name, "codes."+okCode)]
		return v, ok
	case KindErrors:
		return m.sumPrefix(CounterKey(name, "errors."))
	case KindResponses:
		return m.sumPrefix(CounterKey(name, "codes."))
	default:
		return 0, false
	}
}

func (m Metrics) sumPrefix(prefix string) (float64, bool) {
	var total float64
	found := false
	for k, v := range m.counters {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" && !strings.Contains(rest, ".") {
			total += v
			found = true
		}
	}
	return total, found
}

// aggregateLookup applies the same counter families to the run-wide
// http.codes.* and errors.* counters.
func aggregateLookup(counters map[string]float64, kind Kind) float64 {
	var prefix string
	switch kind {
	case KindTimeouts:
		return counters[types.CounterErrorPrefix+timeoutCode]
	case KindOK:
		return counters[types.CounterCodeOK]
	case KindErrors:
		prefix = types.CounterErrorPrefix
	case KindResponses:
		prefix = types.CounterCodePrefix
	default:
		return 0
	}
	var total float64
	for k, v := range counters {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" && !strings.Contains(rest, ".") {
			total += v
		}
	}
	return total
}
