package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known counter and summary keys emitted by the load generator.
const (
	CounterRequests      = "http.requests"
	CounterCodeOK        = "http.codes.200"
	CounterCodePrefix    = "http.codes."
	CounterErrorPrefix   = "errors."
	CounterVUsersCreated = "vusers.created"
	CounterVUsersFailed  = "vusers.failed"
	SummaryResponseTime  = "http.response_time"
)

// RawReport is the load-test result as loaded from disk. It is never mutated
// after parsing.
type RawReport struct {
	Aggregate    AggregateMetrics  `json:"aggregate"`
	Intermediate []IntervalMetrics `json:"intermediate"`
	Config       RunConfig         `json:"config"`
}

type AggregateMetrics struct {
	Counters      map[string]float64         `json:"counters"`
	Summaries     map[string]PercentileStats `json:"summaries"`
	Period        float64                    `json:"period"`
	FirstMetricAt float64                    `json:"firstMetricAt"`
	LastMetricAt  float64                    `json:"lastMetricAt"`
}

// Counter returns the named counter or 0.
func (a AggregateMetrics) Counter(key string) float64 {
	return a.Counters[key]
}

// Summary returns the named summary or a zero-filled record.
func (a AggregateMetrics) Summary(key string) PercentileStats {
	return a.Summaries[key]
}

// IntervalMetrics is one fixed-width bucket of the run.
type IntervalMetrics struct {
	Counters  map[string]float64         `json:"counters"`
	Summaries map[string]PercentileStats `json:"summaries"`
	Period    float64                    `json:"period"`
}

type PercentileStats struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
}

// UnmarshalJSON accepts the generator's summary objects, which carry many more
// quantiles than we keep. median falls back to p50 when absent.
func (p *PercentileStats) UnmarshalJSON(data []byte) error {
	var aux struct {
		Min    float64  `json:"min"`
		Median *float64 `json:"median"`
		P50    *float64 `json:"p50"`
		P95    float64  `json:"p95"`
		P99    float64  `json:"p99"`
		Max    float64  `json:"max"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = PercentileStats{Min: aux.Min, P95: aux.P95, P99: aux.P99, Max: aux.Max}
	switch {
	case aux.Median != nil:
		p.Median = *aux.Median
	case aux.P50 != nil:
		p.Median = *aux.P50
	}
	return nil
}

// Ordered reports whether min <= median <= p95 <= p99 <= max holds.
func (p PercentileStats) Ordered() bool {
	return p.Min <= p.Median && p.Median <= p.P95 && p.P95 <= p.P99 && p.P99 <= p.Max
}

// IsZero reports whether no statistic was recorded.
func (p PercentileStats) IsZero() bool {
	return p == PercentileStats{}
}

type RunConfig struct {
	Target      string  `json:"target"`
	Environment string  `json:"environment"`
	Phases      []Phase `json:"phases"`
}

// Phase describes one arrival phase of the run configuration.
type Phase struct {
	Name         string  `json:"name,omitempty"`
	Duration     float64 `json:"duration"`
	ArrivalRate  float64 `json:"arrivalRate,omitempty"`
	RampTo       float64 `json:"rampTo,omitempty"`
	ArrivalCount float64 `json:"arrivalCount,omitempty"`
	MaxVusers    float64 `json:"maxVusers,omitempty"`
}

// UnmarshalJSON accepts numbers, numeric strings and duration strings such as
// "2m" for the numeric phase fields. Durations are stored in seconds.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name         string          `json:"name"`
		Duration     json.RawMessage `json:"duration"`
		ArrivalRate  json.RawMessage `json:"arrivalRate"`
		RampTo       json.RawMessage `json:"rampTo"`
		ArrivalCount json.RawMessage `json:"arrivalCount"`
		MaxVusers    json.RawMessage `json:"maxVusers"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := Phase{Name: aux.Name}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *float64
	}{
		{"duration", aux.Duration, &out.Duration},
		{"arrivalRate", aux.ArrivalRate, &out.ArrivalRate},
		{"rampTo", aux.RampTo, &out.RampTo},
		{"arrivalCount", aux.ArrivalCount, &out.ArrivalCount},
		{"maxVusers", aux.MaxVusers, &out.MaxVusers},
	}
	for _, f := range fields {
		v, err := flexNumber(f.raw)
		if err != nil {
			return fmt.Errorf("phase %s: %w", f.name, err)
		}
		*f.dst = v
	}
	*p = out
	return nil
}

func flexNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected number or string, got %s", string(raw))
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return d.Seconds(), nil
}
