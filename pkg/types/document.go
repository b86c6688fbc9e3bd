package types

// Document is the rendering-ready assessment of one load-test run. Renderers
// read it as-is and must not re-derive thresholds or statistics from it.
type Document struct {
	SourceDigest        string                     `json:"source_digest"`
	Run                 RunInfo                    `json:"run"`
	Verdict             HealthVerdict              `json:"verdict"`
	Headline            Headline                   `json:"headline"`
	LatencyDistribution PercentileStats            `json:"latency_distribution"`
	Endpoints           []EndpointStat             `json:"endpoints"`
	Timeline            TimelineSeries             `json:"timeline"`
	Capacity            CapacityEstimate           `json:"capacity"`
	Insights            Insights                   `json:"insights"`
	Warnings            []IncompleteMetricsWarning `json:"warnings"`
}

type RunInfo struct {
	Target          string  `json:"target"`
	Environment     string  `json:"environment"`
	DurationSeconds float64 `json:"duration_seconds"`
	Phases          []Phase `json:"phases"`
	IntervalCount   int     `json:"interval_count"`
}

// Headline carries the four stats shown at the top of every rendering plus
// the raw totals they derive from.
type Headline struct {
	SuccessRatePercent float64 `json:"success_rate_percent"`
	ThroughputRPS      float64 `json:"throughput_rps"`
	P95LatencyMs       float64 `json:"p95_latency_ms"`
	FailureCount       float64 `json:"failure_count"`
	TotalRequests      float64 `json:"total_requests"`
	OKRequests         float64 `json:"ok_requests"`
	VUsersCreated      float64 `json:"vusers_created"`
}

type Insights struct {
	PeakRPS            float64  `json:"peak_rps"`
	BottleneckEndpoint string   `json:"bottleneck_endpoint"`
	Recommendations    []string `json:"recommendations"`
}

// IncompleteMetricsWarning records an optional section that was absent or
// inconsistent and the fallback used in its place. It never aborts a run.
type IncompleteMetricsWarning struct {
	Section string `json:"section"`
	Detail  string `json:"detail"`
}

func (w IncompleteMetricsWarning) String() string {
	return w.Section + ": " + w.Detail
}
