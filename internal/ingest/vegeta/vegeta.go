// Package vegeta converts a vegeta results stream into the report model, so
// attacks run with vegeta can be assessed like any other load test.
package vegeta

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	vegetalib "github.com/tsenart/vegeta/v12/lib"

	"github.com/ogulcanaydogan/perfreport/internal/endpoint"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// MaxBuckets caps the number of intervals a results stream may span.
const MaxBuckets = 100_000

var (
	// ErrUnknownEncoding is returned when the stream is neither gob, JSON nor CSV.
	ErrUnknownEncoding = errors.New("unrecognised vegeta results encoding")
	// ErrMissingTimestamp is returned for results without a timestamp.
	ErrMissingTimestamp = errors.New("result has no timestamp")
	// ErrSpanTooLarge is returned when the results cover MaxBuckets intervals or more.
	ErrSpanTooLarge = errors.New("results span too many intervals")
)

// FromResults decodes every result in r and aggregates them into a report
// with bucketWidth-second intervals.
func FromResults(r io.Reader, bucketWidth float64) (types.RawReport, error) {
	if bucketWidth <= 0 {
		return types.RawReport{}, fmt.Errorf("bucket width must be positive, got %g", bucketWidth)
	}
	dec := vegetalib.DecoderFor(r)
	if dec == nil {
		return types.RawReport{}, ErrUnknownEncoding
	}
	results := make([]vegetalib.Result, 0)
	for {
		var res vegetalib.Result
		if err := dec.Decode(&res); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return types.RawReport{}, fmt.Errorf("decode result %d: %w", len(results)+1, err)
		}
		results = append(results, res)
	}
	return Aggregate(results, bucketWidth)
}

// Aggregate builds the report from already decoded results. Every result
// needs a timestamp and the run may span at most MaxBuckets intervals.
func Aggregate(results []vegetalib.Result, bucketWidth float64) (types.RawReport, error) {
	report := types.RawReport{
		Aggregate: types.AggregateMetrics{
			Counters:  map[string]float64{},
			Summaries: map[string]types.PercentileStats{},
		},
		Intermediate: []types.IntervalMetrics{},
	}
	if len(results) == 0 {
		return report, nil
	}
	for i := range results {
		if results[i].Timestamp.IsZero() {
			return types.RawReport{}, fmt.Errorf("result %d: %w", i+1, ErrMissingTimestamp)
		}
	}
	results = append([]vegetalib.Result(nil), results...)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	earliest := results[0].Timestamp
	latest := results[len(results)-1].Timestamp
	width := time.Duration(bucketWidth * float64(time.Second))
	if width <= 0 {
		return types.RawReport{}, fmt.Errorf("bucket width must be positive, got %g", bucketWidth)
	}
	if span := latest.Sub(earliest) / width; span >= MaxBuckets {
		return types.RawReport{}, fmt.Errorf("%w: %s between first and last result is %d intervals of %gs (max %d)",
			ErrSpanTooLarge, latest.Sub(earliest), int64(span)+1, bucketWidth, MaxBuckets)
	}

	total := &vegetalib.Metrics{}
	endpoints := map[string]*vegetalib.Metrics{}
	buckets := map[int]*bucket{}
	maxBucket := 0

	for i := range results {
		res := &results[i]
		total.Add(res)
		name := endpointName(res)
		m, ok := endpoints[name]
		if !ok {
			m = &vegetalib.Metrics{}
			endpoints[name] = m
		}
		m.Add(res)

		idx := int(res.Timestamp.Sub(earliest) / width)
		b, ok := buckets[idx]
		if !ok {
			b = newBucket()
			buckets[idx] = b
		}
		b.add(res)
		if idx > maxBucket {
			maxBucket = idx
		}

		count(report.Aggregate.Counters, res, "")
		count(report.Aggregate.Counters, res, endpoint.CounterKey(name, ""))
	}

	total.Close()
	report.Aggregate.Summaries[types.SummaryResponseTime] = stats(total.Latencies)
	for name, m := range endpoints {
		m.Close()
		report.Aggregate.Summaries[endpoint.ResponseTimeKey(name)] = stats(m.Latencies)
	}

	failed := report.Aggregate.Counters[types.CounterVUsersFailed]
	report.Aggregate.Counters[types.CounterVUsersCreated] = float64(len(results))
	report.Aggregate.Counters["vusers.completed"] = float64(len(results)) - failed

	report.Aggregate.FirstMetricAt = float64(earliest.UnixMilli())
	report.Aggregate.LastMetricAt = float64(latest.UnixMilli())
	report.Aggregate.Period = float64(total.Duration.Milliseconds())

	for i := 0; i <= maxBucket; i++ {
		start := earliest.Add(time.Duration(i) * width)
		b, ok := buckets[i]
		if !ok {
			b = newBucket()
		}
		report.Intermediate = append(report.Intermediate, b.interval(start))
	}

	report.Config = types.RunConfig{
		Target: target(results[0].URL),
		Phases: []types.Phase{{
			Name:        attackName(results[0]),
			Duration:    total.Duration.Seconds(),
			ArrivalRate: finite(total.Rate),
		}},
	}
	return report, nil
}

type bucket struct {
	metrics  *vegetalib.Metrics
	counters map[string]float64
}

func newBucket() *bucket {
	return &bucket{metrics: &vegetalib.Metrics{}, counters: map[string]float64{}}
}

func (b *bucket) add(res *vegetalib.Result) {
	b.metrics.Add(res)
	count(b.counters, res, "")
}

func (b *bucket) interval(start time.Time) types.IntervalMetrics {
	im := types.IntervalMetrics{
		Counters:  b.counters,
		Summaries: map[string]types.PercentileStats{},
		Period:    float64(start.UnixMilli()),
	}
	if b.metrics.Requests > 0 {
		b.metrics.Close()
		im.Summaries[types.SummaryResponseTime] = stats(b.metrics.Latencies)
	}
	return im
}

// count increments the request, status and error counters for res. With an
// empty prefix the run-wide keys are used; otherwise the per-endpoint ones.
func count(counters map[string]float64, res *vegetalib.Result, prefix string) {
	if prefix == "" {
		counters[types.CounterRequests]++
		if res.Code != 0 {
			counters[types.CounterCodePrefix+strconv.Itoa(int(res.Code))]++
			counters["http.responses"]++
		}
		if res.Error != "" {
			counters[types.CounterErrorPrefix+ErrorCode(res.Error)]++
		}
		if failed(res) {
			counters[types.CounterVUsersFailed]++
		}
		return
	}
	if res.Code != 0 {
		counters[prefix+"codes."+strconv.Itoa(int(res.Code))]++
	}
	if res.Error != "" {
		counters[prefix+"errors."+ErrorCode(res.Error)]++
	}
}

func failed(res *vegetalib.Result) bool {
	return res.Error != "" || res.Code == 0 || res.Code >= 400
}

// ErrorCode maps a vegeta error message onto the errno-style codes the
// report conventions use.
func ErrorCode(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "timeout"), strings.Contains(m, "deadline exceeded"):
		return "ETIMEDOUT"
	case strings.Contains(m, "connection refused"):
		return "ECONNREFUSED"
	case strings.Contains(m, "connection reset"):
		return "ECONNRESET"
	default:
		return "EUNKNOWN"
	}
}

func endpointName(res *vegetalib.Result) string {
	method := res.Method
	if method == "" {
		method = "GET"
	}
	path := res.URL
	if u, err := url.Parse(res.URL); err == nil && u.Host != "" {
		path = u.EscapedPath()
		if path == "" {
			path = "/"
		}
	}
	if path == "" {
		path = "unknown"
	}
	return method + " " + path
}

func target(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func attackName(res vegetalib.Result) string {
	if res.Attack != "" {
		return res.Attack
	}
	return "vegeta attack"
}

func stats(l vegetalib.LatencyMetrics) types.PercentileStats {
	return types.PercentileStats{
		Min:    ms(l.Min),
		Median: ms(l.P50),
		P95:    ms(l.P95),
		P99:    ms(l.P99),
		Max:    ms(l.Max),
	}
}

func ms(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*10) / 10
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
