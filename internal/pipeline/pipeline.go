// Package pipeline wires parsing, derivation and composition into a single
// report generation run.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ogulcanaydogan/perfreport/internal/capacity"
	"github.com/ogulcanaydogan/perfreport/internal/compose"
	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/internal/endpoint"
	"github.com/ogulcanaydogan/perfreport/internal/health"
	"github.com/ogulcanaydogan/perfreport/internal/ingest/vegeta"
	"github.com/ogulcanaydogan/perfreport/internal/parse"
	"github.com/ogulcanaydogan/perfreport/internal/timeline"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

// InputFormat names the encoding of the load-test results.
type InputFormat string

const (
	InputArtillery InputFormat = "artillery"
	InputVegeta    InputFormat = "vegeta"
)

// ParseInputFormat accepts "artillery" (also the empty string) or "vegeta".
func ParseInputFormat(s string) (InputFormat, error) {
	switch InputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", InputArtillery:
		return InputArtillery, nil
	case InputVegeta:
		return InputVegeta, nil
	default:
		return "", fmt.Errorf("unsupported input format %q (want artillery or vegeta)", s)
	}
}

type Options struct {
	InputFormat InputFormat
	SchemaPath  string
}

type Pipeline struct {
	defaults   config.Defaults
	opts       Options
	logger     *zap.Logger
	analyzer   endpoint.Analyzer
	classifier health.Classifier
	estimator  capacity.Estimator
}

// New returns a pipeline using d for every fallback and threshold. A nil
// logger discards output.
func New(d config.Defaults, logger *zap.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InputFormat == "" {
		opts.InputFormat = InputArtillery
	}
	if !(d.BucketWidthSeconds > 0) || math.IsInf(d.BucketWidthSeconds, 0) {
		d.BucketWidthSeconds = config.Default().BucketWidthSeconds
	}
	return &Pipeline{
		defaults:   d,
		opts:       opts,
		logger:     logger,
		analyzer:   endpoint.NewAnalyzer(d.SlowEndpointP95Ms),
		classifier: health.NewClassifier(health.DefaultRules(d.Thresholds)),
		estimator:  capacity.NewEstimator(d),
	}
}

// Run loads the report at path and generates its document.
func (p *Pipeline) Run(path string) (types.Document, error) {
	raw, err := p.Load(path)
	if err != nil {
		return types.Document{}, err
	}
	return p.Generate(raw), nil
}

// RunBytes generates the document for an in-memory report.
func (p *Pipeline) RunBytes(body []byte) (types.Document, error) {
	raw, err := p.Decode(body)
	if err != nil {
		return types.Document{}, err
	}
	return p.Generate(raw), nil
}

// Load reads the report at path in the configured input format.
func (p *Pipeline) Load(path string) (types.RawReport, error) {
	if p.opts.InputFormat != InputVegeta {
		return parse.Load(path, parse.Options{Defaults: p.defaults, SchemaPath: p.opts.SchemaPath})
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.RawReport{}, &parse.MissingInputError{Path: path, Err: err}
		}
		return types.RawReport{}, fmt.Errorf("open results %s: %w", path, err)
	}
	defer f.Close()
	raw, err := p.fromVegeta(f)
	if err != nil {
		var me *parse.MalformedInputError
		if errors.As(err, &me) {
			me.Path = path
		}
		return types.RawReport{}, err
	}
	return raw, nil
}

// Decode parses body in the configured input format.
func (p *Pipeline) Decode(body []byte) (types.RawReport, error) {
	if p.opts.InputFormat == InputVegeta {
		return p.fromVegeta(bytes.NewReader(body))
	}
	return parse.Parse(body, parse.Options{Defaults: p.defaults, SchemaPath: p.opts.SchemaPath})
}

func (p *Pipeline) fromVegeta(r io.Reader) (types.RawReport, error) {
	raw, err := vegeta.FromResults(r, p.defaults.BucketWidthSeconds)
	if err != nil {
		return types.RawReport{}, &parse.MalformedInputError{Reason: err.Error(), Err: err}
	}
	return parse.Normalize(raw, p.defaults), nil
}

// Generate derives every section of the document from raw. It performs no
// I/O besides logging incomplete-metric warnings.
func (p *Pipeline) Generate(raw types.RawReport) types.Document {
	agg := raw.Aggregate
	endpoints := p.analyzer.Analyze(agg.Summaries, agg.Counters)
	series := timeline.Extract(raw.Intermediate, p.defaults.BucketWidthSeconds)
	success := health.SuccessRate(agg.Counter(types.CounterCodeOK), agg.Counter(types.CounterRequests))
	verdict := p.classifier.Classify(success, agg.Summary(types.SummaryResponseTime).P95)
	est := p.estimator.EstimateRun(agg)

	doc := compose.Compose(raw, endpoints, verdict, series, est)
	for _, w := range doc.Warnings {
		p.logger.Warn("incomplete metrics", zap.String("section", w.Section), zap.String("detail", w.Detail))
	}
	p.logger.Debug("document generated",
		zap.String("digest", doc.SourceDigest),
		zap.String("tier", string(doc.Verdict.Tier)),
		zap.Int("endpoints", len(doc.Endpoints)),
	)
	return doc
}

// Gate reports whether doc's tier is at least as severe as failOn.
func Gate(doc types.Document, failOn types.Tier) bool {
	if failOn == "" {
		return false
	}
	return doc.Verdict.Tier.Severity() >= failOn.Severity()
}
