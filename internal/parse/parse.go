// Package parse loads a load-test report, validates its structure and
// normalises it so downstream code never needs nil checks.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/schema"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

type Options struct {
	Defaults config.Defaults
	// SchemaPath overrides the embedded report schema when set.
	SchemaPath string
}

// Load reads and parses the report at path.
func Load(path string, opts Options) (types.RawReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.RawReport{}, &MissingInputError{Path: path, Err: err}
		}
		return types.RawReport{}, fmt.Errorf("read report %s: %w", path, err)
	}
	r, err := Parse(raw, opts)
	if err != nil {
		var me *MalformedInputError
		if errors.As(err, &me) {
			me.Path = path
		}
		return types.RawReport{}, err
	}
	return r, nil
}

// Parse validates raw against the report schema and decodes it. A zero
// Options.Defaults is replaced with config.Default.
func Parse(raw []byte, opts Options) (types.RawReport, error) {
	if opts.Defaults == (config.Defaults{}) {
		opts.Defaults = config.Default()
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.RawReport{}, &MalformedInputError{Reason: err.Error(), Err: err}
	}
	if doc == nil {
		return types.RawReport{}, &MalformedInputError{Reason: "document is null"}
	}

	var violations []string
	var err error
	if opts.SchemaPath != "" {
		violations, err = schema.Validate(opts.SchemaPath, doc)
	} else {
		violations, err = schema.ValidateReport(doc)
	}
	if err != nil {
		return types.RawReport{}, err
	}
	if len(violations) > 0 {
		return types.RawReport{}, &MalformedInputError{Reason: "schema validation failed", Violations: violations}
	}

	var r types.RawReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return types.RawReport{}, &MalformedInputError{Reason: err.Error(), Err: err}
	}
	return Normalize(r, opts.Defaults), nil
}

// Normalize fills every optional section with an empty, well-typed value and
// applies run-config defaults. It returns a copy; r is left untouched.
func Normalize(r types.RawReport, d config.Defaults) types.RawReport {
	out := types.RawReport{
		Aggregate: r.Aggregate,
		Config:    r.Config,
	}
	out.Aggregate.Counters = copyCounters(r.Aggregate.Counters)
	out.Aggregate.Summaries = copySummaries(r.Aggregate.Summaries)

	out.Intermediate = make([]types.IntervalMetrics, 0, len(r.Intermediate))
	for _, im := range r.Intermediate {
		out.Intermediate = append(out.Intermediate, types.IntervalMetrics{
			Counters:  copyCounters(im.Counters),
			Summaries: copySummaries(im.Summaries),
			Period:    im.Period,
		})
	}

	if out.Config.Target == "" {
		out.Config.Target = d.TargetURL
	}
	if out.Config.Environment == "" {
		out.Config.Environment = d.Environment
	}
	out.Config.Phases = append(make([]types.Phase, 0, len(r.Config.Phases)), r.Config.Phases...)
	return out
}

func copyCounters(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySummaries(in map[string]types.PercentileStats) map[string]types.PercentileStats {
	out := make(map[string]types.PercentileStats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
