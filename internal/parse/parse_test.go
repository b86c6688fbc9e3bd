package parse

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

const exampleReport = "../../examples/artillery/report.json"

func defaultOptions() Options {
	return Options{Defaults: config.Default()}
}

func TestLoadExampleReport(t *testing.T) {
	r, err := Load(exampleReport, defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Aggregate.Counter(types.CounterRequests); got != 1800 {
		t.Errorf("http.requests = %v, want 1800", got)
	}
	rt := r.Aggregate.Summary(types.SummaryResponseTime)
	if rt.P95 != 2618.1 || rt.Median != 320.5 {
		t.Errorf("response_time = %+v", rt)
	}
	if len(r.Intermediate) != 6 {
		t.Errorf("intermediate len = %d, want 6", len(r.Intermediate))
	}
	if r.Config.Environment != "staging" {
		t.Errorf("environment = %q", r.Config.Environment)
	}
	if len(r.Config.Phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(r.Config.Phases))
	}
	if r.Config.Phases[1].Duration != 60 {
		t.Errorf("phase duration %q = %v, want 60", r.Config.Phases[1].Name, r.Config.Phases[1].Duration)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	_, err := Load(path, defaultOptions())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	var me *MissingInputError
	if !errors.As(err, &me) || me.Path != path {
		t.Fatalf("expected MissingInputError for %s, got %v", path, err)
	}
	if errors.Is(err, ErrMalformedInput) {
		t.Fatal("missing input must not match ErrMalformedInput")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, defaultOptions())
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	var me *MalformedInputError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedInputError, got %T", err)
	}
	if me.Path != path {
		t.Errorf("path = %q, want %q", me.Path, path)
	}
	if me.Reason == "" {
		t.Error("expected decoder detail in Reason")
	}
}

func TestParse_SchemaViolation(t *testing.T) {
	_, err := Parse([]byte(`{"aggregate":{"counters":{"http.requests":"many"}}}`), defaultOptions())
	var me *MalformedInputError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if len(me.Violations) == 0 {
		t.Fatal("expected schema violations")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_NegativeLatencyRejected(t *testing.T) {
	body := `{"aggregate":{"summaries":{"plugins.metrics-by-endpoint.response_time./a":{"p95":-5}}}}`
	_, err := Parse([]byte(body), defaultOptions())
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestParse_NullDocument(t *testing.T) {
	_, err := Parse([]byte("null"), defaultOptions())
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestParse_EmptyObjectFillsDefaults(t *testing.T) {
	r, err := Parse([]byte(`{}`), defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if r.Aggregate.Counters == nil || r.Aggregate.Summaries == nil {
		t.Fatal("aggregate maps must be non-nil")
	}
	if r.Intermediate == nil || len(r.Intermediate) != 0 {
		t.Fatalf("intermediate = %#v, want empty non-nil slice", r.Intermediate)
	}
	if r.Config.Phases == nil {
		t.Fatal("phases must be non-nil")
	}
	if r.Config.Target != "https://hellobd.news" {
		t.Errorf("target = %q", r.Config.Target)
	}
	if r.Config.Environment != "N/A" {
		t.Errorf("environment = %q", r.Config.Environment)
	}
	if !r.Aggregate.Summary(types.SummaryResponseTime).IsZero() {
		t.Error("missing summary should be zero-filled")
	}
}

func TestParse_ZeroOptionsUsesDefaults(t *testing.T) {
	r, err := Parse([]byte(`{"config":{}}`), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Config.Target != config.Default().TargetURL {
		t.Errorf("target = %q", r.Config.Target)
	}
}

func TestParse_IntervalMapsNormalized(t *testing.T) {
	r, err := Parse([]byte(`{"intermediate":[{},{"counters":{"http.requests":5}}]}`), defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i, im := range r.Intermediate {
		if im.Counters == nil || im.Summaries == nil {
			t.Fatalf("interval %d has nil maps", i)
		}
	}
	if r.Intermediate[1].Counters[types.CounterRequests] != 5 {
		t.Error("interval counters not decoded")
	}
}

func TestParse_MedianFallsBackToP50(t *testing.T) {
	r, err := Parse([]byte(`{"aggregate":{"summaries":{"http.response_time":{"p50":42,"p95":90}}}}`), defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Aggregate.Summary(types.SummaryResponseTime).Median; got != 42 {
		t.Errorf("median = %v, want 42", got)
	}
}

func TestParse_CustomSchemaPath(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "strict.schema.json")
	strict := `{"type":"object","required":["aggregate"]}`
	if err := os.WriteFile(schemaPath, []byte(strict), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Parse([]byte(`{}`), Options{Defaults: config.Default(), SchemaPath: schemaPath})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected schema failure, got %v", err)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := types.RawReport{
		Aggregate: types.AggregateMetrics{Counters: map[string]float64{"a": 1}},
	}
	out := Normalize(in, config.Default())
	out.Aggregate.Counters["a"] = 2
	if in.Aggregate.Counters["a"] != 1 {
		t.Fatal("Normalize must copy counters")
	}
	if in.Config.Target != "" {
		t.Fatal("Normalize must not touch the input config")
	}
}
