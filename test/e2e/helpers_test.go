//go:build e2e

package e2e

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	vegetalib "github.com/tsenart/vegeta/v12/lib"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/internal/pipeline"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("cannot resolve test file path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}

func samplePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(repoRoot(t), "examples", "artillery", "report.json")
}

func sampleBytes(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile(samplePath(t))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func newPipeline(input pipeline.InputFormat) *pipeline.Pipeline {
	return pipeline.New(config.Default(), nil, pipeline.Options{InputFormat: input})
}

// writeVegetaResults encodes a 30s attack with a failing tail into path.
func writeVegetaResults(t *testing.T, path string) {
	t.Helper()
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	enc := vegetalib.NewJSONEncoder(&buf)
	for i := 0; i < 300; i++ {
		res := vegetalib.Result{
			Attack:    "e2e",
			Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond),
			Method:    "GET",
			URL:       "https://api.example.test/search",
			Code:      200,
			Latency:   time.Duration(40+i) * time.Millisecond,
		}
		if i >= 240 {
			res.Code = 0
			res.Error = "Get \"https://api.example.test/search\": context deadline exceeded"
			res.Latency = 30 * time.Second
		}
		if err := enc.Encode(&res); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}
