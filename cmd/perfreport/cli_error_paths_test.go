package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Root Command ---

func TestNewRootCommand_SubcommandRegistration(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{
		"init": false, "generate": false, "validate": false, "summary": false,
		"gate": false, "push": false, "watch": false, "serve": false,
	}
	for _, c := range root.Commands() {
		want[c.Name()] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var ce cliError
	if !errors.As(err, &ce) {
		t.Fatalf("expected cliError, got %T: %v", err, err)
	}
	return ce.code
}

// --- Generate Command Error Paths ---

func TestGenerateCommand_MissingInput(t *testing.T) {
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", filepath.Join(t.TempDir(), "report.json"), "--out", filepath.Join(t.TempDir(), "r.html")))
	err := cmd.Execute()
	if code := exitCode(t, err); code != exitMissingInput {
		t.Fatalf("expected exit %d, got %d", exitMissingInput, code)
	}
	if !strings.Contains(err.Error(), "run a load test first") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestGenerateCommand_MalformedInput(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(bad, []byte("{not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(t.TempDir(), "r.html")
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", bad, "--out", outPath))
	if code := exitCode(t, cmd.Execute()); code != exitMalformedInput {
		t.Fatalf("expected exit %d, got %d", exitMalformedInput, code)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Fatal("no output may be written for malformed input")
	}
}

func TestGenerateCommand_HealthGate(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "report.json")
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--format", "json", "--out", outPath, "--fail-on", "degraded"))
	if code := exitCode(t, cmd.Execute()); code != exitHealthGate {
		t.Fatalf("expected exit %d, got %d", exitHealthGate, code)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("report must still be written when the gate trips: %v", err)
	}
}

func TestGenerateCommand_HealthGatePasses(t *testing.T) {
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--format", "json", "--out", filepath.Join(t.TempDir(), "r.json"), "--fail-on", "critical"))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("gate should pass for a Degraded run: %v", err)
	}
}

func TestGenerateCommand_InvalidFlags(t *testing.T) {
	cases := map[string][]string{
		"format":       {"--format", "pdf"},
		"fail-on":      {"--fail-on", "sometimes"},
		"input-format": {"--input-format", "k6"},
		"log-level":    {"--log-level", "loud"},
	}
	for name, args := range cases {
		cmd := newGenerateCommand()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		full := append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--in", sampleReport(t)}, args...)
		cmd.SetArgs(full)
		if err := cmd.Execute(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGenerateCommand_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "perfreport.yaml")
	if err := os.WriteFile(cfgPath, []byte("safety_margin: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--log-level", "error", "--config", cfgPath, "--in", sampleReport(t)})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "safety_margin") {
		t.Fatalf("expected safety_margin error, got %v", err)
	}
}

// --- Validate Command Error Paths ---

func TestValidateCommand_PrintsViolations(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(bad, []byte(`{"intermediate": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newValidateCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs(append(quiet(t), "--in", bad))
	if code := exitCode(t, cmd.Execute()); code != exitMalformedInput {
		t.Fatalf("expected exit %d, got %d", exitMalformedInput, code)
	}
	if !strings.Contains(stdout.String(), "intermediate") {
		t.Fatalf("expected violation naming intermediate, got %q", stdout.String())
	}
}

func TestValidateCommand_VegetaMissing(t *testing.T) {
	cmd := newValidateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", filepath.Join(t.TempDir(), "results.bin"), "--input-format", "vegeta"))
	if code := exitCode(t, cmd.Execute()); code != exitMissingInput {
		t.Fatalf("expected exit %d, got %d", exitMissingInput, code)
	}
}

// --- Push Command Error Paths ---

func TestPushCommand_RequiresGateway(t *testing.T) {
	t.Setenv("PERFREPORT_PUSHGATEWAY_URL", "")
	cmd := newPushCommand()
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t)))
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--gateway is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSummaryCommand_MissingInput(t *testing.T) {
	cmd := newSummaryCommand()
	cmd.SetArgs(append(quiet(t), "--in", filepath.Join(t.TempDir(), "report.json")))
	if code := exitCode(t, cmd.Execute()); code != exitMissingInput {
		t.Fatalf("expected exit %d, got %d", exitMissingInput, code)
	}
}

// --- Policy Gate ---

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGateCommand_Violations(t *testing.T) {
	pol := writePolicy(t, `version: "1"
max_tier: excellent
gates:
  - id: availability
    metric: success_rate_percent
    min: 99
`)
	cmd := newGateCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--policy", pol))
	if code := exitCode(t, cmd.Execute()); code != exitHealthGate {
		t.Fatalf("expected exit %d, got %d", exitHealthGate, code)
	}
	out := stdout.String()
	if !strings.Contains(out, "tier Degraded is worse than the allowed Excellent") {
		t.Fatalf("missing tier violation: %q", out)
	}
	if !strings.Contains(out, "availability: success_rate_percent 97 is below 99") {
		t.Fatalf("missing gate violation: %q", out)
	}
}

func TestGateCommand_Passes(t *testing.T) {
	pol := writePolicy(t, `version: "1"
max_tier: degraded
gates:
  - id: availability
    metric: success_rate_percent
    min: 95
`)
	cmd := newGateCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--policy", pol))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("gate should pass: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "policy gate passed" {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestGateCommand_RequiresPolicy(t *testing.T) {
	cmd := newGateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t)))
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--policy is required") {
		t.Fatalf("expected missing policy error, got %v", err)
	}
}

func TestGenerateCommand_PolicyViolation(t *testing.T) {
	pol := writePolicy(t, `version: "1"
gates:
  - id: news-latency
    metric: p95
    max: 1
    endpoints: ["/api/news"]
`)
	outPath := filepath.Join(t.TempDir(), "r.json")
	cmd := newGenerateCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--format", "json", "--out", outPath, "--policy", pol))
	if code := exitCode(t, cmd.Execute()); code != exitHealthGate {
		t.Fatalf("expected exit %d, got %d", exitHealthGate, code)
	}
	if !strings.Contains(stdout.String(), "news-latency: ") {
		t.Fatalf("missing violation: %q", stdout.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("report must be written before the policy is enforced: %v", err)
	}
}

func TestGenerateCommand_InvalidPolicy(t *testing.T) {
	pol := writePolicy(t, "gates:\n  - id: x\n    metric: nope\n    max: 1\n")
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(append(quiet(t), "--in", sampleReport(t), "--out", filepath.Join(t.TempDir(), "r.html"), "--policy", pol))
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown metric") {
		t.Fatalf("expected policy validation error, got %v", err)
	}
}
