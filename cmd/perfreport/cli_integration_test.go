package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func inDir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// --- Init Command ---

func TestInitCommand_CreatesConfigInWorkingDir(t *testing.T) {
	inDir(t, t.TempDir())

	cmd := newInitCommand()
	cmd.SetOut(io.Discard)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat("perfreport.yaml"); err != nil {
		t.Fatalf("init missing perfreport.yaml: %v", err)
	}
	// Running again should not error.
	again := newInitCommand()
	again.SetOut(io.Discard)
	if err := again.Execute(); err != nil {
		t.Fatalf("second init: %v", err)
	}
}

// --- Generate Command ---

func TestGenerateCommand_DefaultsToReportHTMLInWorkingDir(t *testing.T) {
	raw, err := os.ReadFile(sampleReport(t))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "report.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	inDir(t, dir)

	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--log-level", "error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	html, err := os.ReadFile("report.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<!DOCTYPE html>") {
		t.Fatal("expected an HTML document")
	}
}

func TestGenerateCommand_UsesInitDefaults(t *testing.T) {
	raw, err := os.ReadFile(sampleReport(t))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "report.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PERFREPORT_ENVIRONMENT=production\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inDir(t, dir)
	t.Setenv("PERFREPORT_ENVIRONMENT", "")
	os.Unsetenv("PERFREPORT_ENVIRONMENT")

	initCmd := newInitCommand()
	initCmd.SetOut(io.Discard)
	if err := initCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	cmd := newGenerateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--log-level", "error", "--format", "md"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	md, err := os.ReadFile("report.md")
	if err != nil {
		t.Fatal(err)
	}
	// The report's own environment wins over the .env default.
	if !strings.Contains(string(md), "Environment: `staging`") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
}
