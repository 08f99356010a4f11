package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/riskgate/riskgate/pkg/config"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", "riskgate-report.json"},
		{"jsonl", "riskgate-events.jsonl"},
		{"md", "riskgate-report.md"},
		{"markdown", "riskgate-report.md"},
		{"sarif", "riskgate.sarif"},
		{"junit", "riskgate-junit.xml"},
		{"csv", "riskgate-findings.csv"},
		{"pdf", "riskgate-report.pdf"},
		{"SARIF", "riskgate.sarif"},
		{"custom", "riskgate-report.custom"},
	}
	for _, tt := range tests {
		if got := artifactName(tt.format); got != tt.want {
			t.Errorf("artifactName(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFileFormats(t *testing.T) {
	if got := fileFormats([]string{"console"}); got != 0 {
		t.Errorf("fileFormats(console) = %d, want 0", got)
	}
	if got := fileFormats([]string{"Console", "json", "sarif"}); got != 2 {
		t.Errorf("fileFormats = %d, want 2", got)
	}
	if got := fileFormats(nil); got != 0 {
		t.Errorf("fileFormats(nil) = %d, want 0", got)
	}
}

func TestBuildDispatcherWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Formats = []string{"json", "sarif"}
	cfg.OutputDir = dir
	cfg.NoHistory = true

	disp, cleanup, err := buildDispatcher(cfg)
	if err != nil {
		t.Fatalf("buildDispatcher failed: %v", err)
	}
	if disp == nil {
		t.Fatal("dispatcher is nil")
	}
	defer cleanup()

	for _, name := range []string{"riskgate-report.json", "riskgate.sarif"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s not created: %v", name, err)
		}
	}
}

func TestBuildDispatcherSingleOutputManyFormats(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Formats = []string{"json", "sarif"}
	cfg.OutputFile = filepath.Join(t.TempDir(), "out.json")
	cfg.NoHistory = true

	_, _, err := buildDispatcher(cfg)
	if err == nil {
		t.Fatal("expected error for two file formats with -output")
	}
	if !strings.Contains(err.Error(), "-output-dir") {
		t.Errorf("err = %v, want hint about -output-dir", err)
	}
}

func TestBuildDispatcherConsolePlusFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Formats = []string{"console", "json"}
	cfg.OutputFile = filepath.Join(t.TempDir(), "out.json")
	cfg.NoHistory = true

	disp, cleanup, err := buildDispatcher(cfg)
	if err != nil {
		t.Fatalf("buildDispatcher failed: %v", err)
	}
	defer cleanup()
	if disp == nil {
		t.Fatal("dispatcher is nil")
	}
	if _, err := os.Stat(cfg.OutputFile); err != nil {
		t.Errorf("output file not created: %v", err)
	}
}

func TestBuildDispatcherUnknownFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Formats = []string{"bogus"}
	cfg.NoHistory = true

	_, _, err := buildDispatcher(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v, want unknown output format", err)
	}
}
