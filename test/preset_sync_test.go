package test

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// =============================================================================
// PRESET SYNCHRONIZATION TESTS
// =============================================================================
//
// These tests detect prose surfaces that have drifted from the bundled
// policy profiles in presets/. The profile set is defined by the *.yaml
// files on disk; flag help strings and the MCP tool descriptions
// enumerate the names by hand.
//
// When you add a profile YAML, these tests tell you exactly which help
// texts and descriptions need updating.

// presetNames returns the bundled profile names, derived from the
// *.yaml files the presets package embeds.
func presetNames(t *testing.T) []string {
	t.Helper()

	repoRoot := getRepoRoot(t)
	entries, err := os.ReadDir(filepath.Join(repoRoot, "presets"))
	if err != nil {
		t.Fatalf("failed to read presets/: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)

	if len(names) == 0 {
		t.Fatal("no profile YAML files found in presets/")
	}
	return names
}

// TestPresetFilesWellFormed verifies each bundled profile declares a
// name matching its file name and keeps every threshold non-negative.
// Load resolves profiles by file name, so a mismatched name: field
// makes error messages and reports disagree about which profile ran.
func TestPresetFilesWellFormed(t *testing.T) {
	repoRoot := getRepoRoot(t)

	namePattern := regexp.MustCompile(`(?m)^name:\s*(\S+)`)
	numberPattern := regexp.MustCompile(`(?m)^\s+(medium_count|risk_score|tolerance|tolerance_pct):\s*(-?\d+)`)

	for _, name := range presetNames(t) {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(repoRoot, "presets", name+".yaml"))
			if err != nil {
				t.Fatalf("failed to read profile: %v", err)
			}
			content := string(data)

			matches := namePattern.FindStringSubmatch(content)
			if matches == nil {
				t.Fatalf("profile %s.yaml has no name: field", name)
			}
			if declared := strings.Trim(matches[1], `"`); declared != name {
				t.Errorf("profile %s.yaml declares name %q; file name and name: must match", name, declared)
			}

			for _, m := range numberPattern.FindAllStringSubmatch(content, -1) {
				value, err := strconv.Atoi(m[2])
				if err != nil {
					continue
				}
				if value < 0 {
					t.Errorf("profile %s.yaml: %s is negative (%d)", name, m[1], value)
				}
			}
		})
	}
}

// TestPresetProseSurfacesCurrent verifies every surface that enumerates
// the profile names by hand still lists all of them.
//
// This catches the common drift pattern: a new profile is added to
// presets/ but the developer forgets the flag help strings and the MCP
// tool descriptions.
func TestPresetProseSurfacesCurrent(t *testing.T) {
	repoRoot := getRepoRoot(t)
	names := presetNames(t)
	t.Logf("Bundled profiles: %s", strings.Join(names, ", "))

	// Surfaces that spell out the profile names in prose. The main usage
	// text renders presets.Names() and needs no check.
	surfaces := []struct {
		relPath     string
		description string
	}{
		{filepath.Join("pkg", "config", "config.go"), "gate command flag help"},
		{filepath.Join("cmd", "cli", "cmd_evaluate.go"), "evaluate command flag help"},
		{filepath.Join("cmd", "cli", "cmd_guard.go"), "guard command flag help"},
		{filepath.Join("cmd", "cli", "cmd_health.go"), "health command flag help"},
		{filepath.Join("cmd", "cli", "cmd_report.go"), "report command flag help"},
		{filepath.Join("pkg", "mcpserver", "tools.go"), "MCP tool descriptions"},
		{filepath.Join("pkg", "mcpserver", "server.go"), "MCP server instructions"},
	}

	for _, surface := range surfaces {
		t.Run(surface.relPath, func(t *testing.T) {
			content, err := os.ReadFile(filepath.Join(repoRoot, surface.relPath))
			if err != nil {
				t.Fatalf("failed to read %s: %v", surface.relPath, err)
			}
			source := string(content)

			var missing []string
			for _, name := range names {
				if !strings.Contains(source, name) {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				t.Errorf("%s (%s) does not mention profiles: %s",
					surface.relPath, surface.description, strings.Join(missing, ", "))
			}
		})
	}
}

// TestPresetEmbedCoversAll verifies the embed directive picks up every
// profile. A profile outside the pattern compiles fine and then fails
// at runtime with "no preset named".
func TestPresetEmbedCoversAll(t *testing.T) {
	repoRoot := getRepoRoot(t)

	content, err := os.ReadFile(filepath.Join(repoRoot, "presets", "embed.go"))
	if err != nil {
		t.Fatalf("failed to read presets/embed.go: %v", err)
	}

	if !strings.Contains(string(content), "go:embed *.yaml") {
		t.Error("presets/embed.go should embed *.yaml so new profiles ship automatically")
	}
}
