// Package presets embeds the bundled gate policy profiles for distribution.
//
// This ensures the strict, standard and lenient profiles are available
// regardless of installation method (Homebrew, Docker, or manual download).
// Load resolves a profile by name; policies on disk go through
// policy.LoadPolicy instead.
//
// Usage:
//
//	pol, err := presets.Load("strict")
package presets

import "embed"

// FS contains all bundled policy preset files. Each YAML file declares
// the thresholds, weights and guard tolerance of one named profile.
//
//go:embed *.yaml
var FS embed.FS
