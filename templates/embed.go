// Package templates embeds all bundled template files for distribution.
//
// This ensures templates are available regardless of installation method
// (Homebrew, Docker, or manual download). The template writer falls back
// to the embedded report template when no custom template is configured.
//
// Usage:
//
//	fs := templates.FS
//	data, _ := fs.ReadFile("report.md.tmpl")
package templates

import "embed"

// FS contains all bundled template files. The layout matches the on-disk
// templates/ directory minus this Go file.
//
//go:embed *.tmpl
var FS embed.FS
