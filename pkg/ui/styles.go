package ui

import "github.com/charmbracelet/lipgloss"

// ANSI escape codes for simple terminal output (CLI commands)
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Cyan    = "\033[36m"
	BoldRed = "\033[1;31m"
)

// Color palette inspired by top security tools
var (
	// Brand colors
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors (matching OWASP/Nuclei standards)
	Critical = lipgloss.Color("#FF0000") // Bright red
	High     = lipgloss.Color("#FF6B6B") // Red/Orange
	Medium   = lipgloss.Color("#FFD93D") // Yellow
	Low      = lipgloss.Color("#6BCB77") // Green
	Info     = lipgloss.Color("#4D96FF") // Blue

	// Verdict colors
	Pass  = lipgloss.Color("#00D26A") // Green - gate open
	Warn  = lipgloss.Color("#FFB800") // Amber - needs attention
	Fail  = lipgloss.Color("#FF3838") // Red - gate closed
	Muted = lipgloss.Color("#6B7280") // Gray
)

// Pre-configured styles
var (
	// Title and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Banner style
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// Version badge
	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Section headers
	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	// Statistics
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	// Divider
	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Help/footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Rule badge for decision table rule names
	RuleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)
)

// SeverityStyle returns the appropriate style for a severity tier.
// Keys are the uppercase labels used in reports.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch severity {
	case "CRITICAL":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Critical)
	case "HIGH":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(High)
	case "MEDIUM":
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case "LOW":
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case "INFO":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Info)
	default:
		return base.Foreground(Muted)
	}
}

// StatusStyle returns the appropriate style for a gate verdict.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case "PASS":
		return base.Foreground(Pass)
	case "WARN":
		return base.Foreground(Warn)
	case "FAIL":
		return base.Foreground(Fail)
	default:
		return base.Foreground(Muted)
	}
}

// ScoreStyle colors a risk score against the threshold it is judged by.
func ScoreStyle(score, threshold int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case score > threshold:
		return base.Foreground(Fail)
	case score*2 > threshold:
		return base.Foreground(Warn)
	default:
		return base.Foreground(Pass)
	}
}
