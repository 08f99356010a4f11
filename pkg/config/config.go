package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/riskgate/riskgate/pkg/baseline"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/input"
)

// Config holds all options for a gate run.
type Config struct {
	// Input settings
	InputPath string // Findings document path ("-" = stdin)
	AppName   string // Application under evaluation
	Stdin     bool   // Force reading findings from stdin

	// Policy settings
	PolicyFile string // YAML policy path (empty = preset or defaults)
	Preset     string // Embedded preset name: strict, standard, lenient

	// Baseline / regression settings
	BaselineDir      string  // Per-app baseline directory
	Tolerance        float64 // Allowed risk score increase (default: 5)
	TolerancePercent bool    // Interpret Tolerance as percent of baseline score
	SkipRegression   bool    // Skip the regression guard entirely
	NoBaselineUpdate bool    // Never persist a baseline, even for accepted runs

	// Gate settings
	FailOnWarn bool // Treat a WARN verdict as a gate failure

	// Output settings
	Formats    input.StringSliceFlag // Output formats: console,json,jsonl,md,sarif,junit,csv,pdf,template
	OutputFile string                // Output file path (empty = stdout)
	OutputDir  string                // Directory for per-format artifacts
	Template   string                // Custom template path for the template writer
	Silent     bool                  // Silent mode (no banner, no progress)
	NoColor    bool                  // Disable colored output
	Verbose    bool                  // Verbose event logging

	// History settings
	HistoryDir string // Run history directory (empty = disabled)
	NoHistory  bool   // Disable run history recording

	// Observability settings
	MetricsAddr  string // Prometheus endpoint listen address (empty = disabled)
	OTelEndpoint string // OTLP gRPC endpoint (empty = disabled)

	// Notification settings. Credentials come from the environment:
	// JIRA_EMAIL and JIRA_API_TOKEN for Jira, GITHUB_TOKEN for issues.
	SlackWebhook       string // Slack incoming webhook URL (empty = disabled)
	TeamsWebhook       string // Microsoft Teams incoming webhook URL (empty = disabled)
	WebhookURL         string // Generic webhook endpoint (empty = disabled)
	WebhookAll         bool   // Forward the full event stream to the generic webhook
	PagerDutyKey       string // PagerDuty Events API v2 routing key (empty = disabled)
	JiraURL            string // Jira base URL (empty = disabled)
	JiraProject        string // Jira project key for gate failure issues
	GitHubIssues       string // owner/repo for gate failure issues (empty = disabled)
	NotifyOnlyFailures bool   // Notify only when the gate does not pass

	// CI integration
	CI bool // Emit CI provider annotations and step summaries

	// Run settings
	Timeout time.Duration         // Overall evaluation timeout
	Tags    input.StringSliceFlag // Free-form tags recorded with the run

	// timeoutSeconds carries the raw -timeout value between
	// RegisterFlags and Finalize; flag exposes integer seconds.
	timeoutSeconds *int
}

// DefaultConfig returns a Config with the gate defaults applied.
func DefaultConfig() *Config {
	return &Config{
		BaselineDir: defaults.BaselineDir,
		Tolerance:   baseline.DefaultTolerance,
		HistoryDir:  defaults.HistoryDir,
		Timeout:     defaults.TimeoutEvaluation,
	}
}

// RegisterFlags wires the gate flags onto a FlagSet. Commands that only
// need a subset register their own flags instead.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	// === INPUT ===
	fs.StringVar(&c.InputPath, "input", "", "Findings document path (- for stdin)")
	fs.StringVar(&c.InputPath, "i", "", "Findings document (alias)")
	fs.StringVar(&c.AppName, "app", "", "Application name")
	fs.StringVar(&c.AppName, "a", "", "Application name (alias)")
	fs.BoolVar(&c.Stdin, "stdin", false, "Read findings from stdin")

	// === POLICY ===
	fs.StringVar(&c.PolicyFile, "policy", "", "Policy YAML file")
	fs.StringVar(&c.PolicyFile, "p", "", "Policy file (alias)")
	fs.StringVar(&c.Preset, "preset", "", "Built-in policy preset: strict, standard, lenient")

	// === BASELINE ===
	fs.StringVar(&c.BaselineDir, "baseline-dir", defaults.BaselineDir, "Baseline directory")
	fs.Float64Var(&c.Tolerance, "tolerance", baseline.DefaultTolerance, "Allowed risk score increase")
	fs.Float64Var(&c.Tolerance, "t", baseline.DefaultTolerance, "Tolerance (alias)")
	fs.BoolVar(&c.TolerancePercent, "tolerance-pct", false, "Treat tolerance as percent of baseline score")
	fs.BoolVar(&c.SkipRegression, "skip-regression", false, "Skip the regression guard")
	fs.BoolVar(&c.NoBaselineUpdate, "no-baseline-update", false, "Never write the baseline")

	// === GATE ===
	fs.BoolVar(&c.FailOnWarn, "fail-on-warn", false, "Treat WARN as gate failure")

	// === OUTPUT ===
	fs.Var(&c.Formats, "format", "Output format(s) - comma-separated or repeated")
	fs.Var(&c.Formats, "f", "Output format(s) (alias)")
	fs.StringVar(&c.OutputFile, "output", "", "Output file path")
	fs.StringVar(&c.OutputFile, "o", "", "Output file (alias)")
	fs.StringVar(&c.OutputDir, "output-dir", "", "Directory for per-format artifacts")
	fs.StringVar(&c.Template, "template", "", "Custom report template path")
	fs.BoolVar(&c.Silent, "silent", false, "Silent mode - no banner")
	fs.BoolVar(&c.Silent, "quiet", false, "Silent mode (alias)")
	fs.BoolVar(&c.Silent, "s", false, "Silent (alias)")
	fs.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&c.NoColor, "nc", false, "No color (alias)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Verbose event logging")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose (alias)")

	// === HISTORY ===
	fs.StringVar(&c.HistoryDir, "history", defaults.HistoryDir, "Run history directory")
	fs.BoolVar(&c.NoHistory, "no-history", false, "Disable run history recording")

	// === OBSERVABILITY ===
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "Prometheus endpoint listen address")
	fs.StringVar(&c.OTelEndpoint, "otel-endpoint", "", "OTLP gRPC trace endpoint")

	// === NOTIFICATIONS ===
	fs.StringVar(&c.SlackWebhook, "slack-webhook", "", "Slack incoming webhook URL")
	fs.StringVar(&c.TeamsWebhook, "teams-webhook", "", "Microsoft Teams incoming webhook URL")
	fs.StringVar(&c.WebhookURL, "webhook", "", "Generic webhook endpoint for gate events")
	fs.BoolVar(&c.WebhookAll, "webhook-all", false, "Send every event to the generic webhook, not just the summary")
	fs.StringVar(&c.PagerDutyKey, "pagerduty-key", "", "PagerDuty Events API v2 routing key")
	fs.StringVar(&c.JiraURL, "jira-url", "", "Jira base URL for gate failure issues")
	fs.StringVar(&c.JiraProject, "jira-project", "", "Jira project key (requires -jira-url)")
	fs.StringVar(&c.GitHubIssues, "github-issues", "", "GitHub owner/repo for gate failure issues")
	fs.BoolVar(&c.NotifyOnlyFailures, "notify-failures", false, "Notify only when the gate does not pass")

	// === CI ===
	fs.BoolVar(&c.CI, "ci", false, "Emit CI provider annotations")

	// === RUN ===
	timeout := fs.Int("timeout", int(defaults.TimeoutEvaluation.Seconds()), "Evaluation timeout in seconds")
	fs.Var(&c.Tags, "tag", "Tag(s) recorded with the run - comma-separated or repeated")

	c.timeoutSeconds = timeout
}

// Finalize resolves derived fields after flag parsing.
func (c *Config) Finalize() {
	if c.timeoutSeconds != nil && *c.timeoutSeconds > 0 {
		c.Timeout = time.Duration(*c.timeoutSeconds) * time.Second
	}
	if c.Stdin && c.InputPath == "" {
		c.InputPath = "-"
	}
	if len(c.Formats) == 0 {
		c.Formats = input.StringSliceFlag{"console"}
	}
}

// Validate checks the configuration for conflicts and missing fields.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("%w: app name (use -app)", ErrMissingRequired)
	}
	if c.InputPath == "" {
		return fmt.Errorf("%w: findings input (use -input or -stdin)", ErrMissingRequired)
	}
	if c.PolicyFile != "" && c.Preset != "" {
		return fmt.Errorf("%w: -policy and -preset are mutually exclusive", ErrInvalidConfig)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidConfig)
	}
	for _, f := range c.Formats {
		if !ValidFormat(f) {
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, f)
		}
	}
	if (c.JiraURL == "") != (c.JiraProject == "") {
		return fmt.Errorf("%w: -jira-url and -jira-project must be set together", ErrInvalidConfig)
	}
	if c.GitHubIssues != "" {
		if owner, repo, ok := strings.Cut(c.GitHubIssues, "/"); !ok || owner == "" || repo == "" {
			return fmt.Errorf("%w: -github-issues must be owner/repo", ErrInvalidConfig)
		}
	}
	if c.WebhookAll && c.WebhookURL == "" {
		return fmt.Errorf("%w: -webhook-all requires -webhook", ErrInvalidConfig)
	}
	return nil
}

// validFormats lists the writer names the gate can instantiate.
var validFormats = map[string]bool{
	"console":  true,
	"json":     true,
	"jsonl":    true,
	"md":       true,
	"markdown": true,
	"sarif":    true,
	"junit":    true,
	"csv":      true,
	"pdf":      true,
	"template": true,
}

// ValidFormat reports whether name is a recognized output format.
func ValidFormat(name string) bool {
	return validFormats[strings.ToLower(strings.TrimSpace(name))]
}

// GuardTolerance returns the regression tolerance in guard form.
func (c *Config) GuardTolerance() baseline.Tolerance {
	return baseline.Tolerance{Value: c.Tolerance, Percent: c.TolerancePercent}
}
