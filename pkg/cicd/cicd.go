// Package cicd surfaces gate results inside CI providers.
// It detects the provider from the environment and annotates the build
// log with violations and regression outcomes: GitHub Actions gets
// workflow commands, step summaries, and output variables, while GitLab
// and generic CI systems get plain prefixed log lines.
package cicd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/output/writers"
	"github.com/riskgate/riskgate/pkg/policy"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*Annotator)(nil)

// Provider identifies the CI system the gate is running under.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderGitLab  Provider = "gitlab"
	ProviderGeneric Provider = "generic"
	ProviderNone    Provider = "none"
)

// Detect inspects well-known environment variables and reports which CI
// provider the process is running under. GitHub Actions also sets CI,
// so the specific providers are checked before the generic fallback.
func Detect() Provider {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		return ProviderGitHub
	case os.Getenv("GITLAB_CI") == "true":
		return ProviderGitLab
	case isTruthy(os.Getenv("CI")):
		return ProviderGeneric
	default:
		return ProviderNone
	}
}

// Active reports whether a CI environment was detected.
func (p Provider) Active() bool {
	return p != ProviderNone && p != ""
}

// String returns the provider name.
func (p Provider) String() string {
	return string(p)
}

// isTruthy matches the loose CI=1/true convention used by providers
// without a dedicated marker variable.
func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Level is the annotation level written to the build log.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNotice  Level = "notice"
)

// levelForStatus maps the verdict behind a violation to an annotation level.
func levelForStatus(status policy.Status) Level {
	switch status {
	case policy.StatusFail:
		return LevelError
	case policy.StatusWarn:
		return LevelWarning
	default:
		return LevelNotice
	}
}

// Options configures the Annotator behavior.
type Options struct {
	// AddSummary enables step summary generation on GitHub Actions.
	AddSummary bool
}

// Annotator writes gate results to the CI provider's surfaces.
// On GitHub Actions it emits workflow commands for violations and the
// regression guard, appends output variables to $GITHUB_OUTPUT, and can
// render a Markdown step summary into $GITHUB_STEP_SUMMARY. On other
// providers it falls back to plain prefixed log lines.
type Annotator struct {
	provider    Provider
	out         io.Writer // annotation stream, normally stdout
	outputPath  string    // $GITHUB_OUTPUT path
	summaryPath string    // $GITHUB_STEP_SUMMARY path
	opts        Options
	mu          sync.Mutex
	replay      []events.Event // buffered for the step summary
}

// NewAnnotator creates an annotator for the detected provider.
// Returns an error when no CI environment is detected.
func NewAnnotator(opts Options) (*Annotator, error) {
	provider := Detect()
	if !provider.Active() {
		return nil, fmt.Errorf("not running in a CI environment")
	}
	return &Annotator{
		provider:    provider,
		out:         os.Stdout,
		outputPath:  os.Getenv("GITHUB_OUTPUT"),
		summaryPath: os.Getenv("GITHUB_STEP_SUMMARY"),
		opts:        opts,
	}, nil
}

// NewAnnotatorFor creates an annotator with an explicit provider, stream,
// and file paths. This is primarily used for unit testing without a real
// CI environment.
func NewAnnotatorFor(provider Provider, out io.Writer, outputPath, summaryPath string, opts Options) *Annotator {
	return &Annotator{
		provider:    provider,
		out:         out,
		outputPath:  outputPath,
		summaryPath: summaryPath,
		opts:        opts,
	}
}

// Provider returns the provider the annotator writes for.
func (a *Annotator) Provider() Provider {
	return a.provider
}

// OnEvent annotates violations and regression outcomes as they happen
// and finishes the run on the summary event.
func (a *Annotator) OnEvent(ctx context.Context, event events.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := event.(type) {
	case *events.FindingEvent, *events.EvaluationEvent:
		if a.collectsForSummary() {
			a.replay = append(a.replay, event)
		}
		return nil

	case *events.ViolationEvent:
		return a.annotate(levelForStatus(e.Status), "Security gate", e.Message)

	case *events.RegressionEvent:
		return a.annotateRegression(e)

	case *events.SummaryEvent:
		return a.finish(e)

	default:
		return nil
	}
}

// EventTypes returns the event types this hook handles. Finding and
// evaluation events are only requested when a step summary will be
// written, so runs without one skip the buffering entirely.
func (a *Annotator) EventTypes() []events.EventType {
	types := []events.EventType{
		events.EventTypeViolation,
		events.EventTypeRegression,
		events.EventTypeSummary,
	}
	if a.collectsForSummary() {
		types = append(types, events.EventTypeFinding, events.EventTypeEvaluation)
	}
	return types
}

// collectsForSummary reports whether finding events must be buffered for
// the step summary report.
func (a *Annotator) collectsForSummary() bool {
	return a.provider == ProviderGitHub && a.opts.AddSummary && a.summaryPath != ""
}

// annotateRegression reports the guard outcome. A rejected comparison is
// an error, the first run and an in-tolerance increase are worth a note,
// and a flat or improved score stays quiet so the log only carries
// actionable lines.
func (a *Annotator) annotateRegression(e *events.RegressionEvent) error {
	switch {
	case !e.Accepted:
		return a.annotate(LevelError, "Regression guard", e.Summary)
	case e.FirstRun:
		return a.annotate(LevelNotice, "Regression guard", e.Summary)
	case e.Delta > 0:
		return a.annotate(LevelWarning, "Regression guard", e.Summary)
	default:
		return nil
	}
}

// annotate writes one annotation in the provider's format.
func (a *Annotator) annotate(level Level, title, message string) error {
	var err error
	switch a.provider {
	case ProviderGitHub:
		_, err = fmt.Fprintf(a.out, "::%s title=%s::%s\n", level, escapeProperty(title), escapeData(message))
	default:
		_, err = fmt.Fprintf(a.out, "%s: %s: %s\n", strings.ToUpper(string(level)), title, message)
	}
	return err
}

// finish writes the GitHub output variables and the optional step summary.
// Other providers already received their annotations, so there is nothing
// left to do for them.
func (a *Annotator) finish(summary *events.SummaryEvent) error {
	if a.provider != ProviderGitHub {
		return nil
	}

	if a.outputPath != "" {
		if err := a.writeOutput(summary); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if a.collectsForSummary() {
		if err := a.writeStepSummary(summary); err != nil {
			return fmt.Errorf("failed to write step summary: %w", err)
		}
	}

	return nil
}

// writeOutput appends key=value pairs to the $GITHUB_OUTPUT file so
// downstream workflow steps can branch on the verdict.
func (a *Annotator) writeOutput(summary *events.SummaryEvent) error {
	f, err := os.OpenFile(a.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	lines := []string{
		fmt.Sprintf("status=%s", summary.Verdict.Status),
		fmt.Sprintf("rule=%s", summary.Verdict.Rule),
		fmt.Sprintf("risk_score=%d", summary.Verdict.RiskScore),
		fmt.Sprintf("total_findings=%d", summary.TotalFindings),
		fmt.Sprintf("critical=%d", summary.Totals.Critical),
		fmt.Sprintf("high=%d", summary.Totals.High),
		fmt.Sprintf("medium=%d", summary.Totals.Medium),
		fmt.Sprintf("low=%d", summary.Totals.Low),
		fmt.Sprintf("info=%d", summary.Totals.Info),
		fmt.Sprintf("exit_code=%d", summary.ExitCode),
	}
	if summary.Regression != nil {
		lines = append(lines,
			fmt.Sprintf("regression=%s", regressionState(summary.Regression)),
			fmt.Sprintf("regression_delta=%d", summary.Regression.Delta),
		)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return err
		}
	}

	return nil
}

// writeStepSummary renders the buffered run through the Markdown writer
// into $GITHUB_STEP_SUMMARY. Tuning guidance is omitted to keep the step
// summary short; the full report lives in the artifacts.
func (a *Annotator) writeStepSummary(summary *events.SummaryEvent) error {
	f, err := os.OpenFile(a.summaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	md := writers.NewMarkdownWriter(f, writers.MarkdownConfig{
		Title:      "Security Gate",
		Flavor:     "github",
		UseEmojis:  true,
		OmitTuning: true,
	})
	for _, event := range a.replay {
		if err := md.Write(event); err != nil {
			return err
		}
	}
	if err := md.Write(summary); err != nil {
		return err
	}
	return md.Close()
}

// regressionState compresses the guard outcome to one word for output
// variables.
func regressionState(r *events.RegressionInfo) string {
	switch {
	case r.FirstRun:
		return "first-run"
	case r.Accepted:
		return "accepted"
	default:
		return "rejected"
	}
}

// escapeData escapes workflow command data per the GitHub Actions
// toolkit: percent first, then carriage return and newline.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// escapeProperty escapes workflow command property values, which
// additionally reserve the colon and comma separators.
func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	s = strings.ReplaceAll(s, ",", "%2C")
	return s
}
