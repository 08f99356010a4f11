// Package writers provides output writers for various formats.
package writers

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
	"github.com/riskgate/riskgate/pkg/tuning"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*MarkdownWriter)(nil)

// MarkdownConfig configures the Markdown report writer.
type MarkdownConfig struct {
	// Title is the report title (default: "Security Gate Report")
	Title string

	// Flavor sets the Markdown flavor: "github", "gitlab", or "standard" (default: "github")
	Flavor string

	// SortBy sets the finding order in detail sections: "severity",
	// "location", or "source" (default: "severity").
	// Can be overridden by MARKDOWN_EXPORT_SORT_MODE environment variable.
	SortBy string

	// EvaluationPath is the envelope artifact referenced in the
	// narrative sections (default: "evaluation.json")
	EvaluationPath string

	// StorageURL links artifacts uploaded to external storage.
	StorageURL string

	// ArtifactsURL links the CI artifacts page when no storage URL is set.
	ArtifactsURL string

	// IncludeTOC includes a table of contents (default: false)
	IncludeTOC bool

	// OmitTuning drops the automated tuning guidance section.
	OmitTuning bool

	// OmitFindingsTable drops the per-finding appendix table.
	OmitFindingsTable bool

	// UseEmojis includes severity emojis in tables (default: false)
	UseEmojis bool

	// FocusLimit caps the critical/high findings detail list (default: 5)
	FocusLimit int

	// SurfaceLimit caps the attack surface highlights (default: 5)
	SurfaceLimit int

	// MaxDetailLen truncates description/solution display (default: 150)
	MaxDetailLen int
}

// MarkdownWriter writes events as a Markdown report.
// It buffers all events in memory and renders the complete Markdown document on Close.
// The writer is safe for concurrent use.
type MarkdownWriter struct {
	w          io.Writer
	mu         sync.Mutex
	config     MarkdownConfig
	findings   []*events.FindingEvent
	evaluation *events.EvaluationEvent
	summary    *events.SummaryEvent
}

// NewMarkdownWriter creates a new Markdown report writer.
// The writer buffers all events and writes a complete Markdown report on Close.
func NewMarkdownWriter(w io.Writer, config MarkdownConfig) *MarkdownWriter {
	if config.Title == "" {
		config.Title = defaults.ReportTitle
	}
	if config.Flavor == "" {
		config.Flavor = "github"
	}
	// Environment variable override for sort mode (Nuclei-style)
	if envSort := os.Getenv("MARKDOWN_EXPORT_SORT_MODE"); envSort != "" {
		config.SortBy = envSort
	}
	if config.SortBy == "" {
		config.SortBy = "severity"
	}
	if config.EvaluationPath == "" {
		config.EvaluationPath = "evaluation.json"
	}
	if config.FocusLimit == 0 {
		config.FocusLimit = 5
	}
	if config.SurfaceLimit == 0 {
		config.SurfaceLimit = 5
	}
	if config.MaxDetailLen == 0 {
		config.MaxDetailLen = 150
	}
	return &MarkdownWriter{
		w:        w,
		config:   config,
		findings: make([]*events.FindingEvent, 0),
	}
}

// Write buffers an event for later Markdown output.
func (mw *MarkdownWriter) Write(event events.Event) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch e := event.(type) {
	case *events.FindingEvent:
		mw.findings = append(mw.findings, e)
	case *events.EvaluationEvent:
		mw.evaluation = e
	case *events.SummaryEvent:
		mw.summary = e
	}
	return nil
}

// Flush is a no-op for Markdown writer.
// All events are written as a single Markdown document on Close.
func (mw *MarkdownWriter) Flush() error {
	return nil
}

// Close renders and writes the complete Markdown report.
func (mw *MarkdownWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	sb := &strings.Builder{}
	mw.renderMarkdown(sb)

	if _, err := io.WriteString(mw.w, sb.String()); err != nil {
		return fmt.Errorf("failed to write Markdown: %w", err)
	}

	if closer, ok := mw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for finding, evaluation, and summary events.
func (mw *MarkdownWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeFinding, events.EventTypeEvaluation, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// severityEmoji returns the emoji icon for a severity level (Trivy-style).
func severityEmoji(s events.Severity) string {
	switch s {
	case events.SeverityCritical:
		return "🔴"
	case events.SeverityHigh:
		return "🟠"
	case events.SeverityMedium:
		return "🟡"
	case events.SeverityLow:
		return "🟢"
	default:
		return "🔵"
	}
}

// statusBadge returns the verdict badge line shown under the title.
func statusBadge(status policy.Status) string {
	switch status {
	case policy.StatusPass:
		return "**PASS** - No critical issues detected"
	case policy.StatusWarn:
		return "**WARN** - Review recommended"
	case policy.StatusFail:
		return "**FAIL** - Critical issues detected"
	default:
		return "UNKNOWN STATUS"
	}
}

// truncateString truncates a string to maxLen with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// escapeMarkdownCell keeps table cells on one line with pipes escaped.
func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// dedupeStrings removes duplicates preserving first-seen order.
func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (mw *MarkdownWriter) renderMarkdown(sb *strings.Builder) {
	mw.renderHeader(sb)
	if mw.config.IncludeTOC {
		mw.renderTOC(sb)
	}
	mw.renderSnapshot(sb)
	mw.renderStatusMessage(sb)
	mw.renderFocus(sb)
	mw.renderAttackSurface(sb)
	mw.renderNextSteps(sb)
	if !mw.config.OmitTuning {
		mw.renderTuning(sb)
	}
	mw.renderArtifacts(sb)
	if !mw.config.OmitFindingsTable {
		mw.renderFindingsAppendix(sb)
	}
}

func (mw *MarkdownWriter) renderHeader(sb *strings.Builder) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", mw.config.Title))
	sb.WriteString(fmt.Sprintf("**Application:** %s  \n", mw.appName()))
	sb.WriteString(fmt.Sprintf("**Current verdict:** %s  \n", statusBadge(mw.status())))
	sb.WriteString(fmt.Sprintf("**Scan time (UTC):** %s  \n", mw.scanTime().UTC().Format("2006-01-02 15:04 UTC")))
	sb.WriteString(fmt.Sprintf("**Calculated risk score:** %d\n\n", mw.riskScore()))
	sb.WriteString("---\n\n")
}

func (mw *MarkdownWriter) renderTOC(sb *strings.Builder) {
	sb.WriteString("- [Issue snapshot](#issue-snapshot)\n")
	sb.WriteString("- [What should happen now?](#what-should-happen-now)\n")
	sb.WriteString("- [Critical / High findings in focus](#critical--high-findings-in-focus)\n")
	sb.WriteString("- [Attack surface highlights](#attack-surface-highlights)\n")
	sb.WriteString("- [Recommended next steps](#recommended-next-steps)\n")
	if !mw.config.OmitTuning {
		sb.WriteString("- [Automated tuning guidance](#automated-tuning-guidance)\n")
	}
	sb.WriteString("- [Artifacts](#artifacts)\n")
	sb.WriteString("\n---\n\n")
}

func (mw *MarkdownWriter) renderSnapshot(sb *strings.Builder) {
	counts := mw.counts()

	sb.WriteString("### Issue snapshot\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|----------|-------|\n")

	rows := []struct {
		severity finding.Severity
		count    int
	}{
		{finding.Critical, counts.Critical},
		{finding.High, counts.High},
		{finding.Medium, counts.Medium},
		{finding.Low, counts.Low},
		{finding.Info, counts.Info},
	}
	for _, row := range rows {
		label := row.severity.Label()
		if mw.config.UseEmojis {
			label = severityEmoji(row.severity) + " " + label
		}
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", label, row.count))
	}

	sb.WriteString(fmt.Sprintf("\n**Total constructive findings:** %d\n\n", mw.totalFindings()))
	sb.WriteString("---\n\n")
}

func (mw *MarkdownWriter) renderStatusMessage(sb *strings.Builder) {
	sb.WriteString("### What should happen now?\n\n")
	sb.WriteString(mw.statusMessage())
	sb.WriteString("\n\n---\n\n")
}

// statusMessage builds the narrative paragraph explaining the verdict
// and what to do about it.
func (mw *MarkdownWriter) statusMessage() string {
	counts := mw.counts()
	score := mw.riskScore()
	fragments := make([]string, 0, 6)

	switch mw.status() {
	case policy.StatusFail:
		fragments = append(fragments, fmt.Sprintf(
			"%d critical and %d high severity findings are blocking a merge (risk score %d).",
			counts.Critical, counts.High, score))
	case policy.StatusWarn:
		fragments = append(fragments, fmt.Sprintf(
			"%d medium severity findings triggered a WARN state (risk score %d).",
			counts.Medium, score))
	case policy.StatusPass:
		fragments = append(fragments, fmt.Sprintf("Status is PASS with risk score %d.", score))
	default:
		fragments = append(fragments, "No verdict was recorded for this run.")
	}

	if violations := mw.violations(); len(violations) > 0 {
		fragments = append(fragments, fmt.Sprintf("Violations: %s.", strings.Join(violations, ", ")))
	}
	if recs := mw.recommendations(); len(recs) > 0 {
		fragments = append(fragments, fmt.Sprintf("Automatic guidance: %s.", strings.Join(recs, ", ")))
	}
	if mw.summary != nil && mw.summary.Regression != nil {
		fragments = append(fragments, mw.summary.Regression.Summary)
	}

	fragments = append(fragments, fmt.Sprintf(
		"Consult `%s` and `%s` for the underlying data, and adjust thresholds if needed.",
		mw.config.EvaluationPath, mw.policyReference()))

	if mw.config.StorageURL != "" {
		fragments = append(fragments, fmt.Sprintf("Reports are stored at %s.", mw.config.StorageURL))
	} else if mw.config.ArtifactsURL != "" {
		fragments = append(fragments, fmt.Sprintf("Workflow artifacts are available at %s.", mw.config.ArtifactsURL))
	}

	return strings.Join(fragments, " ")
}

func (mw *MarkdownWriter) renderFocus(sb *strings.Builder) {
	sb.WriteString("### Critical / High findings in focus\n\n")

	focus := make([]finding.Finding, 0)
	for _, fe := range mw.sortedFindings() {
		if fe.Finding.Severity == finding.Critical || fe.Finding.Severity == finding.High {
			focus = append(focus, fe.Finding)
		}
	}

	if len(focus) == 0 {
		sb.WriteString("_No critical or high severity findings._\n\n---\n\n")
		return
	}

	shown := focus
	if len(shown) > mw.config.FocusLimit {
		shown = shown[:mw.config.FocusLimit]
	}
	for i, f := range shown {
		sb.WriteString(fmt.Sprintf("**%d. [%s] %s**\n", i+1, f.Severity.Upper(), f.Name))
		sb.WriteString(fmt.Sprintf("- **Source:** %s\n", f.Source))
		sb.WriteString(fmt.Sprintf("- **Description:** %s\n", truncateString(f.Description, mw.config.MaxDetailLen)))
		sb.WriteString(fmt.Sprintf("- **Solution:** %s\n\n", truncateString(f.Solution, mw.config.MaxDetailLen)))
	}

	if len(focus) > mw.config.FocusLimit {
		sb.WriteString(fmt.Sprintf("_... and %d more. See full report in artifacts._\n\n", len(focus)-mw.config.FocusLimit))
	}
	sb.WriteString("---\n\n")
}

// surfaceCluster groups findings that share a location and severity.
type surfaceCluster struct {
	location string
	severity finding.Severity
	count    int
	sources  map[string]struct{}
}

func (mw *MarkdownWriter) renderAttackSurface(sb *strings.Builder) {
	sb.WriteString("### Attack surface highlights\n\n")

	clusters := make(map[string]*surfaceCluster)
	order := make([]string, 0)
	for _, fe := range mw.findings {
		f := fe.Finding
		location := f.Location
		if location == "" {
			location = "Unknown"
		}
		source := f.Source
		if source == "" {
			source = "Unknown"
		}
		key := location + "|" + string(f.Severity)
		cluster, ok := clusters[key]
		if !ok {
			cluster = &surfaceCluster{
				location: location,
				severity: f.Severity,
				sources:  make(map[string]struct{}),
			}
			clusters[key] = cluster
			order = append(order, key)
		}
		cluster.count++
		cluster.sources[source] = struct{}{}
	}

	// Heaviest clusters first: severity rank times count, then count.
	sort.SliceStable(order, func(i, j int) bool {
		a, b := clusters[order[i]], clusters[order[j]]
		aw := a.severity.Rank() * a.count
		bw := b.severity.Rank() * b.count
		if aw != bw {
			return aw > bw
		}
		return a.count > b.count
	})
	if len(order) > mw.config.SurfaceLimit {
		order = order[:mw.config.SurfaceLimit]
	}

	if len(order) == 0 {
		sb.WriteString("_No attack surface highlights available._\n\n---\n\n")
		return
	}

	for _, key := range order {
		c := clusters[key]
		sources := make([]string, 0, len(c.sources))
		for s := range c.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		sb.WriteString(fmt.Sprintf("- `%s` (%s): %d findings from %s.\n",
			c.location, c.severity.Upper(), c.count, strings.Join(sources, ", ")))
	}
	sb.WriteString("\n---\n\n")
}

func (mw *MarkdownWriter) renderNextSteps(sb *strings.Builder) {
	sb.WriteString("### Recommended next steps\n\n")

	counts := mw.counts()
	bullets := make([]string, 0, 8)

	recs := dedupeStrings(mw.recommendations())
	if len(recs) > 0 {
		for _, rec := range recs {
			bullets = append(bullets, "- "+rec)
		}
	} else {
		if counts.Critical > 0 || counts.High > 0 {
			bullets = append(bullets, "- Resolve the critical/high severity findings and rerun the scan to confirm they are gone.")
		}
		if counts.Medium > 0 {
			mediumBudget := mw.mediumCountMax() * scoring.DefaultWeights().Medium
			bullets = append(bullets, fmt.Sprintf(
				"- Reduce the %d medium findings to bring their weighted contribution under %d (current risk score %d).",
				counts.Medium, mediumBudget, mw.riskScore()))
		}
		if counts.Total() == 0 {
			bullets = append(bullets, "- Keep scanning on every change to catch regressions early.")
		}
	}

	bullets = append(bullets,
		fmt.Sprintf("- Inspect `%s` to understand which rule produced each recommendation.", mw.config.EvaluationPath),
		fmt.Sprintf("- Tune `%s` thresholds when findings are expected noise.", mw.policyReference()),
		"- Harden the affected routes (request validation, auth checks, headers) and rerun the scan to collapse recurrent findings.",
	)

	sb.WriteString(strings.Join(bullets, "\n"))
	sb.WriteString("\n\n---\n\n")
}

func (mw *MarkdownWriter) renderTuning(sb *strings.Builder) {
	sb.WriteString("### Automated tuning guidance\n\n")

	if len(mw.findings) == 0 && mw.summary == nil {
		sb.WriteString("- No automated tuning guidance is available yet.\n\n---\n\n")
		return
	}

	report := tuning.Analyze(mw.findingList(), mw.violations(), mw.recommendations(), defaults.TuningTopFindings)

	lines := []string{fmt.Sprintf("Generated at %s", report.GeneratedAt)}
	if len(report.TopFindings) == 0 {
		lines = append(lines, "- No high-frequency findings to tune.")
	} else {
		for i, tf := range report.TopFindings {
			lines = append(lines, fmt.Sprintf("- **%d.** %s rule %s hit %d times (severity %s).",
				i+1, tf.Source, tf.Rule, tf.Count, tf.Severity.Upper()))
		}
	}

	if len(report.Violations) > 0 {
		lines = append(lines, "", "Violations:")
		for _, violation := range report.Violations {
			lines = append(lines, "- "+violation)
		}
	}
	if len(report.Recommendations) > 0 {
		lines = append(lines, "", "Recommendations:")
		for _, rec := range report.Recommendations {
			lines = append(lines, "- "+rec)
		}
	}

	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\n---\n\n")
}

func (mw *MarkdownWriter) renderArtifacts(sb *strings.Builder) {
	sb.WriteString("### Artifacts\n\n")

	switch {
	case mw.config.StorageURL != "":
		base := strings.TrimRight(mw.config.StorageURL, "/")
		sb.WriteString(fmt.Sprintf("- [Download the evaluation envelope](%s/%s)\n", base, mw.config.EvaluationPath))
		sb.WriteString(fmt.Sprintf("- [Download the findings export](%s/findings.json)\n", base))
		sb.WriteString(fmt.Sprintf("- [Download this report](%s/report.md)\n", base))
	case mw.config.ArtifactsURL != "":
		sb.WriteString(fmt.Sprintf("- [Open the workflow artifacts page](%s) (select the bundle for the latest run)\n", mw.config.ArtifactsURL))
		sb.WriteString(fmt.Sprintf("- Evaluation envelope: `%s` (on the artifacts page)\n", mw.config.EvaluationPath))
		sb.WriteString("- Findings export: `findings.json`\n")
	default:
		sb.WriteString("- Full evaluation artifacts are attached to the workflow run for deeper inspection.\n")
	}
	sb.WriteString("\n")
}

func (mw *MarkdownWriter) renderFindingsAppendix(sb *strings.Builder) {
	if len(mw.findings) == 0 {
		return
	}

	sb.WriteString("---\n\n### All findings\n\n")

	collapsible := mw.supportsCollapsible()
	if collapsible {
		sb.WriteString(fmt.Sprintf("<details>\n<summary>%d findings</summary>\n\n", len(mw.findings)))
	}

	sb.WriteString("| # | Severity | Name | Source | Rule | Location |\n")
	sb.WriteString("|---|----------|------|--------|------|----------|\n")
	for i, fe := range mw.sortedFindings() {
		f := fe.Finding
		severity := f.Severity.Upper()
		if mw.config.UseEmojis {
			severity = severityEmoji(f.Severity) + " " + severity
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | `%s` |\n",
			i+1, severity, escapeMarkdownCell(f.Name), f.Source, f.Rule, f.Location))
	}

	if collapsible {
		sb.WriteString("\n</details>\n")
	}
	sb.WriteString("\n")
}

// supportsCollapsible reports whether the configured flavor renders
// details/summary blocks.
func (mw *MarkdownWriter) supportsCollapsible() bool {
	return mw.config.Flavor == "github" || mw.config.Flavor == "gitlab"
}

// sortedFindings returns the buffered findings in the configured order.
// The default "severity" order lists the most severe findings first;
// ties keep input order.
func (mw *MarkdownWriter) sortedFindings() []*events.FindingEvent {
	sorted := make([]*events.FindingEvent, len(mw.findings))
	copy(sorted, mw.findings)

	switch mw.config.SortBy {
	case "location":
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Finding.Location < sorted[j].Finding.Location
		})
	case "source":
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Finding.Source < sorted[j].Finding.Source
		})
	case "severity":
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Finding.Severity.Rank() > sorted[j].Finding.Severity.Rank()
		})
	}
	return sorted
}

func (mw *MarkdownWriter) findingList() []finding.Finding {
	fs := make([]finding.Finding, 0, len(mw.findings))
	for _, fe := range mw.findings {
		fs = append(fs, fe.Finding)
	}
	return fs
}

func (mw *MarkdownWriter) appName() string {
	if mw.summary != nil && mw.summary.AppName != "" {
		return mw.summary.AppName
	}
	if len(mw.findings) > 0 {
		return mw.findings[0].AppName
	}
	return "unknown"
}

func (mw *MarkdownWriter) status() policy.Status {
	if mw.summary != nil {
		return mw.summary.Verdict.Status
	}
	if mw.evaluation != nil {
		return mw.evaluation.Status
	}
	return ""
}

func (mw *MarkdownWriter) riskScore() int {
	if mw.summary != nil {
		return mw.summary.Verdict.RiskScore
	}
	if mw.evaluation != nil {
		return mw.evaluation.RiskScore
	}
	return 0
}

func (mw *MarkdownWriter) counts() scoring.Counts {
	if mw.summary != nil {
		return mw.summary.Totals
	}
	counts, err := scoring.Aggregate(mw.findingList())
	if err != nil {
		return scoring.Counts{}
	}
	return counts
}

func (mw *MarkdownWriter) totalFindings() int {
	if mw.summary != nil {
		return mw.summary.TotalFindings
	}
	return len(mw.findings)
}

func (mw *MarkdownWriter) violations() []string {
	if mw.summary != nil {
		return mw.summary.Violations
	}
	return nil
}

func (mw *MarkdownWriter) recommendations() []string {
	if mw.summary != nil {
		return mw.summary.Recommendations
	}
	return nil
}

func (mw *MarkdownWriter) policyReference() string {
	if mw.summary != nil && mw.summary.Policy.Reference != "" {
		return mw.summary.Policy.Reference
	}
	return defaults.PolicyFile
}

func (mw *MarkdownWriter) mediumCountMax() int {
	if mw.summary != nil && mw.summary.Policy.MediumCountMax > 0 {
		return mw.summary.Policy.MediumCountMax
	}
	return policy.DefaultMediumCountMax
}

func (mw *MarkdownWriter) scanTime() time.Time {
	if mw.summary != nil {
		return mw.summary.Timing.CompletedAt
	}
	if mw.evaluation != nil {
		return mw.evaluation.Timestamp()
	}
	return time.Now()
}
