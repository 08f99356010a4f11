package writers

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
	"golang.org/x/term"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*ConsoleWriter)(nil)

// ANSI color constants for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[91m"
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
	colorBlue   = "\033[94m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// severityColors maps severity tiers to ANSI color codes.
var severityColors = map[string]string{
	"critical": "\033[91m\033[1m", // bright red + bold
	"high":     "\033[38;5;208m",  // orange
	"medium":   "\033[93m",        // bright yellow
	"low":      "\033[92m",        // bright green
	"info":     "\033[94m",        // bright blue
}

// statusColors maps gate verdicts to ANSI color codes.
var statusColors = map[policy.Status]string{
	policy.StatusPass: colorGreen,
	policy.StatusWarn: colorYellow,
	policy.StatusFail: colorRed,
}

// boxChars contains Unicode box-drawing characters.
var boxChars = struct {
	TopLeft, TopRight, BottomLeft, BottomRight, Horizontal, Vertical string
}{
	"┌", "┐", "└", "┘", "─", "│",
}

// asciiChars contains ASCII fallback characters for box drawing.
var asciiChars = struct {
	TopLeft, TopRight, BottomLeft, BottomRight, Horizontal, Vertical string
}{
	"+", "+", "+", "+", "-", "|",
}

// ConsoleConfig configures the console writer behavior.
type ConsoleConfig struct {
	// Mode controls the output detail level: "summary" or "detailed".
	Mode string

	// ColorEnabled enables ANSI color output.
	// If not explicitly set, auto-detected based on terminal.
	ColorEnabled bool

	// DisableUnicode switches box drawing to the ASCII fallback.
	DisableUnicode bool

	// Width sets the report width (0 = auto-detect from terminal).
	Width int

	// MaxWidth caps the report width (0 = no maximum).
	MaxWidth int

	// MaxFindings limits the finding rows in detailed mode (0 = all).
	MaxFindings int
}

// ConsoleWriter renders a gate run as a boxed terminal report. Events
// are buffered as they arrive and the report is drawn on Close, so the
// verdict, violations, and guard outcome appear as one block.
// The writer is safe for concurrent use.
type ConsoleWriter struct {
	w      io.Writer
	mu     sync.Mutex
	config ConsoleConfig
	chars  *struct {
		TopLeft, TopRight, BottomLeft, BottomRight, Horizontal, Vertical string
	}

	start      *events.StartEvent
	findings   []*events.FindingEvent
	evaluation *events.EvaluationEvent
	violations []*events.ViolationEvent
	regression *events.RegressionEvent
	baseline   *events.BaselineEvent
	errs       []*events.ErrorEvent
	summary    *events.SummaryEvent
}

// NewConsoleWriter creates a console writer with the given configuration.
// If ColorEnabled is not explicitly set, it auto-detects terminal support.
func NewConsoleWriter(w io.Writer, config ConsoleConfig) *ConsoleWriter {
	if !config.ColorEnabled {
		config.ColorEnabled = detectColorSupport(w)
	}
	if config.Mode == "" {
		config.Mode = "summary"
	}

	chars := &boxChars
	if config.DisableUnicode {
		chars = &asciiChars
	}

	return &ConsoleWriter{
		w:      w,
		config: config,
		chars:  chars,
	}
}

// detectColorSupport checks if the writer supports ANSI colors.
func detectColorSupport(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Write buffers an event for the final report.
func (cw *ConsoleWriter) Write(event events.Event) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		cw.start = e
	case *events.FindingEvent:
		cw.findings = append(cw.findings, e)
	case *events.EvaluationEvent:
		cw.evaluation = e
	case *events.ViolationEvent:
		cw.violations = append(cw.violations, e)
	case *events.RegressionEvent:
		cw.regression = e
	case *events.BaselineEvent:
		cw.baseline = e
	case *events.ErrorEvent:
		cw.errs = append(cw.errs, e)
	case *events.SummaryEvent:
		cw.summary = e
	}
	return nil
}

// Flush is a no-op: the report is only coherent once the run is done.
func (cw *ConsoleWriter) Flush() error {
	return nil
}

// Close renders and writes the complete report.
func (cw *ConsoleWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	sb := &strings.Builder{}

	cw.writeHeader(sb, "Security Gate Report")
	cw.writeRunInfo(sb)
	cw.writeVerdict(sb)
	cw.writeSeverityBreakdown(sb)
	if cw.config.Mode == "detailed" {
		cw.writeFindingsTable(sb)
	}
	cw.writeViolations(sb)
	cw.writeRecommendations(sb)
	cw.writeRegression(sb)
	cw.writeErrors(sb)
	cw.writeFooter(sb)

	if _, err := io.WriteString(cw.w, sb.String()); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}

	if closer, ok := cw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for every event the report can render.
func (cw *ConsoleWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeFinding, events.EventTypeEvaluation,
		events.EventTypeViolation, events.EventTypeRegression, events.EventTypeBaseline,
		events.EventTypeError, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// writeHeader writes the box top with a centered title.
func (cw *ConsoleWriter) writeHeader(sb *strings.Builder, title string) {
	width := cw.getWidth()
	chars := cw.chars

	sb.WriteString(chars.TopLeft)
	sb.WriteString(strings.Repeat(chars.Horizontal, width-2))
	sb.WriteString(chars.TopRight)
	sb.WriteString("\n")

	titleLine := centerText(title, width-4)
	sb.WriteString(chars.Vertical)
	sb.WriteString(" ")
	if cw.config.ColorEnabled {
		sb.WriteString(colorBold)
	}
	sb.WriteString(titleLine)
	if cw.config.ColorEnabled {
		sb.WriteString(colorReset)
	}
	sb.WriteString(" ")
	sb.WriteString(chars.Vertical)
	sb.WriteString("\n")

	cw.writeSeparator(sb)
}

// writeFooter writes the box bottom.
func (cw *ConsoleWriter) writeFooter(sb *strings.Builder) {
	width := cw.getWidth()
	chars := cw.chars

	sb.WriteString(chars.BottomLeft)
	sb.WriteString(strings.Repeat(chars.Horizontal, width-2))
	sb.WriteString(chars.BottomRight)
	sb.WriteString("\n")
}

// writeSeparator writes a horizontal rule inside the box.
func (cw *ConsoleWriter) writeSeparator(sb *strings.Builder) {
	width := cw.getWidth()
	chars := cw.chars

	sb.WriteString(chars.Vertical)
	sb.WriteString(strings.Repeat(chars.Horizontal, width-2))
	sb.WriteString(chars.Vertical)
	sb.WriteString("\n")
}

// writeRow writes one padded row inside the box. Color codes in the
// text are ignored for padding so rows stay aligned.
func (cw *ConsoleWriter) writeRow(sb *strings.Builder, text string) {
	width := cw.getWidth()
	chars := cw.chars

	visible := stripANSI(text)
	if len(visible) > width-4 {
		// Overflowing rows are truncated on their visible text, which
		// drops any color codes with the tail.
		text = visible[:width-7] + "..."
		visible = text
	}

	sb.WriteString(chars.Vertical)
	sb.WriteString(" ")
	sb.WriteString(text)
	sb.WriteString(strings.Repeat(" ", width-4-len(visible)))
	sb.WriteString(" ")
	sb.WriteString(chars.Vertical)
	sb.WriteString("\n")
}

// writeRunInfo writes the app, policy, and run identity rows.
func (cw *ConsoleWriter) writeRunInfo(sb *strings.Builder) {
	app := cw.appName()
	if app == "" && cw.start == nil {
		return
	}

	cw.writeRow(sb, fmt.Sprintf("App: %s", app))
	if ref := cw.policyReference(); ref != "" {
		cw.writeRow(sb, fmt.Sprintf("Policy: %s", ref))
	}
	if cw.start != nil {
		line := fmt.Sprintf("Run: %s", cw.start.RunID())
		if cw.config.ColorEnabled {
			line = colorDim + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeVerdict writes the verdict and risk score rows.
func (cw *ConsoleWriter) writeVerdict(sb *strings.Builder) {
	if cw.evaluation == nil && cw.summary == nil {
		return
	}

	status := policy.StatusFail
	rule := ""
	score := 0
	switch {
	case cw.summary != nil:
		status = cw.summary.Verdict.Status
		rule = cw.summary.Verdict.Rule
		score = cw.summary.Verdict.RiskScore
	case cw.evaluation != nil:
		status = cw.evaluation.Status
		rule = cw.evaluation.Rule
		score = cw.evaluation.RiskScore
	}

	verdict := string(status)
	if cw.config.ColorEnabled {
		verdict = statusColors[status] + colorBold + verdict + colorReset
	}
	line := fmt.Sprintf("Verdict: %s", verdict)
	if rule != "" {
		line += fmt.Sprintf("  (rule: %s)", rule)
	}
	cw.writeRow(sb, line)

	scoreLine := fmt.Sprintf("Risk Score: %d", score)
	if cw.summary != nil && cw.summary.Policy.RiskScoreMax > 0 {
		scoreLine = fmt.Sprintf("Risk Score: %d / %d", score, cw.summary.Policy.RiskScoreMax)
	}
	cw.writeRow(sb, scoreLine)

	if cw.summary != nil {
		exitLine := fmt.Sprintf("Exit: %d (%s)", cw.summary.ExitCode, cw.summary.ExitReason)
		if cw.config.ColorEnabled {
			exitLine = colorDim + exitLine + colorReset
		}
		cw.writeRow(sb, exitLine)
	}
	cw.writeSeparator(sb)
}

// writeSeverityBreakdown writes one row per non-empty severity tier.
func (cw *ConsoleWriter) writeSeverityBreakdown(sb *strings.Builder) {
	counts, total, ok := cw.counts()
	if !ok {
		return
	}

	cw.writeRow(sb, "Severity Breakdown:")

	if total == 0 {
		line := "  No findings"
		if cw.config.ColorEnabled {
			line = colorGreen + line + colorReset
		}
		cw.writeRow(sb, line)
		cw.writeSeparator(sb)
		return
	}

	rows := []struct {
		tier  string
		count int
	}{
		{"critical", counts.Critical},
		{"high", counts.High},
		{"medium", counts.Medium},
		{"low", counts.Low},
		{"info", counts.Info},
	}
	for _, r := range rows {
		if r.count == 0 {
			continue
		}
		line := fmt.Sprintf("  %-8s: %d", strings.ToUpper(r.tier), r.count)
		if cw.config.ColorEnabled {
			line = severityColors[r.tier] + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeFindingsTable writes every buffered finding as a table row,
// worst severity first.
func (cw *ConsoleWriter) writeFindingsTable(sb *strings.Builder) {
	if len(cw.findings) == 0 {
		return
	}

	list := make([]finding.Finding, 0, len(cw.findings))
	for _, fe := range cw.findings {
		list = append(list, fe.Finding)
	}
	finding.SortDescending(list)

	cw.writeRow(sb, "Severity | Source     | Rule            | Finding")
	cw.writeRow(sb, strings.Repeat("-", cw.getWidth()-4))

	limit := len(list)
	if cw.config.MaxFindings > 0 && limit > cw.config.MaxFindings {
		limit = cw.config.MaxFindings
	}

	for _, f := range list[:limit] {
		tier := string(f.Severity)
		row := fmt.Sprintf("%-8s | %-10s | %-15s | %s",
			strings.ToUpper(tier),
			truncateString(f.Source, 10),
			truncateString(f.Rule, 15),
			f.Name)
		if cw.config.ColorEnabled {
			row = severityColors[tier] + row + colorReset
		}
		cw.writeRow(sb, row)
	}

	if rest := len(list) - limit; rest > 0 {
		line := fmt.Sprintf("  ... and %d more", rest)
		if cw.config.ColorEnabled {
			line = colorDim + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeViolations writes the exceeded thresholds, worst first. The
// violation events already arrive in decision table order.
func (cw *ConsoleWriter) writeViolations(sb *strings.Builder) {
	messages := cw.violationMessages()
	if len(messages) == 0 {
		if cw.evaluation != nil || cw.summary != nil {
			line := "No policy violations"
			if cw.config.ColorEnabled {
				line = colorGreen + line + colorReset
			}
			cw.writeRow(sb, line)
			cw.writeSeparator(sb)
		}
		return
	}

	cw.writeRow(sb, "Violations:")
	for i, msg := range messages {
		line := fmt.Sprintf("  %d. %s", i+1, msg)
		if cw.config.ColorEnabled {
			line = colorRed + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeRecommendations writes the remediation guidance rows.
func (cw *ConsoleWriter) writeRecommendations(sb *strings.Builder) {
	if cw.summary == nil || len(cw.summary.Recommendations) == 0 {
		return
	}

	cw.writeRow(sb, "Recommendations:")
	for _, rec := range cw.summary.Recommendations {
		line := "  - " + rec
		if cw.config.ColorEnabled {
			line = colorDim + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeRegression writes the guard outcome and the baseline action.
func (cw *ConsoleWriter) writeRegression(sb *strings.Builder) {
	if cw.regression == nil && cw.baseline == nil {
		return
	}

	if reg := cw.regression; reg != nil {
		var line string
		switch {
		case reg.FirstRun:
			line = fmt.Sprintf("Regression: first run, no baseline (score %d)", reg.CurrentScore)
			if cw.config.ColorEnabled {
				line = colorBlue + line + colorReset
			}
		case reg.Accepted:
			line = fmt.Sprintf("Regression: OK (baseline %d, current %d, delta %+d, tolerance %s)",
				reg.BaselineScore, reg.CurrentScore, reg.Delta, reg.Tolerance)
			if cw.config.ColorEnabled {
				line = colorGreen + line + colorReset
			}
		default:
			line = fmt.Sprintf("Regression: REJECTED (baseline %d, current %d, delta %+d, tolerance %s)",
				reg.BaselineScore, reg.CurrentScore, reg.Delta, reg.Tolerance)
			if cw.config.ColorEnabled {
				line = colorRed + colorBold + line + colorReset
			}
		}
		cw.writeRow(sb, line)
	}

	if b := cw.baseline; b != nil {
		line := fmt.Sprintf("Baseline: %s", b.Action)
		if b.Reason != "" {
			line += fmt.Sprintf(" (%s)", b.Reason)
		}
		if cw.config.ColorEnabled {
			line = colorDim + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// writeErrors writes any errors the run reported.
func (cw *ConsoleWriter) writeErrors(sb *strings.Builder) {
	if len(cw.errs) == 0 {
		return
	}

	cw.writeRow(sb, "Errors:")
	for _, e := range cw.errs {
		line := fmt.Sprintf("  [%s] %s", e.Stage, e.Message)
		if cw.config.ColorEnabled {
			line = colorRed + line + colorReset
		}
		cw.writeRow(sb, line)
	}
	cw.writeSeparator(sb)
}

// appName resolves the application name from the buffered events.
func (cw *ConsoleWriter) appName() string {
	if cw.summary != nil && cw.summary.AppName != "" {
		return cw.summary.AppName
	}
	if cw.start != nil {
		return cw.start.AppName
	}
	if cw.evaluation != nil {
		return cw.evaluation.AppName
	}
	return ""
}

// policyReference resolves the policy identity from the buffered events.
func (cw *ConsoleWriter) policyReference() string {
	if cw.summary != nil && cw.summary.Policy.Reference != "" {
		return cw.summary.Policy.Reference
	}
	if cw.start != nil {
		return cw.start.PolicyReference
	}
	return ""
}

// counts resolves the severity totals from the buffered events.
func (cw *ConsoleWriter) counts() (scoring.Counts, int, bool) {
	switch {
	case cw.summary != nil:
		return cw.summary.Totals, cw.summary.TotalFindings, true
	case cw.evaluation != nil:
		return cw.evaluation.SeverityCounts, cw.evaluation.TotalFindings, true
	}
	return scoring.Counts{}, 0, false
}

// violationMessages prefers the summary list and falls back to the
// per-violation events.
func (cw *ConsoleWriter) violationMessages() []string {
	if cw.summary != nil && len(cw.summary.Violations) > 0 {
		return cw.summary.Violations
	}
	messages := make([]string, 0, len(cw.violations))
	for _, v := range cw.violations {
		messages = append(messages, v.Message)
	}
	return messages
}

// getWidth returns the configured or auto-detected report width.
func (cw *ConsoleWriter) getWidth() int {
	if cw.config.Width > 0 {
		return cw.config.Width
	}

	width := getTerminalWidth(cw.w)
	if cw.config.MaxWidth > 0 && width > cw.config.MaxWidth {
		return cw.config.MaxWidth
	}
	return width
}

// getTerminalWidth detects the terminal width from the writer or
// returns a default suited to CI logs.
func getTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 100
}

// centerText centers text within a given width.
func centerText(text string, width int) string {
	if len(text) >= width {
		return text[:width]
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text + strings.Repeat(" ", width-len(text)-padding)
}

// stripANSI removes ANSI escape codes from a string for length calculation.
func stripANSI(s string) string {
	result := s
	for {
		start := strings.Index(result, "\033[")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "m")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+1:]
	}
	return result
}
