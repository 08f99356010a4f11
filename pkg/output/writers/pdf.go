package writers

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*PDFWriter)(nil)

// pdfSeverityColors maps severity tiers to RGB triples.
var pdfSeverityColors = map[string][]int{
	"critical": {185, 28, 28},
	"high":     {234, 88, 12},
	"medium":   {202, 138, 4},
	"low":      {22, 163, 74},
	"info":     {37, 99, 235},
}

// pdfStatusColors maps gate verdicts to RGB triples.
var pdfStatusColors = map[policy.Status][]int{
	policy.StatusPass: {22, 163, 74},
	policy.StatusWarn: {202, 138, 4},
	policy.StatusFail: {185, 28, 28},
}

// PDFConfig configures the PDF writer behavior.
type PDFConfig struct {
	// Title for the report cover (default: "Security Gate Report").
	Title string

	// CompanyName shown on the cover page.
	CompanyName string

	// Author written into the document metadata.
	Author string

	// IncludeFindings adds the findings appendix.
	IncludeFindings bool

	// PageSize is "A4" or "Letter" (default: "A4").
	PageSize string

	// Orientation is "P" (portrait) or "L" (landscape) (default: "P").
	Orientation string
}

// PDFWriter renders a gate run as a PDF report. Events are buffered as
// they arrive and the document is generated on Close: a cover page with
// the verdict, the severity breakdown, violations with remediation
// guidance, the regression guard outcome, and optionally a findings
// appendix. The writer is safe for concurrent use.
type PDFWriter struct {
	w      io.Writer
	mu     sync.Mutex
	config PDFConfig

	// noCompress disables PDF stream compression. Tests use this so
	// rendered text stays searchable in the raw output.
	noCompress bool

	start      *events.StartEvent
	findings   []*events.FindingEvent
	evaluation *events.EvaluationEvent
	violations []*events.ViolationEvent
	regression *events.RegressionEvent
	baseline   *events.BaselineEvent
	summary    *events.SummaryEvent
}

// NewPDFWriter creates a PDF writer with the given configuration.
func NewPDFWriter(w io.Writer, config PDFConfig) *PDFWriter {
	if config.Title == "" {
		config.Title = defaults.ReportTitle
	}
	if config.PageSize == "" {
		config.PageSize = "A4"
	}
	if config.Orientation == "" {
		config.Orientation = "P"
	}

	return &PDFWriter{
		w:      w,
		config: config,
	}
}

// Write buffers an event for the final report.
func (pw *PDFWriter) Write(event events.Event) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		pw.start = e
	case *events.FindingEvent:
		pw.findings = append(pw.findings, e)
	case *events.EvaluationEvent:
		pw.evaluation = e
	case *events.ViolationEvent:
		pw.violations = append(pw.violations, e)
	case *events.RegressionEvent:
		pw.regression = e
	case *events.BaselineEvent:
		pw.baseline = e
	case *events.SummaryEvent:
		pw.summary = e
	}
	return nil
}

// Flush is a no-op: the document can only be assembled once the run is
// complete.
func (pw *PDFWriter) Flush() error {
	return nil
}

// Close generates the PDF document and writes it out.
func (pw *PDFWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pdf := pw.buildPDF()
	if err := pdf.Output(pw.w); err != nil {
		return fmt.Errorf("pdf: output: %w", err)
	}

	if closer, ok := pw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for every event the report can render.
func (pw *PDFWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeFinding, events.EventTypeEvaluation,
		events.EventTypeViolation, events.EventTypeRegression, events.EventTypeBaseline,
		events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// buildPDF assembles the full document from the buffered events.
func (pw *PDFWriter) buildPDF() *gofpdf.Fpdf {
	pdf := gofpdf.New(pw.config.Orientation, "mm", pw.config.PageSize, "")
	if pw.noCompress {
		pdf.SetCompression(false)
	}

	pdf.SetTitle(pw.config.Title, true)
	pdf.SetCreator(defaults.ToolName+" v"+defaults.Version, true)
	if pw.config.Author != "" {
		pdf.SetAuthor(pw.config.Author, true)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Generated by %s v%s    Page %d of {nb}", defaults.ToolName, defaults.Version, pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})

	pw.addCoverPage(pdf)
	pw.addSeverityBreakdown(pdf)
	pw.addViolations(pdf)
	pw.addRegressionGuard(pdf)
	if pw.config.IncludeFindings {
		pw.addFindingsAppendix(pdf)
	}

	return pdf
}

// addSectionHeader renders a section title with an underline rule.
func (pw *PDFWriter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	pdf.SetDrawColor(30, 41, 59)
	pdf.SetLineWidth(0.5)
	y := pdf.GetY()
	pdf.Line(10, y, 70, y)
	pdf.Ln(5)
}

// addCoverPage renders the title, run identity, and the verdict badge.
func (pw *PDFWriter) addCoverPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()

	pdf.Ln(30)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 14, pw.config.Title, "", 1, "C", false, 0, "")

	if pw.config.CompanyName != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, pw.config.CompanyName, "", 1, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, time.Now().Format("January 2, 2006 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	// Verdict badge.
	status, rule, score := pw.verdict()
	badge := pdfStatusColors[status]
	if badge == nil {
		badge = []int{128, 128, 128}
	}

	pageW, _ := pdf.GetPageSize()
	badgeW := 70.0
	pdf.SetX((pageW - badgeW) / 2)
	pdf.SetFillColor(badge[0], badge[1], badge[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(badgeW, 16, string(status), "", 1, "C", true, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 7, fmt.Sprintf("Risk Score: %d", score), "", 1, "C", false, 0, "")
	if rule != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("Decision rule: %s", rule), "", 1, "C", false, 0, "")
	}
	pdf.Ln(10)

	// Run identity block.
	rows := [][2]string{}
	if app := pw.appName(); app != "" {
		rows = append(rows, [2]string{"Application", app})
	}
	if ref := pw.policyReference(); ref != "" {
		rows = append(rows, [2]string{"Policy", ref})
	}
	if pw.start != nil {
		rows = append(rows, [2]string{"Run ID", pw.start.RunID()})
		rows = append(rows, [2]string{"Tolerance", fmt.Sprintf("%v", pw.start.Config.Tolerance)})
	}
	if pw.summary != nil {
		rows = append(rows, [2]string{"Findings", fmt.Sprintf("%d", pw.summary.TotalFindings)})
		rows = append(rows, [2]string{"Duration", fmt.Sprintf("%.2fs", pw.summary.Timing.DurationSec)})
	}

	labelW := 50.0
	valueW := 90.0
	left := (pageW - labelW - valueW) / 2
	for i, row := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetX(left)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(labelW, 8, row[0], "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(valueW, 8, row[1], "1", 1, "L", true, 0, "")
	}
}

// addSeverityBreakdown renders the per-tier counts and their weighted
// contribution to the risk score.
func (pw *PDFWriter) addSeverityBreakdown(pdf *gofpdf.Fpdf) {
	counts, total, ok := pw.counts()
	if !ok {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Severity Breakdown")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, fmt.Sprintf("%d finding(s) were aggregated by severity tier. "+
		"Each tier contributes its weight per finding to the overall risk score.", total), "", "L", false)
	pdf.Ln(5)

	contributions := pw.tierContributions()

	// Header row.
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(45, 8, "Tier", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Findings", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 8, "Score Contribution", "1", 1, "C", true, 0, "")

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

	pdf.SetFont("Helvetica", "", 10)
	for i, r := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		sevColor := pdfSeverityColors[r.tier]
		pdf.SetTextColor(sevColor[0], sevColor[1], sevColor[2])
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 7, strings.ToUpper(r.tier), "1", 0, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, fmt.Sprintf("%d", r.count), "1", 0, "C", true, 0, "")

		if c, known := contributions[r.tier]; known {
			pdf.CellFormat(45, 7, fmt.Sprintf("%d", c), "1", 1, "C", true, 0, "")
		} else {
			pdf.SetTextColor(180, 180, 180)
			pdf.CellFormat(45, 7, "-", "1", 1, "C", true, 0, "")
		}
	}

	// Totals row.
	_, _, score := pw.verdict()
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(30, 41, 59)
	pdf.SetFillColor(255, 255, 255)
	pdf.CellFormat(45, 7, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, fmt.Sprintf("%d", total), "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 7, fmt.Sprintf("%d", score), "1", 1, "C", true, 0, "")
}

// tierContributions sums per-finding weights by tier. Only available
// when the run streamed finding events through this writer.
func (pw *PDFWriter) tierContributions() map[string]int {
	if len(pw.findings) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, fe := range pw.findings {
		out[string(fe.Finding.Severity)] += fe.Weight
	}
	return out
}

// addViolations renders the exceeded thresholds and the remediation
// recommendations.
func (pw *PDFWriter) addViolations(pdf *gofpdf.Fpdf) {
	violations := pw.violationMessages()
	recommendations := pw.recommendationList()
	if len(violations) == 0 && len(recommendations) == 0 {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Policy Violations")

	if len(violations) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(22, 163, 74)
		pdf.CellFormat(0, 8, "No policy thresholds were exceeded.", "", 1, "L", false, 0, "")
	}

	for i, msg := range violations {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(185, 28, 28)
		pdf.CellFormat(10, 7, fmt.Sprintf("%d.", i+1), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 7, msg, "", "L", false)
	}

	if len(recommendations) > 0 {
		pdf.Ln(6)
		pw.addSectionHeader(pdf, "Recommendations")
		for _, rec := range recommendations {
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(80, 80, 80)
			pdf.MultiCell(0, 6, "- "+rec, "", "L", false)
			pdf.Ln(1)
		}
	}
}

// addRegressionGuard renders the baseline comparison outcome.
func (pw *PDFWriter) addRegressionGuard(pdf *gofpdf.Fpdf) {
	if pw.regression == nil && pw.baseline == nil {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Regression Guard")

	if reg := pw.regression; reg != nil {
		var verdict string
		var color []int
		switch {
		case reg.FirstRun:
			verdict = "FIRST RUN"
			color = []int{37, 99, 235}
		case reg.Accepted:
			verdict = "ACCEPTED"
			color = []int{22, 163, 74}
		default:
			verdict = "REJECTED"
			color = []int{185, 28, 28}
		}

		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 10, verdict, "", 1, "C", true, 0, "")
		pdf.Ln(4)

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 5, reg.Summary, "", "L", false)
		pdf.Ln(4)

		rows := [][2]string{
			{"Baseline score", fmt.Sprintf("%d", reg.BaselineScore)},
			{"Current score", fmt.Sprintf("%d", reg.CurrentScore)},
			{"Delta", fmt.Sprintf("%+d", reg.Delta)},
			{"Tolerance", reg.Tolerance},
		}
		for i, row := range rows {
			if i%2 == 0 {
				pdf.SetFillColor(248, 250, 252)
			} else {
				pdf.SetFillColor(255, 255, 255)
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(50, 8, row[0], "1", 0, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(50, 8, row[1], "1", 1, "C", true, 0, "")
		}
	}

	if b := pw.baseline; b != nil {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		line := fmt.Sprintf("Baseline %s.", b.Action)
		if b.Reason != "" {
			line = fmt.Sprintf("Baseline %s: %s.", b.Action, b.Reason)
		}
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
}

// addFindingsAppendix renders every buffered finding, worst first.
func (pw *PDFWriter) addFindingsAppendix(pdf *gofpdf.Fpdf) {
	if len(pw.findings) == 0 {
		return
	}

	list := make([]finding.Finding, 0, len(pw.findings))
	for _, fe := range pw.findings {
		list = append(list, fe.Finding)
	}
	finding.SortDescending(list)

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Findings")

	// Header row.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(25, 8, "Severity", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Source", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Rule", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "Finding", "1", 1, "L", true, 0, "")

	_, pageH := pdf.GetPageSize()
	pageBreakY := pageH - 30

	pdf.SetFont("Helvetica", "", 9)
	for i, f := range list {
		if pdf.GetY()+7 > pageBreakY {
			pdf.AddPage()
		}

		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		tier := string(f.Severity)
		sevColor := pdfSeverityColors[tier]
		if sevColor == nil {
			sevColor = []int{128, 128, 128}
		}

		pdf.SetTextColor(sevColor[0], sevColor[1], sevColor[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(25, 7, strings.ToUpper(tier), "1", 0, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(25, 7, truncateString(f.Source, 14), "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 7, truncateString(f.Rule, 20), "1", 0, "L", true, 0, "")
		pdf.CellFormat(0, 7, truncateString(f.Name, 60), "1", 1, "L", true, 0, "")
	}
}

// verdict resolves the status, rule, and score from the buffered events.
func (pw *PDFWriter) verdict() (policy.Status, string, int) {
	switch {
	case pw.summary != nil:
		return pw.summary.Verdict.Status, pw.summary.Verdict.Rule, pw.summary.Verdict.RiskScore
	case pw.evaluation != nil:
		return pw.evaluation.Status, pw.evaluation.Rule, pw.evaluation.RiskScore
	}
	return policy.StatusPass, "", 0
}

// appName resolves the application name from the buffered events.
func (pw *PDFWriter) appName() string {
	if pw.summary != nil && pw.summary.AppName != "" {
		return pw.summary.AppName
	}
	if pw.start != nil {
		return pw.start.AppName
	}
	if pw.evaluation != nil {
		return pw.evaluation.AppName
	}
	return ""
}

// policyReference resolves the policy identity from the buffered events.
func (pw *PDFWriter) policyReference() string {
	if pw.summary != nil && pw.summary.Policy.Reference != "" {
		return pw.summary.Policy.Reference
	}
	if pw.start != nil {
		return pw.start.PolicyReference
	}
	return ""
}

// counts resolves the severity totals from the buffered events.
func (pw *PDFWriter) counts() (scoring.Counts, int, bool) {
	switch {
	case pw.summary != nil:
		return pw.summary.Totals, pw.summary.TotalFindings, true
	case pw.evaluation != nil:
		return pw.evaluation.SeverityCounts, pw.evaluation.TotalFindings, true
	}
	return scoring.Counts{}, 0, false
}

// violationMessages prefers the summary list and falls back to the
// per-violation events.
func (pw *PDFWriter) violationMessages() []string {
	if pw.summary != nil && len(pw.summary.Violations) > 0 {
		return pw.summary.Violations
	}
	messages := make([]string, 0, len(pw.violations))
	for _, v := range pw.violations {
		messages = append(messages, v.Message)
	}
	return messages
}

// recommendationList returns the remediation guidance, if any arrived.
func (pw *PDFWriter) recommendationList() []string {
	if pw.summary == nil {
		return nil
	}
	return pw.summary.Recommendations
}
