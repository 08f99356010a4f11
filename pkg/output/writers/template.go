// Package writers provides output writers for various formats.
package writers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/scoring"
	"github.com/riskgate/riskgate/templates"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*TemplateWriter)(nil)

// TemplateConfig configures the template writer.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template string (alternative to TemplatePath).
	TemplateString string

	// BuiltIn is the name of a built-in template: "csv", "text-summary", "badge".
	BuiltIn string
}

// builtInTemplates contains pre-defined templates for common output formats.
var builtInTemplates = map[string]string{
	"csv": `Index,Name,Severity,Weight,Source,Rule,Location
{{- range .Findings }}
{{ .Index }},{{ escapeCSV .Name }},{{ .Severity }},{{ .Weight }},{{ escapeCSV .Source }},{{ escapeCSV .Rule }},{{ escapeCSV .Location }}
{{- end }}`,

	"text-summary": `Security Gate Summary
=====================
Application: {{ .AppName }}
Generated: {{ .GeneratedAt }}
Policy: {{ .PolicyReference }}

Verdict: {{ .Status }} ({{ .Rule }})
Risk Score: {{ .RiskScore }}
Total Findings: {{ .TotalFindings }}
{{ if gt .TotalFindings 0 }}
Findings by Severity:
{{- range $sev, $count := .SeverityCounts }}
  {{ severityIcon $sev }} {{ $sev | title }}: {{ $count }}
{{- end }}
{{ end }}
{{- if .Violations }}
Violations:
{{- range .Violations }}
  - {{ . }}
{{- end }}
{{ end }}
{{- if .Recommendations }}
Recommendations:
{{- range .Recommendations }}
  - {{ . }}
{{- end }}
{{ end }}`,

	"badge": `{"schemaVersion":1,"label":"riskgate","message":"{{ .Status }} ({{ .RiskScore }})","color":"{{ statusColor .Status }}"}`,
}

// TemplateWriter renders events using Go templates.
// It buffers all events in memory and renders the template on Close.
// The writer supports custom templates, inline templates, built-in
// templates, and falls back to the bundled Markdown report template.
// Sprig functions and gate-specific functions are available in templates.
type TemplateWriter struct {
	w          io.Writer
	mu         sync.Mutex
	config     TemplateConfig
	tmpl       *template.Template
	findings   []*events.FindingEvent
	evaluation *events.EvaluationEvent
	summary    *events.SummaryEvent
	runID      string
	startTime  time.Time
}

// NewTemplateWriter creates a new template writer.
// It parses the template immediately and returns an error if the template is invalid.
// The writer buffers all events and writes the rendered template on Close.
func NewTemplateWriter(w io.Writer, config TemplateConfig) (*TemplateWriter, error) {
	tw := &TemplateWriter{
		w:         w,
		config:    config,
		findings:  make([]*events.FindingEvent, 0),
		startTime: time.Now(),
	}

	// Parse template
	if err := tw.parseTemplate(); err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}

	return tw, nil
}

// parseTemplate parses the template from config (path, string, built-in,
// or the bundled default).
func (tw *TemplateWriter) parseTemplate() error {
	var templateContent string

	// Determine template source
	switch {
	case tw.config.TemplatePath != "":
		content, err := os.ReadFile(tw.config.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		templateContent = string(content)

	case tw.config.TemplateString != "":
		templateContent = tw.config.TemplateString

	case tw.config.BuiltIn != "":
		content, ok := builtInTemplates[tw.config.BuiltIn]
		if !ok {
			return fmt.Errorf("unknown built-in template: %s (available: csv, text-summary, badge)", tw.config.BuiltIn)
		}
		templateContent = content

	default:
		content, err := templates.FS.ReadFile("report.md.tmpl")
		if err != nil {
			return fmt.Errorf("failed to read bundled template: %w", err)
		}
		templateContent = string(content)
	}

	// Create function map with Sprig functions
	funcMap := sprig.TxtFuncMap()

	// Add gate-specific functions
	funcMap["escapeCSV"] = tmplEscapeCSV
	funcMap["escapeXML"] = tmplEscapeXML
	funcMap["severityIcon"] = tmplSeverityIcon
	funcMap["severityWeight"] = tmplSeverityWeight
	funcMap["statusColor"] = tmplStatusColor
	funcMap["json"] = tmplToJSON
	funcMap["prettyJSON"] = tmplPrettyJSON

	// Parse template with all functions
	tmpl, err := template.New(defaults.ToolName).Funcs(funcMap).Parse(templateContent)
	if err != nil {
		return fmt.Errorf("parse output template: %w", err)
	}

	tw.tmpl = tmpl
	return nil
}

// Write buffers an event for later template rendering.
func (tw *TemplateWriter) Write(event events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Capture run ID from first event
	if tw.runID == "" {
		tw.runID = event.RunID()
	}

	switch e := event.(type) {
	case *events.FindingEvent:
		tw.findings = append(tw.findings, e)
	case *events.EvaluationEvent:
		tw.evaluation = e
	case *events.SummaryEvent:
		tw.summary = e
	}
	return nil
}

// Flush is a no-op for template writer.
// All events are rendered as a single document on Close.
func (tw *TemplateWriter) Flush() error {
	return nil
}

// Close renders the template with all buffered events and writes to the output.
func (tw *TemplateWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data := tw.buildTemplateData()

	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}

	if closer, ok := tw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for finding, evaluation, and summary events.
func (tw *TemplateWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeFinding, events.EventTypeEvaluation, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// tmplData holds all data available to templates.
type tmplData struct {
	// Run info
	Version     string
	RunID       string
	AppName     string
	GeneratedAt string

	// Verdict
	Status    string
	Rule      string
	RiskScore int

	// Findings
	Findings      []*tmplFindingData
	TotalFindings int

	// Severity breakdown
	Counts          scoring.Counts
	SeverityCounts  map[string]int
	HighestSeverity string

	// Policy outcome
	Violations      []string
	Recommendations []string
	PolicyReference string

	// Regression guard
	Regression *events.RegressionInfo

	// Timing
	DurationSec float64
}

// tmplFindingData is a flattened view of FindingEvent for easier template access.
type tmplFindingData struct {
	Index       int
	Name        string
	Severity    string
	Weight      int
	Source      string
	Rule        string
	Location    string
	Description string
	Solution    string
	Tags        []string
}

// buildTemplateData constructs the data object for template rendering.
func (tw *TemplateWriter) buildTemplateData() *tmplData {
	data := &tmplData{
		Version:         defaults.Version,
		RunID:           tw.runID,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Findings:        make([]*tmplFindingData, 0, len(tw.findings)),
		SeverityCounts:  make(map[string]int),
		Violations:      []string{},
		Recommendations: []string{},
		PolicyReference: defaults.PolicyFile,
	}

	// Process findings
	var highest finding.Severity
	for _, fe := range tw.findings {
		f := fe.Finding
		data.Findings = append(data.Findings, &tmplFindingData{
			Index:       fe.Index,
			Name:        f.Name,
			Severity:    string(f.Severity),
			Weight:      fe.Weight,
			Source:      f.Source,
			Rule:        f.Rule,
			Location:    f.Location,
			Description: f.Description,
			Solution:    f.Solution,
			Tags:        f.Tags,
		})
		data.SeverityCounts[string(f.Severity)]++
		// Track highest severity
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}
	data.HighestSeverity = string(highest)
	data.TotalFindings = len(tw.findings)

	// Extract verdict data if available
	if tw.evaluation != nil {
		data.AppName = tw.evaluation.AppName
		data.Status = string(tw.evaluation.Status)
		data.Rule = tw.evaluation.Rule
		data.RiskScore = tw.evaluation.RiskScore
		data.Counts = tw.evaluation.SeverityCounts
		data.TotalFindings = tw.evaluation.TotalFindings
	}

	// Extract summary data if available
	if tw.summary != nil {
		data.AppName = tw.summary.AppName
		data.Status = string(tw.summary.Verdict.Status)
		data.Rule = tw.summary.Verdict.Rule
		data.RiskScore = tw.summary.Verdict.RiskScore
		data.Counts = tw.summary.Totals
		data.TotalFindings = tw.summary.TotalFindings
		if len(tw.summary.Violations) > 0 {
			data.Violations = tw.summary.Violations
		}
		if len(tw.summary.Recommendations) > 0 {
			data.Recommendations = tw.summary.Recommendations
		}
		data.Regression = tw.summary.Regression
		if tw.summary.Policy.Reference != "" {
			data.PolicyReference = tw.summary.Policy.Reference
		}
		data.DurationSec = tw.summary.Timing.DurationSec
	}

	return data
}

// Template helper functions

// tmplEscapeCSV escapes a string for CSV output.
// It wraps the value in quotes if it contains commas, quotes, or newlines.
func tmplEscapeCSV(s string) string {
	if s == "" {
		return ""
	}
	needsQuote := strings.ContainsAny(s, ",\"\n\r")
	if needsQuote {
		escaped := strings.ReplaceAll(s, "\"", "\"\"")
		return "\"" + escaped + "\""
	}
	return s
}

// tmplEscapeXML escapes a string for XML output.
func tmplEscapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// tmplSeverityIcon returns an emoji icon for a severity level.
func tmplSeverityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	case "info":
		return "🔵"
	default:
		return "⚪"
	}
}

// tmplSeverityWeight returns the default risk score multiplier for a severity level.
func tmplSeverityWeight(severity string) int {
	return scoring.DefaultWeights().Get(finding.Severity(strings.ToLower(severity)))
}

// tmplStatusColor returns a shields.io color name for a verdict status.
func tmplStatusColor(status string) string {
	switch strings.ToUpper(status) {
	case "PASS":
		return "brightgreen"
	case "WARN":
		return "yellow"
	case "FAIL":
		return "red"
	default:
		return "lightgrey"
	}
}

// tmplToJSON converts a value to a JSON string.
func tmplToJSON(v interface{}) string {
	b, err := jsonutil.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

// tmplPrettyJSON converts a value to a formatted JSON string.
func tmplPrettyJSON(v interface{}) string {
	b, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}
