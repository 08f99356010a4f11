// Package writers provides output writers for various formats.
package writers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*SARIFWriter)(nil)

// SARIFWriter writes events in SARIF 2.1.0 format.
// SARIF (Static Analysis Results Interchange Format) is the standard
// for GitHub Security tab, GitLab SAST, and Azure DevOps integration.
// Findings are buffered and written as a complete SARIF document on
// Close, with the gate verdict recorded on the run invocation.
//
// This implementation follows GitHub-certified patterns from Semgrep, Trivy,
// and Nuclei including:
//   - matchBasedId/v1 fingerprints for result deduplication
//   - security-severity scores for GitHub Advanced Security
//   - Rich markdown help for IDE integration
type SARIFWriter struct {
	w          io.Writer
	mu         sync.Mutex
	opts       SARIFOptions
	results    []sarifResult
	rules      map[string]sarifRule
	evaluation *events.EvaluationEvent
	summary    *events.SummaryEvent
	runFailed  bool
}

// SARIFOptions configures the SARIF writer.
type SARIFOptions struct {
	// ToolName is the name of the tool (default: riskgate).
	ToolName string

	// ToolVersion is the version of the tool.
	ToolVersion string

	// ToolURI is the information URI for the tool.
	ToolURI string

	// ToolDownloadURI is the download URI for the tool.
	ToolDownloadURI string

	// Organization is the organization that produces the tool.
	Organization string
}

// SARIF 2.1.0 structures.

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
	ColumnKind  string            `json:"columnKind,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	DownloadURI     string      `json:"downloadUri,omitempty"`
	Organization    string      `json:"organization,omitempty"`
	Rules           []sarifRule `json:"rules,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool           `json:"executionSuccessful"`
	ExitCode            int            `json:"exitCode,omitempty"`
	Properties          map[string]any `json:"properties,omitempty"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name,omitempty"`
	ShortDescription *sarifMessage       `json:"shortDescription,omitempty"`
	FullDescription  *sarifMessage       `json:"fullDescription,omitempty"`
	DefaultConfig    *sarifConfiguration `json:"defaultConfiguration,omitempty"`
	Help             *sarifHelp          `json:"help,omitempty"`
	Properties       map[string]any      `json:"properties,omitempty"`
}

type sarifConfiguration struct {
	Level string `json:"level"`
}

type sarifHelp struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

type sarifResult struct {
	RuleID       string            `json:"ruleId"`
	Level        string            `json:"level"`
	Message      sarifMessage      `json:"message"`
	Locations    []sarifLocation   `json:"locations,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
	Properties   map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// NewSARIFWriter creates a new SARIF 2.1.0 writer.
// The writer buffers all findings and writes a complete SARIF document on Close.
// The writer is safe for concurrent use.
func NewSARIFWriter(w io.Writer, opts SARIFOptions) *SARIFWriter {
	if opts.ToolName == "" {
		opts.ToolName = defaults.ToolName
	}
	if opts.ToolVersion == "" {
		opts.ToolVersion = defaults.Version
	}
	if opts.ToolURI == "" {
		opts.ToolURI = defaults.ToolURL
	}
	if opts.ToolDownloadURI == "" {
		opts.ToolDownloadURI = defaults.ToolURL + "/releases"
	}
	if opts.Organization == "" {
		opts.Organization = defaults.ToolName
	}
	return &SARIFWriter{
		w:       w,
		opts:    opts,
		results: make([]sarifResult, 0),
		rules:   make(map[string]sarifRule),
	}
}

// severityToLevel maps finding severity to SARIF level.
// Delegates to finding.Severity.ToSARIF for canonical mapping.
func severityToLevel(severity events.Severity) string {
	return severity.ToSARIF()
}

// severityToScore maps finding severity to GitHub security-severity score.
// Delegates to finding.Severity.ToSARIFScore for canonical mapping.
func severityToScore(severity events.Severity) string {
	return severity.ToSARIFScore()
}

// generateFingerprint creates a matchBasedId/v1 fingerprint for result deduplication.
// The fingerprint is a SHA256 hash of the rule ID, location, line number, and finding name.
func generateFingerprint(ruleID, location string, line int, name string) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s:%s:%d:%s", ruleID, location, line, name)))
	return hex.EncodeToString(h.Sum(nil))
}

// sarifRuleID builds a stable rule identifier from the finding's source
// and scanner rule. Findings without a rule fall back to a slug of the
// finding name.
func sarifRuleID(f finding.Finding) string {
	id := f.Rule
	if id == "" {
		id = strings.ToLower(strings.ReplaceAll(f.Name, " ", "-"))
	}
	if f.Source != "" {
		id = f.Source + "-" + id
	}
	return id
}

// buildTags creates the tags array for a rule from the finding's own tags.
func buildTags(f finding.Finding) []string {
	tags := []string{"security"}
	tags = append(tags, f.Tags...)
	tags = append(tags, "severity/"+string(f.Severity))
	return tags
}

// buildHelp creates rich help content with markdown for IDE display.
func buildHelp(f finding.Finding) *sarifHelp {
	source := f.Source
	if source == "" {
		source = "the scanner"
	}
	description := f.Description
	if description == "" {
		description = fmt.Sprintf("%s reported %q at %s.", source, f.Name, f.Location)
	}
	solution := f.Solution
	if solution == "" {
		solution = "Review the finding and consult the reporting scanner's remediation guidance."
	}

	plainText := fmt.Sprintf("%s (%s severity). %s", f.Name, f.Severity.Upper(), solution)

	markdown := fmt.Sprintf(`## %s

A **%s** severity finding reported by %s.

### Description

%s

### Remediation

%s
`, f.Name, f.Severity.Upper(), source, description, solution)

	return &sarifHelp{
		Text:     plainText,
		Markdown: markdown,
	}
}

// Write converts gate events to SARIF format.
// Findings become results, the evaluation and summary feed the run
// invocation, and fatal errors mark the invocation unsuccessful.
func (sw *SARIFWriter) Write(event events.Event) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch e := event.(type) {
	case *events.FindingEvent:
		sw.addFinding(e)
	case *events.EvaluationEvent:
		sw.evaluation = e
	case *events.SummaryEvent:
		sw.summary = e
	case *events.ErrorEvent:
		if e.Fatal {
			sw.runFailed = true
		}
	}
	return nil
}

// addFinding converts a finding event into a SARIF result, registering
// its rule on first sight. Must be called with mu held.
func (sw *SARIFWriter) addFinding(fe *events.FindingEvent) {
	f := fe.Finding
	ruleID := sarifRuleID(f)

	// Add rule if not exists
	if _, exists := sw.rules[ruleID]; !exists {
		shortText := f.Name
		if shortText == "" {
			shortText = ruleID
		}
		fullText := f.Description
		if fullText == "" {
			fullText = fmt.Sprintf("%s severity finding reported by %s.", f.Severity.Upper(), f.Source)
		}

		sw.rules[ruleID] = sarifRule{
			ID:   ruleID,
			Name: f.Name,
			ShortDescription: &sarifMessage{
				Text: shortText,
			},
			FullDescription: &sarifMessage{
				Text: fullText,
			},
			DefaultConfig: &sarifConfiguration{
				Level: severityToLevel(f.Severity),
			},
			Help: buildHelp(f),
			Properties: map[string]any{
				"precision":         "very-high",
				"tags":              buildTags(f),
				"security-severity": severityToScore(f.Severity),
			},
		}
	}

	// Generate fingerprint for result deduplication
	fingerprint := generateFingerprint(ruleID, f.Location, 1, f.Name)

	// Build result message with markdown
	msgText := f.Name
	if msgText == "" {
		msgText = fmt.Sprintf("%s severity finding", f.Severity.Upper())
	}
	msgMarkdown := fmt.Sprintf(
		"**%s**\n\n"+
			"| Property | Value |\n"+
			"|----------|-------|\n"+
			"| Severity | %s |\n"+
			"| Source | %s |\n"+
			"| Rule | %s |\n"+
			"| Score weight | %d |",
		msgText, f.Severity.Upper(), f.Source, f.Rule, fe.Weight)
	if f.Location != "" {
		msgMarkdown += fmt.Sprintf("\n| Location | `%s` |", f.Location)
	}

	result := sarifResult{
		RuleID: ruleID,
		Level:  severityToLevel(f.Severity),
		Message: sarifMessage{
			Text:     msgText,
			Markdown: msgMarkdown,
		},
		Fingerprints: map[string]string{
			"matchBasedId/v1": fingerprint,
		},
		Properties: map[string]any{
			"app":      fe.AppName,
			"severity": string(f.Severity),
			"source":   f.Source,
			"rule":     f.Rule,
			"weight":   fe.Weight,
		},
	}

	if f.Location != "" {
		result.Locations = []sarifLocation{
			{
				PhysicalLocation: &sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI: f.Location,
					},
					Region: &sarifRegion{
						StartLine: 1,
					},
				},
			},
		}
	}

	sw.results = append(sw.results, result)
}

// Flush is a no-op for SARIF writer.
// All results are written as a single document on Close.
func (sw *SARIFWriter) Flush() error { return nil }

// Close writes all buffered findings as a complete SARIF 2.1.0 document.
// If the underlying writer implements io.Closer, it will be closed.
func (sw *SARIFWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	// Build rules array from map and sort by ID for deterministic output.
	rules := make([]sarifRule, 0, len(sw.rules))
	for _, rule := range sw.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ID < rules[j].ID
	})

	// Ensure results is never nil so JSON encodes as [] not null per SARIF spec.
	results := sw.results
	if results == nil {
		results = make([]sarifResult, 0)
	}

	doc := sarifDocument{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            sw.opts.ToolName,
						Version:         sw.opts.ToolVersion,
						SemanticVersion: sw.opts.ToolVersion,
						InformationURI:  sw.opts.ToolURI,
						DownloadURI:     sw.opts.ToolDownloadURI,
						Organization:    sw.opts.Organization,
						Rules:           rules,
					},
				},
				Invocations: []sarifInvocation{sw.buildInvocation()},
				Results:     results,
				ColumnKind:  "utf16CodeUnits",
			},
		},
	}

	encoder := jsonutil.NewStreamEncoder(sw.w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("sarif: encode: %w", err)
	}

	if closer, ok := sw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// buildInvocation records the gate verdict on the SARIF invocation so
// the security tab shows the decision, not just the raw findings.
// Must be called with mu held.
func (sw *SARIFWriter) buildInvocation() sarifInvocation {
	invocation := sarifInvocation{
		ExecutionSuccessful: !sw.runFailed,
	}

	props := make(map[string]any)
	if sw.evaluation != nil {
		props["verdict"] = string(sw.evaluation.Status)
		props["decision_rule"] = sw.evaluation.Rule
		props["risk_score"] = sw.evaluation.RiskScore
		props["total_findings"] = sw.evaluation.TotalFindings
	}
	if sw.summary != nil {
		props["violations"] = sw.summary.Violations
		invocation.ExitCode = sw.summary.ExitCode
	}
	if len(props) > 0 {
		invocation.Properties = props
	}
	return invocation
}

// SupportsEvent returns true for the events the SARIF document uses.
func (sw *SARIFWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeFinding, events.EventTypeEvaluation,
		events.EventTypeSummary, events.EventTypeError:
		return true
	}
	return false
}
